package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	algorithmID           = "argon2id"
)

// Config holds argon2id cost parameters. Zero values are rejected by NewVault;
// use DefaultConfig for the recommended baseline.
type Config struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns the baseline argon2id parameters.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Vault hashes and verifies credentials. Safe for concurrent use.
type Vault struct {
	config Config
}

// NewVault validates cfg and returns a Vault.
func NewVault(cfg Config) (*Vault, error) {
	switch {
	case cfg.Memory < minMemoryKB:
		return nil, errors.New("password memory must be >= 8192 KB")
	case cfg.Time < minTimeCost:
		return nil, errors.New("password time must be >= 1")
	case cfg.Parallelism < minParallelism:
		return nil, errors.New("password parallelism must be >= 1")
	case cfg.SaltLength < minSaltLength:
		return nil, errors.New("password salt length must be >= 16")
	case cfg.KeyLength < minKeyLength:
		return nil, errors.New("password key length must be >= 16")
	}
	return &Vault{config: cfg}, nil
}

// Hash derives an argon2id digest with a fresh random salt and encodes it in
// PHC string format. Two calls with the same input produce different strings
// that both verify.
func (v *Vault) Hash(plaintext string) (string, error) {
	salt := make([]byte, v.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey(
		[]byte(plaintext),
		salt,
		v.config.Time,
		v.config.Memory,
		v.config.Parallelism,
		v.config.KeyLength,
	)

	return fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithmID,
		argon2.Version,
		v.config.Memory,
		v.config.Time,
		v.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether plaintext matches the encoded digest. Malformed
// digests return false. The digest comparison is constant-time.
func (v *Vault) Verify(plaintext, encoded string) bool {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false
	}

	computed := argon2.IDKey(
		[]byte(plaintext),
		parsed.salt,
		parsed.time,
		parsed.memory,
		parsed.parallelism,
		uint32(len(parsed.hash)),
	)

	return subtle.ConstantTimeCompare(computed, parsed.hash) == 1
}

// NeedsRehash reports whether the digest was produced with weaker parameters
// than the vault's current configuration.
func (v *Vault) NeedsRehash(encoded string) (bool, error) {
	parsed, err := parsePHC(encoded)
	if err != nil {
		return false, err
	}

	if v.config.Memory > parsed.memory ||
		v.config.Time > parsed.time ||
		v.config.Parallelism > parsed.parallelism ||
		v.config.KeyLength != uint32(len(parsed.hash)) {
		return true, nil
	}
	return false, nil
}

type phcDigest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	hash        []byte
}

func parsePHC(encoded string) (*phcDigest, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, errors.New("invalid PHC format")
	}
	if parts[1] != algorithmID {
		return nil, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if !strings.HasPrefix(parts[2], "v=") || err != nil || version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	digest := &phcDigest{}
	for _, pair := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, errors.New("invalid parameter entry")
		}
		switch kv[0] {
		case "m":
			n, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return nil, errors.New("invalid memory parameter")
			}
			digest.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(kv[1], 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return nil, errors.New("invalid time parameter")
			}
			digest.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(kv[1], 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return nil, errors.New("invalid parallelism parameter")
			}
			digest.parallelism = uint8(n)
		default:
			return nil, errors.New("unsupported parameter")
		}
	}
	if digest.memory == 0 || digest.time == 0 || digest.parallelism == 0 {
		return nil, errors.New("missing parameters")
	}

	if digest.salt, err = base64.StdEncoding.DecodeString(parts[4]); err != nil {
		return nil, errors.New("invalid salt encoding")
	}
	if len(digest.salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt length")
	}
	if digest.hash, err = base64.StdEncoding.DecodeString(parts[5]); err != nil {
		return nil, errors.New("invalid hash encoding")
	}
	if len(digest.hash) == 0 {
		return nil, errors.New("invalid hash length")
	}

	return digest, nil
}
