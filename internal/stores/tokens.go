package stores

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenRecordVersionV1 = 1

// TokenKind tags what a one-time token authorizes.
type TokenKind uint8

const (
	KindActivation    TokenKind = 1
	KindResetPassword TokenKind = 2
)

func (k TokenKind) String() string {
	switch k {
	case KindActivation:
		return "ACTIVATION"
	case KindResetPassword:
		return "RESET_PASSWORD"
	default:
		return fmt.Sprintf("TokenKind(%d)", uint8(k))
	}
}

var (
	ErrTokenNotFound         = errors.New("token record not found")
	ErrTokenExpired          = errors.New("token record expired")
	ErrTokenAlreadyUsed      = errors.New("token record already used")
	ErrTokenKindMismatch     = errors.New("token kind mismatch")
	ErrTokenRedisUnavailable = errors.New("token redis unavailable")
)

// consumeTokenLua atomically performs GET→validate→mark-used on a token record.
// The used byte is rewritten in place; the record itself is retained so later
// attempts classify as expired or already-used instead of not-found.
//
// KEYS[1] = record key
// ARGV[1] = expected kind (byte value as int string)
// ARGV[2] = current unix timestamp (int string)
//
// Check order matters: expiry wins over the used flag, the used flag wins
// over a kind mismatch.
//
// Returns:
//
//	record bytes (pre-flip) on success
//	error string: "not_found", "expired", "already_used", "kind_mismatch"
var consumeTokenLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local expectedKind = tonumber(ARGV[1])
local nowUnix = tonumber(ARGV[2])

-- Minimal binary decode: version(1) kind(1) used(1) expiresAt(8 big-endian) ...
local version = string.byte(data, 1)
if version ~= 1 then
  return {err='not_found'}
end

local kind = string.byte(data, 2)
local used = string.byte(data, 3)

local e0,e1,e2,e3,e4,e5,e6,e7 = string.byte(data, 4, 11)
local expiresAt = e0
for _, b in ipairs({e1,e2,e3,e4,e5,e6,e7}) do
  expiresAt = expiresAt * 256 + b
end

if nowUnix > expiresAt then
  return {err='expired'}
end

if used ~= 0 then
  return {err='already_used'}
end

if kind ~= expectedKind then
  return {err='kind_mismatch'}
end

local updated = string.sub(data, 1, 2) .. string.char(1) .. string.sub(data, 4)
local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs > 0 then
  redis.call('SET', KEYS[1], updated, 'PX', ttlMs)
else
  redis.call('SET', KEYS[1], updated)
end
return data
`)

// TokenRecord is one issued one-time token. Value is the opaque secret handed
// to the user; it doubles as the lookup key and is not stored in the payload.
type TokenRecord struct {
	ID        string
	Value     string
	UserID    string
	Kind      TokenKind
	Used      bool
	IssuedAt  int64
	ExpiresAt int64
}

// TokenStore persists one-time tokens in Redis keyed by their opaque value.
type TokenStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

// NewTokenStore builds a store. retention bounds how long consumed or expired
// records stay readable past their own expiry; zero keeps them until Redis
// evicts them.
func NewTokenStore(redisClient redis.UniversalClient, prefix string, retention time.Duration, now func() time.Time) *TokenStore {
	if prefix == "" {
		prefix = "act"
	}
	if now == nil {
		now = time.Now
	}
	return &TokenStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
		now:       now,
	}
}

func (s *TokenStore) key(value string) string {
	return s.prefix + ":" + value
}

// Issue creates and persists a fresh unused token for userID. The returned
// record carries the opaque value the caller should deliver to the user.
func (s *TokenStore) Issue(ctx context.Context, userID string, kind TokenKind, ttl time.Duration) (*TokenRecord, error) {
	value, err := newTokenValue()
	if err != nil {
		return nil, err
	}

	issuedAt := s.now()
	record := &TokenRecord{
		ID:        uuid.NewString(),
		Value:     value,
		UserID:    userID,
		Kind:      kind,
		IssuedAt:  issuedAt.Unix(),
		ExpiresAt: issuedAt.Add(ttl).Unix(),
	}

	encoded, err := encodeTokenRecord(record)
	if err != nil {
		return nil, err
	}

	// The key outlives the token by the retention window so a late replay
	// classifies as expired or already-used instead of not-found.
	keyTTL := time.Duration(0)
	if s.retention > 0 {
		keyTTL = ttl + s.retention
	}
	if err := s.redis.Set(ctx, s.key(value), encoded, keyTTL).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	return record, nil
}

// Find returns the record for value as stored, used or not. Expiry is not
// judged here; callers compare ExpiresAt against their own clock.
func (s *TokenStore) Find(ctx context.Context, value string) (*TokenRecord, error) {
	data, err := s.redis.Get(ctx, s.key(value)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
	}

	record, err := decodeTokenRecord(data)
	if err != nil {
		return nil, err
	}
	record.Value = value
	return record, nil
}

// Consume marks the record for value as used, failing if it is missing,
// expired, already used, or of a different kind. At most one concurrent
// caller succeeds per token.
func (s *TokenStore) Consume(ctx context.Context, value string, expectedKind TokenKind) (*TokenRecord, error) {
	result, err := consumeTokenLua.Run(ctx, s.redis,
		[]string{s.key(value)},
		int(expectedKind),
		s.now().Unix(),
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return nil, ErrTokenNotFound
		case "expired":
			return nil, ErrTokenExpired
		case "already_used":
			return nil, ErrTokenAlreadyUsed
		case "kind_mismatch":
			return nil, ErrTokenKindMismatch
		default:
			return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrTokenRedisUnavailable)
	}

	record, decErr := decodeTokenRecord([]byte(data))
	if decErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenRedisUnavailable, decErr)
	}
	record.Value = value
	record.Used = true
	return record, nil
}

func newTokenValue() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("token value generation: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func encodeTokenRecord(record *TokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionV1)
	buf.WriteByte(byte(record.Kind))
	if record.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt); err != nil {
		return nil, err
	}

	for _, field := range []string{record.ID, record.UserID} {
		if len(field) > 65535 {
			return nil, errors.New("token record field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*TokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionV1 {
		return nil, errors.New("invalid token record version")
	}

	kind, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	used, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &TokenRecord{
		Kind: TokenKind(kind),
		Used: used != 0,
	}

	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.IssuedAt); err != nil {
		return nil, err
	}

	for _, field := range []*string{&record.ID, &record.UserID} {
		var n uint16
		if err := binary.Read(reader, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		raw := make([]byte, n)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return nil, err
		}
		*field = string(raw)
	}

	return record, nil
}
