package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const signingKeySize = 32

var (
	// ErrInvalidToken covers bad signatures, malformed structure, and unknown
	// signing algorithms.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when the token is structurally valid but past
	// its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrSubjectMismatch is returned when the embedded subject differs from the
	// expected one.
	ErrSubjectMismatch = errors.New("token subject mismatch")
)

// Config holds signer tuning. Secret is normalized to exactly 32 bytes before
// use: shorter secrets are zero-padded, longer ones truncated. This is a
// documented convention rather than a rejection so that key material sourced
// from opaque config stores never fails at startup.
type Config struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
	Now        func() time.Time
}

// Manager issues and validates HMAC-SHA256 bearer tokens. It is stateless and
// safe for unlimited concurrent use.
type Manager struct {
	config Config
	key    []byte
}

// Claims is the payload carried by both access and refresh tokens. The two
// kinds share structure and algorithm; they differ only in TTL and in the
// caller's intended use.
type Claims struct {
	jwt.RegisteredClaims
}

// NormalizeKey pads secret with zero bytes to 32 bytes, or truncates it to 32.
func NormalizeKey(secret []byte) []byte {
	key := make([]byte, signingKeySize)
	copy(key, secret)
	return key
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("signing secret required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("access TTL must be positive")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("refresh TTL must be >= access TTL")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		config: cfg,
		key:    NormalizeKey(cfg.Secret),
	}, nil
}

// IssueAccess signs a short-lived access token for subject.
func (m *Manager) IssueAccess(subject string) (string, error) {
	return m.issue(subject, m.config.AccessTTL)
}

// IssueRefresh signs a refresh token for subject with the longer refresh TTL.
func (m *Manager) IssueRefresh(subject string) (string, error) {
	return m.issue(subject, m.config.RefreshTTL)
}

func (m *Manager) issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty token subject")
	}

	now := m.config.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
}

// Validate checks signature, expiry, and subject. Only a fully valid,
// unexpired token whose subject equals expectedSubject succeeds.
func (m *Manager) Validate(token, expectedSubject string) (*Claims, error) {
	claims, err := m.parse(token, true)
	if err != nil {
		return nil, err
	}
	if claims.Subject != expectedSubject {
		return nil, ErrSubjectMismatch
	}
	return claims, nil
}

// ExtractSubject returns the subject of a token whose signature verifies,
// without judging expiry. Used to locate the account a refresh token belongs
// to before full validation.
func (m *Manager) ExtractSubject(token string) (string, error) {
	claims, err := m.parse(token, false)
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func (m *Manager) parse(token string, validateClaims bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.config.Now),
	}
	if !validateClaims {
		options = append(options, jwt.WithoutClaimsValidation())
	} else if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
