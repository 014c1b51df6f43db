package authcore

import (
	"errors"
	"fmt"
	"time"

	"github.com/premisave/authcore/password"
)

// JWTConfig controls bearer token issuance. The secret is normalized to the
// HS256 key size (zero-padded or truncated to 32 bytes), so deployments that
// ship a short or long secret keep verifying each other's tokens.
type JWTConfig struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenConfig controls one-time activation and reset tokens.
type TokenConfig struct {
	ActivationTTL time.Duration
	ResetTTL      time.Duration
	// Retention bounds how long consumed or expired records stay readable in
	// Redis. Zero keeps them until eviction.
	Retention time.Duration
	KeyPrefix string
}

// CacheConfig controls the advisory user snapshot cache.
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	KeyPrefix string
}

// RateConfig controls the token-bucket gate on sensitive operations.
// PerIdentity switches from one shared bucket to one bucket per email.
type RateConfig struct {
	Enabled     bool
	Capacity    int
	Interval    time.Duration
	PerIdentity bool
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// AccountConfig controls account lifecycle behavior.
type AccountConfig struct {
	// AutoLoginUnverified returns bearer tokens from Signup before the email
	// is verified. Off by default: unverified accounts only get tokens after
	// activation.
	AutoLoginUnverified bool
	DefaultRole         Role
}

// LinkConfig controls the URLs embedded in account emails and responses.
type LinkConfig struct {
	FrontendURL  string
	SupportEmail string
	// DashboardURLs overrides the per-role redirect target. Roles absent here
	// fall back to FrontendURL plus the role's default dashboard path.
	DashboardURLs map[Role]string
}

// Config is the full engine configuration. Zero-value fields are filled from
// DefaultConfig at build time.
type Config struct {
	JWT      JWTConfig
	Tokens   TokenConfig
	Cache    CacheConfig
	Rate     RateConfig
	Audit    AuditConfig
	Account  AccountConfig
	Links    LinkConfig
	Password password.Config
}

// DefaultConfig mirrors the documented production defaults.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Issuer:     "authcore",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Tokens: TokenConfig{
			ActivationTTL: 24 * time.Hour,
			ResetTTL:      24 * time.Hour,
			KeyPrefix:     "act",
		},
		Cache: CacheConfig{
			Enabled:   true,
			TTL:       30 * time.Minute,
			KeyPrefix: "usr",
		},
		Rate: RateConfig{
			Enabled:  true,
			Capacity: 100,
			Interval: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Account: AccountConfig{
			DefaultRole: RoleClient,
		},
		Links: LinkConfig{
			FrontendURL:  "http://localhost:3000",
			SupportEmail: "support@premisave.com",
		},
		Password: password.DefaultConfig(),
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.JWT.Issuer == "" {
		c.JWT.Issuer = defaults.JWT.Issuer
	}
	if c.JWT.AccessTTL <= 0 {
		c.JWT.AccessTTL = defaults.JWT.AccessTTL
	}
	if c.JWT.RefreshTTL <= 0 {
		c.JWT.RefreshTTL = defaults.JWT.RefreshTTL
	}
	if c.Tokens.ActivationTTL <= 0 {
		c.Tokens.ActivationTTL = defaults.Tokens.ActivationTTL
	}
	if c.Tokens.ResetTTL <= 0 {
		c.Tokens.ResetTTL = defaults.Tokens.ResetTTL
	}
	if c.Tokens.KeyPrefix == "" {
		c.Tokens.KeyPrefix = defaults.Tokens.KeyPrefix
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = defaults.Cache.TTL
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = defaults.Cache.KeyPrefix
	}
	if c.Rate.Capacity <= 0 {
		c.Rate.Capacity = defaults.Rate.Capacity
	}
	if c.Rate.Interval <= 0 {
		c.Rate.Interval = defaults.Rate.Interval
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = defaults.Audit.BufferSize
	}
	if c.Account.DefaultRole == "" {
		c.Account.DefaultRole = defaults.Account.DefaultRole
	}
	if c.Links.FrontendURL == "" {
		c.Links.FrontendURL = defaults.Links.FrontendURL
	}
	if c.Links.SupportEmail == "" {
		c.Links.SupportEmail = defaults.Links.SupportEmail
	}
	if c.Password == (password.Config{}) {
		c.Password = defaults.Password
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required")
	}
	if c.JWT.AccessTTL >= c.JWT.RefreshTTL {
		return errors.New("access ttl must be shorter than refresh ttl")
	}
	if !c.Account.DefaultRole.Valid() {
		return fmt.Errorf("invalid default role %q", c.Account.DefaultRole)
	}
	for role := range c.Links.DashboardURLs {
		if !role.Valid() {
			return fmt.Errorf("dashboard url for unknown role %q", role)
		}
	}
	return nil
}

// redirectURL resolves the post-signin landing URL for role.
func (c Config) redirectURL(role Role) string {
	if url, ok := c.Links.DashboardURLs[role]; ok {
		return url
	}
	if path, ok := dashboardPath[role]; ok {
		return c.Links.FrontendURL + path
	}
	return c.Links.FrontendURL + "/dashboard"
}

func (c Config) activationLink(tokenValue string) string {
	return c.Links.FrontendURL + "/verify/" + tokenValue
}

func (c Config) resetLink(tokenValue string) string {
	return c.Links.FrontendURL + "/reset-password?token=" + tokenValue
}
