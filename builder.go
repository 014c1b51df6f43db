package authcore

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/premisave/authcore/internal/audit"
	"github.com/premisave/authcore/internal/cache"
	"github.com/premisave/authcore/internal/rate"
	"github.com/premisave/authcore/internal/stores"
	"github.com/premisave/authcore/jwt"
	"github.com/premisave/authcore/password"
)

// Builder assembles an Engine. Configure it during startup, call Build once,
// and discard it.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	users     UserStore
	notifier  Notifier
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time
	built     bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = true
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the time source. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, wires the internal components, and
// returns the ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	b.built = true

	b.config.applyDefaults()
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("user store is required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.now == nil {
		b.now = time.Now
	}

	signer, err := jwt.NewManager(jwt.Config{
		Secret:     []byte(b.config.JWT.Secret),
		AccessTTL:  b.config.JWT.AccessTTL,
		RefreshTTL: b.config.JWT.RefreshTTL,
		Issuer:     b.config.JWT.Issuer,
		Now:        b.now,
	})
	if err != nil {
		return nil, err
	}

	vault, err := password.NewVault(b.config.Password)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		cfg:      b.config,
		users:    b.users,
		tokens:   stores.NewTokenStore(b.redis, b.config.Tokens.KeyPrefix, b.config.Tokens.Retention, b.now),
		notifier: b.notifier,
		signer:   signer,
		vault:    vault,
		metrics:  NewMetrics(),
		logger:   b.logger,
		now:      b.now,
	}

	if b.config.Cache.Enabled {
		engine.cache = cache.NewSnapshotCache(b.redis, b.config.Cache.KeyPrefix, b.config.Cache.TTL)
	}

	if b.config.Rate.Enabled {
		scope := rate.ScopeGlobal
		if b.config.Rate.PerIdentity {
			scope = rate.ScopePerIdentity
		}
		limiter, err := rate.New(rate.Config{
			Capacity: b.config.Rate.Capacity,
			Interval: b.config.Rate.Interval,
			Scope:    scope,
			Now:      b.now,
		})
		if err != nil {
			return nil, err
		}
		engine.limiter = limiter
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.auditSink)

	return engine, nil
}
