package authcore

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/premisave/authcore/internal/audit"
	"github.com/premisave/authcore/internal/cache"
	"github.com/premisave/authcore/internal/rate"
	"github.com/premisave/authcore/internal/stores"
	"github.com/premisave/authcore/jwt"
	"github.com/premisave/authcore/password"
)

// Engine implements the account lifecycle: signup, signin, token refresh,
// email verification, and password recovery. It is transport-agnostic; the
// host application maps its HTTP or RPC layer onto these methods.
//
// An Engine is built once via Builder and is safe for concurrent use.
type Engine struct {
	cfg      Config
	users    UserStore
	tokens   *stores.TokenStore
	cache    *cache.SnapshotCache
	notifier Notifier
	signer   *jwt.Manager
	vault    *password.Vault
	limiter  *rate.Limiter
	audit    *audit.Dispatcher
	metrics  *Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// Close flushes the audit dispatcher. The Engine must not be used afterwards.
func (e *Engine) Close() {
	e.audit.Close()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// AuditDropped reports how many audit events were dropped by a full buffer.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

// allow consults the rate limiter for one sensitive operation. key is the
// caller identity; it is ignored when the limiter runs a single global bucket.
func (e *Engine) allow(ctx context.Context, operation, key string) error {
	if e.limiter == nil || e.limiter.TryConsume(key) {
		return nil
	}
	e.metrics.Inc(MetricRateLimitHit)
	e.emit(ctx, audit.Event{
		EventType: audit.TypeRateLimited,
		Email:     key,
		Metadata:  map[string]string{"operation": operation},
	})
	e.logger.Warn("rate limit hit", "operation", operation)
	return ErrRateLimited
}

// normalizeEmail lowercases an address. Email is a case-insensitive identity;
// flows normalize before the store ever sees it.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (e *Engine) emit(ctx context.Context, event audit.Event) {
	if e.audit == nil {
		return
	}
	event.Timestamp = e.now()
	e.audit.Emit(ctx, event)
}

// cacheUser refreshes the advisory snapshot. Failures are logged, never
// propagated.
func (e *Engine) cacheUser(ctx context.Context, user *User) {
	if e.cache == nil {
		return
	}
	err := e.cache.Set(ctx, &cache.Snapshot{
		UserID:   user.ID,
		Email:    user.Email,
		Role:     string(user.Role),
		Verified: user.Verified,
		// Archived folds into Active so snapshot checks stay one flag.
		Active:            user.Active && !user.Archived,
		PasswordChangedAt: user.PasswordChangedAt.Unix(),
		LastLoginAt:       user.LastLoginAt.Unix(),
	})
	if err != nil {
		e.logger.Warn("snapshot cache write failed", "user_id", user.ID, "error", err)
	}
}

// dropCachedUser invalidates the snapshot after a credential or status
// change. Failures are logged, never propagated.
func (e *Engine) dropCachedUser(ctx context.Context, userID string) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Delete(ctx, userID); err != nil {
		e.logger.Warn("snapshot cache invalidation failed", "user_id", userID, "error", err)
	}
}

// userFromSnapshot rebuilds the fields the hot paths check from a cached
// snapshot. Everything else stays zero; flows that need the full record go to
// the user store.
func userFromSnapshot(s *cache.Snapshot) *User {
	return &User{
		ID:                s.UserID,
		Email:             s.Email,
		Role:              Role(s.Role),
		Verified:          s.Verified,
		Active:            s.Active,
		PasswordChangedAt: time.Unix(s.PasswordChangedAt, 0),
		LastLoginAt:       time.Unix(s.LastLoginAt, 0),
	}
}

// issueTokens signs an access/refresh pair and assembles the AuthResult.
func (e *Engine) issueTokens(user *User) (*AuthResult, error) {
	access, err := e.signer.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := e.signer.IssueRefresh(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Role:         user.Role,
		RedirectURL:  e.cfg.redirectURL(user.Role),
	}, nil
}
