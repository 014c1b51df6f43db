package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/premisave/authcore/internal/audit"
	"github.com/premisave/authcore/jwt"
)

// Signin authenticates an email/password pair and returns a fresh token pair.
// Unknown email and wrong password fail identically so the response does not
// reveal which emails are registered.
func (e *Engine) Signin(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if err := e.allow(ctx, "signin", email); err != nil {
		return nil, err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metrics.Inc(MetricSigninFailure)
			e.emit(ctx, audit.Event{EventType: audit.TypeSignin, Email: email, Error: "unknown email"})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !e.vault.Verify(password, user.PasswordHash) {
		e.metrics.Inc(MetricSigninFailure)
		e.emit(ctx, audit.Event{EventType: audit.TypeSignin, UserID: user.ID, Email: email, Error: "wrong password"})
		return nil, ErrInvalidCredentials
	}

	if !user.Verified {
		e.metrics.Inc(MetricSigninUnverified)
		e.emit(ctx, audit.Event{EventType: audit.TypeSignin, UserID: user.ID, Email: email, Error: ErrAccountUnverified.Error()})
		return nil, ErrAccountUnverified
	}
	if !user.Active || user.Archived {
		e.emit(ctx, audit.Event{EventType: audit.TypeSignin, UserID: user.ID, Email: email, Error: ErrAccountDisabled.Error()})
		return nil, ErrAccountDisabled
	}

	// Transparent upgrade when the stored digest predates the current argon2
	// parameters. The plaintext is in hand only here.
	if stale, rehashErr := e.vault.NeedsRehash(user.PasswordHash); rehashErr == nil && stale {
		if hash, hashErr := e.vault.Hash(password); hashErr == nil {
			user.PasswordHash = hash
		}
	}

	user.LastLoginAt = e.now()
	user.UpdatedAt = user.LastLoginAt
	if err := e.users.Update(ctx, user); err != nil {
		e.logger.Warn("last login update failed", "user_id", user.ID, "error", err)
	}
	e.cacheUser(ctx, user)

	result, err := e.issueTokens(user)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricSigninSuccess)
	e.emit(ctx, audit.Event{EventType: audit.TypeSignin, UserID: user.ID, Email: email, Success: true})
	e.logger.Info("signin", "user_id", user.ID)
	return result, nil
}

// Refresh exchanges a valid refresh token for a new token pair. Refresh
// tokens issued before the account's last password change are rejected, which
// severs stolen sessions the moment the password rotates.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	subject, err := e.signer.ExtractSubject(refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, err := e.signer.Validate(refreshToken, subject)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: refresh token", ErrExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, cached, err := e.loadUser(ctx, subject)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown subject", ErrNotFound)
		}
		return nil, err
	}

	if !user.Verified {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrAccountUnverified
	}
	if !user.Active || user.Archived {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrAccountDisabled
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.Before(user.PasswordChangedAt) {
		e.metrics.Inc(MetricRefreshFailure)
		e.emit(ctx, audit.Event{EventType: audit.TypeRefresh, UserID: user.ID, Error: "token predates password change"})
		return nil, fmt.Errorf("%w: token predates password change", ErrUnauthorized)
	}

	// Refresh counts as account activity: stamp lastLoginAt on the durable
	// record and re-seed the snapshot. A snapshot-built user lacks most
	// fields, so reload the full record before writing anything back.
	full := !cached
	if cached {
		if reloaded, rerr := e.users.FindByID(ctx, subject); rerr == nil {
			user = reloaded
			full = true
		} else {
			e.logger.Warn("refresh user reload failed", "user_id", subject, "error", rerr)
		}
	}
	user.LastLoginAt = e.now()
	user.UpdatedAt = user.LastLoginAt
	if full {
		if err := e.users.Update(ctx, user); err != nil {
			e.logger.Warn("last login update failed", "user_id", user.ID, "error", err)
		}
	}
	e.cacheUser(ctx, user)

	result, err := e.issueTokens(user)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emit(ctx, audit.Event{EventType: audit.TypeRefresh, UserID: user.ID, Success: true})
	return result, nil
}

// loadUser reads through the snapshot cache when it holds enough to rebuild
// the checks Refresh needs, falling back to the user store. The second return
// reports whether the user came from the cache (and therefore is partial).
func (e *Engine) loadUser(ctx context.Context, userID string) (*User, bool, error) {
	if e.cache != nil {
		if snapshot, err := e.cache.Get(ctx, userID); err == nil {
			return userFromSnapshot(snapshot), true, nil
		}
	}

	user, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, err
		}
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return user, false, nil
}
