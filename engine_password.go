package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/premisave/authcore/internal/audit"
	"github.com/premisave/authcore/internal/stores"
	"github.com/premisave/authcore/password"
)

// RequestPasswordReset issues a one-time reset token and queues the reset
// email. Unknown emails return success without sending anything, so the
// endpoint cannot be used to probe which emails are registered.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := e.allow(ctx, "password_reset", email); err != nil {
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.logger.Info("reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	token, err := e.tokens.Issue(ctx, user.ID, stores.KindResetPassword, e.cfg.Tokens.ResetTTL)
	if err != nil {
		return err
	}
	// Delivery failure stays invisible to the caller: surfacing it only for
	// registered emails would reopen the enumeration channel.
	if err := e.notifier.SendPasswordReset(ctx, user.Email, e.cfg.resetLink(token.Value)); err != nil {
		e.logger.Warn("reset email failed", "user_id", user.ID, "error", err)
	}

	e.metrics.Inc(MetricResetRequested)
	e.emit(ctx, audit.Event{EventType: audit.TypeResetRequested, UserID: user.ID, Email: user.Email, Success: true})
	return nil
}

// ConfirmPasswordReset consumes a reset token and installs the new password.
// The token burns only after the new password passes validation, so a typo'd
// confirmation does not cost the user their reset link.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, tokenValue, newPassword, confirmPassword string) error {
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if err := password.CheckStrength(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	record, err := e.tokens.Consume(ctx, tokenValue, stores.KindResetPassword)
	if err != nil {
		if mapped := mapTokenError(err); mapped != nil {
			e.emit(ctx, audit.Event{EventType: audit.TypeResetConfirmed, Error: mapped.Error()})
			return mapped
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	user, err := e.users.FindByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: token user no longer exists", ErrNotFound)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.rotatePassword(ctx, user, newPassword); err != nil {
		return err
	}

	e.metrics.Inc(MetricResetConfirmed)
	e.emit(ctx, audit.Event{EventType: audit.TypeResetConfirmed, UserID: user.ID, Email: user.Email, Success: true})
	e.logger.Info("password reset", "user_id", user.ID)
	return nil
}

// ChangePassword rotates the password of an authenticated user. The old
// password must verify before anything mutates.
func (e *Engine) ChangePassword(ctx context.Context, principal Principal, oldPassword, newPassword, confirmPassword string) error {
	user, err := e.users.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: unknown user", ErrUnauthorized)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !e.vault.Verify(oldPassword, user.PasswordHash) {
		e.metrics.Inc(MetricPasswordChangeInvalidOld)
		e.emit(ctx, audit.Event{EventType: audit.TypePasswordChanged, UserID: user.ID, Error: "wrong current password"})
		return fmt.Errorf("%w: current password is incorrect", ErrUnauthorized)
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}
	if err := password.CheckStrength(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := e.rotatePassword(ctx, user, newPassword); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	e.emit(ctx, audit.Event{EventType: audit.TypePasswordChanged, UserID: user.ID, Success: true})
	e.logger.Info("password changed", "user_id", user.ID)
	return nil
}

// rotatePassword installs a new hash, stamps PasswordChangedAt (which severs
// refresh tokens issued earlier), and drops the cached snapshot.
func (e *Engine) rotatePassword(ctx context.Context, user *User, newPassword string) error {
	hash, err := e.vault.Hash(newPassword)
	if err != nil {
		return err
	}

	now := e.now()
	user.PasswordHash = hash
	user.PasswordChangedAt = now
	user.UpdatedAt = now
	if err := e.users.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.dropCachedUser(ctx, user.ID)
	return nil
}
