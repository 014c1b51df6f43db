package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/premisave/authcore/internal/audit"
	"github.com/premisave/authcore/internal/stores"
)

// VerifyAccount consumes an activation token and marks the account verified.
// Consumption is exactly-once: a replayed token fails with ErrAlreadyUsed
// while the account stays verified from the first call.
func (e *Engine) VerifyAccount(ctx context.Context, tokenValue string) error {
	record, err := e.tokens.Consume(ctx, tokenValue, stores.KindActivation)
	if err != nil {
		if mapped := mapTokenError(err); mapped != nil {
			if errors.Is(mapped, ErrAlreadyUsed) {
				e.metrics.Inc(MetricVerifyReplayed)
			}
			e.emit(ctx, audit.Event{EventType: audit.TypeVerify, Error: mapped.Error()})
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

	if !user.Verified {
		user.Verified = true
		user.UpdatedAt = e.now()
		if err := e.users.Update(ctx, user); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.cacheUser(ctx, user)
	}

	e.metrics.Inc(MetricVerifySuccess)
	e.emit(ctx, audit.Event{EventType: audit.TypeVerify, UserID: user.ID, Email: user.Email, Success: true})
	e.logger.Info("account verified", "user_id", user.ID)
	return nil
}

// mapTokenError translates store-level token failures into the public error
// taxonomy. Returns nil for errors that are not token classifications.
func mapTokenError(err error) error {
	switch {
	case errors.Is(err, stores.ErrTokenNotFound):
		return ErrTokenUnknown
	case errors.Is(err, stores.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, stores.ErrTokenAlreadyUsed):
		return ErrTokenUsed
	case errors.Is(err, stores.ErrTokenKindMismatch):
		return fmt.Errorf("%w: wrong token kind", ErrInvalidToken)
	default:
		return nil
	}
}
