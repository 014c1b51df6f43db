package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/premisave/authcore/internal/audit"
	"github.com/premisave/authcore/internal/stores"
	"github.com/premisave/authcore/password"
)

// Signup registers a new unverified account, queues the activation email, and
// returns the role redirect. Bearer tokens are withheld until the account is
// verified unless AutoLoginUnverified is set.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if err := e.allow(ctx, "signup", req.Email); err != nil {
		return nil, err
	}

	if err := req.Validate(); err != nil {
		e.metrics.Inc(MetricSignupRejected)
		return nil, err
	}
	if err := password.CheckStrength(req.Password); err != nil {
		e.metrics.Inc(MetricSignupRejected)
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	role := e.cfg.Account.DefaultRole
	if req.RoleName != "" {
		parsed, err := ParseRole(req.RoleName)
		if err != nil {
			e.metrics.Inc(MetricSignupRejected)
			return nil, err
		}
		role = parsed
	}

	if _, err := e.users.FindByEmail(ctx, req.Email); err == nil {
		e.metrics.Inc(MetricSignupDuplicate)
		e.emit(ctx, audit.Event{EventType: audit.TypeSignup, Email: req.Email, Error: ErrEmailTaken.Error()})
		return nil, ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := e.users.FindByDisplayName(ctx, req.Username); err == nil {
		e.metrics.Inc(MetricSignupDuplicate)
		e.emit(ctx, audit.Event{EventType: audit.TypeSignup, Email: req.Email, Error: ErrUsernameTaken.Error()})
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	hash, err := e.vault.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	now := e.now()
	user := &User{
		ID:                uuid.NewString(),
		Username:          req.Username,
		FirstName:         req.FirstName,
		MiddleName:        req.MiddleName,
		LastName:          req.LastName,
		Email:             req.Email,
		PhoneNumber:       req.PhoneNumber,
		Address1:          req.Address1,
		Address2:          req.Address2,
		Country:           req.Country,
		Language:          req.Language,
		Role:              role,
		PasswordHash:      hash,
		Active:            true,
		CreatedAt:         now,
		UpdatedAt:         now,
		PasswordChangedAt: now,
	}

	if err := e.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrConflict) {
			e.metrics.Inc(MetricSignupDuplicate)
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if err := e.sendActivation(ctx, user); err != nil {
		// The account exists either way; a lost email is recovered through
		// ResendActivation.
		e.logger.Warn("activation token issue failed", "user_id", user.ID, "error", err)
	}

	e.metrics.Inc(MetricSignupSuccess)
	e.emit(ctx, audit.Event{EventType: audit.TypeSignup, UserID: user.ID, Email: user.Email, Success: true})
	e.logger.Info("account created", "user_id", user.ID, "role", user.Role)

	if e.cfg.Account.AutoLoginUnverified {
		return e.issueTokens(user)
	}
	return &AuthResult{
		Role:        user.Role,
		RedirectURL: e.cfg.redirectURL(user.Role),
	}, nil
}

// ResendActivation issues a fresh activation token for an unverified account.
// Earlier tokens stay valid until they expire or get consumed.
func (e *Engine) ResendActivation(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := e.allow(ctx, "resend_activation", email); err != nil {
		return err
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: no account for email", ErrNotFound)
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	if err := e.sendActivation(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricActivationResent)
	e.emit(ctx, audit.Event{EventType: audit.TypeResendActivate, UserID: user.ID, Email: user.Email, Success: true})
	return nil
}

// sendActivation issues a token and queues the email. Only token issuance can
// fail; delivery failures are logged and swallowed so a mailer outage never
// blocks an account operation.
func (e *Engine) sendActivation(ctx context.Context, user *User) error {
	token, err := e.tokens.Issue(ctx, user.ID, stores.KindActivation, e.cfg.Tokens.ActivationTTL)
	if err != nil {
		return err
	}
	if err := e.notifier.SendActivation(ctx, user.Email, e.cfg.activationLink(token.Value)); err != nil {
		e.logger.Warn("activation email failed", "user_id", user.ID, "error", err)
	}
	return nil
}
