package authcore

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// User is the account record as the engine sees it. Persistence belongs to
// the caller-supplied UserStore; the engine never assumes a schema beyond
// these fields.
type User struct {
	ID          string
	Username    string
	FirstName   string
	MiddleName  string
	LastName    string
	Email       string
	PhoneNumber string
	Address1    string
	Address2    string
	Country     string
	Language    string

	Role         Role
	PasswordHash string

	Active   bool
	Verified bool
	Archived bool

	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastLoginAt       time.Time
	PasswordChangedAt time.Time
}

// Principal identifies the authenticated caller of operations that require a
// bearer token, resolved by the host application from the access token.
type Principal struct {
	UserID string
	Email  string
	Role   Role
}

// AuthResult is returned by operations that establish or renew a session.
// Tokens are empty when the configuration withholds them (signup before
// verification).
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	Role         Role
	RedirectURL  string
}

// SignupRequest carries the fields accepted at registration. RoleName is the
// wire value; empty defaults to CLIENT.
type SignupRequest struct {
	Username    string
	FirstName   string
	MiddleName  string
	LastName    string
	Email       string
	PhoneNumber string
	Address1    string
	Address2    string
	Country     string
	Language    string
	Password    string
	RoleName    string
}

// Validate checks field shape only; password strength is enforced separately
// by the password policy.
func (r SignupRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 64)),
		validation.Field(&r.FirstName, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.MiddleName, validation.Length(0, 64)),
		validation.Field(&r.LastName, validation.Required, validation.Length(1, 64)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.PhoneNumber, validation.Length(0, 32)),
		validation.Field(&r.Password, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if _, err := ParseRole(r.RoleName); err != nil {
		return err
	}
	return nil
}

// UserStore is the persistence boundary the host application implements.
//
// Create must fail with an error wrapping ErrEmailTaken when the email is
// already registered. FindByID, FindByEmail, and FindByDisplayName must fail
// with an error wrapping ErrNotFound for unknown users. Update replaces the
// stored record for user.ID.
//
// The engine lowercases email addresses before every store call, so
// implementations may match emails exactly. Display names are matched as
// given.
type UserStore interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByDisplayName(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) error
}

// Notifier delivers account emails. Implementations should not block the
// calling flow; the mailer package provides a queued implementation.
type Notifier interface {
	SendActivation(ctx context.Context, email, link string) error
	SendPasswordReset(ctx context.Context, email, link string) error
}
