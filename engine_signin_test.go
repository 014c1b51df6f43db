package authcore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSigninHappyPath(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	env.signupAndVerify(t, "alice@example.com")

	result, err := env.engine.Signin(ctx, "alice@example.com", strongPassword)
	if err != nil {
		t.Fatalf("Signin failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" {
		t.Fatal("signin must issue both tokens")
	}
	if result.AccessToken == result.RefreshToken {
		t.Fatal("access and refresh tokens must differ")
	}
	if result.Role != RoleClient || result.RedirectURL != "http://localhost:3000/dashboard/client" {
		t.Fatalf("unexpected result %+v", result)
	}

	user, err := env.store.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if !user.LastLoginAt.Equal(env.clock.Now()) {
		t.Fatalf("LastLoginAt not stamped: %v", user.LastLoginAt)
	}
}

func TestSigninFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	env.signupAndVerify(t, "alice@example.com")

	_, wrongPassword := env.engine.Signin(ctx, "alice@example.com", "Wr0ng!pass")
	_, unknownEmail := env.engine.Signin(ctx, "nobody@example.com", strongPassword)

	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}
	if !errors.Is(unknownEmail, ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", unknownEmail)
	}
	// The two failures must not leak which emails exist.
	if wrongPassword.Error() != unknownEmail.Error() {
		t.Fatalf("distinguishable failures: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestSigninEmailCaseInsensitive(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := env.engine.Signup(ctx, validSignup("Alice@Example.com")); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	token := tokenFromLink(t, env.notifier.lastActivation(t).link)
	if err := env.engine.VerifyAccount(ctx, token); err != nil {
		t.Fatalf("VerifyAccount failed: %v", err)
	}

	if _, err := env.engine.Signin(ctx, "ALICE@EXAMPLE.COM", strongPassword); err != nil {
		t.Fatalf("case variant signin failed: %v", err)
	}

	// The record itself is stored lowercased.
	user, err := env.store.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("stored email %q not normalized", user.Email)
	}
}

func TestSigninUnverifiedAccount(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := env.engine.Signup(ctx, validSignup("alice@example.com")); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	_, err := env.engine.Signin(ctx, "alice@example.com", strongPassword)
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatal("unverified must classify as unauthorized")
	}
}

func TestSigninDeactivatedAccount(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	user := env.signupAndVerify(t, "alice@example.com")

	user.Active = false
	if err := env.store.Update(ctx, user); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := env.engine.Signin(ctx, "alice@example.com", strongPassword); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}

func TestRefreshIssuesNewPair(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	env.signupAndVerify(t, "alice@example.com")

	first, err := env.engine.Signin(ctx, "alice@example.com", strongPassword)
	if err != nil {
		t.Fatalf("Signin failed: %v", err)
	}

	env.clock.Advance(time.Minute)
	second, err := env.engine.Refresh(ctx, first.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if second.AccessToken == "" || second.RefreshToken == "" {
		t.Fatal("refresh must issue a full pair")
	}
	if second.AccessToken == first.AccessToken {
		t.Fatal("refresh must mint a new access token")
	}
}

func TestRefreshStampsLastLogin(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	env.signupAndVerify(t, "alice@example.com")

	result, err := env.engine.Signin(ctx, "alice@example.com", strongPassword)
	if err != nil {
		t.Fatalf("Signin failed: %v", err)
	}

	env.clock.Advance(10 * time.Minute)
	if _, err := env.engine.Refresh(ctx, result.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	user, err := env.store.FindByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if !user.LastLoginAt.Equal(env.clock.Now()) {
		t.Fatalf("refresh must stamp LastLoginAt, got %v", user.LastLoginAt)
	}
	// The durable record must survive the cache-hit path intact.
	if user.PasswordHash == "" {
		t.Fatal("refresh must not clobber stored fields")
	}
}

func TestRefreshUnknownSubject(t *testing.T) {
	env := newTestEngine(t, nil)

	token, err := env.engine.signer.IssueRefresh("ghost")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}
	if _, err := env.engine.Refresh(context.Background(), token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a missing subject, got %v", err)
	}
}

func TestRefreshRejectsGarbage(t *testing.T) {
	env := newTestEngine(t, nil)

	for _, bad := range []string{"", "garbage", "a.b.c"} {
		if _, err := env.engine.Refresh(context.Background(), bad); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", bad, err)
		}
	}
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	env.signupAndVerify(t, "alice@example.com")

	result, err := env.engine.Signin(ctx, "alice@example.com", strongPassword)
	if err != nil {
		t.Fatalf("Signin failed: %v", err)
	}

	env.clock.Advance(env.engine.cfg.JWT.RefreshTTL + time.Second)
	if _, err := env.engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRefreshSeveredByPasswordChange(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	user := env.signupAndVerify(t, "alice@example.com")

	result, err := env.engine.Signin(ctx, "alice@example.com", strongPassword)
	if err != nil {
		t.Fatalf("Signin failed: %v", err)
	}

	env.clock.Advance(time.Minute)
	principal := Principal{UserID: user.ID, Email: user.Email, Role: user.Role}
	if err := env.engine.ChangePassword(ctx, principal, strongPassword, "N3w!passwd", "N3w!passwd"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}

	if _, err := env.engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("pre-rotation refresh token must be severed, got %v", err)
	}

	// A pair minted after the change keeps working.
	fresh, err := env.engine.Signin(ctx, "alice@example.com", "N3w!passwd")
	if err != nil {
		t.Fatalf("Signin with new password failed: %v", err)
	}
	env.clock.Advance(time.Second)
	if _, err := env.engine.Refresh(ctx, fresh.RefreshToken); err != nil {
		t.Fatalf("post-rotation refresh failed: %v", err)
	}
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := context.Background()
	user := env.signupAndVerify(t, "alice@example.com")

	result, err := env.engine.Signin(ctx, "alice@example.com", strongPassword)
	if err != nil {
		t.Fatalf("Signin failed: %v", err)
	}

	user.Active = false
	if err := env.store.Update(ctx, user); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	// The snapshot cache still holds the active view; drop it the way a
	// status-change flow would.
	env.engine.dropCachedUser(ctx, user.ID)

	if _, err := env.engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}
