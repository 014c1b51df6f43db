package authcore

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memUserStore relies on the engine handing it lowercased emails; keys are
// matched exactly.
type memUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
	byName  map[string]string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
		byName:  make(map[string]string),
	}
}

func (s *memUserStore) Create(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[user.Email]; exists {
		return ErrEmailTaken
	}
	if _, exists := s.byName[user.Username]; user.Username != "" && exists {
		return ErrUsernameTaken
	}
	clone := *user
	s.byID[user.ID] = &clone
	s.byEmail[user.Email] = user.ID
	if user.Username != "" {
		s.byName[user.Username] = user.ID
	}
	return nil
}

func (s *memUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *memUserStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *memUserStore) FindByDisplayName(ctx context.Context, username string) (*User, error) {
	s.mu.RLock()
	id, ok := s.byName[username]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *memUserStore) Update(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[user.ID]; !ok {
		return ErrNotFound
	}
	clone := *user
	s.byID[user.ID] = &clone
	return nil
}

type sentMail struct {
	email string
	link  string
}

// captureNotifier records delivered links instead of sending email. Setting
// fail makes both senders return that error without recording anything.
type captureNotifier struct {
	mu          sync.Mutex
	activations []sentMail
	resets      []sentMail
	fail        error
}

func (n *captureNotifier) SendActivation(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.activations = append(n.activations, sentMail{email: email, link: link})
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.resets = append(n.resets, sentMail{email: email, link: link})
	return nil
}

func (n *captureNotifier) failWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fail = err
}

func (n *captureNotifier) lastActivation(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.activations) == 0 {
		t.Fatal("no activation email captured")
	}
	return n.activations[len(n.activations)-1]
}

func (n *captureNotifier) lastReset(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.resets) == 0 {
		t.Fatal("no reset email captured")
	}
	return n.resets[len(n.resets)-1]
}

func (n *captureNotifier) resetCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.resets)
}

type testEnv struct {
	engine   *Engine
	store    *memUserStore
	notifier *captureNotifier
	clock    *testClock
}

func newTestEngine(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := DefaultConfig()
	cfg.JWT.Secret = "engine-test-secret"
	cfg.Rate.Enabled = false
	if mutate != nil {
		mutate(&cfg)
	}

	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	store := newMemUserStore()
	notifier := &captureNotifier{}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithNotifier(notifier).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return &testEnv{engine: engine, store: store, notifier: notifier, clock: clock}
}

const strongPassword = "Str0ng!pass"

// validSignup derives the display name from the email's local part so
// distinct signups in one test do not collide on the uniqueness check.
func validSignup(email string) SignupRequest {
	name := email
	if i := strings.IndexByte(email, '@'); i > 0 {
		name = email[:i]
	}
	return SignupRequest{
		Username:  name + "01",
		FirstName: "Alice",
		LastName:  "Nguyen",
		Email:     email,
		Password:  strongPassword,
	}
}

// tokenFromLink strips the URL scaffolding around an emailed one-time token.
func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	for _, marker := range []string{"/verify/", "token="} {
		if i := strings.LastIndex(link, marker); i >= 0 {
			return link[i+len(marker):]
		}
	}
	t.Fatalf("no token in link %q", link)
	return ""
}

func (env *testEnv) signupAndVerify(t *testing.T, email string) *User {
	t.Helper()
	ctx := context.Background()

	if _, err := env.engine.Signup(ctx, validSignup(email)); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	token := tokenFromLink(t, env.notifier.lastActivation(t).link)
	if err := env.engine.VerifyAccount(ctx, token); err != nil {
		t.Fatalf("VerifyAccount failed: %v", err)
	}

	user, err := env.store.FindByEmail(ctx, email)
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	return user
}
