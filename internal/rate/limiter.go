package rate

import (
	"errors"
	"sync"
	"time"
)

// Scope selects how bucket state is shared across callers.
type Scope int

const (
	// ScopeGlobal throttles all callers through a single shared bucket.
	ScopeGlobal Scope = iota
	// ScopePerIdentity keeps an independent bucket per caller key.
	ScopePerIdentity
)

// Keep the per-identity map bounded; exceeding this triggers a prune of
// buckets that have sat out a full refill interval.
const pruneThreshold = 4096

// Config holds bucket tuning parameters.
type Config struct {
	Capacity int
	Interval time.Duration // Capacity tokens are restored once per Interval
	Scope    Scope
	Now      func() time.Time
}

type bucket struct {
	tokens      int
	windowStart time.Time
}

// Limiter is a lazily refilled token bucket. All methods are internally
// synchronized; a single Limiter is constructed at engine build time and
// shared by every gated request.
type Limiter struct {
	mu     sync.Mutex
	config Config
	global bucket
	perKey map[string]*bucket
}

// New validates cfg and returns a Limiter with a full bucket.
func New(cfg Config) (*Limiter, error) {
	if cfg.Capacity <= 0 {
		return nil, errors.New("rate capacity must be positive")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("rate interval must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	l := &Limiter{
		config: cfg,
		global: bucket{tokens: cfg.Capacity, windowStart: cfg.Now()},
	}
	if cfg.Scope == ScopePerIdentity {
		l.perKey = make(map[string]*bucket)
	}
	return l, nil
}

// TryConsume takes one token from the bucket selected by key, refilling it
// first from elapsed time. Returns false, mutating nothing, when the bucket
// is empty. key is ignored under ScopeGlobal.
func (l *Limiter) TryConsume(key string) bool {
	now := l.config.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b := &l.global
	if l.config.Scope == ScopePerIdentity {
		b = l.bucketFor(key, now)
	}

	l.refill(b, now)
	if b.tokens <= 0 {
		return false
	}
	b.tokens--
	return true
}

// Remaining reports the token count the selected bucket would hold after
// refill, without consuming.
func (l *Limiter) Remaining(key string) int {
	now := l.config.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b := &l.global
	if l.config.Scope == ScopePerIdentity {
		b = l.bucketFor(key, now)
	}
	l.refill(b, now)
	return b.tokens
}

// refill restores the full capacity for every complete interval elapsed since
// the window start, advancing the window boundary accordingly.
func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.windowStart)
	if elapsed < l.config.Interval {
		return
	}
	intervals := elapsed / l.config.Interval
	b.tokens = l.config.Capacity
	b.windowStart = b.windowStart.Add(intervals * l.config.Interval)
}

func (l *Limiter) bucketFor(key string, now time.Time) *bucket {
	if b, ok := l.perKey[key]; ok {
		return b
	}
	if len(l.perKey) >= pruneThreshold {
		for k, stale := range l.perKey {
			if now.Sub(stale.windowStart) >= l.config.Interval {
				delete(l.perKey, k)
			}
		}
	}
	b := &bucket{tokens: l.config.Capacity, windowStart: now}
	l.perKey[key] = b
	return b
}
