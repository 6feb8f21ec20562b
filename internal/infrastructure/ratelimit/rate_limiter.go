package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	ActionAPI           = "api"
	ActionSendMessage   = "send_message"
	ActionSubmitPayment = "submit_payment"
)

// Policy is a token bucket: Burst tokens, refilled one every Every.
type Policy struct {
	Every time.Duration
	Burst int
}

var defaultPolicies = map[string]Policy{
	// 60 requests per minute across the API
	ActionAPI: {Every: time.Second, Burst: 60},
	// 10 messages per minute
	ActionSendMessage: {Every: 6 * time.Second, Burst: 10},
	// 5 payment submissions per minute
	ActionSubmitPayment: {Every: 12 * time.Second, Burst: 5},
}

var fallbackPolicy = Policy{Every: 3 * time.Second, Burst: 20}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one bucket per user and action.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	policies map[string]Policy
	now      func() time.Time
}

func NewRateLimiter() *RateLimiter {
	policies := make(map[string]Policy, len(defaultPolicies))
	for action, p := range defaultPolicies {
		policies[action] = p
	}
	return &RateLimiter{
		buckets:  make(map[string]*bucket),
		policies: policies,
		now:      time.Now,
	}
}

// SetPolicy overrides the limits for an action. Existing buckets keep theirs.
func (rl *RateLimiter) SetPolicy(action string, p Policy) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.policies[action] = p
}

// Allow consumes a token when one is available. Otherwise it reports how long
// until the next one.
func (rl *RateLimiter) Allow(userID, action string) (bool, time.Duration) {
	now := rl.now()
	key := userID + ":" + action

	rl.mu.Lock()
	b, ok := rl.buckets[key]
	if !ok {
		p, ok := rl.policies[action]
		if !ok {
			p = fallbackPolicy
		}
		b = &bucket{limiter: rate.NewLimiter(rate.Every(p.Every), p.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return false, 0
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Cleanup drops buckets idle for longer than idle.
func (rl *RateLimiter) Cleanup(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(rl.buckets, key)
		}
	}
}

// Run cleans up idle buckets every interval until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(time.Hour)
		case <-ctx.Done():
			return nil
		}
	}
}
