package gateway

import (
	"sync"
	"time"
)

// tokenBucket limits one kind of frame per connection. It starts full and refills
// continuously at refillRate tokens per second up to maxTokens.
type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64
	lastRefill time.Time
	now        func() time.Time
}

func newTokenBucket(maxTokens, refillRate int) *tokenBucket {
	return newTokenBucketWithClock(maxTokens, refillRate, time.Now)
}

func newTokenBucketWithClock(maxTokens, refillRate int, now func() time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(maxTokens),
		maxTokens:  float64(maxTokens),
		refillRate: float64(refillRate),
		lastRefill: now(),
		now:        now,
	}
}

func (b *tokenBucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens = min(b.maxTokens, b.tokens+elapsed.Seconds()*b.refillRate)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}
