package gateway

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_BurstThenRefill(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bucket := newTokenBucketWithClock(3, 2, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		assert.True(t, bucket.allow(), "burst token %d", i)
	}
	assert.False(t, bucket.allow())

	now = now.Add(250 * time.Millisecond)
	assert.False(t, bucket.allow(), "half a token is not enough")

	now = now.Add(250 * time.Millisecond)
	assert.True(t, bucket.allow())
	assert.False(t, bucket.allow())
}

func TestTokenBucket_RefillIsCapped(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	bucket := newTokenBucketWithClock(2, 10, func() time.Time { return now })

	now = now.Add(time.Hour)
	assert.True(t, bucket.allow())
	assert.True(t, bucket.allow())
	assert.False(t, bucket.allow())
}

func TestTokenBucket_Concurrent(t *testing.T) {
	bucket := newTokenBucket(100, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bucket.allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, allowed)
}
