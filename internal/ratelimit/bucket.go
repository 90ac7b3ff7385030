// Package ratelimit throttles MCP tool calls with one token bucket per tool.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned by Limits.Check when a tool has no tokens left.
var ErrLimited = errors.New("rate limit exceeded")

// Bucket is a token bucket refilled continuously at rate tokens per second
// up to burst. It starts full and is safe for concurrent use.
type Bucket struct {
	mu     sync.Mutex
	rate   float64
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewBucket returns a full bucket.
func NewBucket(rate float64, burst int) *Bucket {
	return newBucket(rate, burst, time.Now)
}

func newBucket(rate float64, burst int, now func() time.Time) *Bucket {
	return &Bucket{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   now(),
		now:    now,
	}
}

// Allow takes one token if available.
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if dt := now.Sub(b.last).Seconds(); dt > 0 {
		b.tokens = min(b.burst, b.tokens+b.rate*dt)
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Limits maps tool names to their buckets. Tools without a bucket are not
// limited.
type Limits map[string]*Bucket

// DefaultLimits returns the limits of the ringsim MCP tools. Building a
// topology is the expensive call.
func DefaultLimits() Limits {
	return Limits{
		"ringsim_topology": NewBucket(30.0/60.0, 5), // 30/minute
		"ringsim_status":   NewBucket(1.0, 10),      // 60/minute
		"ringsim_runs":     NewBucket(1.0, 10),      // 60/minute
	}
}

// Check takes a token for tool.
func (l Limits) Check(tool string) error {
	b, ok := l[tool]
	if !ok || b.Allow() {
		return nil
	}
	return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, tool)
}
