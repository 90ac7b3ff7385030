package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestBucket_Burst(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBucket(1, 3, clock.now)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("Allow() #%d = false, want true within burst", i+1)
		}
	}
	if b.Allow() {
		t.Error("Allow() after burst = true, want false")
	}
}

func TestBucket_Refill(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBucket(10, 2, clock.now)
	b.Allow()
	b.Allow()

	clock.advance(50 * time.Millisecond)
	if b.Allow() {
		t.Error("Allow() after half a token = true, want false")
	}
	clock.advance(50 * time.Millisecond)
	if !b.Allow() {
		t.Error("Allow() after a full token = false, want true")
	}
}

func TestBucket_RefillCapsAtBurst(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	b := newBucket(100, 2, clock.now)
	clock.advance(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		if b.Allow() {
			allowed++
		}
	}
	if allowed != 2 {
		t.Errorf("allowed = %d, want 2", allowed)
	}
}

func TestBucket_Concurrent(t *testing.T) {
	b := NewBucket(0, 50)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestLimits_Check(t *testing.T) {
	limits := Limits{"ringsim_topology": NewBucket(0, 1)}

	if err := limits.Check("ringsim_topology"); err != nil {
		t.Fatalf("first Check() = %v, want nil", err)
	}
	err := limits.Check("ringsim_topology")
	if !errors.Is(err, ErrLimited) {
		t.Errorf("second Check() = %v, want ErrLimited", err)
	}
	if err := limits.Check("unlimited_tool"); err != nil {
		t.Errorf("Check() of a tool without a bucket = %v, want nil", err)
	}
}

func TestDefaultLimits(t *testing.T) {
	limits := DefaultLimits()
	for _, tool := range []string{"ringsim_topology", "ringsim_status", "ringsim_runs"} {
		if _, ok := limits[tool]; !ok {
			t.Errorf("DefaultLimits() has no bucket for %s", tool)
		}
	}
}
