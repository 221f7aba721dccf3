package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestMemoryLimiter_BudgetPerKey(t *testing.T) {
	l := NewMemoryLimiter(1, 16, time.Minute)

	if !l.Allow("policy:*") {
		t.Fatal("Expected first call to pass")
	}
	if l.Allow("policy:*") {
		t.Error("Expected second call within the window to be denied")
	}
	// Other keys carry their own bucket.
	if !l.Allow("vote:*") {
		t.Error("Expected a different key to pass")
	}
}

func TestMemoryLimiter_ConcurrentSameKey(t *testing.T) {
	l := NewMemoryLimiter(1, 16, time.Minute)

	const callers = 8
	allowed := make(chan bool, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			allowed <- l.Allow("contested")
		}()
	}
	wg.Wait()
	close(allowed)

	count := 0
	for ok := range allowed {
		if ok {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly 1 allowed call, got %d", count)
	}
}
