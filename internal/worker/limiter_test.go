package worker

import (
	"context"
	"testing"
	"time"
)

// blocked reports whether key has no token available within a short wait
func blocked(l *Limiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, key) != nil
}

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_UnlimitedDefault(t *testing.T) {
	limiter := NewLimiter(0, 1)

	for i := 0; i < 50; i++ {
		if blocked(limiter, "tjsp") {
			t.Fatalf("request %d should pass with an unlimited default", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "tjsp"); err != nil {
		t.Errorf("wait failed: %v", err)
	}

	if err := limiter.Wait(ctx, "tjrj"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_RateLimit(t *testing.T) {
	limiter := NewLimiter(1, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "tjsp"); err != nil {
		t.Errorf("first wait failed: %v", err)
	}

	// burst of 1 is spent
	if !blocked(limiter, "tjsp") {
		t.Errorf("expected the exhausted source to wait")
	}

	if blocked(limiter, "tjmg") {
		t.Errorf("expected another source to pass")
	}
}

func TestLimiter_SetInterval(t *testing.T) {
	limiter := NewLimiter(0, 1)
	limiter.SetInterval("datajud", 80*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := limiter.Wait(ctx, "datajud"); err != nil {
			t.Fatalf("wait failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("expected calls to be spaced, took %v", elapsed)
	}

	// non-positive interval leaves the source unpaced
	limiter.SetInterval("tjsp", 0)
	if blocked(limiter, "tjsp") || blocked(limiter, "tjsp") {
		t.Error("expected unpaced source to pass")
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLimiter(0, 1)
	limiter.SetInterval("datajud", time.Hour)
	_ = limiter.Wait(context.Background(), "datajud")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "datajud"); err == nil {
		t.Error("expected wait to fail once the context is done")
	}
}
