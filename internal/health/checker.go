// Package health probes the configured sources for reachability.
package health

import (
	"context"
	"errors"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/ppiankov/gazette/internal/model"
)

const (
	// MaxAttempts bounds the probes per source
	MaxAttempts    = 3
	defaultWorkers = 8
)

// Prober issues a HEAD request and returns the status code
type Prober interface {
	Head(ctx context.Context, rawURL string) (int, error)
}

// Status is the outcome of probing one source
type Status struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	StatusCode int           `json:"status_code,omitempty"`
	Reachable  bool          `json:"reachable"`
	Attempts   int           `json:"attempts"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// Checker probes sources concurrently with bounded retries
type Checker struct {
	prober  Prober
	workers int
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewChecker creates a checker running at most workers probes at once
func NewChecker(prober Prober, workers int) *Checker {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Checker{prober: prober, workers: workers, sleep: sleepCtx}
}

// Check probes every descriptor's base URL; results keep the input order
func (c *Checker) Check(ctx context.Context, descs []model.SourceDescriptor) []Status {
	results := make([]Status, len(descs))
	var wg sync.WaitGroup

	semaphore := make(chan struct{}, c.workers)

	for i, d := range descs {
		wg.Add(1)
		go func(idx int, d model.SourceDescriptor) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = Status{ID: d.ID, Name: d.Name, URL: d.BaseURL, Error: ctx.Err().Error()}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkWithRetry(ctx, d)
		}(i, d)
	}

	wg.Wait()
	return results
}

func (c *Checker) checkWithRetry(ctx context.Context, d model.SourceDescriptor) Status {
	st := Status{ID: d.ID, Name: d.Name, URL: d.BaseURL}

	for attempt := 0; attempt < MaxAttempts; attempt++ {
		st.Attempts = attempt + 1

		start := time.Now()
		code, err := c.prober.Head(ctx, d.BaseURL)
		st.Latency = time.Since(start)
		st.StatusCode = code
		st.Error = ""

		if err != nil {
			st.Error = err.Error()
		}
		// a 4xx on the bare host still proves the service answers
		st.Reachable = err == nil && code < 500

		if !retryable(code, err) || attempt == MaxAttempts-1 {
			break
		}
		if err := c.sleep(ctx, time.Duration(1<<uint(attempt))*time.Second); err != nil {
			st.Error = err.Error()
			break
		}
	}

	return st
}

// retryable reports transient failures: 5xx, 429, timeouts and refused or reset connections
func retryable(code int, err error) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
	}
	return code == 429 || (code >= 500 && code < 600)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
