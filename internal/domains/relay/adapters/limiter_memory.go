package adapters

import (
	"sync"
	"time"

	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/clock"
)

// MemoryLimiter is a fixed-window request counter keyed by caller identity.
//
// A caller's window opens with its first request and lasts Window; the caller may
// make Max requests inside it. The counter resets when the window ends. State is
// process-local and guarded by one mutex, so increment-and-check is atomic.
type MemoryLimiter struct {
	Clock  clock.Clock
	Max    int
	Window time.Duration

	mu      sync.Mutex
	windows map[string]limitWindow
	calls   int
}

type limitWindow struct {
	count   int
	resetAt time.Time
}

// sweepEvery bounds how often expired windows are purged.
const sweepEvery = 1024

func NewMemoryLimiter(clk clock.Clock, max int, window time.Duration) *MemoryLimiter {
	if clk == nil {
		clk = clock.SystemUTC{}
	}
	if max <= 0 {
		max = 100
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &MemoryLimiter{
		Clock:   clk,
		Max:     max,
		Window:  window,
		windows: map[string]limitWindow{},
	}
}

// Allow counts one request for key. A zero MemoryLimiter uses the system clock
// and the 100 per 15 minutes default.
func (l *MemoryLimiter) Allow(key string) ports.Decision {
	clk := l.Clock
	if clk == nil {
		clk = clock.SystemUTC{}
	}
	now := clk.NowUTC()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.windows == nil {
		l.windows = map[string]limitWindow{}
	}
	if l.Max <= 0 {
		l.Max = 100
	}
	if l.Window <= 0 {
		l.Window = 15 * time.Minute
	}

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = limitWindow{resetAt: now.Add(l.Window)}
	}
	w.count++
	l.windows[key] = w

	remaining := l.Max - w.count
	if remaining < 0 {
		remaining = 0
	}
	return ports.Decision{
		Allowed:   w.count <= l.Max,
		Limit:     l.Max,
		Remaining: remaining,
		ResetAt:   w.resetAt,
	}
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for k, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, k)
		}
	}
}
