// Package schedule provides the wall-clock machinery behind the periodic
// sweeps: boundary-aligned deadline computation and a ticker-driven sweep
// loop. It holds no business logic; deadline checks live with the state
// they guard.
package schedule

import "time"

// NextBoundary returns the next instant strictly after now that is a whole
// multiple of period on the wall clock. A 30-minute period therefore always
// lands on :00 or :30 regardless of when the process started, which keeps
// deadlines identical across every connection.
func NextBoundary(now time.Time, period time.Duration) time.Time {
	boundary := now.Truncate(period)
	if !boundary.After(now) {
		boundary = boundary.Add(period)
	}
	return boundary
}

// SweepFunc is invoked once per tick with the current time. Deadlines are
// soft to within one tick interval: a sweep observes that a stored deadline
// has passed, it does not fire at the deadline instant.
type SweepFunc func(now time.Time)

// Sweeper drives a SweepFunc at a fixed interval until Stop is called.
type Sweeper struct {
	interval time.Duration
	fn       SweepFunc
	done     chan struct{}
}

// NewSweeper creates a Sweeper that calls fn every interval once started.
func NewSweeper(interval time.Duration, fn SweepFunc) *Sweeper {
	return &Sweeper{
		interval: interval,
		fn:       fn,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine. It returns
// immediately; the goroutine exits when Stop is called.
func (s *Sweeper) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case now := <-ticker.C:
				s.fn(now)
			}
		}
	}()
}

// Stop terminates the sweep loop. It is safe to call at most once.
func (s *Sweeper) Stop() {
	close(s.done)
}
