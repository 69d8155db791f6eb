package upstream

import (
	"math/rand"
	"sync"
	"time"
)

// RandSource is the subset of math/rand's API this package needs. Tests
// (and callers who want reproducible behavior) substitute a deterministic
// implementation via Context.SetRand to pin the amnesty coin-flip and
// jitter computations called out in the design notes.
type RandSource interface {
	Float64() float64
	Intn(n int) int
}

// randSource is kept as an internal alias so the rest of the package's
// unexported signatures don't need to change if this is ever narrowed.
type randSource = RandSource

// lockedRand wraps a *rand.Rand with a mutex so it can be shared across
// goroutines driven by timers and DNS callbacks.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func newLockedRand() *lockedRand {
	return &lockedRand{r: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}

// jitter implements base * (1 + U(-frac, +frac)).
func jitter(rs randSource, base time.Duration, frac float64) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := (rs.Float64()*2 - 1) * frac
	return time.Duration(float64(base) * (1 + delta))
}
