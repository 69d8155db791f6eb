package upstream

import (
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// fakeTimer/fakeScheduler let tests observe and manually fire the timers
// List arms, instead of waiting on real wall-clock time.
type fakeTimer struct {
	stopped bool
}

func (t *fakeTimer) Stop() { t.stopped = true }

type scheduledCall struct {
	d     time.Duration
	fn    func()
	timer *fakeTimer
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []*scheduledCall
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{}
	s.mu.Lock()
	s.scheduled = append(s.scheduled, &scheduledCall{d: d, fn: fn, timer: t})
	s.mu.Unlock()
	return t
}

// fireAll runs every not-yet-stopped scheduled call, draining the queue.
// Calls scheduled by a running callback (e.g. lazy-resolve re-arming
// itself) are left for a subsequent fireAll.
func (s *fakeScheduler) fireAll() {
	s.mu.Lock()
	calls := s.scheduled
	s.scheduled = nil
	s.mu.Unlock()

	for _, c := range calls {
		if !c.timer.stopped {
			c.fn()
		}
	}
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.scheduled {
		if !c.timer.stopped {
			n++
		}
	}
	return n
}

// fakeResolver replies synchronously and deterministically, so DNS-merge
// tests don't need to coordinate goroutines.
type fakeResolver struct {
	mu   sync.Mutex
	a    []net.IP
	aaaa []net.IP
	err  error
}

func (r *fakeResolver) LookupAsync(name string, qtype uint16, timeout time.Duration, retransmits int, cb func([]net.IP, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		cb(nil, r.err)
		return
	}
	if qtype == dns.TypeA {
		cb(r.a, nil)
	} else {
		cb(r.aaaa, nil)
	}
}

// fixedRand is a deterministic RandSource: Float64 always returns f
// (pinning the amnesty coin flip and jitter), Intn always returns i mod n.
type fixedRand struct {
	f float64
	i int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return r.i % n
}

// sequenceRand cycles through a fixed list of Intn results, for tests
// that need several successive random picks to be distinguishable.
type sequenceRand struct {
	mu  sync.Mutex
	f   float64
	seq []int
	pos int
}

func (r *sequenceRand) Float64() float64 { return r.f }
func (r *sequenceRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seq) == 0 || n <= 0 {
		return 0
	}
	v := r.seq[r.pos%len(r.seq)] % n
	r.pos++
	return v
}

func mustAddUpstream(t testingT, list *List, spec string, port uint16, mode ParseMode) *Upstream {
	t.Helper()
	ok, err := AddUpstream(list, spec, port, mode, nil)
	if err != nil {
		t.Fatalf("AddUpstream(%q): %v", spec, err)
	}
	if !ok {
		t.Fatalf("AddUpstream(%q): not accepted", spec)
	}
	var found *Upstream
	list.ForEach(func(u *Upstream) bool {
		if u.Name() == spec {
			found = u
			return false
		}
		return true
	})
	return found
}

// testingT is the subset of *testing.T this file's helpers need, so they
// can be shared between _test.go files without importing "testing" here
// (avoiding an import cycle concern is unnecessary, but keeps this file
// agnostic of subtests vs top-level tests).
type testingT interface {
	Helper()
	Fatalf(format string, args ...any)
}
