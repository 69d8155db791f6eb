package upstream

import (
	"net"
	"testing"
	"time"
)

func newBoundTestList(t *testing.T, weights []int, lim Limits) (*List, *fakeScheduler, *Context) {
	t.Helper()
	ctx := NewContext()
	sched := &fakeScheduler{}
	ctx.Bind(BindConfig{
		MaxErrors:       lim.MaxErrors,
		ErrorTime:       lim.ErrorTime,
		ReviveTime:      lim.ReviveTime,
		ReviveJitter:    lim.ReviveJitter,
		DNSTimeout:      lim.DNSTimeout,
		DNSRetransmits:  lim.DNSRetransmits,
		LazyResolveTime: lim.LazyResolveTime,
	}, sched, &fakeResolver{})
	ctx.SetRand(fixedRand{f: 0.5})

	list := NewList(ctx)
	for i, w := range weights {
		u := newUpstream(string(rune('a'+i)), w)
		u.addrs = []Addr{ipAddr(net.ParseIP("10.0.0.1"), 80)}
		list.mu.Lock()
		list.addUpstreamLocked(u)
		list.mu.Unlock()
	}
	return list, sched, ctx
}

// S2: one member of a two-member pool accumulates 5 fails within 1
// virtual second at max_errors=4/error_time=10s, goes offline, and comes
// back online after the revive timer fires.
func TestCircuitBreakerRevive(t *testing.T) {
	lim := Limits{MaxErrors: 4, ErrorTime: 10 * time.Second, ReviveTime: 60 * time.Second, ReviveJitter: 0.4}
	list, sched, ctx := newBoundTestList(t, []int{1, 1}, lim)

	var target *Upstream
	list.ForEach(func(u *Upstream) bool {
		target = u
		return false
	})

	var events []Event
	list.Watch(EventAll, func(ev Event, u *Upstream, count int) {
		if u == target {
			events = append(events, ev)
		}
	}, nil)

	base := time.Now()
	cur := base
	ctx.SetNow(func() time.Time { return cur })

	for i := 0; i < 5; i++ {
		cur = base.Add(time.Duration(i) * 200 * time.Millisecond)
		target.Fail(false)
	}

	if target.activeIdx >= 0 {
		t.Fatalf("expected target offline after bursty failures, activeIdx=%d", target.activeIdx)
	}
	if list.AliveCount() != 1 {
		t.Fatalf("AliveCount = %d, want 1", list.AliveCount())
	}

	sched.fireAll() // fires the armed revive timer

	if target.activeIdx < 0 {
		t.Fatal("expected target alive again after revive timer fired")
	}

	sawOffline := false
	for _, ev := range events {
		if ev == EventOffline {
			sawOffline = true
			break
		}
	}
	if !sawOffline {
		t.Fatalf("watcher log = %v, want an OFFLINE event", events)
	}
	if events[len(events)-1] != EventOnline {
		t.Fatalf("watcher log = %v, want to end with ONLINE", events)
	}
}

// Testable property 4: a single-member list never drains, regardless of
// how many failures are reported.
func TestSingleMemberNeverDrains(t *testing.T) {
	lim := Limits{MaxErrors: 4, ErrorTime: 10 * time.Second, ReviveTime: 60 * time.Second, ReviveJitter: 0.4}
	list, _, ctx := newBoundTestList(t, []int{1}, lim)

	var target *Upstream
	list.ForEach(func(u *Upstream) bool {
		target = u
		return false
	})

	base := time.Now()
	cur := base
	ctx.SetNow(func() time.Time { return cur })

	for i := 0; i < 1000; i++ {
		cur = base.Add(time.Duration(i) * 10 * time.Millisecond)
		target.Fail(false)
		if target.activeIdx < 0 {
			t.Fatalf("single-member list drained after %d fails", i+1)
		}
	}
}

func TestOkResetsErrorsAndEmitsSuccess(t *testing.T) {
	lim := DefaultLimits()
	list, _, ctx := newBoundTestList(t, []int{1, 1}, lim)

	var target *Upstream
	list.ForEach(func(u *Upstream) bool {
		target = u
		return false
	})

	var sawSuccess bool
	list.Watch(EventSuccess, func(ev Event, u *Upstream, count int) {
		sawSuccess = true
	}, nil)

	base := time.Now()
	ctx.SetNow(func() time.Time { return base })
	target.Fail(false)
	if target.errors == 0 {
		t.Fatal("expected errors > 0 after Fail")
	}

	target.Ok()
	if target.errors != 0 {
		t.Fatalf("errors = %d after Ok, want 0", target.errors)
	}
	if !sawSuccess {
		t.Fatal("expected a Success event from Ok")
	}
}

func TestFailEmitsFailureEventEveryTime(t *testing.T) {
	lim := DefaultLimits()
	list, _, ctx := newBoundTestList(t, []int{1, 1}, lim)

	var target *Upstream
	list.ForEach(func(u *Upstream) bool {
		target = u
		return false
	})

	count := 0
	list.Watch(EventFailure, func(ev Event, u *Upstream, c int) {
		count++
	}, nil)

	base := time.Now()
	cur := base
	ctx.SetNow(func() time.Time { return cur })

	for i := 0; i < 3; i++ {
		cur = base.Add(time.Duration(i) * time.Millisecond)
		target.Fail(false)
	}

	if count != 3 {
		t.Fatalf("Failure event count = %d, want 3", count)
	}
}
