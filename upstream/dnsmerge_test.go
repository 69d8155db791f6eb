package upstream

import (
	"net"
	"testing"
	"time"
)

func newDNSTestUpstream(t *testing.T, resolver *fakeResolver, rng RandSource) (*List, *Upstream) {
	t.Helper()
	ctx := NewContext()
	sched := &fakeScheduler{}
	ctx.Bind(BindConfig{
		MaxErrors: 4, ErrorTime: 10 * time.Second, ReviveTime: 60 * time.Second, ReviveJitter: 0.4,
		DNSTimeout: time.Second, DNSRetransmits: 2, LazyResolveTime: 3600 * time.Second,
	}, sched, resolver)
	ctx.SetRand(rng)

	list := NewList(ctx)
	u := newUpstream("cache.example.com", 1)
	u.addrs = []Addr{{IP: net.ParseIP("10.0.0.1"), Port: 80, Family: FamilyIPv4, Errors: 3}}
	list.mu.Lock()
	list.addUpstreamLocked(u)
	list.mu.Unlock()
	return list, u
}

// Port carryover and error carryover: a re-resolve that returns the same
// IP keeps the upstream's configured port and the address's prior error
// count, unless the amnesty roll fires.
func TestMergeCarriesOverPortAndErrors(t *testing.T) {
	resolver := &fakeResolver{a: []net.IP{net.ParseIP("10.0.0.1")}}
	list, u := newDNSTestUpstream(t, resolver, fixedRand{f: 0.99}) // no amnesty

	list.launchResolve(u)

	list.mu.Lock()
	defer list.mu.Unlock()
	if len(u.addrs) != 1 {
		t.Fatalf("addrs = %v, want exactly one merged address", u.addrs)
	}
	if u.addrs[0].Port != 80 {
		t.Fatalf("Port = %d, want 80 (carried over)", u.addrs[0].Port)
	}
	if u.addrs[0].Errors != 3 {
		t.Fatalf("Errors = %d, want 3 (carried over from prior address)", u.addrs[0].Errors)
	}
}

// The 10% amnesty roll resets error counts even for addresses that
// otherwise match a prior entry.
func TestMergeAmnestyResetsErrors(t *testing.T) {
	resolver := &fakeResolver{a: []net.IP{net.ParseIP("10.0.0.1")}}
	list, u := newDNSTestUpstream(t, resolver, fixedRand{f: 0.01}) // amnesty fires

	list.launchResolve(u)

	list.mu.Lock()
	defer list.mu.Unlock()
	if u.addrs[0].Errors != 0 {
		t.Fatalf("Errors = %d, want 0 after amnesty", u.addrs[0].Errors)
	}
}

// A DNS failure on both queries must not clear out a previously resolved,
// still-usable address set: stale beats empty.
func TestMergeKeepsStaleAddrsOnResolveFailure(t *testing.T) {
	resolver := &fakeResolver{err: errResolveFailed}
	list, u := newDNSTestUpstream(t, resolver, fixedRand{f: 0.5})

	list.launchResolve(u)

	list.mu.Lock()
	defer list.mu.Unlock()
	if len(u.addrs) != 1 || !u.addrs[0].IP.Equal(net.ParseIP("10.0.0.1")) {
		t.Fatalf("addrs = %v, want the stale address preserved", u.addrs)
	}
}

// A successful re-resolve to a brand new address drops the stale one
// entirely (no matching host to carry errors from).
func TestMergeReplacesWithNewAddress(t *testing.T) {
	resolver := &fakeResolver{a: []net.IP{net.ParseIP("10.0.0.2")}}
	list, u := newDNSTestUpstream(t, resolver, fixedRand{f: 0.99})

	list.launchResolve(u)

	list.mu.Lock()
	defer list.mu.Unlock()
	if len(u.addrs) != 1 || !u.addrs[0].IP.Equal(net.ParseIP("10.0.0.2")) {
		t.Fatalf("addrs = %v, want only the new address", u.addrs)
	}
	if u.addrs[0].Errors != 0 {
		t.Fatalf("Errors = %d, want 0 for a never-seen address", u.addrs[0].Errors)
	}
}

var errResolveFailed = &dnsLookupError{"simulated resolver failure"}

type dnsLookupError struct{ msg string }

func (e *dnsLookupError) Error() string { return e.msg }
