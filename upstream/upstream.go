package upstream

import "time"

// flag bits tracked on an Upstream. NoResolve is the only flag the core
// inspects; it is set automatically when an upstream's name parsed as a
// literal address rather than a DNS name.
type flags uint8

const flagNoResolve flags = 1 << 0

// Upstream is a single named endpoint: its configured name/weight, its
// liveness counters, and its resolved address set.
type Upstream struct {
	list *List // weak back-reference; nil once detached from its list

	name   string
	weight int
	curWeight int

	errors      int
	checked     int
	dnsRequests int
	lastFail    time.Time

	activeIdx int // index into list.alive, or -1

	flags flags

	addrs      []Addr
	addrCursor int
	newAddrs   []Addr

	uid  string
	data any

	timer Timer // either the lazy-resolve timer or the revive timer
}

// The list field above is the weak, non-owning edge of the Upstream<->List
// cycle: a List strongly owns its Upstreams via l.ups, while an Upstream
// only points back at its List to reach its Context's scheduler/resolver
// and to re-index l.alive. Go's garbage collector doesn't need this
// distinction to reclaim the cycle, but it still matters operationally:
// List.Close nils this field on list destruction so in-flight DNS
// callbacks can detect their upstream has been orphaned and suppress the
// merge (see onDNSReply).
func newUpstream(name string, weight int) *Upstream {
	return &Upstream{
		name:      name,
		weight:    weight,
		curWeight: weight,
		activeIdx: -1,
		uid:       computeUID(name),
	}
}

// Name returns the upstream's configured name (DNS name or literal
// address), as given to AddUpstream.
func (u *Upstream) Name() string { return u.name }

// UID returns the upstream's short, stable log-correlation identifier.
func (u *Upstream) UID() string { return u.uid }

// SetWeight overrides the upstream's rotation weight.
func (u *Upstream) SetWeight(w int) {
	l := u.list
	if l != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	u.weight = w
	u.curWeight = w
}

// SetData attaches caller-defined user data to the upstream.
func (u *Upstream) SetData(data any) { u.data = data }

// Data returns the upstream's attached user data, if any.
func (u *Upstream) Data() any { return u.data }

// AddAddr appends a manually supplied address to the upstream, e.g. for
// upstreams constructed without going through DNS resolution.
func (u *Upstream) AddAddr(a Addr) {
	l := u.list
	if l != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
	}
	u.addrs = append(u.addrs, a)
	sortAddrs(u.addrs)
}

// noResolve reports whether this upstream should skip DNS lazy-resolve and
// DNS-based revive, because its name was a literal address.
func (u *Upstream) noResolve() bool { return u.flags&flagNoResolve != 0 }

// String renders a short diagnostic summary: the name followed by the uid
// in parentheses.
func (u *Upstream) String() string {
	return u.name + "(" + u.uid + ")"
}
