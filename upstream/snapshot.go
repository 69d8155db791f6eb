package upstream

// UpstreamSnapshot is a point-in-time, lock-free copy of one upstream's
// observable state, for diagnostics (the CLI, the Prometheus collector)
// that would otherwise need to hold the list lock across a print or a
// scrape.
type UpstreamSnapshot struct {
	Name        string
	UID         string
	Weight      int
	Errors      int
	Checked     int
	DNSRequests int
	Alive       bool
	Addrs       []string
}

// Snapshot is a copy of a List's state at a single instant.
type Snapshot struct {
	Alive     int
	Total     int
	Policy    Policy
	Upstreams []UpstreamSnapshot
}

// Snapshot copies out l's current state without holding the lock for
// longer than the copy itself.
func (l *List) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := Snapshot{
		Alive:     len(l.alive),
		Total:     len(l.ups),
		Policy:    l.rotAlg,
		Upstreams: make([]UpstreamSnapshot, 0, len(l.ups)),
	}

	for _, u := range l.ups {
		addrs := make([]string, len(u.addrs))
		for i, a := range u.addrs {
			addrs[i] = a.String()
		}
		snap.Upstreams = append(snap.Upstreams, UpstreamSnapshot{
			Name:        u.name,
			UID:         u.uid,
			Weight:      u.weight,
			Errors:      u.errors,
			Checked:     u.checked,
			DNSRequests: u.dnsRequests,
			Alive:       u.activeIdx >= 0,
			Addrs:       addrs,
		})
	}

	return snap
}
