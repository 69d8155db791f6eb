package upstream

// Ok reports a successful use of up. If its error streak was non-zero and
// it is currently alive, the streak resets and a Success event fires.
func (u *Upstream) Ok() {
	l := u.list
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if u.errors == 0 || u.activeIdx < 0 {
		return
	}

	u.errors = 0
	if len(u.addrs) > 0 {
		u.addrs[u.addrCursor].Errors = 0
	}
	l.emit(EventSuccess, u, 0)
}

// Fail reports a failed use of up. addrFailure additionally blames the
// address currently pointed to by the address cursor. This implements the
// failure-rate circuit breaker described in the design: a streak begins on
// the first failure, and if the rate of failures within that streak
// exceeds limits.MaxErrors/limits.ErrorTime, the upstream is taken
// offline — unless it is the sole member of its list, in which case the
// pool must never drain and the upstream instead triggers a DNS
// re-resolution once the streak has run longer than ReviveTime.
func (u *Upstream) Fail(addrFailure bool) {
	l := u.list
	if l == nil {
		return
	}

	l.mu.Lock()

	t := l.now()
	limits := l.effectiveLimits()
	needResolve := false

	switch {
	case u.errors == 0:
		u.errors = 1
		u.lastFail = t
		l.emit(EventFailure, u, u.errors)

	case !t.Before(u.lastFail):
		u.errors++
		l.emit(EventFailure, u, u.errors)

		if t.After(u.lastFail) {
			elapsed := t.Sub(u.lastFail).Seconds()
			rate := float64(u.errors) / elapsed
			if rate > limits.maxRate() {
				if len(l.ups) > 1 {
					u.errors = 0
					l.setInactive(u)
					needResolve = true
				} else if elapsed > limits.ReviveTime.Seconds() {
					u.errors = 0
					needResolve = true
				}
			}
		}
	}

	if addrFailure && len(u.addrs) > 0 {
		u.addrs[u.addrCursor].Errors++
	}

	l.mu.Unlock()

	// launchResolve manages its own locking and may invoke its resolver
	// callback synchronously, so it must run outside l.mu.
	if needResolve {
		l.launchResolve(u)
	}
}
