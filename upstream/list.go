package upstream

import (
	"sync"
	"time"
)

// List is a selection pool: a group of Upstreams sharing a rotation
// policy and limit overrides. A List strongly owns every Upstream in ups;
// alive is the subset currently selectable.
type List struct {
	mu sync.Mutex

	ctx *Context

	ups      []*Upstream
	alive    []*Upstream
	watchers []*watcher

	rotAlg   Policy
	limits   *Limits // nil => inherit ctx.limits
	hashSeed uint64
	rng      randSource

	seqCursor int
	closed    bool
}

// NewList creates an empty List against ctx, using the random policy and
// the default hash seed until overridden.
func NewList(ctx *Context) *List {
	l := &List{
		ctx:      ctx,
		rotAlg:   PolicyRandom,
		hashSeed: defaultHashSeed,
		rng:      ctx.rng,
	}
	ctx.registerList(l)
	return l
}

// SetRotation sets the list's default rotation policy.
func (l *List) SetRotation(p Policy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rotAlg = p
}

// SetLimits overrides this list's Limits, independent of its context's
// defaults.
func (l *List) SetLimits(lim Limits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits = &lim
}

// SetHashSeed overrides the 64-bit seed used by the consistent-hash
// policy.
func (l *List) SetHashSeed(seed uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashSeed = seed
}

// Count returns the total number of upstreams in the list, alive or not.
func (l *List) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ups)
}

// AliveCount returns the number of currently selectable upstreams.
func (l *List) AliveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.alive)
}

// ForEach calls fn for every upstream in the list, in insertion order,
// stopping early if fn returns false.
func (l *List) ForEach(fn func(*Upstream) bool) {
	l.mu.Lock()
	ups := make([]*Upstream, len(l.ups))
	copy(ups, l.ups)
	l.mu.Unlock()

	for _, u := range ups {
		if !fn(u) {
			return
		}
	}
}

// Close cancels every member's armed timer, detaches each upstream's weak
// back-reference to this list (so any in-flight DNS callback can detect
// its upstream has been orphaned and suppress its merge), and runs every
// watcher's destructor.
func (l *List) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true

	for _, u := range l.ups {
		if u.timer != nil {
			u.timer.Stop()
			u.timer = nil
		}
		u.list = nil
	}
	l.closeWatchers()
}

func (l *List) now() time.Time {
	if l.ctx != nil && l.ctx.nowFunc != nil {
		return l.ctx.nowFunc()
	}
	return time.Now()
}

func (l *List) effectiveLimits() Limits {
	if l.limits != nil {
		return *l.limits
	}
	if l.ctx != nil {
		l.ctx.mu.Lock()
		defer l.ctx.mu.Unlock()
		return l.ctx.limits
	}
	return DefaultLimits()
}

// addUpstreamLocked appends u to the list, marks it active, and forces
// weight 1 if this is the first member of a master-slave list configured
// with weight 0 (a list of priority-only upstreams must still have
// something to compare).
func (l *List) addUpstreamLocked(u *Upstream) {
	u.list = l
	l.ups = append(l.ups, u)

	if l.rotAlg == PolicyMasterSlave && u.weight == 0 && len(l.ups) == 1 {
		u.weight = 1
		u.curWeight = 1
	}

	l.setActive(u)

	if l.ctx != nil {
		l.ctx.registerUpstream(u)
	}
}

// setActive appends u to alive, assigns its active index, arms a
// lazy-resolve timer (if the context is configured and u allows DNS), and
// emits Online.
func (l *List) setActive(u *Upstream) {
	u.activeIdx = len(l.alive)
	l.alive = append(l.alive, u)

	if l.ctx != nil && l.ctx.Configured() && !u.noResolve() {
		if u.timer != nil {
			u.timer.Stop()
		}
		l.armLazyResolve(u)
	}

	l.emit(EventOnline, u, u.errors)
}

// setInactive removes u from alive, re-indexes the remaining members, and
// arms a jittered revive timer. It must be called with l.mu held; the
// caller is responsible for triggering a pre-warming DNS re-resolution
// afterward, outside the lock (see Fail), since launchResolve manages its
// own locking and its resolver callback may fire synchronously.
func (l *List) setInactive(u *Upstream) {
	idx := u.activeIdx
	if idx < 0 {
		return
	}

	last := len(l.alive) - 1
	l.alive[idx] = l.alive[last]
	l.alive[idx].activeIdx = idx
	l.alive = l.alive[:last]
	u.activeIdx = -1

	if l.ctx != nil {
		if u.timer != nil {
			u.timer.Stop()
		}
		u.timer = l.armRevive(u)
	}

	l.emit(EventOffline, u, u.errors)
}

// armRevive schedules u's transition back to alive after a jittered
// ReviveTime.
func (l *List) armRevive(u *Upstream) Timer {
	if l.ctx == nil || l.ctx.scheduler == nil {
		return nil
	}
	lim := l.effectiveLimits()
	d := jitter(l.rng, lim.ReviveTime, lim.ReviveJitter)
	return l.ctx.scheduler.AfterFunc(d, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if u.list != l || u.activeIdx >= 0 {
			return
		}
		u.timer = nil
		l.setActive(u)
	})
}

// armLazyResolve schedules u's next periodic background DNS refresh.
func (l *List) armLazyResolve(u *Upstream) {
	if l.ctx == nil || l.ctx.scheduler == nil {
		return
	}
	lim := l.effectiveLimits()
	d := jitter(l.rng, lim.LazyResolveTime, 0.10)
	u.timer = l.ctx.scheduler.AfterFunc(d, func() {
		l.mu.Lock()
		if u.list != l {
			l.mu.Unlock()
			return
		}
		l.mu.Unlock()

		l.launchResolve(u)

		l.mu.Lock()
		if u.list == l {
			l.armLazyResolve(u)
		}
		l.mu.Unlock()
	})
}

// reactivateAll is invoked by Get when the alive set is empty: it puts
// every member back online so the pool never returns nothing for a
// non-sequential policy, per the empty-alive reactivation guarantee.
func (l *List) reactivateAll() {
	for _, u := range l.ups {
		if u.activeIdx >= 0 {
			continue
		}
		if u.timer != nil {
			u.timer.Stop()
			u.timer = nil
		}
		l.setActive(u)
	}
}
