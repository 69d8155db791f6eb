package upstream

import (
	"errors"
	"math"
)

// Policy identifies a selection strategy a List can use to pick among its
// alive members.
type Policy int

const (
	// PolicyUndef means "no explicit policy" — Get falls back to the
	// list's configured default; GetForced never sees this value used
	// meaningfully since it always honors the policy passed to it.
	PolicyUndef Policy = iota
	PolicyRandom
	PolicyRoundRobin
	PolicyMasterSlave
	PolicyHash
	PolicySequential
)

// ErrEmptyList is returned by Get/GetForced when the list has no members
// at all (as opposed to none currently alive, which is handled by
// reactivation).
var ErrEmptyList = errors.New("upstream: list has no members")

// Get selects an upstream using the list's configured rotation policy,
// falling back to defaultPolicy only if the list's policy is PolicyUndef.
// If the alive set is empty, every member is first reactivated so that a
// non-sequential policy is guaranteed to return a result on a non-empty
// list. PolicySequential is the one policy explicitly allowed to return
// (nil, nil) to signal end-of-iteration.
func (l *List) Get(defaultPolicy Policy, key []byte) (*Upstream, error) {
	return l.get(defaultPolicy, key, false)
}

// GetForced selects an upstream using forcedPolicy regardless of the
// list's configured default.
func (l *List) GetForced(forcedPolicy Policy, key []byte) (*Upstream, error) {
	return l.get(forcedPolicy, key, true)
}

func (l *List) get(policy Policy, key []byte, forced bool) (*Upstream, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.ups) == 0 {
		return nil, ErrEmptyList
	}

	effective := l.rotAlg
	if forced || effective == PolicyUndef {
		effective = policy
	}

	if len(l.alive) == 0 && effective != PolicySequential {
		l.reactivateAll()
	}

	u := l.selectLocked(effective, key)
	if u != nil {
		u.checked++
	}
	return u, nil
}

func (l *List) selectLocked(policy Policy, key []byte) *Upstream {
	switch policy {
	case PolicyRandom:
		return l.selectRandom()
	case PolicyRoundRobin:
		return l.selectRoundRobin()
	case PolicyMasterSlave:
		return l.selectMasterSlave()
	case PolicyHash:
		return l.selectHash(key)
	case PolicySequential:
		return l.selectSequential()
	default:
		return l.selectRandom()
	}
}

func (l *List) selectRandom() *Upstream {
	if len(l.alive) == 0 {
		return nil
	}
	return l.alive[l.rng.Intn(len(l.alive))]
}

// selectRoundRobin implements smooth weighted round-robin: every alive
// member's running counter is credited by its own weight, the member with
// the largest counter is chosen, and the total weight is debited from the
// winner. Over any window of sum(weights) selections this assigns each
// upstream exactly its configured weight's share of picks, without the
// "all of A's picks then all of B's" burstiness a naive
// decrement-then-reset counter would produce.
func (l *List) selectRoundRobin() *Upstream {
	if len(l.alive) == 0 {
		return nil
	}

	total := 0
	allZero := true
	for _, u := range l.alive {
		if u.weight != 0 {
			allZero = false
		}
		total += u.weight
	}
	if allZero {
		return l.selectChecked()
	}

	var best *Upstream
	for _, u := range l.alive {
		u.curWeight += u.weight
		if best == nil || u.curWeight > best.curWeight {
			best = u
		}
	}
	best.curWeight -= total
	return best
}

const checkedSentinelMax = math.MaxInt32

// selectChecked is the fallback balancer used by round-robin when every
// alive member has weight 0: pick the member minimizing
// checked*(errors+1), i.e. prefer whichever has been used least relative
// to its error history. Counters are reset across the board once any of
// them crosses half the sentinel maximum, to prevent overflow.
func (l *List) selectChecked() *Upstream {
	for _, u := range l.alive {
		if u.checked > checkedSentinelMax/2 {
			for _, v := range l.alive {
				v.checked = 0
			}
			break
		}
	}

	var best *Upstream
	bestScore := math.MaxInt64
	for _, u := range l.alive {
		score := (u.checked) * (u.errors + 1)
		if best == nil || score < bestScore {
			best = u
			bestScore = score
		}
	}
	return best
}

// selectMasterSlave picks the alive member with the greatest weight,
// without decrementing anything; ties resolve to whichever was scanned
// first.
func (l *List) selectMasterSlave() *Upstream {
	if len(l.alive) == 0 {
		return nil
	}
	best := l.alive[0]
	for _, u := range l.alive[1:] {
		if u.weight > best.weight {
			best = u
		}
	}
	return best
}

// selectHash maps key to a member via the Lamping-Veach jump consistent
// hash, so that changing the size of the alive set by one member migrates
// only about a 1/N share of keys.
func (l *List) selectHash(key []byte) *Upstream {
	if len(l.alive) == 0 {
		return nil
	}
	h := hashKey(string(key), l.hashSeed)
	idx := jumpHash(h, int32(len(l.alive)))
	return l.alive[idx]
}

// selectSequential advances the list's own cursor through alive, wrapping
// to 0 and returning nil once it has walked off the end — the one policy
// explicitly allowed to be exhausted.
func (l *List) selectSequential() *Upstream {
	if len(l.alive) == 0 {
		l.seqCursor = 0
		return nil
	}
	if l.seqCursor >= len(l.alive) {
		l.seqCursor = 0
		return nil
	}
	u := l.alive[l.seqCursor]
	l.seqCursor++
	return u
}
