package upstream

import "time"

// Limits holds the tuning knobs that govern an upstream's circuit breaker
// and DNS refresh behavior. A List falls back to the Context's default
// Limits unless SetLimits has been called on it directly.
type Limits struct {
	// MaxErrors is the error count used in the failure-rate computation:
	// an upstream is knocked offline once its streak's failures per second
	// since the first failure exceed MaxErrors/ErrorTime.
	MaxErrors int

	// ErrorTime is the window over which MaxErrors is measured.
	ErrorTime time.Duration

	// ReviveTime is the base delay before an offline upstream is retried.
	ReviveTime time.Duration

	// ReviveJitter is the fractional jitter (0..1) applied to ReviveTime.
	ReviveJitter float64

	// DNSTimeout bounds a single A/AAAA lookup attempt.
	DNSTimeout time.Duration

	// DNSRetransmits is the number of retries for a timed-out lookup.
	DNSRetransmits int

	// LazyResolveTime is the base interval between background refreshes
	// of an alive upstream's address set.
	LazyResolveTime time.Duration
}

// defaultHashSeed is the fixed 64-bit constant used to key the consistent-hash
// selection policy. It is not part of Limits because it is a property of
// the List's hash space, not a liveness/DNS tuning knob, but it shares the
// same "compile-time default, overridable per list" treatment.
const defaultHashSeed uint64 = 0xa574de7df64e9b9d

// DefaultLimits returns the module's built-in tuning defaults. These match
// the historical defaults of the system this design is modeled on:
// max_errors=4, error_time=10s, revive_time=60s, revive_jitter=0.4,
// dns_timeout=1s, dns_retransmits=2, lazy_resolve_time=3600s.
func DefaultLimits() Limits {
	return Limits{
		MaxErrors:       4,
		ErrorTime:       10 * time.Second,
		ReviveTime:      60 * time.Second,
		ReviveJitter:    0.4,
		DNSTimeout:      1 * time.Second,
		DNSRetransmits:  2,
		LazyResolveTime: 3600 * time.Second,
	}
}

// maxRate returns the failure rate threshold (errors per second) above
// which an upstream is considered to be failing too fast to stay alive.
func (l Limits) maxRate() float64 {
	if l.ErrorTime <= 0 {
		return 0
	}
	return float64(l.MaxErrors) / l.ErrorTime.Seconds()
}
