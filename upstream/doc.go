// Package upstream implements a pool manager for named network endpoints.
//
// A Context owns one or more Lists; each List holds a set of Upstreams
// selected according to a rotation Policy. Callers report the outcome of
// using an Upstream via Ok/Fail, which drives a failure-rate circuit
// breaker moving members between the list's alive set and a revive-pending
// state. Each Upstream's address set is kept fresh by lazy, periodic DNS
// resolution while it is alive.
//
// The package does not dial connections, send probes, or retry on the
// caller's behalf — it is purely a bookkeeping and selection layer.
package upstream
