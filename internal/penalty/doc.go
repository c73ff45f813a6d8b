// Package penalty implements the progressive block/level bookkeeping shared
// by all throttle guards. Counters live in Redis so every server instance
// observes the same state.
package penalty
