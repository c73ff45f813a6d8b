// Package rate provides the Redis fixed-window counters underneath the
// throttle guards. It knows nothing about penalties; escalation is the
// guard layer's concern.
package rate
