// Package guard composes the penalty manager and fixed-window limiter into
// the single throttle algorithm every endpoint class shares. Variants differ
// only in how the tracking key is derived, which happens at the route layer.
package guard
