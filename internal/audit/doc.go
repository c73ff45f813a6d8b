// Package audit carries the internal audit event model and the async
// dispatcher. The root package re-exports the sink types by alias.
package audit
