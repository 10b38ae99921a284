// Package mtask provides multi-tenant background task dispatch for Go.
// It combines a distributed token-bucket admission controller, an
// idempotency claim ledger, and an at-least-once work queue so that
// side-effecting tasks execute at most once per logical request.
//
// mtask is designed as a library, not a service. Import it, configure a
// store, register task handlers as ordinary Go functions, and submit
// work through the engine.
//
// # Quick Start
//
//	svc, err := mtask.New(
//	    mtask.WithStore(memStore),
//	    mtask.WithConcurrency(8),
//	)
//
// # Architecture
//
// Every submission passes the admission controller synchronously before
// it is enqueued; denied requests surface ErrOverQuota to the caller.
// Workers dequeue at-least-once and consult the dedup ledger before
// performing side effects, so a redelivered or resubmitted request
// yields a skipped result rather than a second execution.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package mtask
