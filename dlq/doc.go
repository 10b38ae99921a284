// Package dlq provides the dead letter queue for tasks whose attempt
// budget is exhausted or that failed non-retryably. It supports
// inspection, replay, and purging.
//
// When the executor reaches a terminal failure it calls [Service.Push]
// to record the task in the DLQ. The original payload, tenant, request
// key, error message, and attempt counts are preserved for debugging.
//
// # Replay
//
// Replaying an entry re-enqueues the original work as a fresh task with
// the same payload and tenant. The request key is carried over, so an
// already-completed logical request replayed inside the claim TTL still
// resolves as a duplicate rather than double-executing.
package dlq
