// Package queue defines named task queues with per-queue and per-tenant
// worker-side rate limiting.
//
// Queues are named channels that group related tasks. Tasks carry a Queue
// field that determines which queue they belong to. The worker pool polls
// the queues listed in [mtask.Config.Queues] (default: ["default"]).
//
// # Per-Queue Configuration
//
// Use [Config] to set per-queue rate limits and concurrency caps:
//
//	queue.Config{
//	    Name:           "email",
//	    MaxConcurrency: 5,      // max 5 concurrent email tasks
//	    RateLimit:      10,     // max 10 tasks/s dequeued from this queue
//	    RateBurst:      20,     // allow bursts up to 20
//	}
//
// # Manager
//
// [Manager] enforces per-queue and per-tenant limits at dequeue time.
// It uses a token-bucket rate limiter (golang.org/x/time/rate) and an
// active-count gate for concurrency limits.
//
//	m := queue.NewManager(configs...)
//	if m.Acquire(queueName, tenantID) {
//	    defer m.Release(queueName, tenantID)
//	    // process the task
//	}
//
// This is worker-local throttling. It smooths what one process pulls off
// its queues and is deliberately separate from the shared admission
// controller (package admission), which decides in the shared store whether
// a tenant's submission is accepted at all.
package queue
