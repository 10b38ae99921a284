// Package store defines the aggregate persistence interface for the queue
// substrate.
//
// Each subsystem (task, dlq) defines its own store interface. The composite
// [Store] composes them. A single backend need only implement Store to
// satisfy every subsystem's persistence contract.
//
// The composite interface:
//
//	type Store interface {
//	    task.Store
//	    dlq.Store
//
//	    Migrate(ctx context.Context) error
//	    Ping(ctx context.Context) error
//	    Close() error
//	}
//
// # Available Backends
//
//   - store/memory — in-memory store for development and testing
//   - store/redis — Redis backend for production deployments
//
// # Usage
//
//	import redisstore "github.com/mtask/mtask/store/redis"
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil {
//	    log.Fatal(err)
//	}
package store
