package mtask

import (
	"context"
	"log/slog"
)

// Option configures a Service.
type Option func(*Service) error

// Storer is the minimal store interface held by the Service.
// It covers lifecycle operations only. The full composite interface
// (store.Store) is used in subsystem layers that don't create import
// cycles. Implementations satisfy store.Store which embeds all
// subsystem stores.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// poolRunner is an internal interface for worker pool lifecycle.
type poolRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Service is the central coordinator for task processing. It holds the
// configuration, logger, and store handle, and owns the worker pool
// lifecycle.
//
// Create one with New() and functional options, then use the
// engine package to wire handlers, admission, and dedup together.
type Service struct {
	config Config
	logger *slog.Logger
	store  Storer
	pool   poolRunner

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Service with the given options.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Logger returns the service's logger.
func (s *Service) Logger() *slog.Logger { return s.logger }

// Store returns the service's store.
func (s *Service) Store() Storer { return s.store }

// Config returns a copy of the service's configuration.
func (s *Service) Config() Config { return s.config }

// SetPool sets the worker pool (called by the engine package).
func (s *Service) SetPool(p poolRunner) { s.pool = p }

// Start begins task processing.
func (s *Service) Start(ctx context.Context) error {
	if s.pool == nil {
		return ErrNoPool
	}
	if err := s.pool.Start(ctx); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) error {
	if s.pool != nil && s.started {
		if err := s.pool.Stop(ctx); err != nil {
			s.logger.Error("pool stop error", "error", err)
		}
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// WithConcurrency sets the maximum number of concurrent task processors.
func WithConcurrency(n int) Option {
	return func(s *Service) error {
		s.config.Concurrency = n
		return nil
	}
}

// WithQueues sets the queues the service will poll.
func WithQueues(queues []string) Option {
	return func(s *Service) error {
		s.config.Queues = queues
		return nil
	}
}

// WithLogger sets the structured logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the service.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds all subsystem store interfaces.
func WithStore(st Storer) Option {
	return func(s *Service) error {
		s.store = st
		return nil
	}
}

// WithConfig replaces the entire configuration.
func WithConfig(c Config) Option {
	return func(s *Service) error {
		s.config = c
		return nil
	}
}
