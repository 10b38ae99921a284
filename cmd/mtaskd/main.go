// Command mtaskd runs the mtask daemon: the HTTP API, the worker pool,
// and the five built-in tenant task bodies, backed by Redis and
// PostgreSQL when configured and by in-memory stores otherwise.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/admission"
	"github.com/mtask/mtask/api"
	"github.com/mtask/mtask/dedup"
	"github.com/mtask/mtask/engine"
	"github.com/mtask/mtask/storage"
	bunstorage "github.com/mtask/mtask/storage/bun"
	storagemem "github.com/mtask/mtask/storage/memory"
	"github.com/mtask/mtask/store"
	storemem "github.com/mtask/mtask/store/memory"
	storeredis "github.com/mtask/mtask/store/redis"
	"github.com/mtask/mtask/tasks"
)

func main() {
	cfg := DefaultDaemonConfig()
	FromEnv(&cfg)

	logger := newLogger(cfg.LogLevel)

	rootCmd := &cobra.Command{
		Use:   "mtaskd",
		Short: "mtask daemon",
		Long:  "mtaskd runs the mtask HTTP API and worker pool.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and worker pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), cfg, logger)
		},
	}
	rootCmd.AddCommand(serveCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply backend schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), cfg, logger)
		},
	}
	rootCmd.AddCommand(migrateCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Error("mtaskd failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// openStores builds the queue substrate and the transaction ledger from
// the configured backends.
func openStores(cfg Config, logger *slog.Logger) (store.Store, storage.Store, error) {
	var queueStore store.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		queueStore = storeredis.New(client, storeredis.WithLogger(logger))
		logger.Info("queue substrate: redis", slog.String("addr", cfg.RedisAddr))
	} else {
		queueStore = storemem.New()
		logger.Info("queue substrate: memory")
	}

	var ledgerStore storage.Store
	if cfg.PostgresDSN != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN)))
		db := bun.NewDB(sqldb, pgdialect.New())
		ledgerStore = bunstorage.New(db, bunstorage.WithLogger(logger))
		logger.Info("transaction ledger: postgres")
	} else {
		ledgerStore = storagemem.New()
		logger.Info("transaction ledger: memory")
	}

	return queueStore, ledgerStore, nil
}

func migrate(ctx context.Context, cfg Config, logger *slog.Logger) error {
	queueStore, ledgerStore, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer queueStore.Close()  //nolint:errcheck
	defer ledgerStore.Close() //nolint:errcheck

	if err := queueStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate queue substrate: %w", err)
	}
	if err := ledgerStore.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate transaction ledger: %w", err)
	}
	logger.Info("migrations applied")
	return nil
}

func serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	queueStore, ledgerStore, err := openStores(cfg, logger)
	if err != nil {
		return err
	}
	defer ledgerStore.Close() //nolint:errcheck

	admissionCfg := admission.Config{
		Capacity:   cfg.BucketCapacity,
		RefillRate: cfg.BucketRefillRate,
	}
	var (
		limiter admission.Limiter
		ledger  dedup.Ledger
	)
	if cfg.RedisAddr != "" {
		client := queueStore.(*storeredis.Store).Client()
		limiter = admission.NewRedis(client, admissionCfg)
		ledger = dedup.NewRedis(client)
	} else {
		limiter = admission.NewMemory(admissionCfg)
		ledger = dedup.NewMemory()
	}

	svcCfg := mtask.DefaultConfig()
	svcCfg.Concurrency = cfg.Concurrency
	svcCfg.Queues = cfg.Queues

	svc, err := mtask.New(
		mtask.WithStore(queueStore),
		mtask.WithLogger(logger),
		mtask.WithConfig(svcCfg),
	)
	if err != nil {
		return fmt.Errorf("create service: %w", err)
	}

	eng, err := engine.Build(svc,
		engine.WithAdmission(limiter),
		engine.WithLedger(ledger),
	)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}

	// The five built-in task bodies.
	engine.Register(eng, tasks.NewIngest(ledgerStore, logger).Definition())
	engine.Register(eng, tasks.NewReconcile(ledgerStore, logger).Definition())
	engine.Register(eng, tasks.NewReport(ledgerStore, tasks.DirWriter{Dir: cfg.ReportDir}, logger).Definition())
	engine.Register(eng, tasks.NewEmail(tasks.SMTPSender{Addr: cfg.SMTPAddr}, cfg.SMTPFrom, logger).Definition())
	engine.Register(eng, tasks.NewWebhook(nil, logger).Definition())

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	tenants := make([]api.Tenant, 0, len(cfg.Tenants))
	for id, name := range cfg.Tenants {
		tenants = append(tenants, api.Tenant{TenantID: id, Name: name})
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].TenantID < tenants[j].TenantID })

	a := api.New(eng, logger, api.WithTenants(tenants), api.WithHealthCheck(func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := queueStore.Ping(pingCtx); err != nil {
			return err
		}
		return ledgerStore.Ping(pingCtx)
	}))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), svcCfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	return eng.Stop(shutdownCtx)
}
