// Package main provides the long-running deposit scanner service. It consumes
// order ids from the Redis task queue, scans each order's deposit address
// history, and credits verified sweeps exactly once.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"deposit-reconciler/internal/config"
	"deposit-reconciler/internal/ethrpc"
	"deposit-reconciler/internal/explorer"
	"deposit-reconciler/internal/observability"
	"deposit-reconciler/internal/scan"
	"deposit-reconciler/internal/storage"
	chstore "deposit-reconciler/internal/storage/clickhouse"
	"deposit-reconciler/internal/storage/memory"
	"deposit-reconciler/internal/storage/migrations"
	pgstore "deposit-reconciler/internal/storage/postgres"
	"deposit-reconciler/internal/tasks"
)

func main() {
	// Load .env file if exists
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "[scanner] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Stores: Postgres when configured, in-memory otherwise. The in-memory
	// order store starts empty, so it is only useful for smoke runs.
	var (
		orders   storage.OrderStore
		deposits storage.DepositStore
	)
	if cfg.Storage.PostgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("Postgres error: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Postgres migration error: %v", err)
		}
		orders = pgstore.NewOrderStore(pool)
		deposits = pgstore.NewDepositStore(pool)
		logger.Println("Using Postgres stores")
	} else {
		orders = memory.NewOrderStore()
		deposits = memory.NewDepositStore()
		logger.Println("POSTGRES_DSN not set, using in-memory stores")
	}

	// Scan-event audit trail: ClickHouse when configured, disabled otherwise.
	var events storage.ScanEventStore
	if cfg.Storage.ClickHouseDSN != "" {
		conn, err := chstore.NewConn(ctx, cfg.Storage.ClickHouseDSN)
		if err != nil {
			logger.Fatalf("ClickHouse error: %v", err)
		}
		defer conn.Close()

		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			logger.Fatalf("ClickHouse migration error: %v", err)
		}
		events = chstore.NewScanEventStore(conn)
		logger.Println("Using ClickHouse scan-event audit")
	}

	// Explorer and node clients
	explorerOpts := []explorer.ClientOption{
		explorer.WithPageSize(cfg.Explorer.PageSize),
	}
	if cfg.Explorer.RateLimit > 0 {
		explorerOpts = append(explorerOpts, explorer.WithRateLimit(cfg.Explorer.RateLimit, 1))
	}
	explorerClient := explorer.NewClient(cfg.Explorer.BaseURL, cfg.Explorer.APIKey, explorerOpts...)
	node := ethrpc.NewHTTPClient(cfg.Node.RPCURL)

	verifier := scan.NewVerifier(scan.VerifierOptions{
		Node:         node,
		SweepAccount: cfg.Node.SweepAccount,
		Logger:       logger,
	})

	engine := scan.NewEngine(scan.EngineOptions{
		Explorer:                explorerClient,
		Verifier:                verifier,
		Deposits:                deposits,
		Events:                  events,
		Node:                    node,
		CandidateCap:            cfg.Scan.CandidateCap,
		Concurrency:             cfg.Scan.Concurrency,
		StartBlockFromTimestamp: cfg.Scan.StartBlockFromTimestamp,
		StrictVerification:      cfg.Scan.StrictVerification,
		Logger:                  logger,
	})

	source, err := tasks.NewRedisSource(ctx, tasks.RedisSourceOptions{
		URL:      cfg.Tasks.RedisURL,
		QueueKey: cfg.Tasks.QueueKey,
	})
	if err != nil {
		logger.Fatalf("Redis error: %v", err)
	}
	defer source.Close()

	runner := scan.NewRunner(scan.RunnerOptions{
		Source: source,
		Orders: orders,
		Engine: engine,
		Logger: logger,
	})

	go serveMetrics(logger, cfg.Metrics.Addr)

	logger.Printf("Scanner started: network=%s queue=%s sweep=%s",
		cfg.Node.Network, cfg.Tasks.QueueKey, cfg.Node.SweepAccount)

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Runner error: %v", err)
	}
	logger.Println("Scanner stopped")
}

// serveMetrics exposes the Prometheus endpoint and a liveness probe.
func serveMetrics(logger *log.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	logger.Printf("Serving metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Printf("Metrics server error: %v", err)
	}
}
