// Package main provides a one-shot scan of a single order, for operator
// debugging and backfills. The order is loaded from Postgres when configured,
// or described inline with flags.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"deposit-reconciler/internal/config"
	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/ethrpc"
	"deposit-reconciler/internal/explorer"
	"deposit-reconciler/internal/scan"
	"deposit-reconciler/internal/storage"
	"deposit-reconciler/internal/storage/memory"
	"deposit-reconciler/internal/storage/migrations"
	pgstore "deposit-reconciler/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	orderID := flag.String("order-id", "", "Order id to scan (required)")
	depositAddress := flag.String("deposit-address", "", "Deposit address; overrides the stored order")
	method := flag.String("method", "ETH", "Asset/method identifier for inline orders")
	createdAt := flag.Int64("created-at", 0, "Order creation time (unix seconds) for inline orders")
	creationBlock := flag.Int64("creation-block", 0, "Block height at order creation for inline orders")
	dryRun := flag.Bool("dry-run", false, "Verify only; credit into a throwaway in-memory store")
	flag.Parse()

	logger := log.New(os.Stdout, "[scan] ", log.LstdFlags)

	if *orderID == "" {
		logger.Fatal("--order-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Config error: %v", err)
	}

	ctx := context.Background()

	// Resolve the order: inline flags win, then Postgres.
	var (
		order    *domain.Order
		deposits storage.DepositStore
	)
	if *depositAddress != "" {
		created := *createdAt
		if created == 0 {
			created = time.Now().Add(-24 * time.Hour).Unix()
		}
		order = &domain.Order{
			ID:             *orderID,
			DepositAddress: *depositAddress,
			Method:         *method,
			CreatedAt:      created,
			CreationBlock:  *creationBlock,
		}
	}

	if cfg.Storage.PostgresDSN != "" && !*dryRun {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("Postgres error: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("Postgres migration error: %v", err)
		}
		deposits = pgstore.NewDepositStore(pool)

		if order == nil {
			order, err = pgstore.NewOrderStore(pool).FindOrder(ctx, *orderID)
			if err != nil {
				logger.Fatalf("Load order %s: %v", *orderID, err)
			}
		}
	} else {
		deposits = memory.NewDepositStore()
	}

	if order == nil {
		logger.Fatal("No order: set --deposit-address for an inline order or configure POSTGRES_DSN")
	}

	explorerOpts := []explorer.ClientOption{
		explorer.WithPageSize(cfg.Explorer.PageSize),
	}
	if cfg.Explorer.RateLimit > 0 {
		explorerOpts = append(explorerOpts, explorer.WithRateLimit(cfg.Explorer.RateLimit, 1))
	}
	explorerClient := explorer.NewClient(cfg.Explorer.BaseURL, cfg.Explorer.APIKey, explorerOpts...)
	node := ethrpc.NewHTTPClient(cfg.Node.RPCURL)

	engine := scan.NewEngine(scan.EngineOptions{
		Explorer: explorerClient,
		Verifier: scan.NewVerifier(scan.VerifierOptions{
			Node:         node,
			SweepAccount: cfg.Node.SweepAccount,
			Logger:       logger,
		}),
		Deposits:                deposits,
		Node:                    node,
		CandidateCap:            cfg.Scan.CandidateCap,
		Concurrency:             cfg.Scan.Concurrency,
		StartBlockFromTimestamp: cfg.Scan.StartBlockFromTimestamp,
		StrictVerification:      cfg.Scan.StrictVerification,
		Logger:                  logger,
	})

	result, err := engine.ScanOrder(ctx, order)
	printResult(order, result)
	if err != nil {
		logger.Fatalf("Scan aborted: %v", err)
	}
}

func printResult(order *domain.Order, r *scan.ScanResult) {
	fmt.Printf("Order:        %s (%s)\n", order.ID, order.DepositAddress)
	fmt.Printf("Run:          %s\n", r.RunID)
	fmt.Printf("State:        %s\n", r.State)
	fmt.Printf("Start block:  %d\n", r.StartBlock)
	fmt.Printf("Pages:        %d\n", r.PagesFetched)
	fmt.Printf("Verified:     %d\n", r.Verified)
	fmt.Printf("Credited:     %d\n", r.Credited)
	fmt.Printf("Duplicates:   %d\n", r.Duplicates)
	fmt.Printf("Hard errors:  %d\n", r.HardErrors)
	if len(r.Rejections) > 0 {
		fmt.Println("Rejections:")
		for reason, n := range r.Rejections {
			fmt.Printf("  %-20s %d\n", reason, n)
		}
	}
}
