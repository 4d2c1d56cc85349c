package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/ethrpc"
	"deposit-reconciler/internal/storage"
)

// State is the scan state machine value observed after each page.
type State string

const (
	// StatePaging means the scan is still walking pages.
	StatePaging State = "PAGING"
	// StateExhausted is the terminal success state: a page came back empty.
	StateExhausted State = "EXHAUSTED"
	// StateAborted is the terminal failure state: a page fetch or a strict
	// verification batch failed.
	StateAborted State = "ABORTED"
)

// Default engine tuning values.
const (
	DefaultCandidateCap = 10
	DefaultConcurrency  = 4
)

// PageFetcher fetches one explorer page of transaction summaries.
type PageFetcher interface {
	FetchPage(ctx context.Context, address string, startBlock int64, page int) ([]domain.TransactionSummary, error)
}

// CandidateVerifier verifies one summary against the chain.
type CandidateVerifier interface {
	Verify(ctx context.Context, order *domain.Order, summary domain.TransactionSummary) (*domain.DepositCandidate, error)
}

// Engine runs one order-scan invocation to completion: sequential descending
// pages from the explorer, bounded concurrent verification per page, and
// idempotent crediting through the deposit store.
type Engine struct {
	explorer     PageFetcher
	verifier     CandidateVerifier
	deposits     storage.DepositStore
	events       storage.ScanEventStore // nil disables auditing
	node         ethrpc.NodeClient      // used only for timestamp start-block resolution
	candidateCap int
	concurrency  int
	startFromTS  bool
	strict       bool
	logger       *log.Logger
	now          func() time.Time
}

// EngineOptions contains configuration for creating an Engine.
type EngineOptions struct {
	Explorer PageFetcher
	Verifier CandidateVerifier
	Deposits storage.DepositStore
	Events   storage.ScanEventStore
	Node     ethrpc.NodeClient

	// CandidateCap bounds verification work per page. Default: 10.
	CandidateCap int
	// Concurrency bounds parallel candidate verification. Default: 4.
	Concurrency int
	// StartBlockFromTimestamp resolves the start block from the order's
	// creation timestamp even when the order records a creation block.
	StartBlockFromTimestamp bool
	// StrictVerification aborts the page's batch on the first hard
	// verification error instead of isolating it to that candidate.
	StrictVerification bool

	Logger *log.Logger
}

// NewEngine creates a new scan engine.
func NewEngine(opts EngineOptions) *Engine {
	candidateCap := opts.CandidateCap
	if candidateCap == 0 {
		candidateCap = DefaultCandidateCap
	}

	concurrency := opts.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		explorer:     opts.Explorer,
		verifier:     opts.Verifier,
		deposits:     opts.Deposits,
		events:       opts.Events,
		node:         opts.Node,
		candidateCap: candidateCap,
		concurrency:  concurrency,
		startFromTS:  opts.StartBlockFromTimestamp,
		strict:       opts.StrictVerification,
		logger:       logger,
		now:          time.Now,
	}
}

// ScanResult contains statistics from one order-scan invocation.
type ScanResult struct {
	RunID        string
	State        State
	StartBlock   int64
	PagesFetched int
	Verified     int
	Credited     int
	Duplicates   int
	HardErrors   int
	Rejections   map[RejectReason]int
}

// ScanOrder scans one order to completion. The returned result is valid even
// when err is non-nil; its State is then StateAborted. Nothing is credited for
// a candidate unless it fully verified, so an aborted scan loses no credits.
func (e *Engine) ScanOrder(ctx context.Context, order *domain.Order) (*ScanResult, error) {
	result := &ScanResult{
		RunID:      uuid.NewString(),
		State:      StatePaging,
		Rejections: make(map[RejectReason]int),
	}

	if !order.HasDepositAddress() {
		result.State = StateAborted
		return result, errors.New("order has no deposit address")
	}

	startBlock, err := e.resolveStartBlock(ctx, order)
	if err != nil {
		result.State = StateAborted
		return result, fmt.Errorf("resolve start block: %w", err)
	}
	result.StartBlock = startBlock

	for page := 1; ; page++ {
		summaries, err := e.explorer.FetchPage(ctx, order.DepositAddress, startBlock, page)
		if err != nil {
			result.State = StateAborted
			return result, fmt.Errorf("fetch page %d: %w", page, err)
		}
		result.PagesFetched++

		// An empty page is the only thing that ends pagination.
		if len(summaries) == 0 {
			result.State = StateExhausted
			return result, nil
		}

		candidates := filterCandidates(summaries, e.candidateCap)
		if err := e.verifyBatch(ctx, order, result, page, candidates); err != nil {
			result.State = StateAborted
			return result, fmt.Errorf("verify page %d: %w", page, err)
		}
	}
}

// filterCandidates keeps positive-value summaries, capped to the first limit
// entries in the page's descending order.
func filterCandidates(summaries []domain.TransactionSummary, limit int) []domain.TransactionSummary {
	candidates := make([]domain.TransactionSummary, 0, limit)
	for _, s := range summaries {
		if !s.HasPositiveValue() {
			continue
		}
		candidates = append(candidates, s)
		if len(candidates) == limit {
			break
		}
	}
	return candidates
}

// verifyBatch fans candidate verification out with bounded concurrency and
// credits qualifying candidates. Hard verification errors are isolated per
// candidate unless the engine runs strict; credit-sink failures always abort
// the batch.
func (e *Engine) verifyBatch(ctx context.Context, order *domain.Order, result *ScanResult, page int, candidates []domain.TransactionSummary) error {
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, summary := range candidates {
		g.Go(func() error {
			mu.Lock()
			result.Verified++
			mu.Unlock()

			candidate, err := e.verifier.Verify(gctx, order, summary)

			var rejection *Rejection
			switch {
			case err == nil:
				applied, creditErr := e.deposits.CreditIfAbsent(gctx, candidate.DedupKey, order.ID, candidate.Total, candidate.Tx.Hash)
				if creditErr != nil {
					return fmt.Errorf("credit %s: %w", candidate.Tx.Hash, creditErr)
				}
				mu.Lock()
				if applied {
					result.Credited++
				} else {
					result.Duplicates++
				}
				mu.Unlock()
				if applied {
					e.logger.Printf("Credited order %s: tx %s total %s (dedup %s)",
						order.ID, candidate.Tx.Hash, candidate.Total, candidate.DedupKey)
					e.recordEvent(result.RunID, order.ID, &storage.ScanEvent{
						TxHash:  candidate.Tx.Hash,
						Outcome: "credited",
						Page:    page,
						Amount:  candidate.Total,
					})
				}
				return nil

			case errors.As(err, &rejection):
				mu.Lock()
				result.Rejections[rejection.Reason]++
				mu.Unlock()
				e.logger.Printf("Rejected candidate %s for order %s: %s", summary.Hash, order.ID, rejection.Reason)
				e.recordEvent(result.RunID, order.ID, &storage.ScanEvent{
					TxHash:  summary.Hash,
					Outcome: "rejected",
					Reason:  string(rejection.Reason),
					Page:    page,
				})
				return nil

			default:
				mu.Lock()
				result.HardErrors++
				mu.Unlock()
				e.logger.Printf("Error verifying candidate %s for order %s: %v", summary.Hash, order.ID, err)
				e.recordEvent(result.RunID, order.ID, &storage.ScanEvent{
					TxHash:  summary.Hash,
					Outcome: "error",
					Reason:  err.Error(),
					Page:    page,
				})
				if e.strict {
					return err
				}
				return nil
			}
		})
	}

	return g.Wait()
}

// recordEvent writes one audit row. Audit failures are logged, never fatal:
// the audit trail is observability data, not scan state.
func (e *Engine) recordEvent(runID, orderID string, event *storage.ScanEvent) {
	if e.events == nil {
		return
	}
	event.RunID = runID
	event.OrderID = orderID
	event.Timestamp = e.now().Unix()

	// Detached context: an aborted batch should not lose its audit rows.
	if err := e.events.Insert(context.Background(), event); err != nil {
		e.logger.Printf("Error recording scan event for %s: %v", event.TxHash, err)
	}
}
