package scan

import (
	"context"
	"errors"
	"log"
	"time"

	"deposit-reconciler/internal/observability"
	"deposit-reconciler/internal/storage"
	"deposit-reconciler/internal/tasks"
)

// Runner consumes order ids from a task source and scans each order to
// completion. One order's failure never crosses into the next order's scan.
type Runner struct {
	source  tasks.Source
	orders  storage.OrderStore
	engine  *Engine
	metrics *observability.Metrics
	logger  *log.Logger
	now     func() time.Time
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source  tasks.Source
	Orders  storage.OrderStore
	Engine  *Engine
	Metrics *observability.Metrics
	Logger  *log.Logger
}

// NewRunner creates a new scan runner.
func NewRunner(opts RunnerOptions) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = observability.DefaultMetrics
	}

	return &Runner{
		source:  opts.Source,
		orders:  opts.Orders,
		engine:  opts.Engine,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Run consumes order ids until the source is drained or the context is done.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Println("Starting scan runner...")

	for {
		orderID, err := r.source.Next(ctx)
		if err != nil {
			if errors.Is(err, tasks.ErrClosed) {
				r.logger.Println("Task source drained, runner stopping")
				return nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				r.logger.Println("Runner stopping...")
				return err
			}
			return err
		}

		r.ScanOne(ctx, orderID)
	}
}

// ScanOne loads and scans a single order. All failures are logged and
// absorbed here; the order-scan boundary never leaks an error.
func (r *Runner) ScanOne(ctx context.Context, orderID string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Printf("Panic scanning order %s: %v", orderID, rec)
			r.metrics.ScansTotal.WithLabelValues(string(StateAborted)).Inc()
		}
	}()

	order, err := r.orders.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			r.logger.Printf("Order %s not found, skipping", orderID)
			r.metrics.OrdersSkipped.WithLabelValues("not_found").Inc()
		} else {
			r.logger.Printf("Error loading order %s: %v", orderID, err)
			r.metrics.OrdersSkipped.WithLabelValues("load_error").Inc()
		}
		return
	}

	if !order.HasDepositAddress() {
		r.logger.Printf("Order %s has no deposit address, skipping", orderID)
		r.metrics.OrdersSkipped.WithLabelValues("no_deposit_address").Inc()
		return
	}

	start := r.now()
	result, err := r.engine.ScanOrder(ctx, order)
	r.record(result, start)

	if err != nil {
		r.logger.Printf("Scan of order %s aborted after %d pages: %v", orderID, result.PagesFetched, err)
		return
	}

	r.logger.Printf("Scan of order %s %s: run=%s pages=%d verified=%d credited=%d duplicates=%d rejected=%d",
		orderID, result.State, result.RunID, result.PagesFetched, result.Verified,
		result.Credited, result.Duplicates, rejectionCount(result.Rejections))
}

// record publishes one scan result to the metrics registry.
func (r *Runner) record(result *ScanResult, start time.Time) {
	r.metrics.ScansTotal.WithLabelValues(string(result.State)).Inc()
	r.metrics.ScanDuration.Observe(r.now().Sub(start).Seconds())
	r.metrics.PagesFetched.Add(float64(result.PagesFetched))
	r.metrics.CandidatesVerified.Add(float64(result.Verified))
	r.metrics.CreditsTotal.Add(float64(result.Credited))
	r.metrics.DuplicatesTotal.Add(float64(result.Duplicates))
	r.metrics.HardErrorsTotal.Add(float64(result.HardErrors))
	for reason, n := range result.Rejections {
		r.metrics.RejectionsTotal.WithLabelValues(string(reason)).Add(float64(n))
	}
}

func rejectionCount(rejections map[RejectReason]int) int {
	total := 0
	for _, n := range rejections {
		total += n
	}
	return total
}
