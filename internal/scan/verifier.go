// Package scan implements the deposit reconciliation core: candidate
// verification and the per-order page scan engine.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/ethrpc"
	"deposit-reconciler/internal/idhash"
)

// RejectReason classifies why a candidate did not qualify as a deposit.
// Rejections are expected outcomes, not errors.
type RejectReason string

const (
	RejectNotFound         RejectReason = "NOT_FOUND"
	RejectPending          RejectReason = "PENDING"
	RejectStale            RejectReason = "STALE"
	RejectContractCreation RejectReason = "CONTRACT_CREATION"
	RejectSenderMismatch   RejectReason = "SENDER_MISMATCH"
	RejectNotASweep        RejectReason = "NOT_A_SWEEP"
	RejectZeroValue        RejectReason = "ZERO_VALUE"
)

// Rejection reports a non-qualifying candidate together with the stage that
// dismissed it.
type Rejection struct {
	Reason RejectReason
	TxHash string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("candidate %s rejected: %s", r.TxHash, r.Reason)
}

// ErrUnsupportedFeeModel is returned when a candidate transaction carries no
// legacy gas price. The sweep cost cannot be computed, so this is a hard
// failure for the candidate rather than a rejection.
var ErrUnsupportedFeeModel = errors.New("unsupported fee model: transaction has no legacy gas price")

// Verifier resolves a transaction summary against the node and decides whether
// it is a creditable sweep for the order.
type Verifier struct {
	node         ethrpc.NodeClient
	sweepAccount string
	logger       *log.Logger
}

// VerifierOptions contains configuration for creating a Verifier.
type VerifierOptions struct {
	Node         ethrpc.NodeClient
	SweepAccount string
	Logger       *log.Logger
}

// NewVerifier creates a new deposit verifier.
func NewVerifier(opts VerifierOptions) *Verifier {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Verifier{
		node:         opts.Node,
		sweepAccount: opts.SweepAccount,
		logger:       logger,
	}
}

// Verify checks a single summary. It returns a DepositCandidate when the
// transaction qualifies, a *Rejection error for expected disqualifications,
// ErrUnsupportedFeeModel for fee models the system does not account for, and
// any other error for node failures.
//
// Checks run in a fixed order and short-circuit: not found, pending, stale,
// contract creation, sender mismatch, not a sweep, zero value, fee model.
func (v *Verifier) Verify(ctx context.Context, order *domain.Order, summary domain.TransactionSummary) (*domain.DepositCandidate, error) {
	tx, err := v.node.GetTransaction(ctx, summary.Hash)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", summary.Hash, err)
	}
	if tx == nil {
		return nil, &Rejection{Reason: RejectNotFound, TxHash: summary.Hash}
	}

	if tx.Pending() {
		return nil, &Rejection{Reason: RejectPending, TxHash: summary.Hash}
	}

	block, err := v.node.GetBlock(ctx, *tx.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", *tx.BlockNumber, err)
	}
	if block == nil {
		return nil, fmt.Errorf("block %d for mined transaction %s not found", *tx.BlockNumber, summary.Hash)
	}

	// The deposit address may have belonged to an earlier order. Anything
	// mined before this order existed cannot be its deposit.
	if block.Timestamp < order.CreatedAt {
		return nil, &Rejection{Reason: RejectStale, TxHash: summary.Hash}
	}

	if tx.To == nil || *tx.To == "" {
		return nil, &Rejection{Reason: RejectContractCreation, TxHash: summary.Hash}
	}

	// A sweep debits the deposit address. The explorer query already scopes
	// rows to that address, but it also returns inbound transfers; only
	// transactions the deposit address sent can be its sweep.
	if !strings.EqualFold(tx.From, order.DepositAddress) {
		return nil, &Rejection{Reason: RejectSenderMismatch, TxHash: summary.Hash}
	}

	if !strings.EqualFold(*tx.To, v.sweepAccount) {
		return nil, &Rejection{Reason: RejectNotASweep, TxHash: summary.Hash}
	}

	if tx.Value == nil || tx.Value.Sign() <= 0 {
		return nil, &Rejection{Reason: RejectZeroValue, TxHash: summary.Hash}
	}

	if tx.GasPrice == nil {
		return nil, fmt.Errorf("%w (tx %s)", ErrUnsupportedFeeModel, summary.Hash)
	}

	// The sweep debits value plus the full gas allowance from the deposit
	// address; that debit is the deposited amount.
	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(tx.Gas), tx.GasPrice)
	total := new(big.Int).Add(tx.Value, gasCost)

	resolved := &domain.ResolvedTransaction{
		TransactionSummary: domain.TransactionSummary{
			Hash:  tx.Hash,
			From:  tx.From,
			To:    *tx.To,
			Value: tx.Value,
		},
		GasPrice:    tx.GasPrice,
		GasLimit:    tx.Gas,
		BlockNumber: block.Number,
		BlockTime:   block.Timestamp,
	}
	if tx.BlockHash != nil {
		resolved.BlockHash = *tx.BlockHash
	}

	return &domain.DepositCandidate{
		Order:    order,
		Tx:       resolved,
		Total:    total,
		DedupKey: idhash.ComputeDepositID(order.Method, tx.Hash),
	}, nil
}
