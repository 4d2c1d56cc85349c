package domain

import "math/big"

// DepositCandidate is an order paired with a verified sweep transaction.
// Total is the amount debited from the deposit address by the sweep
// (value + gasLimit*gasPrice), which is the quantity credited to the order.
type DepositCandidate struct {
	Order    *Order
	Tx       *ResolvedTransaction
	Total    *big.Int
	DedupKey string
}

// Deposit is a credited deposit record owned by the credit sink.
// At most one record per DedupKey ever exists; the store enforces this.
type Deposit struct {
	DedupKey   string
	OrderID    string
	Amount     *big.Int
	TxHash     string
	CreditedAt int64 // unix seconds
}
