package domain

import "math/big"

// TransactionSummary is one row of an explorer account-history page.
// Produced per page, never stored.
type TransactionSummary struct {
	Hash  string
	From  string
	To    string
	Value *big.Int // native-asset value in base units
}

// HasPositiveValue reports whether the transferred value is strictly positive.
func (s *TransactionSummary) HasPositiveValue() bool {
	return s.Value != nil && s.Value.Sign() > 0
}

// ResolvedTransaction is a summary enriched with the full transaction and its
// containing block, fetched from the node.
type ResolvedTransaction struct {
	TransactionSummary

	// GasPrice is the legacy gas price. Nil means the transaction uses a fee
	// model this system does not account for.
	GasPrice    *big.Int
	GasLimit    uint64
	BlockHash   string
	BlockNumber int64
	BlockTime   int64 // unix seconds
}
