package ethrpc

import "math/big"

// Transaction is a full transaction as returned by the node.
type Transaction struct {
	Hash  string
	From  string
	To    *string // nil for contract creation
	Value *big.Int
	Gas   uint64

	// GasPrice is nil when the transaction uses a non-legacy fee model.
	GasPrice *big.Int

	// BlockHash and BlockNumber are nil while the transaction is pending.
	BlockHash   *string
	BlockNumber *int64
}

// Pending reports whether the transaction has not been included in a block yet.
func (t *Transaction) Pending() bool {
	return t.BlockNumber == nil
}

// Block is a block header subset: only what deposit verification needs.
type Block struct {
	Number    int64
	Hash      string
	Timestamp int64 // unix seconds
}
