// Package ethrpc talks JSON-RPC to an Ethereum-family node.
package ethrpc

import "context"

// NodeClient resolves full transactions and blocks.
type NodeClient interface {
	// GetTransaction retrieves a transaction by hash.
	// Returns (nil, nil) when the node does not know the transaction.
	GetTransaction(ctx context.Context, hash string) (*Transaction, error)

	// GetBlock retrieves a block header by number.
	// Returns (nil, nil) when the block does not exist.
	GetBlock(ctx context.Context, number int64) (*Block, error)

	// LatestBlockNumber returns the current chain head height.
	LatestBlockNumber(ctx context.Context) (int64, error)
}
