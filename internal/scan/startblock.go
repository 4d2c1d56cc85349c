package scan

import (
	"context"
	"errors"
	"fmt"

	"deposit-reconciler/internal/domain"
	"deposit-reconciler/internal/ethrpc"
)

// resolveStartBlock picks the height below which history is not queried.
// Default path: the block recorded at order creation. Fallback (or forced via
// StartBlockFromTimestamp): locate the first block at or after the order's
// creation timestamp by binary search over the chain.
func (e *Engine) resolveStartBlock(ctx context.Context, order *domain.Order) (int64, error) {
	if !e.startFromTS && order.CreationBlock > 0 {
		return order.CreationBlock, nil
	}
	if e.node == nil {
		return 0, errors.New("no node client configured for timestamp start-block resolution")
	}
	return FindBlockByTime(ctx, e.node, order.CreatedAt)
}

// FindBlockByTime returns the number of the first block whose timestamp is at
// or after target. Block timestamps are monotonically non-decreasing, so a
// binary search over [1, head] suffices. When the whole chain predates target
// the head number is returned, which bounds the scan to an empty window.
func FindBlockByTime(ctx context.Context, node ethrpc.NodeClient, target int64) (int64, error) {
	head, err := node.LatestBlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest block number: %w", err)
	}
	if head < 1 {
		return 0, fmt.Errorf("chain head %d below genesis", head)
	}

	lo, hi := int64(1), head
	for lo < hi {
		mid := lo + (hi-lo)/2
		block, err := node.GetBlock(ctx, mid)
		if err != nil {
			return 0, fmt.Errorf("get block %d: %w", mid, err)
		}
		if block == nil {
			return 0, fmt.Errorf("block %d below head not found", mid)
		}
		if block.Timestamp < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}
