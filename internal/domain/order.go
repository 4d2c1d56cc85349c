package domain

// Order is a pending deposit order created by the upstream order-management
// process. The scanner reads orders, it never creates or mutates them.
type Order struct {
	ID             string
	DepositAddress string // per-order address the user funds; sweep txs originate here
	Method         string // asset/method identifier, e.g. "ETH"
	CreatedAt      int64  // unix seconds
	CreationBlock  int64  // block height at order creation; 0 = unknown
}

// HasDepositAddress reports whether the order carries a usable deposit address.
func (o *Order) HasDepositAddress() bool {
	return o != nil && o.DepositAddress != ""
}
