package model

// Event names emitted by pools and the registry.
const (
	EventPoolCreated = "PoolCreated"
	EventMint        = "Mint"
	EventBurn        = "Burn"
	EventSwap        = "Swap"
	EventSync        = "Sync"
	EventTransfer    = "Transfer"
	EventApproval    = "Approval"
)

// PoolEvent is a state change notification from a pool or the registry.
type PoolEvent struct {
	Seq       uint64      `json:"seq"`
	Pool      string      `json:"pool"`
	EventName string      `json:"event_name"`
	Decoded   interface{} `json:"decoded"`
}

// PoolCreatedEventData is emitted once per pair by the registry.
type PoolCreatedEventData struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
	Pool   string `json:"pool"`
	Index  int    `json:"index"`
}

// SwapEventData is the Swap event payload.
type SwapEventData struct {
	Sender     string `json:"sender"`
	Recipient  string `json:"recipient"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
}

// MintEventData is the Mint event payload.
type MintEventData struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Shares    string `json:"shares"`
}

// BurnEventData is the Burn event payload.
type BurnEventData struct {
	Sender    string `json:"sender"`
	Owner     string `json:"owner"`
	Recipient string `json:"recipient"`
	Amount0   string `json:"amount0"`
	Amount1   string `json:"amount1"`
	Shares    string `json:"shares"`
}

// SyncEventData carries the reserves after a state change.
type SyncEventData struct {
	Reserve0 string `json:"reserve0"`
	Reserve1 string `json:"reserve1"`
}

// TransferEventData is a share transfer.
type TransferEventData struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// ApprovalEventData is a share allowance update.
type ApprovalEventData struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}
