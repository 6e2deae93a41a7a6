package model

// Scenario operation names.
const (
	OpMint            = "mint"
	OpApprove         = "approve"
	OpCreatePool      = "create_pool"
	OpAddLiquidity    = "add_liquidity"
	OpRemoveLiquidity = "remove_liquidity"
	OpSwapExactIn     = "swap_exact_in"
	OpSwapExactOut    = "swap_exact_out"
	OpTransferShares  = "transfer_shares"
	OpApproveShares   = "approve_shares"
)

// Operation is one scenario line. Amounts are base-10 strings; which fields
// apply depends on Op.
type Operation struct {
	Op       string `json:"op"`
	Caller   string `json:"caller,omitempty"`
	TokenA   string `json:"token_a,omitempty"`
	TokenB   string `json:"token_b,omitempty"`
	TokenIn  string `json:"token_in,omitempty"`
	TokenOut string `json:"token_out,omitempty"`
	Amount   string `json:"amount,omitempty"`
	Amount0  string `json:"amount0,omitempty"`
	Amount1  string `json:"amount1,omitempty"`
	Min0     string `json:"min0,omitempty"`
	Min1     string `json:"min1,omitempty"`
	MaxIn    string `json:"max_in,omitempty"`
	MinOut   string `json:"min_out,omitempty"`
	Shares   string `json:"shares,omitempty"`
	To       string `json:"to,omitempty"`
	Spender  string `json:"spender,omitempty"`
	Owner    string `json:"owner,omitempty"`
}

// OperationResult records the outcome of one applied scenario line.
type OperationResult struct {
	Line   int               `json:"line"`
	Op     string            `json:"op"`
	Pool   string            `json:"pool,omitempty"`
	Output map[string]string `json:"output,omitempty"`
	Error  string            `json:"error,omitempty"`
}
