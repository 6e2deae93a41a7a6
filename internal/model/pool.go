package model

// PoolSnapshot is the committed state of a pool.
type PoolSnapshot struct {
	Address        string            `json:"address"`
	Token0         string            `json:"token0"`
	Token1         string            `json:"token1"`
	Reserve0       string            `json:"reserve0"`
	Reserve1       string            `json:"reserve1"`
	TotalShares    string            `json:"total_shares"`
	K              string            `json:"k"`
	FeeNumerator   uint64            `json:"fee_numerator"`
	FeeDenominator uint64            `json:"fee_denominator"`
	Shares         map[string]string `json:"shares,omitempty"`
}
