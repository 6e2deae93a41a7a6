package model

// Quote is the result of pricing a swap against a pair of reserves.
type Quote struct {
	Pool           string `json:"pool,omitempty"`
	TokenIn        string `json:"token_in,omitempty"`
	TokenOut       string `json:"token_out,omitempty"`
	ReserveIn      string `json:"reserve_in"`
	ReserveOut     string `json:"reserve_out"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	AmountInHuman  string `json:"amount_in_human,omitempty"`
	AmountOutHuman string `json:"amount_out_human,omitempty"`
	ExactOut       bool   `json:"exact_out"`
	FeeNumerator   uint64 `json:"fee_numerator"`
	FeeDenominator uint64 `json:"fee_denominator"`
	// PriceImpact is the relative move of the marginal price, as a decimal fraction.
	PriceImpact string `json:"price_impact"`
}
