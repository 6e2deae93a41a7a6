package model

// PairState captures a live V2-style pair read over RPC.
type PairState struct {
	Address            string    `json:"address"`
	Token0             TokenMeta `json:"token0"`
	Token1             TokenMeta `json:"token1"`
	Reserve0           string    `json:"reserve0"`
	Reserve1           string    `json:"reserve1"`
	BlockTimestampLast uint32    `json:"block_timestamp_last"`
}
