package pool

// AssetSide selects asset0 or asset1 of a pool.
type AssetSide int

const (
	Side0 AssetSide = iota
	Side1
)

func (s AssetSide) Other() AssetSide {
	return 1 - s
}

func (s AssetSide) String() string {
	if s == Side0 {
		return "token0"
	}
	return "token1"
}
