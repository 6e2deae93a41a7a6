package quote

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"ammpool/internal/model"
	"ammpool/internal/pool"
)

const ratioScale = 18

// Request prices one swap against a pair of reserves. Negative decimals mean
// the token's decimals are unknown and no human amount is rendered.
type Request struct {
	ReserveIn   *uint256.Int
	ReserveOut  *uint256.Int
	Amount      *uint256.Int
	ExactOut    bool
	Fee         pool.Config
	DecimalsIn  int
	DecimalsOut int
}

// Compute returns the quote for req. Amount is the input for exact-in
// quotes and the desired output for exact-out quotes.
func Compute(req Request) (model.Quote, error) {
	if req.ReserveIn == nil || req.ReserveOut == nil || req.Amount == nil {
		return model.Quote{}, errors.New("reserves and amount are required")
	}
	if err := req.Fee.Validate(); err != nil {
		return model.Quote{}, err
	}

	var amountIn, amountOut *uint256.Int
	if req.ExactOut {
		in, err := pool.AmountIn(req.Amount, req.ReserveIn, req.ReserveOut, req.Fee)
		if err != nil {
			return model.Quote{}, err
		}
		amountIn, amountOut = in, req.Amount
	} else {
		out, err := pool.AmountOut(req.Amount, req.ReserveIn, req.ReserveOut, req.Fee)
		if err != nil {
			return model.Quote{}, err
		}
		amountIn, amountOut = req.Amount, out
	}

	q := model.Quote{
		ReserveIn:      req.ReserveIn.Dec(),
		ReserveOut:     req.ReserveOut.Dec(),
		AmountIn:       amountIn.Dec(),
		AmountOut:      amountOut.Dec(),
		ExactOut:       req.ExactOut,
		FeeNumerator:   req.Fee.FeeNumerator,
		FeeDenominator: req.Fee.FeeDenominator,
		PriceImpact:    priceImpact(req.ReserveIn, req.ReserveOut, amountIn, amountOut),
	}
	if req.DecimalsIn >= 0 {
		q.AmountInHuman = formatTokenAmount(amountIn.ToBig(), uint8(req.DecimalsIn))
	}
	if req.DecimalsOut >= 0 {
		q.AmountOutHuman = formatTokenAmount(amountOut.ToBig(), uint8(req.DecimalsOut))
	}
	return q, nil
}

// priceImpact is 1 - p1/p0 where p = reserveOut/reserveIn before and after
// the swap.
func priceImpact(reserveIn, reserveOut, amountIn, amountOut *uint256.Int) string {
	if reserveIn.IsZero() || reserveOut.IsZero() {
		return ""
	}
	rIn, rOut := reserveIn.ToBig(), reserveOut.ToBig()
	afterIn := new(big.Int).Add(rIn, amountIn.ToBig())
	afterOut := new(big.Int).Sub(rOut, amountOut.ToBig())

	num := new(big.Int).Mul(afterOut, rIn)
	den := new(big.Int).Mul(afterIn, rOut)
	ratio := new(big.Rat).SetFrac(num, den)
	impact := new(big.Rat).Sub(big.NewRat(1, 1), ratio)
	return impact.FloatString(ratioScale)
}

func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	if decimals == 0 {
		return value.String()
	}
	sign := value.Sign()
	abs := new(big.Int).Abs(value)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	rat := new(big.Rat).SetFrac(abs, denom)
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}

// ParseDecimals validates a decimals setting; -1 means unknown.
func ParseDecimals(value int) (int, error) {
	if value < -1 || value > 77 {
		return 0, fmt.Errorf("decimals out of range: %d", value)
	}
	return value, nil
}
