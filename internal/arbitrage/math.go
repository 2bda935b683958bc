package arbitrage

import (
	"errors"
	"math/big"
)

var (
	ErrInsufficientAmount    = errors.New("insufficient amount")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInvalidPath           = errors.New("invalid path")
)

var (
	bpsBase   = big.NewInt(10000)
	priceUnit = big.NewInt(1e9)
)

// calculates the spot price of token1 in terms of token0, adjusting for decimals
func CalculatePrice(reserve0, reserve1 *big.Int, decimals0, decimals1 int) *big.Float {
	if reserve1 == nil || reserve1.Sign() == 0 {
		return new(big.Float)
	}
	r0 := new(big.Float).SetInt(reserve0)
	r1 := new(big.Float).SetInt(reserve1)

	// price = reserve0/reserve1 * 10^(decimals1-decimals0)
	exp := decimals1 - decimals0
	adj := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(abs(exp))), nil))

	price := new(big.Float).Quo(r0, r1)
	if exp >= 0 {
		price.Mul(price, adj)
	} else {
		price.Quo(price, adj)
	}
	return price
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// PriceD returns reserve0·1e9/reserve1, or false when reserve1 is zero.
func PriceD(r ReservePair) (*big.Int, bool) {
	if r.Reserve0 == nil || r.Reserve1 == nil || r.Reserve1.Sign() == 0 {
		return nil, false
	}
	p := new(big.Int).Mul(r.Reserve0, priceUnit)
	return p.Quo(p, r.Reserve1), true
}

// returns difference of price between pools (percentage)
func ComparePrices(price1, price2 *big.Float) float64 {
	cmp := price1.Cmp(price2)
	if cmp == 0 || price1.Sign() == 0 || price2.Sign() == 0 {
		return 0.0
	}
	higher, lower := price1, price2
	if cmp < 0 {
		higher, lower = price2, price1
	}

	diff := new(big.Float).Sub(higher, lower)
	pct := new(big.Float).Quo(diff, lower)
	pct.Mul(pct, big.NewFloat(100.0))

	result, _ := pct.Float64()
	return result
}

// calculates output amount for a uniswapv2 swap, fee in basis points
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint64) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(10000-feeBps)))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)

	denominator := new(big.Int).Mul(reserveIn, bpsBase)
	denominator.Add(denominator, amountInWithFee)

	return numerator.Quo(numerator, denominator), nil
}

// calculates the input needed to receive amountOut, rounded up like the v2 library
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps uint64) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ErrInsufficientAmount
	}
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() <= 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, ErrInsufficientLiquidity
	}

	numerator := new(big.Int).Mul(reserveIn, amountOut)
	numerator.Mul(numerator, bpsBase)

	denominator := new(big.Int).Sub(reserveOut, amountOut)
	denominator.Mul(denominator, big.NewInt(int64(10000-feeBps)))

	amountIn := numerator.Quo(numerator, denominator)
	return amountIn.Add(amountIn, big.NewInt(1)), nil
}

// Hop is the reserve state of one swap step, oriented in the trade direction
type Hop struct {
	ReserveIn  *big.Int
	ReserveOut *big.Int
	FeeBps     uint64
}

// GetAmountsOut chains GetAmountOut over hops and returns every intermediate amount,
// starting with amountIn.
func GetAmountsOut(amountIn *big.Int, hops ...Hop) ([]*big.Int, error) {
	if len(hops) == 0 {
		return nil, ErrInvalidPath
	}
	amounts := make([]*big.Int, 0, len(hops)+1)
	amounts = append(amounts, new(big.Int).Set(amountIn))
	for _, h := range hops {
		out, err := GetAmountOut(amounts[len(amounts)-1], h.ReserveIn, h.ReserveOut, h.FeeBps)
		if err != nil {
			return nil, err
		}
		amounts = append(amounts, out)
	}
	return amounts, nil
}

// SimulateArbitrage returns the exact integer profit of trading amountIn along q.
func SimulateArbitrage(amountIn *big.Int, q Quad, buyFeeBps, sellFeeBps uint64) (*big.Int, error) {
	amounts, err := GetAmountsOut(amountIn,
		Hop{ReserveIn: q.A, ReserveOut: q.B, FeeBps: buyFeeBps},
		Hop{ReserveIn: q.C, ReserveOut: q.D, FeeBps: sellFeeBps},
	)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(amounts[2], amountIn), nil
}
