package arbitrage

import (
	"math"
	"math/big"
)

func (q Quad) valid() bool {
	for _, v := range []*big.Int{q.A, q.B, q.C, q.D} {
		if v == nil || v.Sign() <= 0 {
			return false
		}
	}
	return true
}

// OptimalAmountIn returns the input that maximises the profit of buying on the A/B
// pool and selling on the C/D pool. Zero means there is no profitable size.
//
//	amount = (sqrt(A·B·C·D·(1−slippage))·(1−fee) − A·C) / ((1−fee)·C + B·(1−fee)²)
func OptimalAmountIn(q Quad, fee, slippage float64) *big.Int {
	if !q.valid() || fee < 0 || fee >= 1 || slippage < 0 || slippage >= 1 {
		return big.NewInt(0)
	}

	denom := MinDenominator(q.A, q.B, q.C, q.D)
	a := scaleDown(q.A, denom)
	b := scaleDown(q.B, denom)
	c := scaleDown(q.C, denom)
	d := scaleDown(q.D, denom)

	f := 1 - fee
	disc := a * b * c * d * (1 - slippage)
	if disc < 0 {
		return big.NewInt(0)
	}

	num := math.Sqrt(disc)*f - a*c
	den := f*c + b*f*f
	if den <= 0 {
		return big.NewInt(0)
	}

	amount := num / den
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return big.NewInt(0)
	}

	out := scaleUp(amount, denom)
	if out.Sign() < 0 {
		return big.NewInt(0)
	}
	return out
}

// MaxProfit evaluates the profit of trading amountIn through both pools.
// A result <= 0 means the size is not profitable.
//
//	profit = x·B·D·(1−f)² / (A·C + x·C·(1−f) + x·B·(1−f)²) − x
func MaxProfit(amountIn *big.Int, q Quad, fee float64) *big.Int {
	if amountIn == nil || amountIn.Sign() <= 0 || !q.valid() || fee < 0 || fee >= 1 {
		return big.NewInt(0)
	}

	denom := MinDenominator(q.A, q.B, q.C, q.D, amountIn)
	x := scaleDown(amountIn, denom)
	a := scaleDown(q.A, denom)
	b := scaleDown(q.B, denom)
	c := scaleDown(q.C, denom)
	d := scaleDown(q.D, denom)

	f := 1 - fee
	den := a*c + x*c*f + x*b*f*f
	if den <= 0 {
		return big.NewInt(0)
	}

	profit := x*b*d*f*f/den - x
	if math.IsNaN(profit) || math.IsInf(profit, 0) {
		return big.NewInt(0)
	}
	return scaleUp(profit, denom)
}
