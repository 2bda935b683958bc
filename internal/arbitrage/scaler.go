package arbitrage

import (
	"math/big"
)

// headroom is the number of significant digits kept after scaling
const headroom = 9

type rung struct {
	threshold   *big.Int
	denominator *big.Int
}

// ladder thresholds are compared strictly; each rung keeps `headroom` digits below its threshold
var ladder = []rung{
	{pow10(24), pow10(24 - headroom)},
	{pow10(20), pow10(20 - headroom)},
	{pow10(16), pow10(16 - headroom)},
	{pow10(12), pow10(12 - headroom)},
	{pow10(9), pow10(9 - headroom)},
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Denominator picks the power of ten that value is divided by before float math.
// Values at or below the smallest rung are not scaled.
func Denominator(value *big.Int) *big.Int {
	if value == nil || value.Sign() <= 0 {
		return big.NewInt(1)
	}
	for _, r := range ladder {
		if value.Cmp(r.threshold) > 0 {
			return new(big.Int).Set(r.denominator)
		}
	}
	return big.NewInt(1)
}

// MinDenominator applies Denominator to the smallest of values.
func MinDenominator(values ...*big.Int) *big.Int {
	var lowest *big.Int
	for _, v := range values {
		if v == nil {
			continue
		}
		if lowest == nil || v.Cmp(lowest) < 0 {
			lowest = v
		}
	}
	return Denominator(lowest)
}

// scaleDown divides value by denom and converts to float64
func scaleDown(value, denom *big.Int) float64 {
	q := new(big.Int).Quo(value, denom)
	f, _ := new(big.Float).SetInt(q).Float64()
	return f
}

// scaleUp floors value and multiplies it back by denom
func scaleUp(value float64, denom *big.Int) *big.Int {
	bf := big.NewFloat(value)
	floored, _ := bf.Int(nil)
	if value < 0 && new(big.Float).SetInt(floored).Cmp(bf) != 0 {
		floored.Sub(floored, big.NewInt(1))
	}
	return floored.Mul(floored, denom)
}
