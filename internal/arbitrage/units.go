package arbitrage

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// displayPlaces is the precision amounts are rendered and compared at
const displayPlaces = 3

// FormatAmount renders a raw token amount in whole units with three decimals.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0.000"
	}
	return decimal.NewFromBigInt(amount, int32(-decimals)).StringFixed(displayPlaces)
}

// Significant reports whether amount is non-zero at three decimals of precision.
func Significant(amount *big.Int, decimals int) bool {
	if amount == nil {
		return false
	}
	return !decimal.NewFromBigInt(amount, int32(-decimals)).Truncate(displayPlaces).IsZero()
}
