package arbitrage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAmountOut(t *testing.T) {
	testCases := []struct {
		name       string
		amountIn   *big.Int
		reserveIn  *big.Int
		reserveOut *big.Int
		feeBps     uint64
		want       *big.Int
		wantErr    error
	}{
		{
			name:       "one unit into 100/200 pool",
			amountIn:   units(1),
			reserveIn:  units(100),
			reserveOut: units(200),
			feeBps:     30,
			want:       newBigIntFromString("1974316068794122597"),
		},
		{
			name:       "small balanced pool",
			amountIn:   big.NewInt(1000),
			reserveIn:  big.NewInt(1_000_000),
			reserveOut: big.NewInt(1_000_000),
			feeBps:     30,
			want:       big.NewInt(996),
		},
		{
			name:       "one percent fee",
			amountIn:   big.NewInt(1_000_000),
			reserveIn:  big.NewInt(1_000_000_000_000),
			reserveOut: newBigIntFromString("500000000000000000000"),
			feeBps:     100,
			want:       big.NewInt(494999509950485),
		},
		{name: "zero amount", amountIn: big.NewInt(0), reserveIn: units(1), reserveOut: units(1), feeBps: 30, wantErr: ErrInsufficientAmount},
		{name: "nil amount", reserveIn: units(1), reserveOut: units(1), feeBps: 30, wantErr: ErrInsufficientAmount},
		{name: "empty pool", amountIn: units(1), reserveIn: big.NewInt(0), reserveOut: units(1), feeBps: 30, wantErr: ErrInsufficientLiquidity},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetAmountOut(tc.amountIn, tc.reserveIn, tc.reserveOut, tc.feeBps)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want.String(), got.String())
		})
	}
}

func TestGetAmountIn(t *testing.T) {
	in, err := GetAmountIn(units(1), units(100), units(200), 30)
	require.NoError(t, err)
	assert.Equal(t, "504024636724243082", in.String())

	// paying the quoted input always buys at least the requested output
	out, err := GetAmountOut(in, units(100), units(200), 30)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.Cmp(units(1)), 0)

	_, err = GetAmountIn(units(200), units(100), units(200), 30)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	_, err = GetAmountIn(big.NewInt(0), units(100), units(200), 30)
	assert.ErrorIs(t, err, ErrInsufficientAmount)
}

func TestGetAmountsOutChainsHops(t *testing.T) {
	hops := []Hop{
		{ReserveIn: units(100), ReserveOut: units(200), FeeBps: 30},
		{ReserveIn: units(300), ReserveOut: units(150), FeeBps: 30},
	}
	amounts, err := GetAmountsOut(units(1), hops...)
	require.NoError(t, err)
	require.Len(t, amounts, 3)

	first, _ := GetAmountOut(units(1), units(100), units(200), 30)
	second, _ := GetAmountOut(first, units(300), units(150), 30)
	assert.Equal(t, first.String(), amounts[1].String())
	assert.Equal(t, second.String(), amounts[2].String())

	_, err = GetAmountsOut(units(1))
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestPriceD(t *testing.T) {
	p, ok := PriceD(ReservePair{Reserve0: big.NewInt(3), Reserve1: big.NewInt(2)})
	require.True(t, ok)
	assert.Equal(t, "1500000000", p.String())

	_, ok = PriceD(ReservePair{Reserve0: big.NewInt(3), Reserve1: big.NewInt(0)})
	assert.False(t, ok)

	// an empty reserve0 is a valid (zero) price
	p, ok = PriceD(ReservePair{Reserve0: big.NewInt(0), Reserve1: big.NewInt(2)})
	require.True(t, ok)
	assert.Zero(t, p.Sign())
}

func TestComparePrices(t *testing.T) {
	assert.InDelta(t, 10.0, ComparePrices(big.NewFloat(110), big.NewFloat(100)), 1e-9)
	assert.InDelta(t, 10.0, ComparePrices(big.NewFloat(100), big.NewFloat(110)), 1e-9)
	assert.Zero(t, ComparePrices(big.NewFloat(1), big.NewFloat(1)))
}

func TestCalculatePriceAdjustsDecimals(t *testing.T) {
	// 2,000,000 USDC (6 decimals) against 1,000 WETH (18 decimals)
	price := CalculatePrice(big.NewInt(2_000_000_000_000), units(1_000), 6, 18)
	f, _ := price.Float64()
	assert.InDelta(t, 2000.0, f, 1e-6)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1.235", FormatAmount(newBigIntFromString("1234567890000000000"), 18))
	assert.Equal(t, "0.000", FormatAmount(nil, 18))
	assert.Equal(t, "12.500", FormatAmount(big.NewInt(12_500_000), 6))

	assert.True(t, Significant(big.NewInt(1_000), 6))
	assert.False(t, Significant(big.NewInt(999), 6))
	assert.False(t, Significant(nil, 18))
}
