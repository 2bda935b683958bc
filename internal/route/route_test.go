package route

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	routerX = common.HexToAddress("0x1000000000000000000000000000000000000001")
	routerY = common.HexToAddress("0x1000000000000000000000000000000000000002")
	usdt    = common.HexToAddress("0x2000000000000000000000000000000000000001")
	token   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	weth    = common.HexToAddress("0x2000000000000000000000000000000000000003")
)

func twoVenueRoute() Route {
	return Route{
		{Router: routerX, Tokens: []common.Address{usdt, token}},
		{Router: routerY, Tokens: []common.Address{token, usdt}},
	}
}

func TestValidate(t *testing.T) {
	testCases := []struct {
		name    string
		route   Route
		wantErr error
	}{
		{name: "two venues", route: twoVenueRoute()},
		{
			name: "multi hop",
			route: Route{
				{Router: routerX, Tokens: []common.Address{usdt, weth, token}},
				{Router: routerY, Tokens: []common.Address{token, usdt}},
			},
		},
		{name: "empty", route: Route{}, wantErr: ErrInvalidRoute},
		{
			name:    "single token path",
			route:   Route{{Router: routerX, Tokens: []common.Address{usdt}}},
			wantErr: ErrInvalidRoute,
		},
		{
			name:    "zero router",
			route:   Route{{Tokens: []common.Address{usdt, token}}},
			wantErr: ErrZeroAddress,
		},
		{
			name:    "zero token",
			route:   Route{{Router: routerX, Tokens: []common.Address{usdt, {}}}},
			wantErr: ErrZeroAddress,
		},
		{
			name: "broken chain",
			route: Route{
				{Router: routerX, Tokens: []common.Address{usdt, token}},
				{Router: routerY, Tokens: []common.Address{weth, usdt}},
			},
			wantErr: ErrInconsistentRoute,
		},
		{
			name: "shape is checked before addresses",
			route: Route{
				{Tokens: []common.Address{usdt, token}},
				{Router: routerY, Tokens: []common.Address{token}},
			},
			wantErr: ErrInvalidRoute,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.route.Validate()
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidateBorrowPath(t *testing.T) {
	for _, n := range []int{0, 1, 3} {
		tokens := make([]common.Address, n)
		for i := range tokens {
			tokens[i] = usdt
		}
		err := ValidateBorrowPath(SinglePath{Router: routerX, Tokens: tokens})
		assert.ErrorIs(t, err, ErrInvalidSinglePath, "tokens=%d", n)
	}
	assert.NoError(t, ValidateBorrowPath(SinglePath{Router: routerX, Tokens: []common.Address{usdt, token}}))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	one := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	payloads := []Payload{
		{AmountIn: one, MinAmountOut: big.NewInt(0), Route: twoVenueRoute()},
		{
			AmountIn:     new(big.Int).Mul(one, big.NewInt(123456)),
			MinAmountOut: new(big.Int).Mul(one, big.NewInt(123457)),
			Route: Route{
				{Router: routerX, Tokens: []common.Address{usdt, weth, token}},
				{Router: routerY, Tokens: []common.Address{token, weth}},
				{Router: routerX, Tokens: []common.Address{weth, usdt}},
			},
		},
	}

	for _, p := range payloads {
		data, err := Encode(p)
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, 0, p.AmountIn.Cmp(got.AmountIn))
		assert.Equal(t, 0, p.MinAmountOut.Cmp(got.MinAmountOut))
		assert.Equal(t, p.Route, got.Route)
	}
}

func TestEncodeRejectsInvalidRoute(t *testing.T) {
	_, err := Encode(Payload{AmountIn: big.NewInt(1), MinAmountOut: big.NewInt(0)})
	assert.ErrorIs(t, err, ErrInvalidRoute)
}

func TestDecodeValidatesEagerly(t *testing.T) {
	broken := Route{
		{Router: routerX, Tokens: []common.Address{usdt, token}},
		{Router: routerY, Tokens: []common.Address{weth, usdt}},
	}
	data, err := payloadArgs.Pack(big.NewInt(1), big.NewInt(0), ToABI(broken))
	require.NoError(t, err)

	_, err = Decode(data)
	assert.ErrorIs(t, err, ErrInconsistentRoute)

	_, err = Decode([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidRoute)
}
