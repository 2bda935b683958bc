package route

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Payload is the serialized trade request: (amountIn, minAmountOut, route).
type Payload struct {
	AmountIn     *big.Int
	MinAmountOut *big.Int
	Route        Route
}

// ABIPath mirrors one (router, tokens) tuple for abi packing
type ABIPath struct {
	Router common.Address
	Tokens []common.Address
}

// PathsType is the ABI type of a route: (address router, address[] tokens)[]
var PathsType = mustType("tuple[]", []abi.ArgumentMarshaling{
	{Name: "router", Type: "address"},
	{Name: "tokens", Type: "address[]"},
})

var payloadArgs = abi.Arguments{
	{Name: "amountIn", Type: mustType("uint256", nil)},
	{Name: "minAmountOut", Type: mustType("uint256", nil)},
	{Name: "route", Type: PathsType},
}

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Sprintf("route: abi type %s: %v", t, err))
	}
	return typ
}

// ToABI converts a route to the struct slice the abi packer expects.
func ToABI(r Route) []ABIPath {
	out := make([]ABIPath, len(r))
	for i, p := range r {
		out[i] = ABIPath{Router: p.Router, Tokens: p.Tokens}
	}
	return out
}

// Encode validates and abi-encodes a payload.
func Encode(p Payload) ([]byte, error) {
	if p.AmountIn == nil || p.MinAmountOut == nil {
		return nil, fmt.Errorf("%w: missing amount", ErrInvalidRoute)
	}
	if err := p.Route.Validate(); err != nil {
		return nil, err
	}
	data, err := payloadArgs.Pack(p.AmountIn, p.MinAmountOut, ToABI(p.Route))
	if err != nil {
		return nil, fmt.Errorf("pack route: %w", err)
	}
	return data, nil
}

// Decode parses a payload and validates the route before returning it.
func Decode(data []byte) (Payload, error) {
	vals, err := payloadArgs.Unpack(data)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidRoute, err)
	}
	if len(vals) != 3 {
		return Payload{}, fmt.Errorf("%w: unexpected field count %d", ErrInvalidRoute, len(vals))
	}

	amountIn, ok := vals[0].(*big.Int)
	if !ok {
		return Payload{}, fmt.Errorf("%w: amountIn", ErrInvalidRoute)
	}
	minOut, ok := vals[1].(*big.Int)
	if !ok {
		return Payload{}, fmt.Errorf("%w: minAmountOut", ErrInvalidRoute)
	}
	paths := *abi.ConvertType(vals[2], new([]ABIPath)).(*[]ABIPath)

	r := make(Route, len(paths))
	for i, p := range paths {
		r[i] = SinglePath{Router: p.Router, Tokens: p.Tokens}
	}
	if err := r.Validate(); err != nil {
		return Payload{}, err
	}
	return Payload{AmountIn: amountIn, MinAmountOut: minOut, Route: r}, nil
}
