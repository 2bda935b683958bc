package simulator

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/flashswap-arb/internal/eth"
)

var ErrUnsupportedCall = errors.New("unsupported call")

var (
	pairViews    = mustParse(eth.UniswapV2PairABI)
	factoryViews = mustParse(eth.UniswapV2FactoryABI)
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// CallView answers read-only calls against the current state: getReserves, token0
// and token1 on pairs, allPairsLength and allPairs on routers (each router is its
// own factory). It has the multicall.Handler shape.
func (c *Chain) CallView(target common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: short calldata", ErrUnsupportedCall)
	}
	if r, err := c.Router(target); err == nil {
		return r.factoryView(data)
	}
	p, err := c.Pair(target)
	if err != nil {
		return nil, err
	}
	return p.view(data)
}

func (p *Pair) view(data []byte) ([]byte, error) {
	method, err := pairViews.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCall, err)
	}
	switch method.Name {
	case "getReserves":
		r0, r1 := p.Reserves()
		return method.Outputs.Pack(r0, r1, uint32(0))
	case "token0":
		return method.Outputs.Pack(p.token0)
	case "token1":
		return method.Outputs.Pack(p.token1)
	}
	return nil, fmt.Errorf("%w: pair.%s", ErrUnsupportedCall, method.Name)
}

func (r *Router) factoryView(data []byte) ([]byte, error) {
	method, err := factoryViews.MethodById(data[:4])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedCall, err)
	}
	pairs := r.AllPairs()
	switch method.Name {
	case "allPairsLength":
		return method.Outputs.Pack(big.NewInt(int64(len(pairs))))
	case "allPairs":
		args, err := method.Inputs.Unpack(data[4:])
		if err != nil {
			return nil, err
		}
		i, ok := args[0].(*big.Int)
		if !ok || !i.IsInt64() || i.Int64() < 0 || i.Int64() >= int64(len(pairs)) {
			return nil, fmt.Errorf("%w: allPairs index out of range", ErrInvalidAmount)
		}
		return method.Outputs.Pack(pairs[i.Int64()].address)
	}
	return nil, fmt.Errorf("%w: factory.%s", ErrUnsupportedCall, method.Name)
}
