package arbitrage

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/flashswap-arb/internal/route"
)

var ErrNoOpportunity = errors.New("no opportunity")

// executor ABI - only the entry point we call
const executorABI = `[{
	"inputs": [
		{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
		{"internalType": "uint256", "name": "minAmountOut", "type": "uint256"},
		{"components": [
			{"internalType": "address", "name": "router", "type": "address"},
			{"internalType": "address[]", "name": "tokens", "type": "address[]"}
		], "internalType": "struct SinglePath[]", "name": "route", "type": "tuple[]"}
	],
	"name": "makeArbitrage",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

var parsedExecutorABI = mustParseABI(executorABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse executor abi: %v", err))
	}
	return parsed
}

// BuildRoute turns an opportunity into a flash route: borrow the trade token on the
// buy venue, sell it back for the profit token on the sell venue.
func BuildRoute(opp *Opportunity) (route.Route, error) {
	if opp == nil {
		return nil, ErrNoOpportunity
	}
	buy, sell := opp.BuyPair(), opp.SellPair()
	r := route.Route{
		{Router: buy.Venue.Router, Tokens: []common.Address{opp.ProfitToken, opp.TradeToken}},
		{Router: sell.Venue.Router, Tokens: []common.Address{opp.TradeToken, opp.ProfitToken}},
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("build route: %w", err)
	}
	return r, nil
}

// BuildPayload sizes the payload for an opportunity. The minimum output keeps
// (10000-slippageBps)/10000 of the expected proceeds but never drops below the repayment.
func BuildPayload(opp *Opportunity, slippageBps uint64) (route.Payload, error) {
	r, err := BuildRoute(opp)
	if err != nil {
		return route.Payload{}, err
	}
	expected := new(big.Int).Add(opp.AmountIn, opp.Profit)
	minOut := new(big.Int).Mul(expected, big.NewInt(int64(10000-min(slippageBps, 10000))))
	minOut.Quo(minOut, bpsBase)
	if minOut.Cmp(opp.AmountIn) < 0 {
		minOut.Set(opp.AmountIn)
	}
	return route.Payload{
		AmountIn:     new(big.Int).Set(opp.AmountIn),
		MinAmountOut: minOut,
		Route:        r,
	}, nil
}

// creates calldata for the executor's makeArbitrage entry point
func BuildArbitrageCalldata(p route.Payload) ([]byte, error) {
	if err := p.Route.Validate(); err != nil {
		return nil, err
	}
	calldata, err := parsedExecutorABI.Pack("makeArbitrage", p.AmountIn, p.MinAmountOut, route.ToABI(p.Route))
	if err != nil {
		return nil, fmt.Errorf("failed to pack calldata: %w", err)
	}
	return calldata, nil
}
