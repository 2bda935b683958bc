package arbitrage

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNoBaseToken  = errors.New("path has no base token")
	ErrInvalidPrice = errors.New("invalid price")
)

// Detector sizes two-venue paths against a fixed set of base tokens
type Detector struct {
	fee      float64
	slippage float64
	bases    map[common.Address]struct{}
}

func NewDetector(baseTokens []common.Address, fee, slippage float64) *Detector {
	bases := make(map[common.Address]struct{}, len(baseTokens))
	for _, t := range baseTokens {
		bases[t] = struct{}{}
	}
	return &Detector{fee: fee, slippage: slippage, bases: bases}
}

func (d *Detector) IsBase(token common.Address) bool {
	_, ok := d.bases[token]
	return ok
}

// BaseToken picks the profit token of a path, token0 first.
func (d *Detector) BaseToken(p Path) (common.Address, bool) {
	if d.IsBase(p.Pair0.Token0) {
		return p.Pair0.Token0, true
	}
	if d.IsBase(p.Pair0.Token1) {
		return p.Pair0.Token1, true
	}
	return common.Address{}, false
}

// Orient builds the solver quad for buying on one pool of the path and selling on the other.
func Orient(p Path, r0, r1 ReservePair, profit common.Address, dir Direction) Quad {
	trade := p.Pair0.Other(profit)
	if dir == Pair1First {
		return Quad{
			A: r1.Of(p.Pair1, profit),
			B: r1.Of(p.Pair1, trade),
			C: r0.Of(p.Pair0, trade),
			D: r0.Of(p.Pair0, profit),
		}
	}
	return Quad{
		A: r0.Of(p.Pair0, profit),
		B: r0.Of(p.Pair0, trade),
		C: r1.Of(p.Pair1, trade),
		D: r1.Of(p.Pair1, profit),
	}
}

func (d *Detector) pathFee(p Path) float64 {
	fee := p.Pair0.Venue.Fee()
	if f := p.Pair1.Venue.Fee(); f > fee {
		fee = f
	}
	if fee == 0 {
		return d.fee
	}
	return fee
}

// Evaluate checks both directions of a path and returns the more profitable one.
// A nil opportunity with a nil error means the path is not profitable this cycle.
func (d *Detector) Evaluate(p Path, r0, r1 ReservePair) (*Opportunity, error) {
	if _, ok := PriceD(r0); !ok {
		return nil, fmt.Errorf("pool %s: %w", p.Pair0.Address.Hex(), ErrInvalidPrice)
	}
	if _, ok := PriceD(r1); !ok {
		return nil, fmt.Errorf("pool %s: %w", p.Pair1.Address.Hex(), ErrInvalidPrice)
	}

	profit, ok := d.BaseToken(p)
	if !ok {
		return nil, ErrNoBaseToken
	}

	fee := d.pathFee(p)
	forward := Orient(p, r0, r1, profit, Pair0First)
	backward := Orient(p, r0, r1, profit, Pair1First)

	dir, quad := Pair0First, forward
	amount := OptimalAmountIn(forward, fee, d.slippage)
	if alt := OptimalAmountIn(backward, fee, d.slippage); alt.Cmp(amount) > 0 {
		dir, quad, amount = Pair1First, backward, alt
	}
	if amount.Sign() <= 0 {
		return nil, nil
	}

	expected := MaxProfit(amount, quad, fee)
	if expected.Sign() <= 0 {
		return nil, nil
	}

	return &Opportunity{
		Path:        p,
		Direction:   dir,
		ProfitToken: profit,
		TradeToken:  p.Pair0.Other(profit),
		Quad:        quad,
		AmountIn:    amount,
		Profit:      expected,
	}, nil
}
