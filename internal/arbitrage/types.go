package arbitrage

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultFeeBps is the uniswapv2 swap fee (0.3%)
const DefaultFeeBps = 30

// a Venue is a uniswapv2 style deployment: a factory that lists pairs and a router that swaps through them
type Venue struct {
	Name    string
	Factory common.Address
	Router  common.Address
	FeeBps  uint64
}

// Key identifies a venue by its lowercased name.
func (v Venue) Key() string {
	return strings.ToLower(v.Name)
}

// Fee returns the venue fee as a fraction.
func (v Venue) Fee() float64 {
	return float64(v.FeeBps) / 10000
}

// PairInfo is the static metadata of a pool
type PairInfo struct {
	Address common.Address
	Token0  common.Address
	Token1  common.Address
	Venue   Venue
}

// Has reports whether token is one of the pair's tokens.
func (p PairInfo) Has(token common.Address) bool {
	return p.Token0 == token || p.Token1 == token
}

// Other returns the token on the opposite side of the pair.
func (p PairInfo) Other(token common.Address) common.Address {
	if p.Token0 == token {
		return p.Token1
	}
	return p.Token0
}

// SameTokens reports whether both pairs trade the same token set, ignoring order.
func (p PairInfo) SameTokens(o PairInfo) bool {
	return (p.Token0 == o.Token0 && p.Token1 == o.Token1) ||
		(p.Token0 == o.Token1 && p.Token1 == o.Token0)
}

// VenueListing groups the pairs discovered on one venue
type VenueListing struct {
	Venue Venue
	Pairs []PairInfo
}

// Path is a tradable two-venue path: two pools on different venues with the same token set
type Path struct {
	Pair0 PairInfo
	Pair1 PairInfo
}

// ReservePair is a reserve snapshot of a single pool
type ReservePair struct {
	Reserve0 *big.Int
	Reserve1 *big.Int
}

// Of returns the reserve held for token in pair.
func (r ReservePair) Of(pair PairInfo, token common.Address) *big.Int {
	if pair.Token0 == token {
		return r.Reserve0
	}
	return r.Reserve1
}

// Quad holds the solver inputs. A/B are the first venue's (profit, trade) reserves,
// C/D the second venue's (trade, profit) reserves.
type Quad struct {
	A, B, C, D *big.Int
}

// Direction says which pool of a path is bought from (and borrowed from).
type Direction int

const (
	Pair0First Direction = iota
	Pair1First
)

func (d Direction) String() string {
	if d == Pair1First {
		return "pair1->pair0"
	}
	return "pair0->pair1"
}

// opportunity represents a detected arbitrage opportunity
type Opportunity struct {
	Path        Path
	Direction   Direction
	ProfitToken common.Address
	TradeToken  common.Address
	Quad        Quad
	AmountIn    *big.Int
	Profit      *big.Int
}

// BuyPair is the pool the trade token is bought from.
func (o *Opportunity) BuyPair() PairInfo {
	if o.Direction == Pair1First {
		return o.Path.Pair1
	}
	return o.Path.Pair0
}

// SellPair is the pool the trade token is sold back into.
func (o *Opportunity) SellPair() PairInfo {
	if o.Direction == Pair1First {
		return o.Path.Pair0
	}
	return o.Path.Pair1
}

// Spread is how much more the sell pool pays for the trade token than the buy pool
// charges, in percent of spot price.
func (o *Opportunity) Spread() float64 {
	buy := CalculatePrice(o.Quad.A, o.Quad.B, 0, 0)
	sell := CalculatePrice(o.Quad.D, o.Quad.C, 0, 0)
	return ComparePrices(buy, sell)
}
