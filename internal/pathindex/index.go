package pathindex

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
)

// Result is the output of Index: every tradable path, plus the pools they touch in
// first-seen order
type Result struct {
	Paths []arbitrage.Path
	Pools []common.Address
}

// tokenSet is an order-insensitive key for a pair's tokens
type tokenSet [2]common.Address

func keyOf(p arbitrage.PairInfo) tokenSet {
	if bytes.Compare(p.Token0.Bytes(), p.Token1.Bytes()) > 0 {
		return tokenSet{p.Token1, p.Token0}
	}
	return tokenSet{p.Token0, p.Token1}
}

// Index matches pools with the same token set across every pair of distinct venues,
// keeping only those that trade at least one base token.
func Index(listings []arbitrage.VenueListing, baseTokens []common.Address) Result {
	bases := make(map[common.Address]struct{}, len(baseTokens))
	for _, t := range baseTokens {
		bases[t] = struct{}{}
	}
	hasBase := func(k tokenSet) bool {
		_, ok0 := bases[k[0]]
		_, ok1 := bases[k[1]]
		return ok0 || ok1
	}

	// per venue: token set -> pools, in listing order
	bySet := make([]map[tokenSet][]arbitrage.PairInfo, len(listings))
	for i, l := range listings {
		m := make(map[tokenSet][]arbitrage.PairInfo)
		for _, p := range l.Pairs {
			k := keyOf(p)
			if !hasBase(k) {
				continue
			}
			m[k] = append(m[k], p)
		}
		bySet[i] = m
	}

	var res Result
	seenVenues := make(map[[2]common.Address]struct{})
	seenPaths := make(map[[2]common.Address]struct{})
	seenPools := make(map[common.Address]struct{})
	addPool := func(a common.Address) {
		if _, ok := seenPools[a]; ok {
			return
		}
		seenPools[a] = struct{}{}
		res.Pools = append(res.Pools, a)
	}

	for _, a := range listings {
		for j, b := range listings {
			// a venue is its factory; names are only labels
			ka, kb := a.Venue.Factory, b.Venue.Factory
			if ka == kb {
				continue
			}
			if _, ok := seenVenues[[2]common.Address{ka, kb}]; ok {
				continue
			}
			seenVenues[[2]common.Address{ka, kb}] = struct{}{}
			seenVenues[[2]common.Address{kb, ka}] = struct{}{}

			for _, p0 := range a.Pairs {
				k := keyOf(p0)
				for _, p1 := range bySet[j][k] {
					if p0.Address == p1.Address {
						continue
					}
					id := [2]common.Address{p0.Address, p1.Address}
					if _, ok := seenPaths[id]; ok {
						continue
					}
					seenPaths[id] = struct{}{}
					seenPaths[[2]common.Address{p1.Address, p0.Address}] = struct{}{}

					res.Paths = append(res.Paths, arbitrage.Path{Pair0: p0, Pair1: p1})
					addPool(p0.Address)
					addPool(p1.Address)
				}
			}
		}
	}
	return res
}
