package simulator

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
)

// Router is a v2 venue: it lists pairs like a factory and routes swaps through them.
type Router struct {
	name    string
	address common.Address
	feeBps  uint64
	chain   *Chain

	mu    sync.RWMutex
	pairs map[[2]common.Address]*Pair
}

func (r *Router) Name() string            { return r.name }
func (r *Router) Address() common.Address { return r.address }
func (r *Router) FeeBps() uint64          { return r.feeBps }

// Venue describes the router for the off-chain side.
func (r *Router) Venue() arbitrage.Venue {
	return arbitrage.Venue{Name: r.name, Factory: r.address, Router: r.address, FeeBps: r.feeBps}
}

func (r *Router) CreatePair(tokenA, tokenB common.Address) (*Pair, error) {
	t0, t1, err := sortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]common.Address{t0, t1}
	if _, ok := r.pairs[key]; ok {
		return nil, ErrPairExists
	}
	p := &Pair{
		address: pairAddress(r.address, t0, t1),
		token0:  t0,
		token1:  t1,
		feeBps:  r.feeBps,
		chain:   r.chain,
	}
	r.pairs[key] = p
	return p, nil
}

func (r *Router) GetPair(tokenA, tokenB common.Address) (*Pair, error) {
	t0, t1, err := sortTokens(tokenA, tokenB)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pairs[[2]common.Address{t0, t1}]
	if !ok {
		return nil, fmt.Errorf("%s %s/%s: %w", r.name, tokenA.Hex(), tokenB.Hex(), ErrPairNotFound)
	}
	return p, nil
}

// AllPairs returns the router's pairs ordered by address.
func (r *Router) AllPairs() []*Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].address.Cmp(out[j].address) < 0
	})
	return out
}

// Listing returns the router's pairs as off-chain metadata.
func (r *Router) Listing() arbitrage.VenueListing {
	pairs := r.AllPairs()
	listing := arbitrage.VenueListing{Venue: r.Venue(), Pairs: make([]arbitrage.PairInfo, 0, len(pairs))}
	for _, p := range pairs {
		listing.Pairs = append(listing.Pairs, arbitrage.PairInfo{
			Address: p.address,
			Token0:  p.token0,
			Token1:  p.token1,
			Venue:   listing.Venue,
		})
	}
	return listing
}

// AddLiquidity deposits both amounts from provider, creating the pair if needed.
func (r *Router) AddLiquidity(provider, tokenA, tokenB common.Address, amountA, amountB *big.Int) (*Pair, error) {
	p, err := r.GetPair(tokenA, tokenB)
	if err != nil {
		if p, err = r.CreatePair(tokenA, tokenB); err != nil {
			return nil, err
		}
	}
	err = r.chain.Atomic(func() error {
		if err := r.chain.Transfer(tokenA, provider, p.address, amountA); err != nil {
			return err
		}
		if err := r.chain.Transfer(tokenB, provider, p.address, amountB); err != nil {
			return err
		}
		return p.Sync()
	})
	if err != nil {
		return nil, fmt.Errorf("add liquidity: %w", err)
	}
	return p, nil
}

func (r *Router) hops(path []common.Address) ([]arbitrage.Hop, error) {
	if len(path) < 2 {
		return nil, ErrInvalidPath
	}
	hops := make([]arbitrage.Hop, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		p, err := r.GetPair(path[i], path[i+1])
		if err != nil {
			return nil, err
		}
		in, out := p.ReservesFor(path[i])
		hops = append(hops, arbitrage.Hop{ReserveIn: in, ReserveOut: out, FeeBps: r.feeBps})
	}
	return hops, nil
}

// GetAmountsOut quotes every amount along path for amountIn.
func (r *Router) GetAmountsOut(amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	hops, err := r.hops(path)
	if err != nil {
		return nil, err
	}
	return arbitrage.GetAmountsOut(amountIn, hops...)
}

// GetAmountsIn quotes the inputs needed along path to receive amountOut.
func (r *Router) GetAmountsIn(amountOut *big.Int, path []common.Address) ([]*big.Int, error) {
	hops, err := r.hops(path)
	if err != nil {
		return nil, err
	}
	amounts := make([]*big.Int, len(path))
	amounts[len(amounts)-1] = new(big.Int).Set(amountOut)
	for i := len(hops) - 1; i >= 0; i-- {
		in, err := arbitrage.GetAmountIn(amounts[i+1], hops[i].ReserveIn, hops[i].ReserveOut, hops[i].FeeBps)
		if err != nil {
			return nil, err
		}
		amounts[i] = in
	}
	return amounts, nil
}

// SwapExactTokensForTokens pulls amountIn from caller and swaps it hop by hop, sending
// the final output to `to`.
func (r *Router) SwapExactTokensForTokens(caller common.Address, amountIn, amountOutMin *big.Int, path []common.Address, to common.Address) ([]*big.Int, error) {
	amounts, err := r.GetAmountsOut(amountIn, path)
	if err != nil {
		return nil, err
	}
	if amountOutMin != nil && amounts[len(amounts)-1].Cmp(amountOutMin) < 0 {
		return nil, ErrInsufficientOutputAmount
	}

	err = r.chain.Atomic(func() error {
		first, err := r.GetPair(path[0], path[1])
		if err != nil {
			return err
		}
		if err := r.chain.Transfer(path[0], caller, first.address, amountIn); err != nil {
			return err
		}
		for i := 0; i+1 < len(path); i++ {
			p, err := r.GetPair(path[i], path[i+1])
			if err != nil {
				return err
			}
			recipient := to
			if i+2 < len(path) {
				next, err := r.GetPair(path[i+1], path[i+2])
				if err != nil {
					return err
				}
				recipient = next.address
			}
			out0, out1 := new(big.Int), amounts[i+1]
			if path[i] == p.token1 {
				out0, out1 = amounts[i+1], new(big.Int)
			}
			if err := p.Swap(r.address, out0, out1, recipient, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s swap: %w", r.name, err)
	}
	return amounts, nil
}
