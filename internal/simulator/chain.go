package simulator

import (
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Callee receives flash swap callbacks. caller is the pair that invoked it,
// sender is whoever called the pair's Swap.
type Callee interface {
	UniswapV2Call(caller, sender common.Address, amount0, amount1 *big.Int, data []byte) error
}

// Chain is the in-process execution environment: a ledger plus the deployed
// routers and callback receivers.
type Chain struct {
	*Ledger

	mu      sync.RWMutex
	routers map[common.Address]*Router
	callees map[common.Address]Callee
	log     zerolog.Logger
}

func NewChain(logger zerolog.Logger) *Chain {
	return &Chain{
		Ledger:  NewLedger(),
		routers: make(map[common.Address]*Router),
		callees: make(map[common.Address]Callee),
		log:     logger.With().Str("component", "chain").Logger(),
	}
}

// DeployRouter registers a new venue at address.
func (c *Chain) DeployRouter(name string, address common.Address, feeBps uint64) (*Router, error) {
	if address == (common.Address{}) {
		return nil, fmt.Errorf("deploy router %s: %w", name, ErrZeroAddress)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.routers[address]; ok {
		return nil, fmt.Errorf("deploy router %s: %w", name, ErrRouterExists)
	}
	r := &Router{
		name:    name,
		address: address,
		feeBps:  feeBps,
		chain:   c,
		pairs:   make(map[[2]common.Address]*Pair),
	}
	c.routers[address] = r
	c.log.Debug().Str("router", name).Str("address", address.Hex()).Uint64("feeBps", feeBps).Msg("router deployed")
	return r, nil
}

func (c *Chain) Router(address common.Address) (*Router, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.routers[address]
	if !ok {
		return nil, fmt.Errorf("router %s: %w", address.Hex(), ErrUnknownRouter)
	}
	return r, nil
}

// Routers returns every deployed router ordered by address.
func (c *Chain) Routers() []*Router {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Router, 0, len(c.routers))
	for _, r := range c.routers {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].address.Cmp(out[j].address) < 0
	})
	return out
}

// Pair looks a pair up by address across all routers.
func (c *Chain) Pair(address common.Address) (*Pair, error) {
	for _, r := range c.Routers() {
		for _, p := range r.AllPairs() {
			if p.address == address {
				return p, nil
			}
		}
	}
	return nil, fmt.Errorf("pair %s: %w", address.Hex(), ErrPairNotFound)
}

// Register makes address able to receive flash swap callbacks.
func (c *Chain) Register(address common.Address, callee Callee) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callees[address] = callee
}

func (c *Chain) callee(address common.Address) (Callee, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.callees[address]
	return cl, ok
}
