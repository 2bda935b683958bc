package simulator

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrInsufficientBalance      = errors.New("insufficient balance")
	ErrInsufficientLiquidity    = errors.New("insufficient liquidity")
	ErrInsufficientInputAmount  = errors.New("insufficient input amount")
	ErrInsufficientOutputAmount = errors.New("insufficient output amount")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInvalidPath              = errors.New("invalid path")
	ErrInvalidTo                = errors.New("invalid to")
	ErrIdenticalAddresses       = errors.New("identical addresses")
	ErrZeroAddress              = errors.New("zero address")
	ErrK                        = errors.New("k")
	ErrLocked                   = errors.New("locked")
	ErrOverflow                 = errors.New("overflow")
	ErrPairExists               = errors.New("pair exists")
	ErrPairNotFound             = errors.New("pair not exists")
	ErrRouterExists             = errors.New("router exists")
	ErrUnknownRouter            = errors.New("unknown router")
	ErrNotCallee                = errors.New("recipient cannot receive flash callback")
	ErrEmptyBundle              = errors.New("empty bundle")
)

// maxReserve is the uint112 ceiling pairs keep their reserves under
var maxReserve = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 112), uint256.NewInt(1))

type reserves struct {
	r0, r1 *uint256.Int
}

// state is everything a snapshot captures
type state struct {
	balances map[common.Address]map[common.Address]*uint256.Int // token -> holder -> balance
	reserves map[common.Address]reserves                        // pair -> reserves
}

func newState() *state {
	return &state{
		balances: make(map[common.Address]map[common.Address]*uint256.Int),
		reserves: make(map[common.Address]reserves),
	}
}

func (s *state) copy() *state {
	snap := newState()
	for token, holders := range s.balances {
		m := make(map[common.Address]*uint256.Int, len(holders))
		for holder, bal := range holders {
			m[holder] = bal.Clone()
		}
		snap.balances[token] = m
	}
	for pair, r := range s.reserves {
		snap.reserves[pair] = reserves{r0: r.r0.Clone(), r1: r.r1.Clone()}
	}
	return snap
}

// Step is one named action of a bundle
type Step struct {
	Name string
	Run  func() error
}

type BundleResult struct {
	Success    bool
	Completed  int
	RevertedAt int
	Err        error
}
