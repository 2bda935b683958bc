package simulator

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Pair is a constant-product pool. Reserves live in the ledger so they revert with it.
type Pair struct {
	address common.Address
	token0  common.Address
	token1  common.Address
	feeBps  uint64
	chain   *Chain

	lock sync.Mutex
}

// sortTokens orders a token pair the way v2 factories do
func sortTokens(a, b common.Address) (common.Address, common.Address, error) {
	if a == b {
		return common.Address{}, common.Address{}, ErrIdenticalAddresses
	}
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	if a == (common.Address{}) {
		return common.Address{}, common.Address{}, ErrZeroAddress
	}
	return a, b, nil
}

// pairAddress derives a deterministic pair address from the router and sorted tokens
func pairAddress(router, token0, token1 common.Address) common.Address {
	return common.BytesToAddress(crypto.Keccak256(router.Bytes(), token0.Bytes(), token1.Bytes())[12:])
}

func (p *Pair) Address() common.Address { return p.address }
func (p *Pair) Token0() common.Address  { return p.token0 }
func (p *Pair) Token1() common.Address  { return p.token1 }

// Reserves returns the pair's recorded reserves.
func (p *Pair) Reserves() (*big.Int, *big.Int) {
	return p.chain.Reserves(p.address)
}

// ReservesFor orients the reserves as (reserveIn, reserveOut) for a swap from tokenIn.
func (p *Pair) ReservesFor(tokenIn common.Address) (*big.Int, *big.Int) {
	r0, r1 := p.Reserves()
	if tokenIn == p.token0 {
		return r0, r1
	}
	return r1, r0
}

// Sync sets the reserves to the pair's current balances.
func (p *Pair) Sync() error {
	return p.chain.setReserves(p.address,
		p.chain.balanceU256(p.token0, p.address),
		p.chain.balanceU256(p.token1, p.address))
}

// Swap sends the requested outputs to `to`, optionally hands control to `to` through
// a flash callback, then checks that enough input arrived to keep k.
func (p *Pair) Swap(sender common.Address, amount0Out, amount1Out *big.Int, to common.Address, data []byte) error {
	if !p.lock.TryLock() {
		return fmt.Errorf("pair %s: %w", p.address.Hex(), ErrLocked)
	}
	defer p.lock.Unlock()

	out0, err := toU256(orZero(amount0Out))
	if err != nil {
		return err
	}
	out1, err := toU256(orZero(amount1Out))
	if err != nil {
		return err
	}
	if out0.IsZero() && out1.IsZero() {
		return ErrInsufficientOutputAmount
	}

	r0, r1 := p.chain.reservesOf(p.address)
	if !out0.Lt(r0) || !out1.Lt(r1) {
		return ErrInsufficientLiquidity
	}
	if to == p.token0 || to == p.token1 {
		return ErrInvalidTo
	}

	// optimistic transfers
	if err := p.send(p.token0, to, out0); err != nil {
		return err
	}
	if err := p.send(p.token1, to, out1); err != nil {
		return err
	}

	if len(data) > 0 {
		callee, ok := p.chain.callee(to)
		if !ok {
			return fmt.Errorf("pair %s to %s: %w", p.address.Hex(), to.Hex(), ErrNotCallee)
		}
		if err := callee.UniswapV2Call(p.address, sender, out0.ToBig(), out1.ToBig(), data); err != nil {
			return fmt.Errorf("flash callback: %w", err)
		}
	}

	bal0 := p.chain.balanceU256(p.token0, p.address)
	bal1 := p.chain.balanceU256(p.token1, p.address)

	in0 := amountIn(bal0, r0, out0)
	in1 := amountIn(bal1, r1, out1)
	if in0.IsZero() && in1.IsZero() {
		return ErrInsufficientInputAmount
	}

	if err := p.checkK(bal0, bal1, in0, in1, r0, r1); err != nil {
		return err
	}
	return p.chain.setReserves(p.address, bal0, bal1)
}

func (p *Pair) send(token, to common.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return p.chain.Transfer(token, p.address, to, amount.ToBig())
}

// amountIn is how much the balance exceeds what the reserve should be after the output left
func amountIn(balance, reserve, out *uint256.Int) *uint256.Int {
	expected := new(uint256.Int).Sub(reserve, out)
	if balance.Gt(expected) {
		return new(uint256.Int).Sub(balance, expected)
	}
	return new(uint256.Int)
}

func (p *Pair) checkK(bal0, bal1, in0, in1, r0, r1 *uint256.Int) error {
	base := uint256.NewInt(10000)
	fee := uint256.NewInt(p.feeBps)

	adj0, o1 := new(uint256.Int).MulOverflow(bal0, base)
	adj1, o2 := new(uint256.Int).MulOverflow(bal1, base)
	adj0.Sub(adj0, new(uint256.Int).Mul(in0, fee))
	adj1.Sub(adj1, new(uint256.Int).Mul(in1, fee))

	lhs, o3 := new(uint256.Int).MulOverflow(adj0, adj1)
	rhs, o4 := new(uint256.Int).MulOverflow(r0, r1)
	rhs, o5 := rhs.MulOverflow(rhs, new(uint256.Int).Mul(base, base))
	if o1 || o2 || o3 || o4 || o5 {
		return ErrOverflow
	}
	if lhs.Lt(rhs) {
		return ErrK
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
