package simulator

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger holds token balances and pair reserves with snapshot/revert.
// Snapshots are LIFO; atomic units must be driven from one goroutine at a time.
type Ledger struct {
	mu    sync.RWMutex
	state *state

	// snapshot for revert
	snapshots []*state
}

func NewLedger() *Ledger {
	return &Ledger{state: newState(), snapshots: make([]*state, 0)}
}

func toU256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

func (l *Ledger) balance(token, holder common.Address) *uint256.Int {
	if bal, ok := l.state.balances[token][holder]; ok {
		return bal
	}
	return new(uint256.Int)
}

func (l *Ledger) setBalance(token, holder common.Address, bal *uint256.Int) {
	holders := l.state.balances[token]
	if holders == nil {
		holders = make(map[common.Address]*uint256.Int)
		l.state.balances[token] = holders
	}
	holders[holder] = bal
}

// BalanceOf returns holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance(token, holder).ToBig()
}

// Mint credits amount of token to holder.
func (l *Ledger) Mint(token, to common.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	sum, overflow := new(uint256.Int).AddOverflow(l.balance(token, to), v)
	if overflow {
		return fmt.Errorf("mint: %w", ErrOverflow)
	}
	l.setBalance(token, to, sum)
	return nil
}

// Transfer moves amount of token from one holder to another.
func (l *Ledger) Transfer(token, from, to common.Address, amount *big.Int) error {
	v, err := toU256(amount)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(token, from, to, v)
}

func (l *Ledger) transfer(token, from, to common.Address, v *uint256.Int) error {
	if to == (common.Address{}) {
		return fmt.Errorf("transfer: %w", ErrZeroAddress)
	}
	if v.IsZero() {
		return nil
	}
	fromBal := l.balance(token, from)
	if fromBal.Lt(v) {
		return fmt.Errorf("transfer %s of %s from %s: %w", v.Dec(), token.Hex(), from.Hex(), ErrInsufficientBalance)
	}
	l.setBalance(token, from, new(uint256.Int).Sub(fromBal, v))

	toBal, overflow := new(uint256.Int).AddOverflow(l.balance(token, to), v)
	if overflow {
		return fmt.Errorf("transfer: %w", ErrOverflow)
	}
	l.setBalance(token, to, toBal)
	return nil
}

// Reserves returns the recorded reserves of a pair.
func (l *Ledger) Reserves(pair common.Address) (*big.Int, *big.Int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.state.reserves[pair]
	if !ok {
		return new(big.Int), new(big.Int)
	}
	return r.r0.ToBig(), r.r1.ToBig()
}

func (l *Ledger) reservesOf(pair common.Address) (*uint256.Int, *uint256.Int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	r, ok := l.state.reserves[pair]
	if !ok {
		return new(uint256.Int), new(uint256.Int)
	}
	return r.r0.Clone(), r.r1.Clone()
}

func (l *Ledger) setReserves(pair common.Address, r0, r1 *uint256.Int) error {
	if r0.Gt(maxReserve) || r1.Gt(maxReserve) {
		return ErrOverflow
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.reserves[pair] = reserves{r0: r0.Clone(), r1: r1.Clone()}
	return nil
}

func (l *Ledger) balanceU256(token, holder common.Address) *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balance(token, holder).Clone()
}

// snapshot creates a revert point
func (l *Ledger) Snapshot() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snapshots = append(l.snapshots, l.state.copy())
	return len(l.snapshots) - 1
}

func (l *Ledger) RevertToSnapshot(snapID int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if snapID < 0 || snapID >= len(l.snapshots) {
		return fmt.Errorf("invalid snapshot id: %d", snapID)
	}

	l.state = l.snapshots[snapID]
	l.snapshots = l.snapshots[:snapID]
	return nil
}

// discard drops a revert point and keeps the current state
func (l *Ledger) discard(snapID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if snapID >= 0 && snapID < len(l.snapshots) {
		l.snapshots = l.snapshots[:snapID]
	}
}
