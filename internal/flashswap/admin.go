package flashswap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/flashswap-arb/internal/access"
)

// idle takes the session lock for an admin call. An aborting loan restores the whole
// ledger, so admin changes are refused while a loan is in flight.
func (e *Executor) idle() (func(), error) {
	if !e.lock.TryLock() {
		return nil, ErrReentrancy
	}
	return e.lock.Unlock, nil
}

// ClaimProfit sends the executor's whole balance of token to the owner.
func (e *Executor) ClaimProfit(caller, token common.Address) (*big.Int, error) {
	if err := access.RequireOwner(e.roles, caller); err != nil {
		return nil, err
	}
	if token == (common.Address{}) {
		return nil, fmt.Errorf("claim: %w", ErrAddressZero)
	}
	release, err := e.idle()
	if err != nil {
		return nil, err
	}
	defer release()
	amount := e.chain.BalanceOf(token, e.address)
	if amount.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	owner := e.roles.Owner()
	if err := e.chain.Transfer(token, e.address, owner, amount); err != nil {
		return nil, err
	}
	e.log.Info().Str("token", token.Hex()).Str("amount", amount.String()).Str("to", owner.Hex()).Msg("profit claimed")
	return amount, nil
}

// SetTrader swaps the delegate that runs repayment routes.
func (e *Executor) SetTrader(caller common.Address, t Trader) error {
	if err := access.RequireOwner(e.roles, caller); err != nil {
		return err
	}
	if t == nil || t.Address() == (common.Address{}) {
		return fmt.Errorf("set trader: %w", ErrAddressZero)
	}
	release, err := e.idle()
	if err != nil {
		return err
	}
	defer release()
	e.mu.Lock()
	defer e.mu.Unlock()
	if t.Address() == e.trader.Address() {
		return fmt.Errorf("set trader: %w", ErrDuplicate)
	}
	e.trader = t
	return nil
}

// SetExecutor moves the Executor capability to principal.
func (e *Executor) SetExecutor(caller, principal common.Address) error {
	if err := access.RequireOwner(e.roles, caller); err != nil {
		return err
	}
	if principal == (common.Address{}) {
		return fmt.Errorf("set executor: %w", ErrAddressZero)
	}
	release, err := e.idle()
	if err != nil {
		return err
	}
	defer release()
	e.mu.Lock()
	defer e.mu.Unlock()
	if principal == e.principal {
		return fmt.Errorf("set executor: %w", ErrDuplicate)
	}
	if e.principal != (common.Address{}) {
		if err := e.roles.Revoke(caller, access.Executor, e.principal); err != nil {
			return err
		}
	}
	if err := e.roles.Grant(caller, access.Executor, principal); err != nil {
		return err
	}
	e.principal = principal
	return nil
}

// ExecutorPrincipal is whoever SetExecutor last named.
func (e *Executor) ExecutorPrincipal() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.principal
}

func (e *Executor) ResetBorrowVenue(caller, venue common.Address) error {
	if err := access.RequireOwner(e.roles, caller); err != nil {
		return err
	}
	if venue == (common.Address{}) {
		return fmt.Errorf("reset borrow venue: %w", ErrAddressZero)
	}
	release, err := e.idle()
	if err != nil {
		return err
	}
	defer release()
	e.mu.Lock()
	defer e.mu.Unlock()
	if venue == e.borrowVenue {
		return fmt.Errorf("reset borrow venue: %w", ErrDuplicate)
	}
	e.borrowVenue = venue
	return nil
}

func (e *Executor) TransferOwnership(caller, newOwner common.Address) error {
	if err := access.RequireOwner(e.roles, caller); err != nil {
		return err
	}
	if newOwner == (common.Address{}) {
		return fmt.Errorf("transfer ownership: %w", ErrAddressZero)
	}
	if newOwner == e.roles.Owner() {
		return fmt.Errorf("transfer ownership: %w", ErrDuplicate)
	}
	release, err := e.idle()
	if err != nil {
		return err
	}
	defer release()
	return e.roles.TransferOwnership(caller, newOwner)
}
