package flashswap

import (
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulkyeet/flashswap-arb/internal/access"
	"github.com/pulkyeet/flashswap-arb/internal/route"
	"github.com/pulkyeet/flashswap-arb/internal/simulator"
)

// Trader executes the repayment side of a loan and sends the output back to caller.
type Trader interface {
	Address() common.Address
	Execute(caller common.Address, amountIn, minAmountOut *big.Int, r route.Route) (*big.Int, error)
}

type Option func(*Executor)

// WithMinProfit sets the smallest surplus a loan must leave behind. Defaults to 1.
func WithMinProfit(v *big.Int) Option {
	return func(e *Executor) {
		if v != nil && v.Sign() > 0 {
			e.minProfit = new(big.Int).Set(v)
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) {
		e.log = logger
	}
}

// Executor borrows from a pair, lets the trader run the repayment route inside the
// pair's callback, repays the pair and keeps the surplus.
type Executor struct {
	address common.Address
	chain   *simulator.Chain
	roles   *access.Roles

	mu          sync.RWMutex
	trader      Trader
	principal   common.Address // holder of the Executor capability
	borrowVenue common.Address
	minProfit   *big.Int

	lock    sync.Mutex
	session atomic.Pointer[LoanSession]

	log zerolog.Logger
}

// New deploys an executor at address and registers it for flash callbacks.
func New(address common.Address, chain *simulator.Chain, roles *access.Roles, trader Trader, borrowVenue common.Address, opts ...Option) (*Executor, error) {
	if address == (common.Address{}) || borrowVenue == (common.Address{}) {
		return nil, fmt.Errorf("new executor: %w", ErrAddressZero)
	}
	if trader == nil || trader.Address() == (common.Address{}) {
		return nil, fmt.Errorf("new executor: trader: %w", ErrAddressZero)
	}

	e := &Executor{
		address:     address,
		chain:       chain,
		roles:       roles,
		trader:      trader,
		borrowVenue: borrowVenue,
		minProfit:   big.NewInt(1),
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With().Str("component", "flashswap").Str("address", address.Hex()).Logger()

	chain.Register(address, e)
	return e, nil
}

func (e *Executor) Address() common.Address { return e.address }
func (e *Executor) Owner() common.Address   { return e.roles.Owner() }

func (e *Executor) Trader() Trader {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.trader
}

func (e *Executor) BorrowVenue() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.borrowVenue
}

func (e *Executor) MinProfit() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return new(big.Int).Set(e.minProfit)
}

// ActiveSession returns the loan in flight, or nil when idle.
func (e *Executor) ActiveSession() *LoanSession {
	return e.session.Load()
}

// Claimable is the surplus the executor holds in token.
func (e *Executor) Claimable(token common.Address) *big.Int {
	return e.chain.BalanceOf(token, e.address)
}

func (e *Executor) checkRequest(req LoanRequest) error {
	if req.BorrowToken == (common.Address{}) || req.RepayToken == (common.Address{}) {
		return fmt.Errorf("loan tokens: %w", ErrAddressZero)
	}
	if req.BorrowAmount == nil || req.BorrowAmount.Sign() <= 0 {
		return fmt.Errorf("%w: borrow amount must be positive", ErrInvalidLoan)
	}
	if req.Repayment != nil && req.Repayment.Sign() <= 0 {
		return fmt.Errorf("%w: repayment must be positive", ErrInvalidLoan)
	}
	if err := req.Route.Validate(); err != nil {
		return err
	}
	if req.Route.TokenIn() != req.BorrowToken || req.Route.TokenOut() != req.RepayToken {
		return fmt.Errorf("%w: route must turn %s into %s",
			route.ErrInconsistentRoute, req.BorrowToken.Hex(), req.RepayToken.Hex())
	}
	return nil
}

// InitiateLoan borrows req.BorrowAmount and settles it through the trader in one atomic unit.
func (e *Executor) InitiateLoan(caller common.Address, req LoanRequest) (*LoanSession, error) {
	if err := access.RequireCapability(e.roles, caller, access.Executor); err != nil {
		return nil, err
	}
	if !e.lock.TryLock() {
		return nil, ErrReentrancy
	}
	defer e.lock.Unlock()

	if err := e.checkRequest(req); err != nil {
		return nil, err
	}

	venue := req.Venue
	if venue == (common.Address{}) {
		venue = e.BorrowVenue()
	}
	router, err := e.chain.Router(venue)
	if err != nil {
		return nil, err
	}
	pair, err := router.GetPair(req.BorrowToken, req.RepayToken)
	if err != nil {
		return nil, err
	}

	repayment := req.Repayment
	if repayment == nil {
		amounts, err := router.GetAmountsIn(req.BorrowAmount, []common.Address{req.RepayToken, req.BorrowToken})
		if err != nil {
			return nil, fmt.Errorf("quote repayment: %w", err)
		}
		repayment = amounts[0]
	}

	s := &LoanSession{
		ID:        uuid.New(),
		Venue:     venue,
		Pair:      pair.Address(),
		Request:   req,
		Repayment: new(big.Int).Set(repayment),
		State:     LoanRequested,
	}
	e.session.Store(s)
	defer e.session.Store(nil)

	amount0Out, amount1Out := new(big.Int), new(big.Int)
	if pair.Token0() == req.BorrowToken {
		amount0Out.Set(req.BorrowAmount)
	} else {
		amount1Out.Set(req.BorrowAmount)
	}

	e.log.Debug().
		Str("session", s.ID.String()).
		Str("pair", s.Pair.Hex()).
		Str("borrow", req.BorrowAmount.String()).
		Str("repay", repayment.String()).
		Msg("loan requested")

	err = e.chain.Atomic(func() error {
		return pair.Swap(e.address, amount0Out, amount1Out, e.address, s.data())
	})
	if err != nil {
		s.State = Aborted
		e.log.Debug().Err(err).Str("session", s.ID.String()).Msg("loan aborted")
		return nil, err
	}

	s.State = Settled
	e.log.Info().
		Str("session", s.ID.String()).
		Str("borrowToken", req.BorrowToken.Hex()).
		Str("profitToken", req.RepayToken.Hex()).
		Str("profit", s.Profit.String()).
		Msg("loan settled")
	return s, nil
}

// UniswapV2Call is invoked by the pair after it has sent the borrowed tokens.
func (e *Executor) UniswapV2Call(caller, sender common.Address, amount0, amount1 *big.Int, data []byte) error {
	if sender != e.address {
		return ErrNotAllowed
	}
	s := e.session.Load()
	if s == nil || caller != s.Pair || !s.matches(data) {
		return ErrWrongCaller
	}
	s.State = CallbackReceived

	borrowed := amount0
	if borrowed == nil || borrowed.Sign() == 0 {
		borrowed = amount1
	}

	t := e.Trader()
	if err := e.chain.Transfer(s.Request.BorrowToken, e.address, t.Address(), borrowed); err != nil {
		return err
	}
	out, err := t.Execute(e.address, borrowed, s.Request.MinAmountOut, s.Request.Route)
	if err != nil {
		return err
	}

	profit := new(big.Int).Sub(out, s.Repayment)
	if minProfit := e.MinProfit(); profit.Cmp(minProfit) < 0 {
		return fmt.Errorf("%w: output %s, repayment %s", ErrNoProfit, out, s.Repayment)
	}
	if err := e.chain.Transfer(s.Request.RepayToken, e.address, caller, s.Repayment); err != nil {
		return err
	}

	s.Output = out
	s.Profit = profit
	return nil
}
