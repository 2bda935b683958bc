package flashswap

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulkyeet/flashswap-arb/internal/access"
	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/route"
	"github.com/pulkyeet/flashswap-arb/internal/simulator"
	"github.com/pulkyeet/flashswap-arb/internal/trader"
)

var (
	tokenA       = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB       = common.HexToAddress("0x000000000000000000000000000000000000000b")
	provider     = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	owner        = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	stranger     = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	bot          = common.HexToAddress("0x00000000000000000000000000000000000000e3")
	executorAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	traderAddr   = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	venue1       = common.HexToAddress("0x0000000000000000000000000000000000001001")
	venue2       = common.HexToAddress("0x0000000000000000000000000000000000001002")
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

type fixture struct {
	chain  *simulator.Chain
	v1, v2 *simulator.Router
	trader *trader.Trader
	exec   *Executor
}

// newFixture prices B cheaper on venue2 (1000 A : 2100 B) than on venue1 (1000 A : 2000 B).
// The executor borrows on venue2 by default and bot holds the Executor capability.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	c := simulator.NewChain(zerolog.Nop())
	v1, err := c.DeployRouter("venue1", venue1, 30)
	require.NoError(t, err)
	v2, err := c.DeployRouter("venue2", venue2, 30)
	require.NoError(t, err)

	require.NoError(t, c.Mint(tokenA, provider, ether(2000)))
	require.NoError(t, c.Mint(tokenB, provider, ether(4100)))
	_, err = v1.AddLiquidity(provider, tokenA, tokenB, ether(1000), ether(2000))
	require.NoError(t, err)
	_, err = v2.AddLiquidity(provider, tokenA, tokenB, ether(1000), ether(2100))
	require.NoError(t, err)

	traderRoles := access.NewRoles(owner)
	require.NoError(t, traderRoles.Grant(owner, access.Executor, executorAddr))
	tr := trader.New(traderAddr, c, traderRoles, zerolog.Nop())

	exec, err := New(executorAddr, c, access.NewRoles(owner), tr, venue2, opts...)
	require.NoError(t, err)
	require.NoError(t, exec.SetExecutor(owner, bot))

	return &fixture{chain: c, v1: v1, v2: v2, trader: tr, exec: exec}
}

func arbRoute() route.Route {
	return route.Route{
		{Router: venue2, Tokens: []common.Address{tokenA, tokenB}},
		{Router: venue1, Tokens: []common.Address{tokenB, tokenA}},
	}
}

// expectedOut quotes the round trip without touching state
func (f *fixture) expectedOut(t *testing.T, amountIn *big.Int) *big.Int {
	t.Helper()
	mid, err := f.v2.GetAmountsOut(amountIn, []common.Address{tokenA, tokenB})
	require.NoError(t, err)
	final, err := f.v1.GetAmountsOut(mid[1], []common.Address{tokenB, tokenA})
	require.NoError(t, err)
	return final[1]
}

func (f *fixture) pair(t *testing.T, r *simulator.Router) *simulator.Pair {
	t.Helper()
	p, err := r.GetPair(tokenA, tokenB)
	require.NoError(t, err)
	return p
}

func TestMakeArbitrageKeepsProfit(t *testing.T) {
	f := newFixture(t)
	amountIn := ether(10)
	want := new(big.Int).Sub(f.expectedOut(t, amountIn), amountIn)
	require.Equal(t, 1, want.Sign())

	s, err := f.exec.MakeArbitrage(owner, amountIn, amountIn, arbRoute())
	require.NoError(t, err)
	assert.Equal(t, Settled, s.State)
	assert.Equal(t, 0, s.Profit.Cmp(want))
	assert.Equal(t, 0, s.Repayment.Cmp(amountIn))
	assert.Nil(t, f.exec.ActiveSession())

	assert.Equal(t, 0, f.exec.Claimable(tokenA).Cmp(want))
	assert.Zero(t, f.exec.Claimable(tokenB).Sign())
	assert.Zero(t, f.chain.BalanceOf(tokenA, traderAddr).Sign())
	assert.Zero(t, f.chain.BalanceOf(tokenB, traderAddr).Sign())

	// the borrow pair was paid exactly amountIn
	r0, _ := f.pair(t, f.v2).Reserves()
	assert.Equal(t, 0, r0.Cmp(ether(1010)))

	_, err = f.exec.ClaimProfit(stranger, tokenA)
	assert.ErrorIs(t, err, access.ErrNotAuthorized)
	_, err = f.exec.ClaimProfit(owner, common.Address{})
	assert.ErrorIs(t, err, ErrAddressZero)

	claimed, err := f.exec.ClaimProfit(owner, tokenA)
	require.NoError(t, err)
	assert.Equal(t, 0, claimed.Cmp(want))
	assert.Equal(t, 0, f.chain.BalanceOf(tokenA, owner).Cmp(want))

	_, err = f.exec.ClaimProfit(owner, tokenA)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestExecutePayload(t *testing.T) {
	f := newFixture(t)
	data, err := route.Encode(route.Payload{AmountIn: ether(5), MinAmountOut: ether(5), Route: arbRoute()})
	require.NoError(t, err)

	s, err := f.exec.ExecutePayload(owner, data)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Profit.Sign())

	_, err = f.exec.ExecutePayload(owner, []byte("junk"))
	assert.ErrorIs(t, err, route.ErrInvalidRoute)
}

func TestMakeArbitrageGuards(t *testing.T) {
	withBorrowTokens := func(tokens ...common.Address) route.Route {
		r := arbRoute()
		r[0].Tokens = tokens
		return r
	}

	tests := []struct {
		name    string
		caller  common.Address
		route   route.Route
		wantErr error
	}{
		{name: "not owner", caller: bot, route: arbRoute(), wantErr: access.ErrNotAuthorized},
		{name: "empty route", caller: owner, route: route.Route{}, wantErr: route.ErrInvalidRoute},
		{name: "no borrow tokens", caller: owner, route: withBorrowTokens(), wantErr: route.ErrInvalidSinglePath},
		{name: "one borrow token", caller: owner, route: withBorrowTokens(tokenA), wantErr: route.ErrInvalidSinglePath},
		{name: "three borrow tokens", caller: owner, route: withBorrowTokens(tokenA, tokenB, tokenA), wantErr: route.ErrInvalidSinglePath},
		{name: "no repayment side", caller: owner, route: arbRoute()[:1], wantErr: route.ErrInvalidRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.exec.MakeArbitrage(tt.caller, ether(1), ether(1), tt.route)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMakeArbitrageUnprofitableReverts(t *testing.T) {
	f := newFixture(t)
	backwards := route.Route{
		{Router: venue1, Tokens: []common.Address{tokenA, tokenB}},
		{Router: venue2, Tokens: []common.Address{tokenB, tokenA}},
	}

	_, err := f.exec.MakeArbitrage(owner, ether(10), nil, backwards)
	assert.ErrorIs(t, err, ErrNoProfit)

	_, err = f.exec.MakeArbitrage(owner, ether(10), ether(11), arbRoute())
	assert.ErrorIs(t, err, trader.ErrAmountOutTooLow)

	for _, r := range []*simulator.Router{f.v1, f.v2} {
		r0, _ := f.pair(t, r).Reserves()
		assert.Equal(t, 0, r0.Cmp(ether(1000)))
	}
	assert.Zero(t, f.exec.Claimable(tokenA).Sign())
	assert.Zero(t, f.exec.Claimable(tokenB).Sign())
	assert.Nil(t, f.exec.ActiveSession())
}

func TestInitiateLoanComputesRepayment(t *testing.T) {
	f := newFixture(t)
	borrow := ether(20)
	quote, err := f.v2.GetAmountsIn(borrow, []common.Address{tokenA, tokenB})
	require.NoError(t, err)
	sell, err := f.v1.GetAmountsOut(borrow, []common.Address{tokenB, tokenA})
	require.NoError(t, err)

	req := LoanRequest{
		BorrowToken:  tokenB,
		RepayToken:   tokenA,
		BorrowAmount: borrow,
		Route:        route.Route{{Router: venue1, Tokens: []common.Address{tokenB, tokenA}}},
	}

	_, err = f.exec.InitiateLoan(stranger, req)
	assert.ErrorIs(t, err, access.ErrNotAuthorized)

	s, err := f.exec.InitiateLoan(bot, req)
	require.NoError(t, err)
	assert.Equal(t, venue2, s.Venue)
	assert.Equal(t, 0, s.Repayment.Cmp(quote[0]))
	assert.Equal(t, 0, s.Output.Cmp(sell[1]))
	assert.Equal(t, 0, s.Profit.Cmp(new(big.Int).Sub(sell[1], quote[0])))
	assert.Equal(t, 0, f.exec.Claimable(tokenA).Cmp(s.Profit))
}

func TestInitiateLoanRejectsBadRequests(t *testing.T) {
	good := func() LoanRequest {
		return LoanRequest{
			BorrowToken:  tokenB,
			RepayToken:   tokenA,
			BorrowAmount: ether(1),
			Route:        route.Route{{Router: venue1, Tokens: []common.Address{tokenB, tokenA}}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*LoanRequest)
		wantErr error
	}{
		{name: "zero borrow token", mutate: func(r *LoanRequest) { r.BorrowToken = common.Address{} }, wantErr: ErrAddressZero},
		{name: "zero amount", mutate: func(r *LoanRequest) { r.BorrowAmount = new(big.Int) }, wantErr: ErrInvalidLoan},
		{name: "empty route", mutate: func(r *LoanRequest) { r.Route = nil }, wantErr: route.ErrInvalidRoute},
		{
			name: "route ends elsewhere",
			mutate: func(r *LoanRequest) {
				r.Route = route.Route{{Router: venue1, Tokens: []common.Address{tokenA, tokenB}}}
			},
			wantErr: route.ErrInconsistentRoute,
		},
		{name: "unknown venue", mutate: func(r *LoanRequest) { r.Venue = stranger }, wantErr: simulator.ErrUnknownRouter},
		{name: "repayment short of k", mutate: func(r *LoanRequest) { r.Repayment = big.NewInt(1) }, wantErr: simulator.ErrK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := good()
			tt.mutate(&req)
			_, err := f.exec.InitiateLoan(bot, req)
			assert.ErrorIs(t, err, tt.wantErr)
			r0, r1 := f.pair(t, f.v2).Reserves()
			assert.Equal(t, 0, r0.Cmp(ether(1000)))
			assert.Equal(t, 0, r1.Cmp(ether(2100)))
		})
	}
}

// scriptedTrader pays out a fixed amount from its own stock, or re-enters the executor
type scriptedTrader struct {
	address common.Address
	chain   *simulator.Chain
	payout  *big.Int
	reenter func() error
}

func (s *scriptedTrader) Address() common.Address { return s.address }

func (s *scriptedTrader) Execute(caller common.Address, amountIn, minAmountOut *big.Int, r route.Route) (*big.Int, error) {
	if s.reenter != nil {
		if err := s.reenter(); err != nil {
			return nil, err
		}
	}
	if err := s.chain.Transfer(r.TokenOut(), s.address, caller, s.payout); err != nil {
		return nil, err
	}
	return new(big.Int).Set(s.payout), nil
}

func TestMinProfitBoundary(t *testing.T) {
	scripted := common.HexToAddress("0x00000000000000000000000000000000000000d2")

	tests := []struct {
		name      string
		minProfit *big.Int
		surplus   int64
		wantErr   error
	}{
		{name: "zero profit rejected by default", surplus: 0, wantErr: ErrNoProfit},
		{name: "one wei accepted by default", surplus: 1},
		{name: "one short of custom minimum", minProfit: big.NewInt(100), surplus: 99, wantErr: ErrNoProfit},
		{name: "custom minimum met", minProfit: big.NewInt(100), surplus: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithMinProfit(tt.minProfit))
			quote, err := f.v2.GetAmountsIn(ether(1), []common.Address{tokenA, tokenB})
			require.NoError(t, err)
			repayment := quote[0]

			st := &scriptedTrader{
				address: scripted,
				chain:   f.chain,
				payout:  new(big.Int).Add(repayment, big.NewInt(tt.surplus)),
			}
			require.NoError(t, f.chain.Mint(tokenA, scripted, ether(5)))
			require.NoError(t, f.exec.SetTrader(owner, st))

			s, err := f.exec.InitiateLoan(bot, LoanRequest{
				BorrowToken:  tokenB,
				RepayToken:   tokenA,
				BorrowAmount: ether(1),
				Repayment:    repayment,
				Route:        route.Route{{Router: venue1, Tokens: []common.Address{tokenB, tokenA}}},
			})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, 0, f.chain.BalanceOf(tokenA, scripted).Cmp(ether(5)))
				assert.Zero(t, f.chain.BalanceOf(tokenB, scripted).Sign())
				assert.Zero(t, f.exec.Claimable(tokenA).Sign())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, s.Profit.Cmp(big.NewInt(tt.surplus)))
			assert.Equal(t, 0, f.exec.Claimable(tokenA).Cmp(big.NewInt(tt.surplus)))
			assert.Equal(t, 0, f.chain.BalanceOf(tokenB, scripted).Cmp(ether(1)))
		})
	}
}

func TestReentrantTraderRejected(t *testing.T) {
	f := newFixture(t)
	scripted := common.HexToAddress("0x00000000000000000000000000000000000000d2")
	req := LoanRequest{
		BorrowToken:  tokenB,
		RepayToken:   tokenA,
		BorrowAmount: ether(1),
		Route:        route.Route{{Router: venue1, Tokens: []common.Address{tokenB, tokenA}}},
	}

	st := &scriptedTrader{
		address: scripted,
		chain:   f.chain,
		payout:  ether(1),
		reenter: func() error {
			_, err := f.exec.InitiateLoan(bot, req)
			return err
		},
	}
	require.NoError(t, f.exec.SetTrader(owner, st))

	_, err := f.exec.InitiateLoan(bot, req)
	assert.ErrorIs(t, err, ErrReentrancy)

	// the lock is released afterwards
	require.NoError(t, f.exec.SetTrader(owner, f.trader))
	_, err = f.exec.MakeArbitrage(owner, ether(10), ether(10), arbRoute())
	assert.NoError(t, err)
}

// parkedTrader blocks inside the callback until released, then fails the loan
type parkedTrader struct {
	address common.Address
	entered chan struct{}
	release chan struct{}
}

func (p *parkedTrader) Address() common.Address { return p.address }

func (p *parkedTrader) Execute(common.Address, *big.Int, *big.Int, route.Route) (*big.Int, error) {
	close(p.entered)
	<-p.release
	return nil, trader.ErrInsufficientCollateral
}

func TestAdminCallsRefusedDuringLoan(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.chain.Mint(tokenA, executorAddr, ether(1)))

	pt := &parkedTrader{
		address: common.HexToAddress("0x00000000000000000000000000000000000000d3"),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	require.NoError(t, f.exec.SetTrader(owner, pt))

	done := make(chan error, 1)
	go func() {
		_, err := f.exec.InitiateLoan(bot, LoanRequest{
			BorrowToken:  tokenB,
			RepayToken:   tokenA,
			BorrowAmount: ether(1),
			Route:        route.Route{{Router: venue1, Tokens: []common.Address{tokenB, tokenA}}},
		})
		done <- err
	}()
	<-pt.entered

	_, err := f.exec.ClaimProfit(owner, tokenA)
	assert.ErrorIs(t, err, ErrReentrancy)
	assert.ErrorIs(t, f.exec.SetTrader(owner, f.trader), ErrReentrancy)
	assert.ErrorIs(t, f.exec.SetExecutor(owner, stranger), ErrReentrancy)
	assert.ErrorIs(t, f.exec.ResetBorrowVenue(owner, venue1), ErrReentrancy)
	assert.ErrorIs(t, f.exec.TransferOwnership(owner, stranger), ErrReentrancy)

	close(pt.release)
	assert.ErrorIs(t, <-done, trader.ErrInsufficientCollateral)

	// the aborted loan left the earlier balance in place and the claim now lands
	claimed, err := f.exec.ClaimProfit(owner, tokenA)
	require.NoError(t, err)
	assert.Equal(t, 0, claimed.Cmp(ether(1)))
	assert.Equal(t, 0, f.chain.BalanceOf(tokenA, owner).Cmp(ether(1)))
	assert.Zero(t, f.exec.Claimable(tokenA).Sign())
}

func TestLoanAndClaimBundle(t *testing.T) {
	tests := []struct {
		name     string
		claimer  common.Address
		wantDone bool
	}{
		{name: "owner claims", claimer: owner, wantDone: true},
		{name: "failed claim undoes the loan", claimer: stranger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			amountIn := ether(10)
			want := new(big.Int).Sub(f.expectedOut(t, amountIn), amountIn)

			var claimed *big.Int
			res, err := f.chain.ExecuteBundle(
				simulator.Step{Name: "flash loan", Run: func() error {
					_, err := f.exec.MakeArbitrage(owner, amountIn, amountIn, arbRoute())
					return err
				}},
				simulator.Step{Name: "claim", Run: func() error {
					var err error
					claimed, err = f.exec.ClaimProfit(tt.claimer, tokenA)
					return err
				}},
			)
			require.NoError(t, err)
			assert.Equal(t, tt.wantDone, res.Success)

			r0, _ := f.pair(t, f.v2).Reserves()
			if tt.wantDone {
				assert.Equal(t, 0, claimed.Cmp(want))
				assert.Equal(t, 0, f.chain.BalanceOf(tokenA, owner).Cmp(want))
				assert.Equal(t, 0, r0.Cmp(ether(1010)))
				return
			}
			assert.Equal(t, 1, res.RevertedAt)
			assert.ErrorIs(t, res.Err, access.ErrNotAuthorized)
			assert.Zero(t, f.exec.Claimable(tokenA).Sign())
			assert.Equal(t, 0, r0.Cmp(ether(1000)))
		})
	}
}

func TestCallbackGuards(t *testing.T) {
	f := newFixture(t)
	pair := f.pair(t, f.v2)

	err := f.exec.UniswapV2Call(pair.Address(), stranger, nil, ether(1), []byte{0x01})
	assert.ErrorIs(t, err, ErrNotAllowed)

	// no loan in flight
	err = f.exec.UniswapV2Call(pair.Address(), executorAddr, nil, ether(1), []byte{0x01})
	assert.ErrorIs(t, err, ErrWrongCaller)

	// a third party flash-swapping into the executor
	err = f.chain.Atomic(func() error {
		return pair.Swap(stranger, nil, ether(1), executorAddr, []byte{0x01})
	})
	assert.ErrorIs(t, err, ErrNotAllowed)
	assert.Zero(t, f.exec.Claimable(tokenB).Sign())
}

func TestAdminSetters(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000e4")

	f := newFixture(t)
	assert.ErrorIs(t, f.exec.SetTrader(stranger, f.trader), access.ErrNotAuthorized)
	assert.ErrorIs(t, f.exec.SetTrader(owner, f.trader), ErrDuplicate)
	assert.ErrorIs(t, f.exec.SetTrader(owner, nil), ErrAddressZero)

	assert.ErrorIs(t, f.exec.SetExecutor(owner, bot), ErrDuplicate)
	assert.ErrorIs(t, f.exec.SetExecutor(owner, common.Address{}), ErrAddressZero)
	require.NoError(t, f.exec.SetExecutor(owner, other))
	assert.Equal(t, other, f.exec.ExecutorPrincipal())
	_, err := f.exec.InitiateLoan(bot, LoanRequest{})
	assert.ErrorIs(t, err, access.ErrNotAuthorized)

	assert.ErrorIs(t, f.exec.ResetBorrowVenue(owner, venue2), ErrDuplicate)
	assert.ErrorIs(t, f.exec.ResetBorrowVenue(owner, common.Address{}), ErrAddressZero)
	assert.ErrorIs(t, f.exec.ResetBorrowVenue(bot, venue1), access.ErrNotAuthorized)
	require.NoError(t, f.exec.ResetBorrowVenue(owner, venue1))
	assert.Equal(t, venue1, f.exec.BorrowVenue())

	assert.ErrorIs(t, f.exec.TransferOwnership(owner, owner), ErrDuplicate)
	assert.ErrorIs(t, f.exec.TransferOwnership(owner, common.Address{}), ErrAddressZero)
	require.NoError(t, f.exec.TransferOwnership(owner, other))
	assert.Equal(t, other, f.exec.Owner())
	assert.ErrorIs(t, f.exec.ResetBorrowVenue(owner, venue2), access.ErrNotAuthorized)
}

func TestOptimalSizeIsLocalMaximumOnChain(t *testing.T) {
	q := arbitrage.Quad{A: ether(1000), B: ether(2100), C: ether(2000), D: ether(1000)}
	best := arbitrage.OptimalAmountIn(q, 0.003, 0)
	require.Equal(t, 1, best.Sign())

	profitAt := func(amountIn *big.Int) *big.Int {
		f := newFixture(t)
		s, err := f.exec.MakeArbitrage(owner, amountIn, amountIn, arbRoute())
		require.NoError(t, err)
		return s.Profit
	}

	scale := func(x *big.Int, num, den int64) *big.Int {
		v := new(big.Int).Mul(x, big.NewInt(num))
		return v.Quo(v, big.NewInt(den))
	}

	peak := profitAt(best)
	for _, x := range []*big.Int{scale(best, 9, 10), scale(best, 11, 10), scale(best, 1, 2), scale(best, 3, 2)} {
		assert.Equal(t, 1, peak.Cmp(profitAt(x)), "profit at %s should be below the optimum", x)
	}

	predicted := arbitrage.MaxProfit(best, q, 0.003)
	diff := new(big.Int).Abs(new(big.Int).Sub(predicted, peak))
	assert.True(t, diff.Cmp(scale(peak, 1, 1000)) < 0, "predicted %s, realised %s", predicted, peak)
}
