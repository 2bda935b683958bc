package trader

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/pulkyeet/flashswap-arb/internal/access"
	"github.com/pulkyeet/flashswap-arb/internal/route"
	"github.com/pulkyeet/flashswap-arb/internal/simulator"
)

var (
	ErrInsufficientCollateral = errors.New("insufficient collateral")
	ErrAmountOutTooLow        = errors.New("amount out too low")
)

// Trader walks a multi-router route with tokens it already holds and forwards the
// output to whoever asked.
type Trader struct {
	address common.Address
	chain   *simulator.Chain
	roles   access.Authorizer
	log     zerolog.Logger
}

func New(address common.Address, chain *simulator.Chain, roles access.Authorizer, logger zerolog.Logger) *Trader {
	return &Trader{
		address: address,
		chain:   chain,
		roles:   roles,
		log:     logger.With().Str("component", "trader").Str("address", address.Hex()).Logger(),
	}
}

func (t *Trader) Address() common.Address { return t.address }

// Execute swaps amountIn of the route's first token through every path and sends
// the final output to caller.
func (t *Trader) Execute(caller common.Address, amountIn, minAmountOut *big.Int, r route.Route) (*big.Int, error) {
	if err := access.RequireCapability(t.roles, caller, access.Executor); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount in must be positive", simulator.ErrInvalidAmount)
	}

	tokenIn := r.TokenIn()
	if bal := t.chain.BalanceOf(tokenIn, t.address); bal.Cmp(amountIn) < 0 {
		return nil, fmt.Errorf("%w: have %s of %s, need %s", ErrInsufficientCollateral, bal, tokenIn.Hex(), amountIn)
	}

	var out *big.Int
	err := t.chain.Atomic(func() error {
		amount := new(big.Int).Set(amountIn)
		for i, p := range r {
			router, err := t.chain.Router(p.Router)
			if err != nil {
				return fmt.Errorf("path %d: %w", i, err)
			}
			amounts, err := router.SwapExactTokensForTokens(t.address, amount, new(big.Int), p.Tokens, t.address)
			if err != nil {
				return fmt.Errorf("path %d: %w", i, err)
			}
			amount = amounts[len(amounts)-1]
			t.log.Debug().
				Int("path", i).
				Str("router", router.Name()).
				Str("out", amount.String()).
				Msg("path swapped")
		}
		if minAmountOut != nil && amount.Cmp(minAmountOut) < 0 {
			return fmt.Errorf("%w: got %s, want at least %s", ErrAmountOutTooLow, amount, minAmountOut)
		}
		if err := t.chain.Transfer(r.TokenOut(), t.address, caller, amount); err != nil {
			return err
		}
		out = amount
		return nil
	})
	if err != nil {
		t.log.Debug().Err(err).Str("caller", caller.Hex()).Msg("route reverted")
		return nil, err
	}

	t.log.Info().
		Str("caller", caller.Hex()).
		Str("in", amountIn.String()).
		Str("out", out.String()).
		Int("paths", len(r)).
		Msg("route executed")
	return out, nil
}

// ExecuteEncoded decodes an ABI payload and executes it.
func (t *Trader) ExecuteEncoded(caller common.Address, data []byte) (*big.Int, error) {
	p, err := route.Decode(data)
	if err != nil {
		return nil, err
	}
	return t.Execute(caller, p.AmountIn, p.MinAmountOut, p.Route)
}
