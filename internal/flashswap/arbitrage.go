package flashswap

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulkyeet/flashswap-arb/internal/access"
	"github.com/pulkyeet/flashswap-arb/internal/route"
)

// MakeArbitrage runs a two-sided flash route. r[0] names the borrow venue and the
// swap it stands in for: the executor borrows what amountIn would buy there and owes
// amountIn back. r[1:] sells the borrowed tokens for at least minAmountOut.
func (e *Executor) MakeArbitrage(caller common.Address, amountIn, minAmountOut *big.Int, r route.Route) (*LoanSession, error) {
	if err := access.RequireOwner(e.roles, caller); err != nil {
		return nil, err
	}
	if len(r) == 0 {
		return nil, fmt.Errorf("%w: empty", route.ErrInvalidRoute)
	}
	if err := route.ValidateBorrowPath(r[0]); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount in must be positive", ErrInvalidLoan)
	}

	borrowSide := r[0]
	router, err := e.chain.Router(borrowSide.Router)
	if err != nil {
		return nil, err
	}
	amounts, err := router.GetAmountsOut(amountIn, borrowSide.Tokens)
	if err != nil {
		return nil, fmt.Errorf("quote borrow: %w", err)
	}

	return e.InitiateLoan(caller, LoanRequest{
		Venue:        borrowSide.Router,
		BorrowToken:  borrowSide.TokenOut(),
		RepayToken:   borrowSide.TokenIn(),
		BorrowAmount: amounts[len(amounts)-1],
		Repayment:    new(big.Int).Set(amountIn),
		MinAmountOut: minAmountOut,
		Route:        r[1:],
	})
}

// ExecutePayload decodes an encoded (amountIn, minAmountOut, route) payload and runs it.
func (e *Executor) ExecutePayload(caller common.Address, data []byte) (*LoanSession, error) {
	p, err := route.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.MakeArbitrage(caller, p.AmountIn, p.MinAmountOut, p.Route)
}
