package flashswap

import (
	"errors"

	"github.com/pulkyeet/flashswap-arb/internal/route"
)

var (
	ErrNoProfit       = errors.New("no profit")
	ErrWrongCaller    = errors.New("wrong caller")
	ErrNotAllowed     = errors.New("not allowed")
	ErrReentrancy     = errors.New("reentrancy")
	ErrDuplicate      = errors.New("duplicate")
	ErrNothingToClaim = errors.New("nothing to claim")
	ErrInvalidLoan    = errors.New("invalid loan")

	// ErrAddressZero is shared with route validation so callers can match either
	ErrAddressZero = route.ErrZeroAddress
)
