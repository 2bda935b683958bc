package route

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidRoute      = errors.New("invalid route")
	ErrInvalidSinglePath = errors.New("invalid single path")
	ErrZeroAddress       = errors.New("zero address")
	ErrInconsistentRoute = errors.New("inconsistent route")
)

// SinglePath is one router hop sequence: tokens[i] is swapped into tokens[i+1] on Router.
type SinglePath struct {
	Router common.Address
	Tokens []common.Address
}

func (p SinglePath) TokenIn() common.Address {
	if len(p.Tokens) == 0 {
		return common.Address{}
	}
	return p.Tokens[0]
}

func (p SinglePath) TokenOut() common.Address {
	if len(p.Tokens) == 0 {
		return common.Address{}
	}
	return p.Tokens[len(p.Tokens)-1]
}

// Route is an ordered list of single paths. Each path must start with the token
// the previous one ends with.
type Route []SinglePath

func (r Route) TokenIn() common.Address {
	if len(r) == 0 {
		return common.Address{}
	}
	return r[0].TokenIn()
}

func (r Route) TokenOut() common.Address {
	if len(r) == 0 {
		return common.Address{}
	}
	return r[len(r)-1].TokenOut()
}

// Validate checks shape, then addresses, then chaining, returning the first failure.
func (r Route) Validate() error {
	if len(r) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidRoute)
	}
	for i, p := range r {
		if len(p.Tokens) < 2 {
			return fmt.Errorf("%w: path %d has %d tokens", ErrInvalidRoute, i, len(p.Tokens))
		}
	}
	for i, p := range r {
		if p.Router == (common.Address{}) {
			return fmt.Errorf("%w: router of path %d", ErrZeroAddress, i)
		}
		for j, t := range p.Tokens {
			if t == (common.Address{}) {
				return fmt.Errorf("%w: token %d of path %d", ErrZeroAddress, j, i)
			}
		}
	}
	for i := 1; i < len(r); i++ {
		if r[i-1].TokenOut() != r[i].TokenIn() {
			return fmt.Errorf("%w: path %d ends with %s, path %d starts with %s",
				ErrInconsistentRoute, i-1, r[i-1].TokenOut().Hex(), i, r[i].TokenIn().Hex())
		}
	}
	return nil
}

// ValidateBorrowPath checks that p is a single two-token swap.
func ValidateBorrowPath(p SinglePath) error {
	if len(p.Tokens) != 2 {
		return fmt.Errorf("%w: borrow side has %d tokens", ErrInvalidSinglePath, len(p.Tokens))
	}
	if p.Router == (common.Address{}) || p.Tokens[0] == (common.Address{}) || p.Tokens[1] == (common.Address{}) {
		return fmt.Errorf("%w: borrow side", ErrZeroAddress)
	}
	return nil
}
