package flashswap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/pulkyeet/flashswap-arb/internal/route"
)

// State is the lifecycle of a loan session
type State int

const (
	Idle State = iota
	LoanRequested
	CallbackReceived
	Settled
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoanRequested:
		return "loan_requested"
	case CallbackReceived:
		return "callback_received"
	case Settled:
		return "settled"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// LoanRequest describes one flash loan and what to do with the borrowed tokens.
type LoanRequest struct {
	// Venue is the router to borrow from; zero means the configured borrow venue.
	Venue        common.Address
	BorrowToken  common.Address
	RepayToken   common.Address
	BorrowAmount *big.Int
	// Repayment owed to the pair; nil means the pair's quote for BorrowAmount.
	Repayment    *big.Int
	MinAmountOut *big.Int
	Route        route.Route
}

// LoanSession tracks a loan from request to settlement. Its ID travels through the
// pair as callback data.
type LoanSession struct {
	ID        uuid.UUID
	Venue     common.Address
	Pair      common.Address
	Request   LoanRequest
	Repayment *big.Int
	State     State

	Output *big.Int
	Profit *big.Int
}

func (s *LoanSession) data() []byte {
	b := s.ID
	return b[:]
}

func (s *LoanSession) matches(data []byte) bool {
	id, err := uuid.FromBytes(data)
	return err == nil && id == s.ID
}
