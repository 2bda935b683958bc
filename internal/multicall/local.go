package multicall

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var ErrUnavailable = errors.New("multicall unavailable")

// Handler answers one inner call. A non-nil error marks the call failed.
type Handler func(target common.Address, data []byte) ([]byte, error)

// Local is an in-process Multicall3: it decodes aggregate3 batches and
// dispatches each inner call to Handler.
type Local struct {
	Handler Handler
	// Down fails every batch at the transport level
	Down bool

	mu      sync.Mutex
	batches int
}

func (l *Local) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	l.mu.Lock()
	l.batches++
	down := l.Down
	l.mu.Unlock()
	if down {
		return nil, ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(msg.Data) < 4 {
		return nil, fmt.Errorf("short calldata")
	}

	method := ABI.Methods["aggregate3"]
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	calls, ok := abi.ConvertType(args[0], new([]Call)).(*[]Call)
	if !ok {
		return nil, fmt.Errorf("unexpected calls type %T", args[0])
	}

	results := make([]Result, len(*calls))
	for i, c := range *calls {
		ret, err := l.Handler(c.Target, c.CallData)
		if err != nil {
			if !c.AllowFailure {
				return nil, fmt.Errorf("call %d reverted: %w", i, err)
			}
			continue
		}
		results[i] = Result{Success: true, ReturnData: ret}
	}
	return method.Outputs.Pack(results)
}

// Batches is how many aggregate3 calls were received
func (l *Local) Batches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batches
}
