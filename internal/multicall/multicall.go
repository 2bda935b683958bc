package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
)

// Call is one entry of an aggregate3 batch
type Call struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

// Result is the outcome of one Call, in request order
type Result struct {
	Success    bool
	ReturnData []byte
}

// Aggregator runs a batch of read calls. It never fails as a whole: a transport
// error yields one failed Result per call.
type Aggregator interface {
	Aggregate(ctx context.Context, calls []Call) []Result
}

// ContractCaller is satisfied by ethclient.Client and eth.Client
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

const multicall3ABI = `[{
	"inputs": [{
		"components": [
			{"internalType": "address", "name": "target", "type": "address"},
			{"internalType": "bool", "name": "allowFailure", "type": "bool"},
			{"internalType": "bytes", "name": "callData", "type": "bytes"}
		],
		"internalType": "struct Multicall3.Call3[]", "name": "calls", "type": "tuple[]"
	}],
	"name": "aggregate3",
	"outputs": [{
		"components": [
			{"internalType": "bool", "name": "success", "type": "bool"},
			{"internalType": "bytes", "name": "returnData", "type": "bytes"}
		],
		"internalType": "struct Multicall3.Result[]", "name": "returnData", "type": "tuple[]"
	}],
	"stateMutability": "payable",
	"type": "function"
}]`

// ABI is the parsed aggregate3 interface
var ABI = mustParse(multicall3ABI)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse multicall abi: %v", err))
	}
	return parsed
}

// Client sends aggregate3 batches to a Multicall3 deployment
type Client struct {
	caller  ContractCaller
	address common.Address
	block   *big.Int
	log     zerolog.Logger
}

func NewClient(caller ContractCaller, address common.Address, logger zerolog.Logger) *Client {
	return &Client{
		caller:  caller,
		address: address,
		log:     logger.With().Str("component", "multicall").Logger(),
	}
}

// AtBlock returns a copy of the client pinned to block n; nil means latest.
func (c *Client) AtBlock(n *big.Int) *Client {
	cp := *c
	cp.block = n
	return &cp
}

func (c *Client) Aggregate(ctx context.Context, calls []Call) []Result {
	if len(calls) == 0 {
		return nil
	}

	data, err := ABI.Pack("aggregate3", calls)
	if err != nil {
		c.log.Warn().Err(err).Int("calls", len(calls)).Msg("pack aggregate3")
		return Failed(len(calls))
	}

	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.address, Data: data}, c.block)
	if err != nil {
		c.log.Warn().Err(err).Int("calls", len(calls)).Msg("aggregate3 call failed")
		return Failed(len(calls))
	}

	results, err := DecodeResults(out)
	if err != nil || len(results) != len(calls) {
		c.log.Warn().Err(err).Int("calls", len(calls)).Int("results", len(results)).Msg("bad aggregate3 response")
		return Failed(len(calls))
	}
	return results
}

// DecodeResults unpacks aggregate3 return data.
func DecodeResults(data []byte) ([]Result, error) {
	unpacked, err := ABI.Unpack("aggregate3", data)
	if err != nil {
		return nil, fmt.Errorf("unpack aggregate3: %w", err)
	}
	if len(unpacked) != 1 {
		return nil, fmt.Errorf("unpack aggregate3: %d outputs", len(unpacked))
	}
	results, ok := abi.ConvertType(unpacked[0], new([]Result)).(*[]Result)
	if !ok {
		return nil, fmt.Errorf("unpack aggregate3: unexpected type %T", unpacked[0])
	}
	return *results, nil
}

// Failed is n failed results
func Failed(n int) []Result {
	return make([]Result, n)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		if len(items) == 0 {
			return nil
		}
		return [][]T{items}
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
