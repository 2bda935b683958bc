package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/eth"
	"github.com/pulkyeet/flashswap-arb/internal/multicall"
)

// DefaultChunkSize is how many pools go into one aggregate3 batch
const DefaultChunkSize = 1000

var (
	ErrFetchFailure = errors.New("fetch failure")
	ErrUnknownPool  = errors.New("pool not requested")
)

var pairABI = mustParse(eth.UniswapV2PairABI)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse pair abi: %v", err))
	}
	return parsed
}

var getReservesCall = func() []byte {
	data, err := pairABI.Pack("getReserves")
	if err != nil {
		panic(fmt.Sprintf("pack getReserves: %v", err))
	}
	return data
}()

// Oracle reads pool reserves in concurrent multicall batches
type Oracle struct {
	agg         multicall.Aggregator
	concurrency int
	log         zerolog.Logger
}

func New(agg multicall.Aggregator, concurrency int, logger zerolog.Logger) *Oracle {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Oracle{
		agg:         agg,
		concurrency: concurrency,
		log:         logger.With().Str("component", "oracle").Logger(),
	}
}

type entry struct {
	reserves arbitrage.ReservePair
	err      error
}

// Snapshot is the outcome of one Fetch, keyed by pool
type Snapshot struct {
	entries map[common.Address]entry
	failed  int
}

// Reserves returns the pool's reserves, an error wrapping ErrFetchFailure, or ErrUnknownPool.
func (s *Snapshot) Reserves(pool common.Address) (arbitrage.ReservePair, error) {
	e, ok := s.entries[pool]
	if !ok {
		return arbitrage.ReservePair{}, fmt.Errorf("%s: %w", pool.Hex(), ErrUnknownPool)
	}
	return e.reserves, e.err
}

func (s *Snapshot) Len() int    { return len(s.entries) }
func (s *Snapshot) Failed() int { return s.failed }

// Fetch reads getReserves for every pool. chunkSize <= 0 uses DefaultChunkSize.
// Failures are recorded per pool; Fetch itself never fails.
func (o *Oracle) Fetch(ctx context.Context, pools []common.Address, chunkSize int) *Snapshot {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunks := multicall.Chunk(pools, chunkSize)
	results := make([][]multicall.Result, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			calls := make([]multicall.Call, len(chunk))
			for j, pool := range chunk {
				calls[j] = multicall.Call{Target: pool, AllowFailure: true, CallData: getReservesCall}
			}
			results[i] = o.agg.Aggregate(gctx, calls)
			return nil
		})
	}
	_ = g.Wait()

	snap := &Snapshot{entries: make(map[common.Address]entry, len(pools))}
	for i, chunk := range chunks {
		res := results[i]
		for j, pool := range chunk {
			var e entry
			if j >= len(res) {
				e.err = fmt.Errorf("%s: %w: missing result", pool.Hex(), ErrFetchFailure)
			} else {
				e = decode(pool, res[j])
			}
			if e.err != nil {
				snap.failed++
			}
			snap.entries[pool] = e
		}
	}

	o.log.Debug().
		Int("pools", len(pools)).
		Int("chunks", len(chunks)).
		Int("failed", snap.failed).
		Msg("reserves fetched")
	return snap
}

func decode(pool common.Address, r multicall.Result) entry {
	if !r.Success {
		return entry{err: fmt.Errorf("%s: %w: call failed", pool.Hex(), ErrFetchFailure)}
	}
	r0, r1, err := DecodeReserves(r.ReturnData)
	if err != nil {
		return entry{err: fmt.Errorf("%s: %w: %v", pool.Hex(), ErrFetchFailure, err)}
	}
	return entry{reserves: arbitrage.ReservePair{Reserve0: r0, Reserve1: r1}}
}

// DecodeReserves unpacks getReserves return data.
func DecodeReserves(data []byte) (*big.Int, *big.Int, error) {
	unpacked, err := pairABI.Unpack("getReserves", data)
	if err != nil {
		return nil, nil, fmt.Errorf("unpack reserves: %w", err)
	}
	if len(unpacked) < 2 {
		return nil, nil, fmt.Errorf("unexpected unpack result length: %d", len(unpacked))
	}
	r0, ok := unpacked[0].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("reserve0 type assertion failed")
	}
	r1, ok := unpacked[1].(*big.Int)
	if !ok {
		return nil, nil, fmt.Errorf("reserve1 type assertion failed")
	}
	return r0, r1, nil
}

// EncodeReserves packs reserves the way a pair returns them.
func EncodeReserves(r0, r1 *big.Int, timestamp uint32) ([]byte, error) {
	return pairABI.Methods["getReserves"].Outputs.Pack(r0, r1, timestamp)
}
