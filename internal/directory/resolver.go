package directory

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/eth"
	"github.com/pulkyeet/flashswap-arb/internal/multicall"
)

var ErrFetchFailure = errors.New("fetch failure")

var (
	factoryABI = mustParse(eth.UniswapV2FactoryABI)
	pairABI    = mustParse(eth.UniswapV2PairABI)
)

func mustParse(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

func mustPack(a abi.ABI, method string, args ...interface{}) []byte {
	data, err := a.Pack(method, args...)
	if err != nil {
		panic(fmt.Sprintf("pack %s: %v", method, err))
	}
	return data
}

var (
	allPairsLengthCall = mustPack(factoryABI, "allPairsLength")
	token0Call         = mustPack(pairABI, "token0")
	token1Call         = mustPack(pairABI, "token1")
)

type tokens struct {
	token0, token1 common.Address
}

// Resolver enumerates a factory's pairs and their tokens over multicall.
// Token lookups are cached per pair address since they never change.
type Resolver struct {
	agg         multicall.Aggregator
	cache       *lru.Cache[common.Address, tokens]
	chunkSize   int
	concurrency int
	log         zerolog.Logger
}

func NewResolver(agg multicall.Aggregator, cacheSize, chunkSize, concurrency int, logger zerolog.Logger) (*Resolver, error) {
	cache, err := lru.New[common.Address, tokens](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("pair cache: %w", err)
	}
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Resolver{
		agg:         agg,
		cache:       cache,
		chunkSize:   chunkSize,
		concurrency: concurrency,
		log:         logger.With().Str("component", "directory").Logger(),
	}, nil
}

// Discover lists every pair of venue's factory. When initCodeHash is non-zero, pairs
// whose address does not match the factory's CREATE2 derivation are dropped.
func (r *Resolver) Discover(ctx context.Context, venue arbitrage.Venue, initCodeHash [32]byte) (arbitrage.VenueListing, error) {
	listing := arbitrage.VenueListing{Venue: venue}

	n, err := r.pairCount(ctx, venue.Factory)
	if err != nil {
		return listing, fmt.Errorf("%s: %w", venue.Name, err)
	}
	r.log.Info().Str("venue", venue.Name).Uint64("pairs", n).Msg("factory pairs found")

	addresses := r.pairAddresses(ctx, venue.Factory, n)
	meta := r.pairTokens(ctx, addresses)

	var skipped int
	for _, addr := range addresses {
		tk, ok := meta[addr]
		if !ok {
			skipped++
			continue
		}
		if initCodeHash != ([32]byte{}) && eth.PairFor(venue.Factory, initCodeHash, tk.token0, tk.token1) != addr {
			r.log.Debug().Str("pair", addr.Hex()).Msg("pair address does not match factory derivation")
			skipped++
			continue
		}
		listing.Pairs = append(listing.Pairs, arbitrage.PairInfo{
			Address: addr,
			Token0:  tk.token0,
			Token1:  tk.token1,
			Venue:   venue,
		})
	}

	if skipped > 0 {
		r.log.Warn().Str("venue", venue.Name).Int("skipped", skipped).Msg("some pairs could not be resolved")
	}
	return listing, nil
}

func (r *Resolver) pairCount(ctx context.Context, factory common.Address) (uint64, error) {
	res := r.agg.Aggregate(ctx, []multicall.Call{{Target: factory, AllowFailure: true, CallData: allPairsLengthCall}})
	if len(res) != 1 || !res[0].Success {
		return 0, fmt.Errorf("%w: allPairsLength", ErrFetchFailure)
	}
	out, err := factoryABI.Unpack("allPairsLength", res[0].ReturnData)
	if err != nil || len(out) != 1 {
		return 0, fmt.Errorf("%w: decode allPairsLength: %v", ErrFetchFailure, err)
	}
	n, ok := out[0].(*big.Int)
	if !ok || !n.IsUint64() {
		return 0, fmt.Errorf("%w: allPairsLength out of range", ErrFetchFailure)
	}
	return n.Uint64(), nil
}

// batch runs calls in concurrent chunks and returns results in call order
func (r *Resolver) batch(ctx context.Context, calls []multicall.Call) []multicall.Result {
	chunks := multicall.Chunk(calls, r.chunkSize)
	results := make([][]multicall.Result, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i] = r.agg.Aggregate(gctx, chunk)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]multicall.Result, 0, len(calls))
	for i, chunk := range chunks {
		res := results[i]
		if len(res) != len(chunk) {
			res = multicall.Failed(len(chunk))
		}
		out = append(out, res...)
	}
	return out
}

func (r *Resolver) pairAddresses(ctx context.Context, factory common.Address, n uint64) []common.Address {
	calls := make([]multicall.Call, n)
	for i := range calls {
		calls[i] = multicall.Call{
			Target:       factory,
			AllowFailure: true,
			CallData:     mustPack(factoryABI, "allPairs", new(big.Int).SetUint64(uint64(i))),
		}
	}

	addresses := make([]common.Address, 0, n)
	for _, res := range r.batch(ctx, calls) {
		if addr, ok := decodeAddress(factoryABI, "allPairs", res); ok {
			addresses = append(addresses, addr)
		}
	}
	return addresses
}

func (r *Resolver) pairTokens(ctx context.Context, pairs []common.Address) map[common.Address]tokens {
	meta := make(map[common.Address]tokens, len(pairs))
	var missing []common.Address
	for _, p := range pairs {
		if tk, ok := r.cache.Get(p); ok {
			meta[p] = tk
			continue
		}
		missing = append(missing, p)
	}
	if len(missing) == 0 {
		return meta
	}

	calls := make([]multicall.Call, 0, 2*len(missing))
	for _, p := range missing {
		calls = append(calls,
			multicall.Call{Target: p, AllowFailure: true, CallData: token0Call},
			multicall.Call{Target: p, AllowFailure: true, CallData: token1Call},
		)
	}
	results := r.batch(ctx, calls)
	for i, p := range missing {
		t0, ok0 := decodeAddress(pairABI, "token0", results[2*i])
		t1, ok1 := decodeAddress(pairABI, "token1", results[2*i+1])
		if !ok0 || !ok1 {
			continue
		}
		tk := tokens{token0: t0, token1: t1}
		r.cache.Add(p, tk)
		meta[p] = tk
	}
	return meta
}

func decodeAddress(a abi.ABI, method string, res multicall.Result) (common.Address, bool) {
	if !res.Success {
		return common.Address{}, false
	}
	out, err := a.Unpack(method, res.ReturnData)
	if err != nil || len(out) != 1 {
		return common.Address{}, false
	}
	addr, ok := out[0].(common.Address)
	return addr, ok && addr != (common.Address{})
}
