package directory

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/eth"
	"github.com/pulkyeet/flashswap-arb/internal/multicall"
)

var (
	factory  = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	initHash = [32]byte{0x01, 0x02, 0x03}
	venue    = arbitrage.Venue{Name: "testswap", Factory: factory, Router: common.HexToAddress("0xfb"), FeeBps: 30}
)

func token(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x100 + i)))
}

// fakeFactory lists n pairs token(i)/token(i+1), each deployed at its CREATE2 address
type fakeFactory struct {
	pairs  []common.Address
	tokens map[common.Address][2]common.Address
}

func newFakeFactory(n int) *fakeFactory {
	f := &fakeFactory{tokens: make(map[common.Address][2]common.Address)}
	for i := 0; i < n; i++ {
		a, b := token(i), token(i+1)
		addr := eth.PairFor(factory, initHash, a, b)
		f.pairs = append(f.pairs, addr)
		f.tokens[addr] = [2]common.Address{a, b}
	}
	return f
}

func (f *fakeFactory) handle(target common.Address, data []byte) ([]byte, error) {
	if target == factory {
		switch {
		case bytes.Equal(data, allPairsLengthCall):
			return factoryABI.Methods["allPairsLength"].Outputs.Pack(big.NewInt(int64(len(f.pairs))))
		case bytes.Equal(data[:4], factoryABI.Methods["allPairs"].ID):
			args, err := factoryABI.Methods["allPairs"].Inputs.Unpack(data[4:])
			if err != nil {
				return nil, err
			}
			i := args[0].(*big.Int).Int64()
			if i >= int64(len(f.pairs)) {
				return nil, errors.New("index out of range")
			}
			return factoryABI.Methods["allPairs"].Outputs.Pack(f.pairs[i])
		}
		return nil, errors.New("unknown factory call")
	}
	tk, ok := f.tokens[target]
	if !ok {
		return nil, errors.New("no code")
	}
	switch {
	case bytes.Equal(data, token0Call):
		return pairABI.Methods["token0"].Outputs.Pack(tk[0])
	case bytes.Equal(data, token1Call):
		return pairABI.Methods["token1"].Outputs.Pack(tk[1])
	}
	return nil, errors.New("unknown pair call")
}

func newResolver(t *testing.T, f *fakeFactory) (*Resolver, *multicall.Local) {
	t.Helper()
	backend := &multicall.Local{Handler: f.handle}
	r, err := NewResolver(multicall.NewClient(backend, eth.Multicall3Address, zerolog.Nop()), 128, 4, 2, zerolog.Nop())
	require.NoError(t, err)
	return r, backend
}

func TestDiscover(t *testing.T) {
	f := newFakeFactory(10)
	r, backend := newResolver(t, f)

	listing, err := r.Discover(context.Background(), venue, initHash)
	require.NoError(t, err)
	require.Len(t, listing.Pairs, 10)
	assert.Equal(t, venue, listing.Venue)

	for i, p := range listing.Pairs {
		assert.Equal(t, f.pairs[i], p.Address)
		assert.Equal(t, token(i), p.Token0)
		assert.Equal(t, token(i+1), p.Token1)
		assert.Equal(t, "testswap", p.Venue.Name)
	}

	// 1 length call, 10 index calls in chunks of 4, 20 token calls in chunks of 4
	assert.Equal(t, 1+3+5, backend.Batches())

	// token metadata comes from the cache the second time round
	_, err = r.Discover(context.Background(), venue, initHash)
	require.NoError(t, err)
	assert.Equal(t, 2*(1+3+5)-5, backend.Batches())
}

func TestDiscoverDropsForeignPairs(t *testing.T) {
	f := newFakeFactory(3)
	impostor := common.HexToAddress("0x000000000000000000000000000000000000dead")
	f.pairs = append(f.pairs, impostor)
	f.tokens[impostor] = [2]common.Address{token(7), token(8)}

	r, _ := newResolver(t, f)

	listing, err := r.Discover(context.Background(), venue, initHash)
	require.NoError(t, err)
	assert.Len(t, listing.Pairs, 3)

	// without a hash nothing is verified
	listing, err = r.Discover(context.Background(), venue, [32]byte{})
	require.NoError(t, err)
	assert.Len(t, listing.Pairs, 4)
}

func TestDiscoverFactoryDown(t *testing.T) {
	f := newFakeFactory(3)
	r, backend := newResolver(t, f)
	backend.Down = true

	_, err := r.Discover(context.Background(), venue, initHash)
	assert.ErrorIs(t, err, ErrFetchFailure)
}
