package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/pulkyeet/flashswap-arb/internal/config"
)

var ErrNoEndpoint = errors.New("rpc url not set (ARB_RPC_URL or ALCHEMY_URL)")

// Caller is the slice of ethclient the client retries over
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// Client wraps an RPC connection with retries
type Client struct {
	rpc     Caller
	closer  func()
	cfg     config.RPCConfig
	chainID *big.Int
	log     zerolog.Logger
}

// Dial connects to cfg.URL and reads the chain id.
func Dial(ctx context.Context, cfg config.RPCConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, ErrNoEndpoint
	}
	rpc, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	tctx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	chainID, err := rpc.ChainID(tctx)
	if err != nil {
		rpc.Close()
		return nil, fmt.Errorf("chain id: %w", err)
	}

	c := NewClient(rpc, cfg, logger)
	c.closer = rpc.Close
	c.chainID = chainID
	c.log.Info().Str("chainID", chainID.String()).Msg("connected to rpc")
	return c, nil
}

// NewClient wraps an existing caller.
func NewClient(rpc Caller, cfg config.RPCConfig, logger zerolog.Logger) *Client {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	return &Client{
		rpc: rpc,
		cfg: cfg,
		log: logger.With().Str("component", "rpc").Logger(),
	}
}

func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// ChainID is nil unless the client was dialed.
func (c *Client) ChainID() *big.Int {
	return c.chainID
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var n uint64
	err := c.retry(ctx, "block number", func(ctx context.Context) error {
		var err error
		n, err = c.rpc.BlockNumber(ctx)
		return err
	})
	return n, err
}

// CallContract runs an eth_call, retrying transport errors.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var out []byte
	err := c.retry(ctx, "call contract", func(ctx context.Context) error {
		var err error
		out, err = c.rpc.CallContract(ctx, msg, blockNumber)
		return err
	})
	return out, err
}

func (c *Client) retry(ctx context.Context, what string, fn func(context.Context) error) error {
	var err error
	for i := 0; i < c.cfg.RetryAttempts; i++ {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if c.cfg.RequestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		}
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", what, ctx.Err())
		}
		c.log.Warn().Err(err).Int("attempt", i+1).Msgf("%s failed, retrying", what)
		if i+1 < c.cfg.RetryAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", what, ctx.Err())
			case <-time.After(c.cfg.RetryDelay):
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, c.cfg.RetryAttempts, err)
}
