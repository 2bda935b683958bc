package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/flashswap"
	"github.com/pulkyeet/flashswap-arb/internal/journal"
	"github.com/pulkyeet/flashswap-arb/internal/oracle"
	"github.com/pulkyeet/flashswap-arb/internal/route"
)

// Fetcher reads reserves for a set of pools.
type Fetcher interface {
	Fetch(ctx context.Context, pools []common.Address, chunkSize int) *oracle.Snapshot
}

// BlockSource reports the block a cycle is looking at.
type BlockSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Sink records significant opportunities.
type Sink interface {
	Append(rec journal.Record) error
}

// Submitter turns an opportunity into a flash loan.
type Submitter interface {
	MakeArbitrage(caller common.Address, amountIn, minAmountOut *big.Int, r route.Route) (*flashswap.LoanSession, error)
}

// Decimals reports a token's decimals for display and the significance check.
type Decimals interface {
	Decimals(token common.Address) int
}

type Config struct {
	Paths    []arbitrage.Path
	Detector *arbitrage.Detector
	Fetcher  Fetcher
	Tokens   Decimals
	Registry prometheus.Registerer
	Logger   zerolog.Logger

	ChunkSize int
	// optional
	Blocks      BlockSource
	Journal     Sink
	Submitter   Submitter
	Caller      common.Address // principal MakeArbitrage is called as
	SlippageBps uint64
}

func (c *Config) validate() error {
	if c.Detector == nil {
		return errors.New("config: Detector cannot be nil")
	}
	if c.Fetcher == nil {
		return errors.New("config: Fetcher cannot be nil")
	}
	if c.Tokens == nil {
		return errors.New("config: Tokens cannot be nil")
	}
	if c.Registry == nil {
		return errors.New("config: Registry cannot be nil")
	}
	if c.Submitter != nil && c.Caller == (common.Address{}) {
		return errors.New("config: Caller is required with a Submitter")
	}
	return nil
}

// Scanner runs the detection cycle over a fixed set of paths
type Scanner struct {
	cfg     Config
	pools   []common.Address
	metrics *Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func New(cfg Config) (*Scanner, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	seen := make(map[common.Address]bool)
	var pools []common.Address
	for _, p := range cfg.Paths {
		for _, a := range []common.Address{p.Pair0.Address, p.Pair1.Address} {
			if !seen[a] {
				seen[a] = true
				pools = append(pools, a)
			}
		}
	}

	return &Scanner{
		cfg:     cfg,
		pools:   pools,
		metrics: NewMetrics(cfg.Registry),
		log:     cfg.Logger.With().Str("component", "scanner").Logger(),
		now:     time.Now,
	}, nil
}

// Pools is the deduplicated pool set the scanner reads every cycle.
func (s *Scanner) Pools() []common.Address {
	return append([]common.Address(nil), s.pools...)
}

// Report summarises one cycle
type Report struct {
	Block         uint64
	Paths         int
	FailedPools   int
	Opportunities []*arbitrage.Opportunity
	Skipped       map[string]int
	Executed      []*flashswap.LoanSession
}

// Cycle fetches reserves once and evaluates every path against that snapshot.
func (s *Scanner) Cycle(ctx context.Context) (*Report, error) {
	timer := prometheus.NewTimer(s.metrics.cycleDuration)
	defer timer.ObserveDuration()
	s.metrics.cycles.Inc()

	report := &Report{Paths: len(s.cfg.Paths), Skipped: make(map[string]int)}
	if s.cfg.Blocks != nil {
		block, err := s.cfg.Blocks.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("block number: %w", err)
		}
		report.Block = block
	}

	snap := s.cfg.Fetcher.Fetch(ctx, s.pools, s.cfg.ChunkSize)
	report.FailedPools = snap.Failed()
	s.metrics.failedPools.Add(float64(snap.Failed()))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	skip := func(p arbitrage.Path, reason string, err error) {
		report.Skipped[reason]++
		s.metrics.skips.WithLabelValues(reason).Inc()
		ev := s.log.Debug()
		if err != nil {
			ev = ev.Err(err)
		}
		ev.Str("pair0", p.Pair0.Address.Hex()).
			Str("pair1", p.Pair1.Address.Hex()).
			Str("reason", reason).
			Msg("path skipped")
	}

	for _, p := range s.cfg.Paths {
		r0, err := snap.Reserves(p.Pair0.Address)
		if err != nil {
			skip(p, SkipFetch, err)
			continue
		}
		r1, err := snap.Reserves(p.Pair1.Address)
		if err != nil {
			skip(p, SkipFetch, err)
			continue
		}

		opp, err := s.cfg.Detector.Evaluate(p, r0, r1)
		switch {
		case errors.Is(err, arbitrage.ErrInvalidPrice):
			skip(p, SkipInvalidPrice, err)
			continue
		case errors.Is(err, arbitrage.ErrNoBaseToken):
			skip(p, SkipNoBase, err)
			continue
		case err != nil:
			return nil, err
		case opp == nil:
			skip(p, SkipUnprofitable, nil)
			continue
		}

		decimals := s.cfg.Tokens.Decimals(opp.ProfitToken)
		if !arbitrage.Significant(opp.Profit, decimals) {
			skip(p, SkipInsignificant, nil)
			continue
		}

		s.metrics.opportunities.Inc()
		report.Opportunities = append(report.Opportunities, opp)
		s.log.Info().
			Uint64("block", report.Block).
			Str("buy", opp.BuyPair().Venue.Key()).
			Str("sell", opp.SellPair().Venue.Key()).
			Str("profitToken", opp.ProfitToken.Hex()).
			Float64("spreadPct", opp.Spread()).
			Str("amountIn", arbitrage.FormatAmount(opp.AmountIn, decimals)).
			Str("profit", arbitrage.FormatAmount(opp.Profit, decimals)).
			Msg("opportunity")

		if s.cfg.Journal != nil {
			if err := s.cfg.Journal.Append(journal.NewRecord(opp, report.Block, s.now())); err != nil {
				s.log.Warn().Err(err).Msg("journal append failed")
			}
		}
		if s.cfg.Submitter != nil {
			if session := s.submit(opp); session != nil {
				report.Executed = append(report.Executed, session)
			}
		}
	}

	return report, nil
}

func (s *Scanner) submit(opp *arbitrage.Opportunity) *flashswap.LoanSession {
	payload, err := arbitrage.BuildPayload(opp, s.cfg.SlippageBps)
	if err != nil {
		s.metrics.executions.WithLabelValues("build_failed").Inc()
		s.log.Warn().Err(err).Msg("build payload failed")
		return nil
	}
	session, err := s.cfg.Submitter.MakeArbitrage(s.cfg.Caller, payload.AmountIn, payload.MinAmountOut, payload.Route)
	if err != nil {
		s.metrics.executions.WithLabelValues("reverted").Inc()
		s.log.Warn().Err(err).Str("amountIn", payload.AmountIn.String()).Msg("flash loan reverted")
		return nil
	}
	s.metrics.executions.WithLabelValues("settled").Inc()
	s.log.Info().
		Str("session", session.ID.String()).
		Str("profit", session.Profit.String()).
		Msg("flash loan settled")
	return session
}

// Run cycles once immediately and then on every tick until ctx is done.
// A failed cycle is logged and the loop keeps going.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report, err := s.Cycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error().Err(err).Msg("cycle failed")
		} else {
			s.log.Debug().
				Uint64("block", report.Block).
				Int("paths", report.Paths).
				Int("failedPools", report.FailedPools).
				Int("opportunities", len(report.Opportunities)).
				Msg("cycle done")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
