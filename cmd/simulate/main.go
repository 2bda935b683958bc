package main

import (
	"context"
	"flag"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/pulkyeet/flashswap-arb/internal/access"
	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/catalog"
	"github.com/pulkyeet/flashswap-arb/internal/config"
	"github.com/pulkyeet/flashswap-arb/internal/directory"
	"github.com/pulkyeet/flashswap-arb/internal/eth"
	"github.com/pulkyeet/flashswap-arb/internal/flashswap"
	"github.com/pulkyeet/flashswap-arb/internal/journal"
	"github.com/pulkyeet/flashswap-arb/internal/multicall"
	"github.com/pulkyeet/flashswap-arb/internal/oracle"
	"github.com/pulkyeet/flashswap-arb/internal/output"
	"github.com/pulkyeet/flashswap-arb/internal/pathindex"
	"github.com/pulkyeet/flashswap-arb/internal/route"
	"github.com/pulkyeet/flashswap-arb/internal/scanner"
	"github.com/pulkyeet/flashswap-arb/internal/simulator"
	"github.com/pulkyeet/flashswap-arb/internal/trader"
)

var (
	owner        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	lp           = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	executorAddr = common.HexToAddress("0x0000000000000000000000000000000000ec0001")
	traderAddr   = common.HexToAddress("0x0000000000000000000000000000000000ec0002")
)

func units(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

// skewed scales amount up by bps basis points
func skewed(amount *big.Int, bps int64) *big.Int {
	out := new(big.Int).Mul(amount, big.NewInt(10000+bps))
	return out.Quo(out, big.NewInt(10000))
}

func main() {
	skewBps := flag.Int64("skew", 150, "how much more USDC the second venue quotes per WETH, in bps")
	wethDepth := flag.Int64("weth", 1000, "WETH depth of each pool")
	price := flag.Int64("price", 2000, "USDC per WETH on the first venue")
	journalPath := flag.String("journal", "", "write opportunities to this parquet file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := output.Setup(cfg.Logging)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}
	venues := cat.Venues()
	if len(venues) < 2 {
		logger.Fatal().Int("venues", len(venues)).Msg("need at least two venues in the catalog")
	}

	// two catalog venues redeployed in process, same addresses
	chain := simulator.NewChain(logger)
	routers := make([]*simulator.Router, 2)
	for i, v := range venues[:2] {
		routers[i], err = chain.DeployRouter(v.Name, v.Router, v.FeeBps)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to deploy router")
		}
	}

	weth, usdc, dai := eth.WETHAddress, eth.USDCAddress, eth.DAIAddress
	depth := units(*wethDepth, eth.WETHDecimals)
	usdcDepth := units(*wethDepth**price, eth.USDCDecimals)
	daiDepth := units(*wethDepth**price, eth.DAIDecimals)

	seed := []struct {
		router     *simulator.Router
		a, b       common.Address
		amtA, amtB *big.Int
	}{
		{routers[0], weth, usdc, depth, usdcDepth},
		{routers[1], weth, usdc, depth, skewed(usdcDepth, *skewBps)},
		{routers[0], weth, dai, depth, daiDepth},
		{routers[1], weth, dai, depth, daiDepth},
	}
	for _, s := range seed {
		if err := chain.Mint(s.a, lp, s.amtA); err != nil {
			logger.Fatal().Err(err).Msg("mint")
		}
		if err := chain.Mint(s.b, lp, s.amtB); err != nil {
			logger.Fatal().Err(err).Msg("mint")
		}
		if _, err := s.router.AddLiquidity(lp, s.a, s.b, s.amtA, s.amtB); err != nil {
			logger.Fatal().Err(err).Msg("failed to add liquidity")
		}
	}

	// discovery and indexing read the simulated chain through multicall
	agg := multicall.NewClient(&multicall.Local{Handler: chain.CallView}, eth.Multicall3Address, logger)
	resolver, err := directory.NewResolver(agg, 1024, cfg.Multicall.ChunkSize, cfg.Multicall.Concurrency, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create resolver")
	}
	ctx := context.Background()
	var listings []arbitrage.VenueListing
	for _, r := range routers {
		// simulated pairs are not CREATE2 deployed, so no init code hash check
		listing, err := resolver.Discover(ctx, r.Venue(), [32]byte{})
		if err != nil {
			logger.Fatal().Err(err).Msg("discovery failed")
		}
		listings = append(listings, listing)
	}
	indexed := pathindex.Index(listings, cat.BaseTokens())
	logger.Info().Int("paths", len(indexed.Paths)).Int("pools", len(indexed.Pools)).Msg("paths indexed")

	traderRoles := access.NewRoles(owner)
	if err := traderRoles.Grant(owner, access.Executor, executorAddr); err != nil {
		logger.Fatal().Err(err).Msg("grant")
	}
	tr := trader.New(traderAddr, chain, traderRoles, logger)
	exec, err := flashswap.New(executorAddr, chain, access.NewRoles(owner), tr, routers[0].Address(), flashswap.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to deploy executor")
	}

	scanCfg := scanner.Config{
		Paths:     indexed.Paths,
		Detector:  arbitrage.NewDetector(cat.BaseTokens(), cfg.Solver.Fee, cfg.Solver.Slippage),
		Fetcher:   oracle.New(agg, cfg.Multicall.Concurrency, logger),
		Tokens:    cat,
		Registry:  prometheus.NewRegistry(),
		Logger:    logger,
		ChunkSize: cfg.Multicall.ChunkSize,
	}
	if *journalPath != "" {
		j, err := journal.Open(*journalPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open journal")
		}
		defer j.Close()
		scanCfg.Journal = j
	}
	s, err := scanner.New(scanCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create scanner")
	}

	report, err := s.Cycle(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("cycle failed")
	}
	if len(report.Opportunities) == 0 {
		logger.Info().Interface("skipped", report.Skipped).Msg("no opportunity, try a larger -skew")
		return
	}

	opps := report.Opportunities
	sort.Slice(opps, func(i, j int) bool { return opps[i].Profit.Cmp(opps[j].Profit) > 0 })
	best := opps[0]
	decimals := cat.Decimals(best.ProfitToken)

	payload, err := arbitrage.BuildPayload(best, cfg.Solver.SlippageBps)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build payload")
	}
	calldata, err := arbitrage.BuildArbitrageCalldata(payload)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build calldata")
	}
	encoded, err := route.Encode(payload)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to encode payload")
	}
	logger.Info().
		Str("amountIn", arbitrage.FormatAmount(payload.AmountIn, decimals)).
		Str("minOut", arbitrage.FormatAmount(payload.MinAmountOut, decimals)).
		Str("selector", common.Bytes2Hex(calldata[:4])).
		Int("calldataBytes", len(calldata)).
		Msg("payload built")

	if err := exec.ResetBorrowVenue(owner, best.BuyPair().Venue.Router); err != nil {
		logger.Fatal().Err(err).Msg("failed to set borrow venue")
	}

	exact, err := arbitrage.SimulateArbitrage(payload.AmountIn, best.Quad, best.BuyPair().Venue.FeeBps, best.SellPair().Venue.FeeBps)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to quote round trip")
	}

	// loan and claim land together or not at all
	var (
		session *flashswap.LoanSession
		claimed *big.Int
	)
	result, err := chain.ExecuteBundle(
		simulator.Step{Name: "flash loan", Run: func() error {
			var err error
			session, err = exec.ExecutePayload(owner, encoded)
			return err
		}},
		simulator.Step{Name: "claim", Run: func() error {
			var err error
			claimed, err = exec.ClaimProfit(owner, best.ProfitToken)
			return err
		}},
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to run bundle")
	}
	if !result.Success {
		logger.Fatal().Err(result.Err).Int("revertedAt", result.RevertedAt).Msg("bundle reverted")
	}
	logger.Info().
		Str("session", session.ID.String()).
		Str("token", cat.Symbol(best.ProfitToken)).
		Str("estimated", arbitrage.FormatAmount(best.Profit, decimals)).
		Str("exact", arbitrage.FormatAmount(exact, decimals)).
		Str("realised", arbitrage.FormatAmount(session.Profit, decimals)).
		Str("claimed", arbitrage.FormatAmount(claimed, decimals)).
		Msg("arbitrage settled")
}
