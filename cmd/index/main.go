package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/catalog"
	"github.com/pulkyeet/flashswap-arb/internal/config"
	"github.com/pulkyeet/flashswap-arb/internal/directory"
	"github.com/pulkyeet/flashswap-arb/internal/eth"
	"github.com/pulkyeet/flashswap-arb/internal/multicall"
	"github.com/pulkyeet/flashswap-arb/internal/output"
	"github.com/pulkyeet/flashswap-arb/internal/pathindex"
	"github.com/pulkyeet/flashswap-arb/internal/storage"
)

func main() {
	cacheSize := flag.Int("cache", 200_000, "pair metadata cache size")
	only := flag.String("venue", "", "index a single venue from the catalog")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := eth.Dial(ctx, cfg.RPC, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to ethereum")
	}
	defer client.Close()

	agg := multicall.NewClient(client, common.HexToAddress(cfg.Multicall.Address), logger)
	resolver, err := directory.NewResolver(agg, *cacheSize, cfg.Multicall.ChunkSize, cfg.Multicall.Concurrency, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create resolver")
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer store.Close()

	venues := cat.Venues()
	if *only != "" {
		v, err := cat.Venue(*only)
		if err != nil {
			logger.Fatal().Err(err).Msg("unknown venue")
		}
		venues = []arbitrage.Venue{v}
	}

	for _, v := range venues {
		listing, err := resolver.Discover(ctx, v, cat.InitCodeHash(v.Name))
		if err != nil {
			logger.Error().Err(err).Str("venue", v.Name).Msg("discovery failed")
			continue
		}
		if err := store.SaveListing(listing); err != nil {
			logger.Fatal().Err(err).Str("venue", v.Name).Msg("failed to save listing")
		}
		logger.Info().Str("venue", v.Name).Int("pairs", len(listing.Pairs)).Msg("venue indexed")
	}

	// paths are rebuilt from everything stored, including venues indexed earlier
	listings, err := store.Listings()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load listings")
	}
	res := pathindex.Index(listings, cat.BaseTokens())
	if err := store.SavePaths(res.Paths); err != nil {
		logger.Fatal().Err(err).Msg("failed to save paths")
	}

	stats, err := store.GetStats()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to read stats")
	}
	logger.Info().
		Int64("venues", stats["venues"]).
		Int64("pairs", stats["pairs"]).
		Int64("paths", stats["paths"]).
		Int("pools", len(res.Pools)).
		Msg("index complete")
}
