package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pulkyeet/flashswap-arb/internal/arbitrage"
	"github.com/pulkyeet/flashswap-arb/internal/catalog"
	"github.com/pulkyeet/flashswap-arb/internal/config"
	"github.com/pulkyeet/flashswap-arb/internal/eth"
	"github.com/pulkyeet/flashswap-arb/internal/journal"
	"github.com/pulkyeet/flashswap-arb/internal/multicall"
	"github.com/pulkyeet/flashswap-arb/internal/oracle"
	"github.com/pulkyeet/flashswap-arb/internal/output"
	"github.com/pulkyeet/flashswap-arb/internal/scanner"
	"github.com/pulkyeet/flashswap-arb/internal/storage"
)

// journalFile stamps the run start into the journal name, parquet files can't be appended to
func journalFile(path string, at time.Time) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(path, ext), at.Unix(), ext)
}

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	noJournal := flag.Bool("no-journal", false, "don't write opportunities to parquet")
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

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	paths, err := store.Paths()
	store.Close()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load paths")
	}
	if len(paths) == 0 {
		logger.Fatal().Str("store", cfg.Storage.Path).Msg("no paths indexed, run cmd/index first")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := eth.Dial(ctx, cfg.RPC, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to ethereum")
	}
	defer client.Close()

	agg := multicall.NewClient(client, common.HexToAddress(cfg.Multicall.Address), logger)
	scanCfg := scanner.Config{
		Paths:     paths,
		Detector:  arbitrage.NewDetector(cat.BaseTokens(), cfg.Solver.Fee, cfg.Solver.Slippage),
		Fetcher:   oracle.New(agg, cfg.Multicall.Concurrency, logger),
		Tokens:    cat,
		Registry:  prometheus.DefaultRegisterer,
		Logger:    logger,
		ChunkSize: cfg.Multicall.ChunkSize,
		Blocks:    client,
	}

	if !*noJournal {
		j, err := journal.Open(journalFile(cfg.Storage.JournalPath, time.Now()))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open journal")
		}
		defer func() {
			if err := j.Close(); err != nil {
				logger.Error().Err(err).Msg("failed to close journal")
			}
			logger.Info().Int("rows", j.Rows()).Msg("journal closed")
		}()
		scanCfg.Journal = j
	}

	s, err := scanner.New(scanCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create scanner")
	}

	if cfg.Metrics.Enabled {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info().Str("addr", cfg.Metrics.Addr).Msg("serving /metrics")
	}

	logger.Info().
		Int("paths", len(paths)).
		Int("pools", len(s.Pools())).
		Dur("interval", cfg.Scan.PollInterval).
		Msg("scanner started")

	if *once {
		report, err := s.Cycle(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("cycle failed")
			return
		}
		logger.Info().
			Uint64("block", report.Block).
			Int("opportunities", len(report.Opportunities)).
			Int("failedPools", report.FailedPools).
			Msg("cycle done")
		return
	}

	if err := s.Run(ctx, cfg.Scan.PollInterval); err != nil {
		logger.Error().Err(err).Msg("scanner stopped")
	}
	logger.Info().Msg("shutting down")
}
