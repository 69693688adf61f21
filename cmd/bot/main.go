package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"papertrader/internal/bot"
	"papertrader/internal/config"
	"papertrader/internal/engine"
	"papertrader/internal/ledger"
	"papertrader/internal/logger"
	"papertrader/internal/md"
	"papertrader/internal/risk"
	"papertrader/internal/state"
	"papertrader/internal/store/sqlite"
	httpapi "papertrader/internal/transport/http"
)

const barQueueSize = 256

type ledgerStore interface {
	engine.Ledger
	httpapi.Store
	Seed(ctx context.Context, bots ...bot.TradingBot) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.LogLevel, os.Stdout)

	if err := run(cfg); err != nil {
		slog.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("bot shutdown complete")
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := generateRunID()
	decisions, err := engine.NewDecisionLogger(cfg.DecisionsPath, runID)
	if err != nil {
		return err
	}
	defer func() {
		if err := decisions.Close(); err != nil {
			slog.Error("failed to close decision logger", "error", err)
		}
	}()

	opts := ledger.Options{Gate: risk.Gate{}, KillSwitch: cfg.KillSwitch}
	store, closeStore, err := openStore(cfg, opts)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.Seed(ctx, cfg.Bots...); err != nil {
		return err
	}

	alpacaSource := md.NewAlpacaSource(cfg.APIKey, cfg.APISecret, cfg.DataBaseURL, cfg.Feed)
	var quotes md.HistorySource = alpacaSource
	var cache *md.Cache
	if cfg.Mode == config.ModeStream {
		cache = md.NewCache(md.DefaultCacheCapacity, alpacaSource)
		quotes = cache
	}

	engOpts := engine.Options{HistoryCount: cfg.HistoryCount}
	if cfg.MarketHoursOnly && cfg.Mode == config.ModePoll {
		engOpts.Clock = md.NewMarketClock(cfg.APIKey, cfg.APISecret, cfg.TradingBaseURL)
	}
	eng := engine.New(store, quotes, decisions, engOpts)
	defer eng.Stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.HTTPAddr != "" {
		srv, err := httpapi.NewServer(httpapi.ServerConfig{
			Addr:      cfg.HTTPAddr,
			Store:     store,
			Evaluator: eng,
			Quotes:    quotes,
		})
		if err != nil {
			return err
		}
		g.Go(func() error {
			slog.Info("http api listening", "addr", srv.Addr())
			return srv.Start(gctx)
		})
	}

	slog.Info("starting bot", "run_id", runID, "mode", cfg.Mode, "store", cfg.Store, "bots", len(cfg.Bots), "feed", cfg.Feed)
	switch cfg.Mode {
	case config.ModeStream:
		bars := make(chan md.Bar, barQueueSize)
		g.Go(func() error {
			eng.ConsumeBars(gctx, bars)
			return nil
		})
		g.Go(func() error {
			err := md.StartStream(gctx, cfg.APIKey, cfg.APISecret, cfg.Feed, symbols(cfg.Bots), func(bar md.Bar) {
				cache.Add(bar)
				select {
				case bars <- bar:
				default:
					slog.Warn("bar queue full, dropping bar", "symbol", bar.Symbol, "timestamp", bar.Timestamp)
				}
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	default:
		g.Go(func() error {
			eng.Run(gctx, cfg.Interval)
			return nil
		})
	}

	return g.Wait()
}

func openStore(cfg config.Config, opts ledger.Options) (ledgerStore, func(), error) {
	if cfg.Store == config.StoreSQLite {
		s, err := sqlite.NewStore(cfg.DBPath, cfg.InitialCash, opts)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				slog.Error("failed to close database", "error", err)
			}
		}, nil
	}

	s := state.NewStore(cfg.InitialCash, opts)
	if err := s.Load(cfg.CheckpointPath); err == nil {
		slog.Info("loaded checkpoint", "path", cfg.CheckpointPath)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Save(cfg.CheckpointPath); err != nil {
			slog.Error("failed to save checkpoint", "error", err)
		}
	}, nil
}

func symbols(bots []bot.TradingBot) []string {
	seen := map[string]bool{}
	var out []string
	for _, b := range bots {
		if !b.IsActive || seen[b.StockSymbol] {
			continue
		}
		seen[b.StockSymbol] = true
		out = append(out, b.StockSymbol)
	}
	return out
}

func generateRunID() string {
	timestamp := time.Now().UTC().Format("20060102T150405")
	return timestamp + "-" + uuid.NewString()[:8]
}
