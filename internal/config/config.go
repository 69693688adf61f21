package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"papertrader/internal/bot"
)

type Mode string

const (
	// ModePoll evaluates every bot on a fixed interval from historical bars.
	ModePoll Mode = "poll"
	// ModeStream evaluates bots as minute bars arrive on the market data stream.
	ModeStream Mode = "stream"
)

type StoreKind string

const (
	StoreMemory StoreKind = "memory"
	StoreSQLite StoreKind = "sqlite"
)

type Config struct {
	Mode            Mode
	Feed            string
	Interval        time.Duration
	HistoryCount    int
	KillSwitch      bool
	MarketHoursOnly bool
	Store           StoreKind
	DBPath          string
	CheckpointPath  string
	DecisionsPath   string
	BotsPath        string
	HTTPAddr        string
	LogLevel        string
	DataBaseURL     string
	TradingBaseURL  string
	APIKey          string
	APISecret       string

	InitialCash float64
	Bots        []bot.TradingBot
}

func Load() (Config, error) {
	var cfg Config
	var mode string
	var store string

	loadDotEnvIfPresent(".env")

	flag.StringVar(&mode, "mode", string(ModePoll), "run mode: poll or stream")
	flag.StringVar(&cfg.Feed, "feed", "iex", "market data feed: iex or sip")
	flag.DurationVar(&cfg.Interval, "interval", time.Minute, "evaluation interval in poll mode")
	flag.IntVar(&cfg.HistoryCount, "history-count", 50, "samples fetched per evaluation")
	flag.BoolVar(&cfg.KillSwitch, "kill-switch", false, "if true, never fill simulated trades")
	flag.BoolVar(&cfg.MarketHoursOnly, "market-hours-only", true, "skip poll ticks while the market is closed")
	flag.StringVar(&store, "store", string(StoreMemory), "ledger store: memory or sqlite")
	flag.StringVar(&cfg.DBPath, "db-path", "data/papertrader.db", "sqlite database path")
	flag.StringVar(&cfg.CheckpointPath, "checkpoint-path", "checkpoint.json", "path to checkpoint file (memory store)")
	flag.StringVar(&cfg.DecisionsPath, "decisions-path", "decisions.ndjson", "path to decisions log")
	flag.StringVar(&cfg.BotsPath, "bots", "bots.yaml", "bot definitions file")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "HTTP API listen address; empty disables it")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.StringVar(&cfg.DataBaseURL, "data-base-url", "", "market data base URL override")
	flag.StringVar(&cfg.TradingBaseURL, "trading-base-url", "https://paper-api.alpaca.markets", "trading API base URL (market clock)")
	flag.Parse()

	cfg.Mode = Mode(mode)
	cfg.Store = StoreKind(store)
	cfg.APIKey = os.Getenv("APCA_API_KEY_ID")
	cfg.APISecret = os.Getenv("APCA_API_SECRET_KEY")
	if level := os.Getenv("LOG_LEVEL"); level != "" && !flagSet("log-level") {
		cfg.LogLevel = level
	}

	file, err := LoadBots(cfg.BotsPath)
	if err != nil {
		return cfg, err
	}
	cfg.InitialCash = file.InitialCash
	cfg.Bots = file.Bots

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func validate(cfg Config) error {
	if cfg.Mode != ModePoll && cfg.Mode != ModeStream {
		return fmt.Errorf("invalid mode: %s", cfg.Mode)
	}
	if cfg.Store != StoreMemory && cfg.Store != StoreSQLite {
		return fmt.Errorf("invalid store: %s", cfg.Store)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return fmt.Errorf("APCA_API_KEY_ID and APCA_API_SECRET_KEY are required")
	}
	if cfg.Feed != "iex" && cfg.Feed != "sip" {
		return fmt.Errorf("invalid feed: %s", cfg.Feed)
	}
	if cfg.Mode == ModePoll && cfg.Interval <= 0 {
		return fmt.Errorf("interval must be > 0")
	}
	if cfg.HistoryCount < 3 {
		return fmt.Errorf("history-count must be >= 3")
	}
	if cfg.Store == StoreSQLite && cfg.DBPath == "" {
		return fmt.Errorf("db-path is required for the sqlite store")
	}
	if cfg.InitialCash < 0 {
		return fmt.Errorf("portfolio.initialCash must be >= 0")
	}
	if len(cfg.Bots) == 0 {
		return fmt.Errorf("no bots configured")
	}
	return nil
}
