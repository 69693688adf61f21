package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"papertrader/internal/bot"
	"papertrader/internal/risk"
	"papertrader/internal/series"
	"papertrader/internal/strategy"
)

const DefaultInitialCash = 10000

// BotsFile is the decoded bot definitions file.
type BotsFile struct {
	InitialCash float64
	Bots        []bot.TradingBot
}

type botsFile struct {
	Portfolio struct {
		InitialCash *float64 `mapstructure:"initialCash"`
	} `mapstructure:"portfolio"`
	Bots []botEntry `mapstructure:"bots"`
}

type botEntry struct {
	ID       string        `mapstructure:"id"`
	Name     string        `mapstructure:"name"`
	Symbol   string        `mapstructure:"symbol"`
	Active   *bool         `mapstructure:"active"`
	Settings settingsEntry `mapstructure:"settings"`
}

type settingsEntry struct {
	TradingMethod         string              `mapstructure:"tradingMethod"`
	Params                strategy.Params     `mapstructure:",squash"`
	MaxInvestmentPerTrade *float64            `mapstructure:"maxInvestmentPerTrade"`
	InvestmentType        risk.InvestmentType `mapstructure:"investmentType"`
	DollarDrop            risk.Protection     `mapstructure:"dollarDrop"`
	ChartPeriod           series.Interval     `mapstructure:"chartPeriod"`
}

// LoadBots reads bot definitions from a YAML file. Bots without an id get one
// derived from their position, symbol and name, so reloading the same file
// yields the same ids. Omitted settings take bot.DefaultSettings values.
func LoadBots(path string) (BotsFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return BotsFile{}, fmt.Errorf("reading bots file failed (%s): %w", path, err)
	}

	var raw botsFile
	if err := v.Unmarshal(&raw, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			intervalHook,
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return BotsFile{}, fmt.Errorf("parsing bots file failed: %w", err)
	}

	out := BotsFile{InitialCash: DefaultInitialCash}
	if raw.Portfolio.InitialCash != nil {
		out.InitialCash = *raw.Portfolio.InitialCash
	}
	seen := map[string]bool{}
	for i, entry := range raw.Bots {
		b, err := entry.toBot(i)
		if err != nil {
			return BotsFile{}, fmt.Errorf("bot %d: %w", i, err)
		}
		if seen[b.ID] {
			return BotsFile{}, fmt.Errorf("bot %d: duplicate id %s", i, b.ID)
		}
		seen[b.ID] = true
		out.Bots = append(out.Bots, b)
	}
	return out, nil
}

func (e botEntry) toBot(index int) (bot.TradingBot, error) {
	symbol := strings.ToUpper(strings.TrimSpace(e.Symbol))
	if symbol == "" {
		return bot.TradingBot{}, fmt.Errorf("symbol is required")
	}
	method := strings.TrimSpace(e.Settings.TradingMethod)
	if method != "" && !knownMethod(method) {
		return bot.TradingBot{}, fmt.Errorf("unknown tradingMethod %q", method)
	}

	settings := bot.DefaultSettings()
	settings.Method = strategy.New(method, e.Settings.Params)
	if e.Settings.MaxInvestmentPerTrade != nil {
		settings.Sizing.MaxPerTrade = *e.Settings.MaxInvestmentPerTrade
	}
	switch e.Settings.InvestmentType {
	case "":
	case risk.InvestDollars, risk.InvestShares:
		settings.Sizing.Type = e.Settings.InvestmentType
	default:
		return bot.TradingBot{}, fmt.Errorf("unknown investmentType %q", e.Settings.InvestmentType)
	}
	settings.Protection = e.Settings.DollarDrop
	if e.Settings.ChartPeriod != "" {
		settings.ChartPeriod = e.Settings.ChartPeriod
	}

	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = symbol + " " + string(settings.MethodOrDefault().Tag())
	}
	id := strings.TrimSpace(e.ID)
	if id == "" {
		id = stableID(index, symbol, name)
	}
	active := true
	if e.Active != nil {
		active = *e.Active
	}
	return bot.TradingBot{
		ID:          id,
		Name:        name,
		StockSymbol: symbol,
		IsActive:    active,
		Settings:    settings,
	}, nil
}

func stableID(index int, symbol, name string) string {
	key := fmt.Sprintf("%d/%s/%s", index, symbol, name)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

func knownMethod(tag string) bool {
	switch strategy.MethodTag(tag) {
	case strategy.TagTrendReversal,
		strategy.TagDirectionChangeReference,
		strategy.TagDirectionChangeBuy,
		strategy.TagPriceComparison,
		strategy.TagSlopeAnalysis,
		strategy.TagConfirmedRecovery:
		return true
	}
	return false
}

var intervalType = reflect.TypeOf(series.Interval(""))

func intervalHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != intervalType || from.Kind() != reflect.String {
		return data, nil
	}
	s := reflect.ValueOf(data).String()
	if strings.TrimSpace(s) == "" {
		return series.Interval(""), nil
	}
	return series.ParseInterval(s)
}
