package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"papertrader/internal/bot"
	"papertrader/internal/decision"
	"papertrader/internal/ledger"
	"papertrader/internal/md"
	"papertrader/internal/risk"
	"papertrader/internal/series"
)

const DefaultHistoryCount = 50

// Ledger is the bot and portfolio store the engine commits decisions to.
type Ledger interface {
	Bots(ctx context.Context) ([]bot.TradingBot, error)
	Bot(ctx context.Context, id string) (bot.TradingBot, error)
	Commit(ctx context.Context, botID string, d decision.Decision, price float64, now time.Time) (*ledger.Trade, error)
}

type MarketClock interface {
	IsOpen(ctx context.Context) (bool, error)
}

type Options struct {
	// HistoryCount is how many samples each evaluation looks at.
	HistoryCount int
	// Clock gates ticks to market hours. Nil means always open.
	Clock MarketClock
	Now   func() time.Time
}

// Result is the outcome of evaluating one bot.
type Result struct {
	BotID    string            `json:"botId"`
	Symbol   string            `json:"symbol"`
	Price    float64           `json:"price"`
	Samples  int               `json:"samples"`
	Decision decision.Decision `json:"decision"`
	Outcome  string            `json:"outcome"`
	Trade    *ledger.Trade     `json:"trade,omitempty"`
	Rejected string            `json:"rejected,omitempty"`
}

const (
	OutcomeHold     = "hold"
	OutcomeFilled   = "filled"
	OutcomeRejected = "rejected"
)

type Engine struct {
	ledger    Ledger
	quotes    md.HistorySource
	decisions *DecisionLogger
	opts      Options

	mu      sync.Mutex
	runCtx  context.Context
	timers  map[string]*time.Timer
	pending map[string]time.Time
	botMu   map[string]*sync.Mutex
}

func New(l Ledger, quotes md.HistorySource, decisions *DecisionLogger, opts Options) *Engine {
	if opts.HistoryCount <= 0 {
		opts.HistoryCount = DefaultHistoryCount
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		ledger:    l,
		quotes:    quotes,
		decisions: decisions,
		opts:      opts,
		runCtx:    context.Background(),
		timers:    map[string]*time.Timer{},
		pending:   map[string]time.Time{},
		botMu:     map[string]*sync.Mutex{},
	}
}

// Run ticks once immediately and then every interval until ctx is done.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	e.mu.Lock()
	e.runCtx = ctx
	e.mu.Unlock()
	defer e.Stop()

	e.tickLogged(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tickLogged(ctx)
		}
	}
}

func (e *Engine) tickLogged(ctx context.Context) {
	if err := e.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("tick failed", "error", err)
	}
}

// Tick evaluates every active bot once. Per-bot failures are logged and do
// not stop the remaining bots.
func (e *Engine) Tick(ctx context.Context) error {
	if e.opts.Clock != nil {
		open, err := e.opts.Clock.IsOpen(ctx)
		if err != nil {
			return err
		}
		if !open {
			slog.Debug("market closed, skipping tick")
			return nil
		}
	}
	bots, err := e.ledger.Bots(ctx)
	if err != nil {
		return fmt.Errorf("list bots: %w", err)
	}
	for _, b := range bots {
		if !b.IsActive {
			continue
		}
		if _, err := e.evaluate(ctx, b.ID, nil); err != nil {
			slog.Error("evaluate bot failed", "bot", b.ID, "symbol", b.StockSymbol, "error", err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// ConsumeBars calls OnBar for every bar received until ctx is done or bars
// is closed. It lets a stream handler enqueue bars without waiting on
// evaluations.
func (e *Engine) ConsumeBars(ctx context.Context, bars <-chan md.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-bars:
			if !ok {
				return
			}
			e.OnBar(ctx, bar)
		}
	}
}

// OnBar evaluates the active bots trading bar's symbol at the bar close.
func (e *Engine) OnBar(ctx context.Context, bar md.Bar) {
	bots, err := e.ledger.Bots(ctx)
	if err != nil {
		slog.Error("list bots failed", "error", err)
		return
	}
	price := bar.Close
	for _, b := range bots {
		if !b.IsActive || !strings.EqualFold(b.StockSymbol, bar.Symbol) {
			continue
		}
		if _, err := e.evaluate(ctx, b.ID, &price); err != nil {
			slog.Error("evaluate bot failed", "bot", b.ID, "symbol", b.StockSymbol, "error", err)
		}
	}
}

// Evaluate runs one decision for a single bot regardless of market hours.
func (e *Engine) Evaluate(ctx context.Context, botID string) (Result, error) {
	return e.evaluate(ctx, botID, nil)
}

// evaluate holds the bot's lock from reading its state until the decision is
// committed.
func (e *Engine) evaluate(ctx context.Context, botID string, price *float64) (Result, error) {
	lock := e.botLock(botID)
	lock.Lock()
	defer lock.Unlock()

	b, err := e.ledger.Bot(ctx, botID)
	if err != nil {
		return Result{}, err
	}
	interval := b.Settings.ChartPeriod
	if interval == "" {
		interval = series.Interval5Min
	}
	s, err := e.quotes.History(ctx, b.StockSymbol, interval, e.opts.HistoryCount)
	if err != nil {
		return Result{}, fmt.Errorf("history: %w", err)
	}

	var current float64
	if price != nil {
		current = *price
	} else {
		current, _, err = e.quotes.LatestPrice(ctx, b.StockSymbol)
		if err != nil {
			return Result{}, fmt.Errorf("latest price: %w", err)
		}
	}

	now := e.opts.Now().UTC()
	d := decision.DecideAt(b, s, current, now)
	res := Result{
		BotID:    b.ID,
		Symbol:   b.StockSymbol,
		Price:    current,
		Samples:  len(s),
		Decision: d,
		Outcome:  OutcomeHold,
	}

	trade, err := e.ledger.Commit(ctx, b.ID, d, current, now)
	switch {
	case isRejection(err):
		res.Outcome = OutcomeRejected
		res.Rejected = err.Error()
	case err != nil:
		return Result{}, fmt.Errorf("commit: %w", err)
	case trade != nil:
		res.Outcome = OutcomeFilled
		res.Trade = trade
	}

	e.decisions.Append(newRecord(e.decisions.RunID(), now, s, res))
	slog.Info("decision",
		"bot", b.ID,
		"symbol", b.StockSymbol,
		"method", d.Method,
		"action", d.Action,
		"price", current,
		"outcome", res.Outcome,
		"reason", d.Reason,
	)

	if d.UpdateRecovery != nil && d.UpdateRecovery.Pending() {
		e.schedule(b.ID, d.UpdateRecovery.CheckAt, now)
	}
	return res, nil
}

func (e *Engine) botLock(botID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.botMu[botID]
	if !ok {
		l = &sync.Mutex{}
		e.botMu[botID] = l
	}
	return l
}

func isRejection(err error) bool {
	return errors.Is(err, risk.ErrKillSwitch) ||
		errors.Is(err, risk.ErrInvalidPrice) ||
		errors.Is(err, risk.ErrInsufficientCash) ||
		errors.Is(err, risk.ErrPositionOpen) ||
		errors.Is(err, risk.ErrNoPosition)
}

// schedule re-evaluates botID once at checkAt, replacing any earlier timer.
func (e *Engine) schedule(botID string, checkAt, now time.Time) {
	delay := checkAt.Sub(now)
	if delay < 0 {
		delay = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.timers[botID]; ok {
		t.Stop()
	}
	ctx := e.runCtx
	e.pending[botID] = checkAt
	e.timers[botID] = time.AfterFunc(delay, func() {
		e.mu.Lock()
		delete(e.timers, botID)
		delete(e.pending, botID)
		e.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if _, err := e.Evaluate(ctx, botID); err != nil {
			slog.Error("recovery check failed", "bot", botID, "error", err)
		}
	})
	slog.Debug("recovery check scheduled", "bot", botID, "at", checkAt)
}

// PendingChecks lists scheduled recovery re-evaluations by bot.
func (e *Engine) PendingChecks() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]time.Time, len(e.pending))
	for k, v := range e.pending {
		out[k] = v
	}
	return out
}

// Stop cancels scheduled recovery checks.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, t := range e.timers {
		t.Stop()
		delete(e.timers, id)
		delete(e.pending, id)
	}
}
