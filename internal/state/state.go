package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"papertrader/internal/bot"
	"papertrader/internal/decision"
	"papertrader/internal/ledger"
)

type Snapshot struct {
	Portfolio    ledger.Portfolio          `json:"portfolio"`
	Bots         map[string]bot.TradingBot `json:"bots"`
	Trades       []ledger.Trade            `json:"trades"`
	LastTickTime time.Time                 `json:"lastTickTime"`
}

// Store keeps every bot and the shared portfolio in memory. It can be
// checkpointed to a JSON file and restored on startup.
type Store struct {
	mu       sync.RWMutex
	opts     ledger.Options
	snapshot Snapshot
}

func NewStore(cash float64, opts ledger.Options) *Store {
	return &Store{
		opts: opts,
		snapshot: Snapshot{
			Portfolio: ledger.Portfolio{Cash: cash},
			Bots:      map[string]bot.TradingBot{},
		},
	}
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copy := s.snapshot
	copy.Bots = make(map[string]bot.TradingBot, len(s.snapshot.Bots))
	for k, v := range s.snapshot.Bots {
		copy.Bots[k] = v.Clone()
	}
	copy.Trades = slices.Clone(s.snapshot.Trades)
	return copy
}

// Seed registers configured bots. A bot already known keeps its position,
// stats and recovery state; only its configuration is replaced.
func (s *Store) Seed(_ context.Context, bots ...bot.TradingBot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bots {
		if b.ID == "" {
			return fmt.Errorf("seed bot %q: missing id", b.Name)
		}
		cur, ok := s.snapshot.Bots[b.ID]
		if !ok {
			s.snapshot.Bots[b.ID] = b.Clone()
			continue
		}
		cur.Name = b.Name
		cur.StockSymbol = b.StockSymbol
		cur.IsActive = b.IsActive
		cur.Settings = b.Settings
		s.snapshot.Bots[b.ID] = cur
	}
	return nil
}

// Bots returns all bots ordered by ID.
func (s *Store) Bots(_ context.Context) ([]bot.TradingBot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bot.TradingBot, 0, len(s.snapshot.Bots))
	for _, b := range s.snapshot.Bots {
		out = append(out, b.Clone())
	}
	slices.SortFunc(out, func(a, b bot.TradingBot) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *Store) Bot(_ context.Context, id string) (bot.TradingBot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.snapshot.Bots[id]
	if !ok {
		return bot.TradingBot{}, fmt.Errorf("bot %s: %w", id, ledger.ErrBotNotFound)
	}
	return b.Clone(), nil
}

func (s *Store) Portfolio(_ context.Context) (ledger.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Portfolio, nil
}

// Trades returns the newest trades first. An empty botID matches every bot;
// limit <= 0 returns all of them.
func (s *Store) Trades(_ context.Context, botID string, limit int) ([]ledger.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ledger.Trade
	for i := len(s.snapshot.Trades) - 1; i >= 0; i-- {
		t := s.snapshot.Trades[i]
		if botID != "" && t.BotID != botID {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Commit applies d to the stored bot under the store lock.
func (s *Store) Commit(_ context.Context, botID string, d decision.Decision, price float64, now time.Time) (*ledger.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.snapshot.Bots[botID]
	if !ok {
		return nil, fmt.Errorf("bot %s: %w", botID, ledger.ErrBotNotFound)
	}
	b := cur.Clone()
	portfolio := s.snapshot.Portfolio
	trade, err := ledger.Apply(&portfolio, &b, d, price, now, s.opts)
	s.snapshot.Bots[botID] = b
	s.snapshot.Portfolio = portfolio
	if now.After(s.snapshot.LastTickTime) {
		s.snapshot.LastTickTime = now
	}
	if trade != nil {
		s.snapshot.Trades = append(s.snapshot.Trades, *trade)
	}
	return trade, err
}

func (s *Store) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := json.MarshalIndent(s.snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *Store) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return err
	}
	if snapshot.Bots == nil {
		snapshot.Bots = map[string]bot.TradingBot{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
	return nil
}
