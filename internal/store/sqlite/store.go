// Package sqlite persists bots, the shared portfolio and the trade history
// with gorm. Each decision is applied inside one transaction.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"papertrader/internal/bot"
	"papertrader/internal/decision"
	"papertrader/internal/ledger"
)

const portfolioRowID = 1

type Store struct {
	db   *gorm.DB
	opts ledger.Options
}

// NewStore opens (or creates) the database at path. initialCash funds the
// portfolio only when the database is new.
func NewStore(path string, initialCash float64, opts ledger.Options) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewStoreFromDB(db, initialCash, opts)
}

func NewStoreFromDB(db *gorm.DB, initialCash float64, opts ledger.Options) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&BotModel{}, &PortfolioModel{}, &TradeModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	row := PortfolioModel{ID: portfolioRowID, Cash: initialCash}
	if err := db.Where(PortfolioModel{ID: portfolioRowID}).FirstOrCreate(&row).Error; err != nil {
		return nil, fmt.Errorf("init portfolio: %w", err)
	}
	return &Store{db: db, opts: opts}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Seed inserts configured bots, or refreshes the configuration of bots that
// already exist without touching their runtime state.
func (s *Store) Seed(ctx context.Context, bots ...bot.TradingBot) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, b := range bots {
			if b.ID == "" {
				return fmt.Errorf("seed bot %q: missing id", b.Name)
			}
			cur, err := findBot(tx, b.ID)
			switch {
			case errors.Is(err, ledger.ErrBotNotFound):
				cur = b
			case err != nil:
				return err
			default:
				cur.Name = b.Name
				cur.StockSymbol = b.StockSymbol
				cur.IsActive = b.IsActive
				cur.Settings = b.Settings
			}
			if err := saveBot(tx, cur, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Bots(ctx context.Context) ([]bot.TradingBot, error) {
	var rows []BotModel
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]bot.TradingBot, 0, len(rows))
	for _, r := range rows {
		b, err := r.toBot()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) Bot(ctx context.Context, id string) (bot.TradingBot, error) {
	return findBot(s.db.WithContext(ctx), id)
}

func (s *Store) Portfolio(ctx context.Context) (ledger.Portfolio, error) {
	var row PortfolioModel
	if err := s.db.WithContext(ctx).First(&row, portfolioRowID).Error; err != nil {
		return ledger.Portfolio{}, err
	}
	return ledger.Portfolio{Cash: row.Cash}, nil
}

// Trades lists the newest trades first. An empty botID matches every bot.
func (s *Store) Trades(ctx context.Context, botID string, limit int) ([]ledger.Trade, error) {
	q := s.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if botID != "" {
		q = q.Where("bot_id = ?", botID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []TradeModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ledger.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTrade())
	}
	return out, nil
}

// Commit applies d to the stored bot and portfolio in one transaction. A
// risk rejection still persists the decision's state deltas and is returned
// after the transaction commits.
func (s *Store) Commit(ctx context.Context, botID string, d decision.Decision, price float64, now time.Time) (*ledger.Trade, error) {
	var (
		trade    *ledger.Trade
		rejected error
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := findBot(tx, botID)
		if err != nil {
			return err
		}
		var row PortfolioModel
		if err := tx.First(&row, portfolioRowID).Error; err != nil {
			return fmt.Errorf("load portfolio: %w", err)
		}
		portfolio := ledger.Portfolio{Cash: row.Cash}

		trade, rejected = ledger.Apply(&portfolio, &b, d, price, now, s.opts)

		if err := saveBot(tx, b, now); err != nil {
			return err
		}
		if err := tx.Model(&PortfolioModel{}).Where("id = ?", portfolioRowID).Update("cash", portfolio.Cash).Error; err != nil {
			return fmt.Errorf("save portfolio: %w", err)
		}
		if trade != nil {
			m := toTradeModel(*trade)
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("save trade: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trade, rejected
}

func findBot(db *gorm.DB, id string) (bot.TradingBot, error) {
	var row BotModel
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return bot.TradingBot{}, fmt.Errorf("bot %s: %w", id, ledger.ErrBotNotFound)
	}
	if err != nil {
		return bot.TradingBot{}, err
	}
	return row.toBot()
}

func saveBot(db *gorm.DB, b bot.TradingBot, now time.Time) error {
	m, err := toBotModel(b, now)
	if err != nil {
		return err
	}
	// Save writes every column, so a closed position is stored as NULL.
	if err := db.Save(&m).Error; err != nil {
		return fmt.Errorf("save bot %s: %w", b.ID, err)
	}
	return nil
}
