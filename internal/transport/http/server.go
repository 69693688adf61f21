// Package httpapi exposes bots, trades and pattern detection over a JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"papertrader/internal/bot"
	"papertrader/internal/engine"
	"papertrader/internal/ledger"
	"papertrader/internal/md"
)

// Store is the read side of the ledger.
type Store interface {
	Bots(ctx context.Context) ([]bot.TradingBot, error)
	Bot(ctx context.Context, id string) (bot.TradingBot, error)
	Portfolio(ctx context.Context) (ledger.Portfolio, error)
	Trades(ctx context.Context, botID string, limit int) ([]ledger.Trade, error)
}

type Evaluator interface {
	Evaluate(ctx context.Context, botID string) (engine.Result, error)
}

type ServerConfig struct {
	Addr      string
	Store     Store
	Evaluator Evaluator
	Quotes    md.HistorySource
}

type Server struct {
	addr   string
	router *gin.Engine
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil || cfg.Evaluator == nil || cfg.Quotes == nil {
		return nil, errors.New("http server requires store, evaluator and quotes")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h := &handlers{store: cfg.Store, evaluator: cfg.Evaluator, quotes: cfg.Quotes}
	h.register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
