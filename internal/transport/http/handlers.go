package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"papertrader/internal/ledger"
	"papertrader/internal/md"
	"papertrader/internal/pattern"
	"papertrader/internal/series"
)

const (
	defaultPatternCount = 100
	maxPatternCount     = 1000
	defaultTradeLimit   = 50
)

type handlers struct {
	store     Store
	evaluator Evaluator
	quotes    md.HistorySource
}

func (h *handlers) register(group *gin.RouterGroup) {
	group.GET("/bots", h.listBots)
	group.GET("/bots/:id", h.getBot)
	group.POST("/bots/:id/evaluate", h.evaluateBot)
	group.GET("/bots/:id/trades", h.botTrades)
	group.GET("/portfolio", h.portfolio)
	group.GET("/trades", h.allTrades)
	group.GET("/symbols/:symbol/patterns", h.patterns)
}

func (h *handlers) listBots(c *gin.Context) {
	bots, err := h.store.Bots(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bots": bots})
}

func (h *handlers) getBot(c *gin.Context) {
	b, err := h.store.Bot(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *handlers) evaluateBot(c *gin.Context) {
	res, err := h.evaluator.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handlers) botTrades(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.store.Bot(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	h.trades(c, id)
}

func (h *handlers) allTrades(c *gin.Context) {
	h.trades(c, "")
}

func (h *handlers) trades(c *gin.Context, botID string) {
	limit, err := intQuery(c, "limit", defaultTradeLimit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	trades, err := h.store.Trades(c.Request.Context(), botID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if trades == nil {
		trades = []ledger.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (h *handlers) portfolio(c *gin.Context) {
	p, err := h.store.Portfolio(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type patternsResponse struct {
	Symbol           string                            `json:"symbol"`
	Interval         series.Interval                   `json:"interval"`
	Samples          int                               `json:"samples"`
	LastSampleTime   time.Time                         `json:"lastSampleTime"`
	DirectionChanges []pattern.DirectionChangePoint    `json:"directionChanges"`
	Beats            []pattern.BeatSequence            `json:"beats"`
	PotentialProfit  []pattern.PotentialProfitSequence `json:"potentialProfit"`
	PotentialLoss    []pattern.PotentialLossSequence   `json:"potentialLoss"`
	Trend            pattern.Trend                     `json:"trend"`
	LastMovement     pattern.Trend                     `json:"lastMovement"`
}

func (h *handlers) patterns(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Param("symbol")))
	interval := series.Interval5Min
	if raw := c.Query("interval"); raw != "" {
		iv, err := series.ParseInterval(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "supported": series.Intervals()})
			return
		}
		interval = iv
	}
	count, err := intQuery(c, "count", defaultPatternCount)
	if err != nil || count <= 0 || count > maxPatternCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be between 1 and 1000"})
		return
	}
	minRun, err := intQuery(c, "minRun", pattern.DefaultMinRun)
	if err != nil || minRun < pattern.MinRunFloor {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("minRun must be an integer >= %d", pattern.MinRunFloor)})
		return
	}
	sensitivity := pattern.DefaultSensitivity
	if raw := c.Query("sensitivity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensitivity"})
			return
		}
		sensitivity = v
	}

	s, err := h.quotes.History(c.Request.Context(), symbol, interval, count)
	if err != nil {
		writeError(c, err)
		return
	}

	beats := pattern.DetectBeats(s, minRun)
	c.JSON(http.StatusOK, patternsResponse{
		Symbol:           symbol,
		Interval:         interval,
		Samples:          len(s),
		LastSampleTime:   s.LastTime(),
		DirectionChanges: nonNil(pattern.DetectDirectionChanges(s)),
		Beats:            nonNil(beats),
		PotentialProfit:  nonNil(pattern.TrimForPotentialProfit(beats)),
		PotentialLoss:    nonNil(pattern.DetectDownUpDown(s)),
		Trend:            pattern.EstimateTrend(s, sensitivity),
		LastMovement:     pattern.LastIntervalMovement(s, 0),
	})
}

func intQuery(c *gin.Context, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return v, nil
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrBotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, md.ErrNoData):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"ip", c.ClientIP(),
			"dur", time.Since(start),
		)
	}
}
