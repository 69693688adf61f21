package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"papertrader/internal/series"
	"papertrader/internal/strategy"
)

// Record is one line of the NDJSON decision log.
type Record struct {
	RunID          string             `json:"run_id"`
	Timestamp      time.Time          `json:"timestamp"`
	LastSampleTime time.Time          `json:"last_sample_time"`
	Samples        int                `json:"samples"`
	BotID          string             `json:"bot_id"`
	Symbol         string             `json:"symbol"`
	Method         strategy.MethodTag `json:"method,omitempty"`
	Overlay        bool               `json:"overlay,omitempty"`
	Price          float64            `json:"price"`
	Action         strategy.Action    `json:"action"`
	Reason         string             `json:"reason"`
	Result         string             `json:"result"`
	RejectReason   string             `json:"reject_reason,omitempty"`
	TradeID        string             `json:"trade_id,omitempty"`
	Shares         float64            `json:"shares,omitempty"`
	Notional       float64            `json:"notional,omitempty"`
	RecoveryPhase  string             `json:"recovery_phase,omitempty"`
}

func newRecord(runID string, now time.Time, s series.Series, res Result) Record {
	d := res.Decision
	r := Record{
		RunID:          runID,
		Timestamp:      now,
		LastSampleTime: s.LastTime(),
		Samples:        res.Samples,
		BotID:          res.BotID,
		Symbol:         res.Symbol,
		Method:         d.Method,
		Overlay:        d.Overlay,
		Price:          res.Price,
		Action:         d.Action,
		Reason:         d.Reason,
		Result:         res.Outcome,
		RejectReason:   res.Rejected,
	}
	if res.Trade != nil {
		r.TradeID = res.Trade.ID
		r.Shares = res.Trade.Shares
		r.Notional = res.Trade.Notional
	}
	if d.UpdateRecovery != nil {
		r.RecoveryPhase = string(d.UpdateRecovery.Phase)
	}
	return r
}

// DecisionLogger appends records to a file. A nil logger discards them.
type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string, runID string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) RunID() string {
	if d == nil {
		return ""
	}
	return d.runID
}

func (d *DecisionLogger) Append(record Record) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(record)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal decision: %v\n", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write decision: %v\n", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush decision log: %v\n", err)
	}
}

func (d *DecisionLogger) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
