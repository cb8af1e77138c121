// Package history mirrors finalized DCA cycles into Postgres for reporting.
// Writes are queued and best effort; the contract state never depends on them.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"dca-vault/internal/config"
	"dca-vault/internal/dca"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// CycleRecord is one row of dca_cycles.
type CycleRecord struct {
	Cycle          uint64
	StartedAt      time.Time
	FinalizedAt    time.Time
	TradesExecuted uint64
	NumTrades      uint64
	Recipient      string
	Payout         string
	LegsSucceeded  int
	LegsTotal      int
}

// LegRecord is one row of dca_swap_legs.
type LegRecord struct {
	Time          time.Time
	Cycle         uint64
	Leg           int
	CorrelationID string
	Executed      bool
	TokenIn       string
	TokenOut      string
}

// Records flattens a report into its cycle row and one row per leg.
func Records(report dca.CycleReport) (CycleRecord, []LegRecord) {
	cycle := CycleRecord{
		Cycle:          report.Cycle,
		StartedAt:      report.StartedAt,
		FinalizedAt:    report.FinalizedAt,
		TradesExecuted: report.TradesExecuted,
		NumTrades:      report.NumTrades,
		Recipient:      report.Recipient,
		Payout:         report.Payout.String(),
		LegsSucceeded:  report.Succeeded(),
		LegsTotal:      len(report.Outcomes),
	}
	legs := make([]LegRecord, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		leg := LegRecord{
			Time:          o.Timestamp,
			Cycle:         report.Cycle,
			Leg:           o.Leg,
			CorrelationID: o.CorrelationID,
			Executed:      o.Executed,
		}
		if o.TokenIn != nil {
			leg.TokenIn = o.TokenIn.String()
		}
		if o.EffectiveTokenOut != nil {
			leg.TokenOut = o.EffectiveTokenOut.String()
		}
		if leg.Time.IsZero() {
			leg.Time = report.FinalizedAt
		}
		legs = append(legs, leg)
	}
	return cycle, legs
}

type Writer struct {
	db      *sql.DB
	log     *zap.Logger
	schema  string
	reports chan dca.CycleReport
	started atomic.Bool
	dropped atomic.Uint64
}

// New returns a nil writer when history is disabled. A nil writer accepts
// and drops every call.
func New(cfg config.HistoryConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("history dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:      db,
		log:     log,
		schema:  schema,
		reports: make(chan dca.CycleReport, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

// Dropped counts reports discarded because the queue was full.
func (w *Writer) Dropped() uint64 {
	if w == nil {
		return 0
	}
	return w.dropped.Load()
}

func (w *Writer) EnqueueCycle(report dca.CycleReport) {
	if w == nil {
		return
	}
	select {
	case w.reports <- report:
	default:
		if w.dropped.Add(1) == 1 {
			w.log.Warn("history queue full", zap.Uint64("cycle", report.Cycle))
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case report := <-w.reports:
			w.write(ctx, report)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("history db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		cycle BIGINT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		trades_executed BIGINT NOT NULL,
		num_trades BIGINT NOT NULL,
		recipient TEXT NOT NULL,
		payout TEXT NOT NULL,
		legs_succeeded INTEGER NOT NULL,
		legs_total INTEGER NOT NULL,
		PRIMARY KEY (ts, cycle)
	)`, w.table("dca_cycles"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		cycle BIGINT NOT NULL,
		leg INTEGER NOT NULL,
		correlation_id TEXT NOT NULL,
		executed BOOLEAN NOT NULL,
		token_in TEXT NOT NULL,
		token_out TEXT NOT NULL
	)`, w.table("dca_swap_legs"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		w.log.Warn("timescale extension ensure failed", zap.Error(err))
		return nil
	}
	for _, name := range []string{"dca_cycles", "dca_swap_legs"} {
		if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table(name))); err != nil {
			w.log.Warn("hypertable create failed", zap.String("table", name), zap.Error(err))
		}
	}
	return nil
}

func (w *Writer) write(ctx context.Context, report dca.CycleReport) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	cycle, legs := Records(report)
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		w.log.Warn("history begin failed", zap.Error(err))
		return
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (
		ts, cycle, started_at, trades_executed, num_trades, recipient, payout, legs_succeeded, legs_total
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9
	)
	ON CONFLICT (ts, cycle) DO NOTHING`, w.table("dca_cycles")),
		cycle.FinalizedAt,
		cycle.Cycle,
		cycle.StartedAt,
		cycle.TradesExecuted,
		cycle.NumTrades,
		cycle.Recipient,
		cycle.Payout,
		cycle.LegsSucceeded,
		cycle.LegsTotal,
	); err != nil {
		w.log.Warn("history cycle insert failed", zap.Uint64("cycle", cycle.Cycle), zap.Error(err))
		return
	}
	legQuery := fmt.Sprintf(`INSERT INTO %s (
		ts, cycle, leg, correlation_id, executed, token_in, token_out
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7
	)`, w.table("dca_swap_legs"))
	for _, leg := range legs {
		if _, err := tx.ExecContext(ctx, legQuery,
			leg.Time,
			leg.Cycle,
			leg.Leg,
			leg.CorrelationID,
			leg.Executed,
			leg.TokenIn,
			leg.TokenOut,
		); err != nil {
			w.log.Warn("history leg insert failed", zap.String("correlation_id", leg.CorrelationID), zap.Error(err))
			return
		}
	}
	if err := tx.Commit(); err != nil {
		w.log.Warn("history commit failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
