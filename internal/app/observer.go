package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dca-vault/internal/alerts"
	"dca-vault/internal/dca"
	"dca-vault/internal/history"
	"dca-vault/internal/metrics"

	"go.uber.org/zap"
)

// observer fans committed contract activity out to metrics, history and
// telegram alerts.
type observer struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	alerts  *alerts.Telegram
	history *history.Writer
}

func (o *observer) CycleStarted(ctx context.Context, cycle uint64, legs int) {
	o.metrics.CyclesStarted.Inc()
	o.log.Info("swap cycle started", zap.Uint64("cycle", cycle), zap.Int("legs", legs))
}

func (o *observer) LegResolved(ctx context.Context, result dca.SwapResult, stray bool) {
	switch {
	case stray:
		o.metrics.StrayResults.Inc()
	case result.Succeeded():
		o.metrics.LegsSucceeded.Inc()
	default:
		o.metrics.LegsFailed.Inc()
	}
}

func (o *observer) CycleFinalized(ctx context.Context, report dca.CycleReport) {
	o.metrics.CyclesFinalized.Inc()
	o.metrics.TradesRemaining.Set(float64(report.NumTrades - report.TradesExecuted))
	o.history.EnqueueCycle(report)
	o.notify(ctx, formatReport(report))
}

func (o *observer) SubmitFailed(ctx context.Context, req dca.SwapRequest, err error) {
	o.metrics.SubmitFailed.Inc()
	o.notify(ctx, fmt.Sprintf("swap leg %s rejected by router: %v", req.CorrelationID, err))
}

func (o *observer) notify(ctx context.Context, msg string) {
	if !o.alerts.Enabled() {
		return
	}
	if err := o.alerts.Send(ctx, msg); err != nil {
		o.log.Warn("telegram alert failed", zap.Error(err))
	}
}

func formatReport(r dca.CycleReport) string {
	payout := r.Payout.String()
	if payout == "" {
		payout = "nothing"
	}
	lines := []string{
		fmt.Sprintf("dca cycle %d finalized: %d/%d legs filled", r.Cycle, r.Succeeded(), len(r.Outcomes)),
		fmt.Sprintf("trades: %d/%d", r.TradesExecuted, r.NumTrades),
		fmt.Sprintf("paid %s to %s", payout, r.Recipient),
	}
	if r.TradesExecuted < r.NumTrades {
		lines = append(lines, "next swap: "+r.NextEligible.UTC().Format(time.RFC3339))
	}
	return strings.Join(lines, "\n")
}
