package dca

import (
	"strconv"
	"time"

	"dca-vault/internal/coin"
)

// finalize closes the open cycle. It returns the cycle report and the payout
// to the recipient, which is nil when no leg produced output.
func finalize(cfg Config, st *State, now time.Time) (*CycleReport, *BankSend) {
	var payout coin.Coins
	for _, o := range st.Outcomes {
		if o.Executed && o.EffectiveTokenOut != nil {
			payout = payout.Add(*o.EffectiveTokenOut)
		}
	}
	if st.TradesExecuted < cfg.NumTrades {
		st.TradesExecuted++
	}
	// A resume during the cycle may already have pushed the schedule out.
	if next := st.CycleStartedAt.Add(cfg.SwapInterval); next.After(st.NextEligibleTime) {
		st.NextEligibleTime = next
	}

	report := &CycleReport{
		Cycle:          st.Cycle,
		StartedAt:      st.CycleStartedAt,
		FinalizedAt:    now,
		TradesExecuted: st.TradesExecuted,
		NumTrades:      cfg.NumTrades,
		NextEligible:   st.NextEligibleTime,
		Recipient:      cfg.Recipient,
		Payout:         payout,
		Outcomes:       st.Outcomes,
	}
	st.Outcomes = nil
	st.PendingLegs = nil

	if len(payout) == 0 {
		return report, nil
	}
	return report, &BankSend{To: cfg.Recipient, Amount: payout}
}

func closeCycle(cfg Config, st *State, now time.Time, resp *Response) {
	report, send := finalize(cfg, st, now)
	if send != nil {
		resp.Messages = append(resp.Messages, Message{Send: send})
	}
	resp.Report = report
	resp.addAttribute("cycle_finalized", strconv.FormatUint(report.Cycle, 10))
	resp.addAttribute("trades_executed", strconv.FormatUint(report.TradesExecuted, 10))
}
