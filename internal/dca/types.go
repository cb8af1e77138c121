package dca

import (
	"fmt"
	"time"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

type StrategyType string

const StrategyLinear StrategyType = "linear"

type Destination struct {
	Denom  string      `json:"denom"`
	Weight sdkmath.Int `json:"weight"`
}

// Config is written once at instantiation and never mutated.
type Config struct {
	Owner           string          `json:"owner"`
	Executor        string          `json:"executor"`
	Recipient       string          `json:"recipient"`
	StrategyType    StrategyType    `json:"strategy_type"`
	SourceDenom     string          `json:"source_denom"`
	Destinations    []Destination   `json:"destinations"`
	AmountPerTrade  sdkmath.Int     `json:"amount_per_trade"`
	NumTrades       uint64          `json:"num_trades"`
	SwapInterval    time.Duration   `json:"swap_interval"`
	MaxSlippage     decimal.Decimal `json:"max_slippage"`
	QuoteWindow     time.Duration   `json:"quote_window"`
	RouterContract  string          `json:"router_contract"`
	AssignRemainder bool            `json:"assign_remainder,omitempty"`
}

func (c Config) TotalWeight() sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, d := range c.Destinations {
		total = total.Add(d.Weight)
	}
	return total
}

// TrackedDenoms lists the source denom followed by every destination denom.
func (c Config) TrackedDenoms() []string {
	out := make([]string, 0, len(c.Destinations)+1)
	out = append(out, c.SourceDenom)
	for _, d := range c.Destinations {
		out = append(out, d.Denom)
	}
	return out
}

type SwapOutcome struct {
	Leg               int        `json:"leg"`
	CorrelationID     string     `json:"correlation_id"`
	Executed          bool       `json:"executed"`
	TokenIn           *coin.Coin `json:"token_in,omitempty"`
	EffectiveTokenOut *coin.Coin `json:"effective_token_out,omitempty"`
	Timestamp         time.Time  `json:"timestamp"`
}

// PendingLeg is a dispatched leg of the open cycle that has no result yet.
type PendingLeg struct {
	CorrelationID string    `json:"correlation_id"`
	Leg           int       `json:"leg"`
	Offer         coin.Coin `json:"offer"`
}

type State struct {
	NextEligibleTime time.Time     `json:"next_eligible_time"`
	Paused           bool          `json:"paused"`
	Cancelled        bool          `json:"cancelled,omitempty"`
	TradesExecuted   uint64        `json:"trades_executed"`
	Cycle            uint64        `json:"cycle"`
	CycleStartedAt   time.Time     `json:"cycle_started_at"`
	PendingLegs      []PendingLeg  `json:"pending_legs,omitempty"`
	Outcomes         []SwapOutcome `json:"outcomes,omitempty"`
}

// CycleOpen reports whether dispatched legs are still awaiting results.
func (s State) CycleOpen() bool {
	return len(s.PendingLegs) > 0
}

func (s State) pendingIndex(correlationID string) int {
	for i, leg := range s.PendingLegs {
		if leg.CorrelationID == correlationID {
			return i
		}
	}
	return -1
}

// CorrelationID tags one leg of one cycle.
func CorrelationID(cycle uint64, leg int) string {
	return fmt.Sprintf("dca/%d/%d", cycle, leg)
}

// CycleReport describes a finalized cycle.
type CycleReport struct {
	Cycle          uint64        `json:"cycle"`
	StartedAt      time.Time     `json:"started_at"`
	FinalizedAt    time.Time     `json:"finalized_at"`
	TradesExecuted uint64        `json:"trades_executed"`
	NumTrades      uint64        `json:"num_trades"`
	NextEligible   time.Time     `json:"next_eligible"`
	Recipient      string        `json:"recipient"`
	Payout         coin.Coins    `json:"payout"`
	Outcomes       []SwapOutcome `json:"outcomes"`
}

func (r CycleReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Executed {
			n++
		}
	}
	return n
}

type UpcomingSwap struct {
	NextSwap   time.Time `json:"next_swap"`
	CanExecute bool      `json:"can_execute"`
}
