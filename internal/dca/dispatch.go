package dca

import (
	"context"
	"strconv"
	"time"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"
)

// SplitTrade divides AmountPerTrade across destinations by weight, rounding
// each leg down. The remainder goes to the last leg when AssignRemainder is set.
func SplitTrade(cfg Config) []coin.Coin {
	total := cfg.TotalWeight()
	legs := make([]coin.Coin, len(cfg.Destinations))
	allocated := sdkmath.ZeroInt()
	for i, dest := range cfg.Destinations {
		amount := sdkmath.ZeroInt()
		if total.IsPositive() {
			amount = dest.Weight.Mul(cfg.AmountPerTrade).Quo(total)
		}
		allocated = allocated.Add(amount)
		legs[i] = coin.New(cfg.SourceDenom, amount)
	}
	if cfg.AssignRemainder && len(legs) > 0 {
		if dust := cfg.AmountPerTrade.Sub(allocated); dust.IsPositive() {
			last := len(legs) - 1
			legs[last].Amount = legs[last].Amount.Add(dust)
		}
	}
	return legs
}

// SwapRequest builds the router request for leg of the destination list.
func (c Config) SwapRequest(correlationID string, leg int, offer coin.Coin) SwapRequest {
	return SwapRequest{
		CorrelationID: correlationID,
		Router:        c.RouterContract,
		InputCoin:     offer,
		OutputDenom:   c.Destinations[leg].Denom,
		Slippage: Slippage{Twap: TwapSlippage{
			Window:             c.QuoteWindow,
			SlippagePercentage: c.MaxSlippage,
		}},
	}
}

// PendingRequests rebuilds the router requests of the open cycle's unresolved legs.
func (c *Contract) PendingRequests(ctx context.Context) ([]SwapRequest, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]SwapRequest, 0, len(st.PendingLegs))
	for _, leg := range st.PendingLegs {
		out = append(out, cfg.SwapRequest(leg.CorrelationID, leg.Leg, leg.Offer))
	}
	return out, nil
}

// PerformDca opens a cycle and returns one swap call per non-zero leg.
func (c *Contract) PerformDca(ctx context.Context, caller string, now time.Time) (Response, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return Response{}, err
	}
	switch {
	case caller != cfg.Executor:
		return Response{}, ErrUnauthorized
	case st.Cancelled:
		return Response{}, ErrCancelled
	case st.Paused:
		return Response{}, ErrPaused
	case st.TradesExecuted >= cfg.NumTrades:
		return Response{}, ErrMaxTradeLimit
	case now.Before(st.NextEligibleTime):
		return Response{}, &NotDueYetError{NextEligibleTime: st.NextEligibleTime}
	case st.CycleOpen():
		return Response{}, ErrCycleInFlight
	}

	st.Cycle++
	st.CycleStartedAt = now
	st.Outcomes = nil
	st.PendingLegs = nil

	resp := Response{Cycle: st.Cycle}
	resp.addAttribute("action", "perform_dca")
	resp.addAttribute("cycle", strconv.FormatUint(st.Cycle, 10))
	for i, offer := range SplitTrade(cfg) {
		id := CorrelationID(st.Cycle, i)
		if !offer.IsPositive() {
			st.Outcomes = append(st.Outcomes, SwapOutcome{Leg: i, CorrelationID: id, Timestamp: now})
			c.log.Warn("dca leg rounds to zero",
				zap.Uint64("cycle", st.Cycle),
				zap.Int("leg", i),
				zap.String("denom", cfg.Destinations[i].Denom),
			)
			continue
		}
		st.PendingLegs = append(st.PendingLegs, PendingLeg{CorrelationID: id, Leg: i, Offer: offer})
		resp.Messages = append(resp.Messages, Message{Swap: &SwapCall{
			Request: cfg.SwapRequest(id, i, offer),
			Funds:   coin.Coins{offer},
		}})
	}

	if !st.CycleOpen() {
		closeCycle(cfg, &st, now, &resp)
	}
	if err := SaveState(ctx, c.store, st); err != nil {
		return Response{}, err
	}
	c.log.Info("dca cycle dispatched",
		zap.Uint64("cycle", st.Cycle),
		zap.Int("legs", len(st.PendingLegs)),
		zap.Bool("finalized", resp.Report != nil),
	)
	return resp, nil
}
