package dca

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// OnSwapResult records the outcome of one pending leg and finalizes the cycle
// once no legs remain. Results that match no pending leg are discarded.
func (c *Contract) OnSwapResult(ctx context.Context, result SwapResult, now time.Time) (Response, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return Response{}, err
	}
	resp := Response{Cycle: st.Cycle}
	resp.addAttribute("action", "swap_result")
	resp.addAttribute("correlation_id", result.CorrelationID)

	idx := st.pendingIndex(result.CorrelationID)
	if idx < 0 {
		resp.Stray = true
		resp.addAttribute("stray", "true")
		c.log.Warn("dca swap result discarded",
			zap.String("correlation_id", result.CorrelationID),
			zap.Uint64("cycle", st.Cycle),
			zap.Bool("cancelled", st.Cancelled),
		)
		return resp, nil
	}
	leg := st.PendingLegs[idx]
	st.PendingLegs = slices.Delete(st.PendingLegs, idx, idx+1)
	if checked := vetResult(cfg, leg, result); result.Succeeded() && !checked.Succeeded() {
		c.log.Warn("dca swap result rejected",
			zap.String("correlation_id", leg.CorrelationID),
			zap.String("reason", checked.Reason),
		)
		result = checked
	}

	outcome := SwapOutcome{Leg: leg.Leg, CorrelationID: leg.CorrelationID, Timestamp: now}
	if result.Succeeded() {
		in, out := *result.TokenIn, *result.TokenOut
		outcome.Executed = true
		outcome.TokenIn = &in
		outcome.EffectiveTokenOut = &out
	} else {
		c.log.Info("dca swap leg failed",
			zap.String("correlation_id", leg.CorrelationID),
			zap.String("reason", result.Reason),
		)
	}
	st.Outcomes = append(st.Outcomes, outcome)
	resp.addAttribute("executed", strconv.FormatBool(outcome.Executed))

	if !st.CycleOpen() {
		closeCycle(cfg, &st, now, &resp)
	}
	if err := SaveState(ctx, c.store, st); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// CheckSwapResult turns a success that does not match its pending leg into a
// failure. Results for unknown legs are returned unchanged.
func (c *Contract) CheckSwapResult(ctx context.Context, result SwapResult) (SwapResult, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return SwapResult{}, err
	}
	idx := st.pendingIndex(result.CorrelationID)
	if idx < 0 {
		return result, nil
	}
	return vetResult(cfg, st.PendingLegs[idx], result), nil
}

// vetResult requires the router to have spent at most the offered coin and
// paid out in the leg's destination denom.
func vetResult(cfg Config, leg PendingLeg, result SwapResult) SwapResult {
	if !result.Succeeded() {
		return result
	}
	in, out := *result.TokenIn, *result.TokenOut
	var reason string
	switch {
	case in.Denom != leg.Offer.Denom:
		reason = fmt.Sprintf("token in %s, offered %s", in.Denom, leg.Offer.Denom)
	case !in.IsPositive() || in.Amount.GT(leg.Offer.Amount):
		reason = fmt.Sprintf("token in %s outside offer %s", in, leg.Offer)
	case leg.Leg < 0 || leg.Leg >= len(cfg.Destinations):
		reason = fmt.Sprintf("leg %d has no destination", leg.Leg)
	case out.Denom != cfg.Destinations[leg.Leg].Denom:
		reason = fmt.Sprintf("token out %s, expected %s", out.Denom, cfg.Destinations[leg.Leg].Denom)
	default:
		return result
	}
	return Failed(result.CorrelationID, "mismatched result: "+reason)
}
