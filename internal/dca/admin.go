package dca

import (
	"context"
	"time"

	"dca-vault/internal/coin"

	"go.uber.org/zap"
)

func (c *Contract) Pause(ctx context.Context, caller string) (Response, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return Response{}, err
	}
	if caller != cfg.Owner {
		return Response{}, ErrUnauthorized
	}
	if st.Paused {
		return Response{}, ErrPaused
	}
	st.Paused = true
	if err := SaveState(ctx, c.store, st); err != nil {
		return Response{}, err
	}
	c.log.Info("dca strategy paused", zap.String("caller", caller))
	var resp Response
	resp.addAttribute("action", "pause_dca")
	return resp, nil
}

// Resume clears the pause. An elapsed NextEligibleTime is moved to one
// interval from now so missed cycles are not replayed.
func (c *Contract) Resume(ctx context.Context, caller string, now time.Time) (Response, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return Response{}, err
	}
	if caller != cfg.Owner {
		return Response{}, ErrUnauthorized
	}
	if !st.Paused {
		return Response{}, ErrNotPaused
	}
	st.Paused = false
	if !st.NextEligibleTime.After(now) {
		st.NextEligibleTime = now.Add(cfg.SwapInterval)
	}
	if err := SaveState(ctx, c.store, st); err != nil {
		return Response{}, err
	}
	c.log.Info("dca strategy resumed",
		zap.String("caller", caller),
		zap.Time("next_swap", st.NextEligibleTime),
	)
	var resp Response
	resp.addAttribute("action", "resume_dca")
	resp.addAttribute("next_swap", st.NextEligibleTime.UTC().Format(time.RFC3339))
	return resp, nil
}

// Cancel sweeps every tracked balance to the owner. In-flight legs are
// forgotten, so their results arrive as strays.
func (c *Contract) Cancel(ctx context.Context, caller string) (Response, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return Response{}, err
	}
	if caller != cfg.Owner {
		return Response{}, ErrUnauthorized
	}
	funds, err := c.trackedFunds(ctx, cfg)
	if err != nil {
		return Response{}, err
	}
	if len(funds) == 0 {
		return Response{}, ErrNoBalance
	}
	abandoned := len(st.PendingLegs)
	st.Cancelled = true
	st.PendingLegs = nil
	st.Outcomes = nil
	if err := SaveState(ctx, c.store, st); err != nil {
		return Response{}, err
	}
	c.log.Info("dca strategy cancelled",
		zap.String("refund", funds.String()),
		zap.Int("abandoned_legs", abandoned),
	)
	var resp Response
	resp.addAttribute("action", "cancel_dca")
	resp.addAttribute("refund", funds.String())
	resp.Messages = append(resp.Messages, Message{Send: &BankSend{To: cfg.Owner, Amount: funds}})
	return resp, nil
}

func (c *Contract) trackedFunds(ctx context.Context, cfg Config) (coin.Coins, error) {
	var funds coin.Coins
	for _, denom := range cfg.TrackedDenoms() {
		amount, err := c.bank.Balance(ctx, c.address, denom)
		if err != nil {
			return nil, err
		}
		funds = funds.Add(coin.New(denom, amount))
	}
	return funds, nil
}
