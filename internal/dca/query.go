package dca

import (
	"context"
	"time"

	"dca-vault/internal/coin"
)

func (c *Contract) Config(ctx context.Context) (Config, error) {
	cfg, _, err := c.load(ctx)
	return cfg, err
}

func (c *Contract) State(ctx context.Context) (State, error) {
	_, st, err := c.load(ctx)
	return st, err
}

func (c *Contract) UpcomingSwap(ctx context.Context, now time.Time) (UpcomingSwap, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return UpcomingSwap{}, err
	}
	return UpcomingSwap{NextSwap: st.NextEligibleTime, CanExecute: IsDue(st, cfg, now)}, nil
}

// DefaultUpcomingLimit bounds AllUpcomingSwaps when the caller passes no limit.
const DefaultUpcomingLimit = 100

// AllUpcomingSwaps lists one entry per remaining trade, at most limit entries.
// While a cycle is open its own trade is not listed and the schedule starts
// one interval after it.
func (c *Contract) AllUpcomingSwaps(ctx context.Context, now time.Time, limit int) ([]UpcomingSwap, error) {
	cfg, st, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if st.Cancelled || st.TradesExecuted >= cfg.NumTrades {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultUpcomingLimit
	}
	remaining := cfg.NumTrades - st.TradesExecuted
	start := st.NextEligibleTime
	if st.CycleOpen() {
		remaining--
		if next := st.CycleStartedAt.Add(cfg.SwapInterval); next.After(start) {
			start = next
		}
	}
	if remaining > uint64(limit) {
		remaining = uint64(limit)
	}
	out := make([]UpcomingSwap, 0, remaining)
	due := IsDue(st, cfg, now)
	next := start
	for k := uint64(0); k < remaining; k++ {
		out = append(out, UpcomingSwap{NextSwap: next, CanExecute: k == 0 && due})
		next = next.Add(cfg.SwapInterval)
	}
	return out, nil
}

func (c *Contract) SourceFunds(ctx context.Context) (coin.Coin, error) {
	cfg, _, err := c.load(ctx)
	if err != nil {
		return coin.Coin{}, err
	}
	amount, err := c.bank.Balance(ctx, c.address, cfg.SourceDenom)
	if err != nil {
		return coin.Coin{}, err
	}
	return coin.New(cfg.SourceDenom, amount), nil
}

// AllFunds returns the positive balances of the tracked denoms.
func (c *Contract) AllFunds(ctx context.Context) (coin.Coins, error) {
	cfg, _, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	return c.trackedFunds(ctx, cfg)
}
