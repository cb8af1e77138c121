package dca

import (
	"context"
	"testing"
	"time"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func TestIsDue(t *testing.T) {
	cfg := Config{NumTrades: 2}
	st := State{NextEligibleTime: t0}
	require.True(t, IsDue(st, cfg, t0))
	require.False(t, IsDue(st, cfg, t0.Add(-time.Second)))
	require.False(t, IsDue(State{NextEligibleTime: t0, Paused: true}, cfg, t0))
	require.False(t, IsDue(State{NextEligibleTime: t0, TradesExecuted: 2}, cfg, t0))
	require.False(t, IsDue(State{NextEligibleTime: t0, PendingLegs: []PendingLeg{{CorrelationID: "dca/1/0"}}}, cfg, t0))
}

func TestUpcomingSwaps(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, baseMsg())

	up, err := h.c.UpcomingSwap(ctx, t0)
	require.NoError(t, err)
	require.Equal(t, t0.Add(time.Hour), up.NextSwap)
	require.False(t, up.CanExecute)

	up, err = h.c.UpcomingSwap(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, up.CanExecute)

	all, err := h.c.AllUpcomingSwaps(ctx, t0.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.True(t, all[0].CanExecute)
	require.False(t, all[1].CanExecute)
	require.Equal(t, t0.Add(3*time.Hour), all[2].NextSwap)

	start := t0.Add(90 * time.Minute)
	_, err = h.c.PerformDca(ctx, executor, start)
	require.NoError(t, err)
	all, err = h.c.AllUpcomingSwaps(ctx, start, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, start.Add(time.Hour), all[0].NextSwap)
	require.False(t, all[0].CanExecute)
}

func TestUpcomingSwapsBounded(t *testing.T) {
	ctx := context.Background()
	msg := baseMsg()
	msg.AmountPerTrade = sdkmath.OneInt()
	msg.NumTrades = 1 << 62
	msg.SwapInterval = 24 * time.Hour
	h := newHarness(t, msg)

	all, err := h.c.AllUpcomingSwaps(ctx, t0, 0)
	require.NoError(t, err)
	require.Len(t, all, DefaultUpcomingLimit)
	require.Equal(t, t0.Add(24*time.Hour), all[0].NextSwap)
	require.Equal(t, t0.Add(time.Duration(DefaultUpcomingLimit)*24*time.Hour), all[DefaultUpcomingLimit-1].NextSwap)

	all, err = h.c.AllUpcomingSwaps(ctx, t0, 5)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		require.True(t, all[i].NextSwap.After(all[i-1].NextSwap))
	}
}

func TestUpcomingSwapsAfterResumeInOpenCycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, baseMsg())
	start := t0.Add(time.Hour)
	_, err := h.c.PerformDca(ctx, executor, start)
	require.NoError(t, err)
	_, err = h.c.Pause(ctx, owner)
	require.NoError(t, err)
	resumed := start.Add(10 * time.Hour)
	_, err = h.c.Resume(ctx, owner, resumed)
	require.NoError(t, err)

	all, err := h.c.AllUpcomingSwaps(ctx, resumed, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, resumed.Add(time.Hour), all[0].NextSwap)
}

func TestFundsQueries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, baseMsg())
	h.bank.set(contract, "uosmo", 30)
	h.bank.set(contract, "uatom", 2)
	h.bank.set(contract, "uother", 7)

	src, err := h.c.SourceFunds(ctx)
	require.NoError(t, err)
	require.Equal(t, coin.NewInt64("uosmo", 30).String(), src.String())

	all, err := h.c.AllFunds(ctx)
	require.NoError(t, err)
	require.Equal(t, "2uatom,30uosmo", all.Sorted().String())
}

func TestQueriesBeforeInstantiate(t *testing.T) {
	c := New(&memoryStore{}, fakeBank{}, contract, nil)
	_, err := c.State(context.Background())
	require.ErrorIs(t, err, ErrNotInstantiated)
	_, err = c.PerformDca(context.Background(), executor, t0)
	require.ErrorIs(t, err, ErrNotInstantiated)
}
