package dca

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"
)

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			q := append(append(append([]int{}, p[:i]...), n-1), p[i:]...)
			out = append(out, q)
		}
	}
	return out
}

func threeLegMsg() InstantiateMsg {
	msg := baseMsg()
	msg.AmountPerTrade = sdkmath.NewInt(30)
	msg.Destinations = []Destination{
		{Denom: "uatom", Weight: sdkmath.NewInt(1)},
		{Denom: "uion", Weight: sdkmath.NewInt(1)},
		{Denom: "uusdc", Weight: sdkmath.NewInt(1)},
	}
	return msg
}

func TestFinalizeExactlyOnceUnderAnyOrder(t *testing.T) {
	ctx := context.Background()
	start := t0.Add(time.Hour)
	for _, order := range permutations(3) {
		t.Run(fmt.Sprint(order), func(t *testing.T) {
			h := newHarness(t, threeLegMsg())
			resp, err := h.c.PerformDca(ctx, executor, start)
			require.NoError(t, err)
			calls := resp.SwapCalls()
			require.Len(t, calls, 3)

			finalized := 0
			for step, leg := range order {
				call := calls[leg]
				result := Failed(call.Request.CorrelationID, "slippage exceeded")
				if leg != 1 {
					out := coin.NewInt64(call.Request.OutputDenom, int64(100+leg))
					result = success(call.Request.CorrelationID, call.Request.InputCoin, out)
				}
				at := start.Add(time.Duration(step+1) * time.Minute)
				resp, err := h.c.OnSwapResult(ctx, result, at)
				require.NoError(t, err)
				require.False(t, resp.Stray)
				if step < len(order)-1 {
					require.Nil(t, resp.Report)
					require.Empty(t, resp.BankSends())
					continue
				}
				finalized++
				require.NotNil(t, resp.Report)
				require.Equal(t, 2, resp.Report.Succeeded())
				sends := resp.BankSends()
				require.Len(t, sends, 1)
				require.Equal(t, "osmo1recipient", sends[0].To)
				require.Equal(t, "100uatom,102uusdc", sends[0].Amount.Sorted().String())
			}
			require.Equal(t, 1, finalized)

			st := h.state(t)
			require.Equal(t, uint64(1), st.TradesExecuted)
			require.Equal(t, start.Add(time.Hour), st.NextEligibleTime)
			require.Empty(t, st.Outcomes)
			require.False(t, st.CycleOpen())
		})
	}
}

func TestStrayAndDuplicateResultsIgnored(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, baseMsg())
	now := t0.Add(time.Hour)
	resp, err := h.c.PerformDca(ctx, executor, now)
	require.NoError(t, err)
	calls := resp.SwapCalls()

	first := success(calls[0].Request.CorrelationID, calls[0].Request.InputCoin, coin.NewInt64("uatom", 9))
	_, err = h.c.OnSwapResult(ctx, first, now)
	require.NoError(t, err)
	before := h.store.snapshot()

	resp, err = h.c.OnSwapResult(ctx, first, now)
	require.NoError(t, err)
	require.True(t, resp.Stray)
	resp, err = h.c.OnSwapResult(ctx, Failed("dca/7/0", "unknown"), now)
	require.NoError(t, err)
	require.True(t, resp.Stray)
	require.Equal(t, before, h.store.snapshot())

	second := success(calls[1].Request.CorrelationID, calls[1].Request.InputCoin, coin.NewInt64("uion", 4))
	resp, err = h.c.OnSwapResult(ctx, second, now)
	require.NoError(t, err)
	require.NotNil(t, resp.Report)

	// late duplicate from the finalized cycle
	resp, err = h.c.OnSwapResult(ctx, second, now.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, resp.Stray)
	require.Equal(t, uint64(1), h.state(t).TradesExecuted)
}

func TestExecutedWithoutOutputIsFailure(t *testing.T) {
	msg := baseMsg()
	msg.Destinations = msg.Destinations[:1]
	h := newHarness(t, msg)
	ctx := context.Background()
	now := t0.Add(time.Hour)
	resp, err := h.c.PerformDca(ctx, executor, now)
	require.NoError(t, err)
	call := resp.SwapCalls()[0]

	resp, err = h.c.OnSwapResult(ctx, SwapResult{CorrelationID: call.Request.CorrelationID, Executed: true}, now)
	require.NoError(t, err)
	require.NotNil(t, resp.Report)
	require.Zero(t, resp.Report.Succeeded())
	require.Empty(t, resp.BankSends())
	require.Equal(t, uint64(1), h.state(t).TradesExecuted)
}

func TestFinalizeAnchorsOnCycleStart(t *testing.T) {
	msg := baseMsg()
	msg.Destinations = msg.Destinations[:1]
	h := newHarness(t, msg)
	ctx := context.Background()

	start := t0.Add(90 * time.Minute)
	resp, err := h.c.PerformDca(ctx, executor, start)
	require.NoError(t, err)
	call := resp.SwapCalls()[0]
	_, err = h.c.OnSwapResult(ctx, success(call.Request.CorrelationID, call.Request.InputCoin, coin.NewInt64("uatom", 3)), start.Add(40*time.Minute))
	require.NoError(t, err)
	require.Equal(t, start.Add(time.Hour), h.state(t).NextEligibleTime)
}

func TestFullScheduleSaturates(t *testing.T) {
	msg := baseMsg()
	msg.Destinations = msg.Destinations[:1]
	h := newHarness(t, msg)
	ctx := context.Background()
	now := t0
	for i := uint64(0); i < msg.NumTrades; i++ {
		now = h.state(t).NextEligibleTime
		resp, err := h.c.PerformDca(ctx, executor, now)
		require.NoError(t, err)
		call := resp.SwapCalls()[0]
		require.Equal(t, CorrelationID(i+1, 0), call.Request.CorrelationID)
		_, err = h.c.OnSwapResult(ctx, success(call.Request.CorrelationID, call.Request.InputCoin, coin.NewInt64("uatom", 1)), now)
		require.NoError(t, err)
	}
	require.Equal(t, msg.NumTrades, h.state(t).TradesExecuted)
	_, err := h.c.PerformDca(ctx, executor, now.Add(48*time.Hour))
	require.ErrorIs(t, err, ErrMaxTradeLimit)
}

func TestMismatchedResultIsFailure(t *testing.T) {
	cases := []struct {
		name string
		in   func(offer coin.Coin) coin.Coin
		out  string
	}{
		{name: "wrong input denom", in: func(offer coin.Coin) coin.Coin { return coin.New("uother", offer.Amount) }, out: "uatom"},
		{name: "input above offer", in: func(offer coin.Coin) coin.Coin { return coin.New(offer.Denom, offer.Amount.AddRaw(1)) }, out: "uatom"},
		{name: "zero input", in: func(offer coin.Coin) coin.Coin { return coin.NewInt64(offer.Denom, 0) }, out: "uatom"},
		{name: "wrong output denom", in: func(offer coin.Coin) coin.Coin { return offer }, out: "uion"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg := baseMsg()
			msg.Destinations = msg.Destinations[:1]
			h := newHarness(t, msg)
			ctx := context.Background()
			now := t0.Add(time.Hour)
			resp, err := h.c.PerformDca(ctx, executor, now)
			require.NoError(t, err)
			call := resp.SwapCalls()[0]
			result := success(call.Request.CorrelationID, tc.in(call.Request.InputCoin), coin.NewInt64(tc.out, 8))

			checked, err := h.c.CheckSwapResult(ctx, result)
			require.NoError(t, err)
			require.False(t, checked.Succeeded())
			require.Contains(t, checked.Reason, "mismatched result")

			resp, err = h.c.OnSwapResult(ctx, result, now)
			require.NoError(t, err)
			require.NotNil(t, resp.Report)
			require.Zero(t, resp.Report.Succeeded())
			require.Empty(t, resp.BankSends())
		})
	}
}

func TestCheckSwapResultPassesMatchingAndUnknown(t *testing.T) {
	h := newHarness(t, baseMsg())
	ctx := context.Background()
	now := t0.Add(time.Hour)
	resp, err := h.c.PerformDca(ctx, executor, now)
	require.NoError(t, err)
	call := resp.SwapCalls()[0]

	partial := coin.New(call.Request.InputCoin.Denom, call.Request.InputCoin.Amount.SubRaw(1))
	result := success(call.Request.CorrelationID, partial, coin.NewInt64(call.Request.OutputDenom, 2))
	checked, err := h.c.CheckSwapResult(ctx, result)
	require.NoError(t, err)
	require.True(t, checked.Succeeded())

	unknown := success("dca/9/0", partial, coin.NewInt64("uother", 1))
	checked, err = h.c.CheckSwapResult(ctx, unknown)
	require.NoError(t, err)
	require.Equal(t, unknown, checked)
}
