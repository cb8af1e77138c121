package app

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"dca-vault/internal/alerts"
	"dca-vault/internal/config"
	"dca-vault/internal/router"
	"dca-vault/internal/state"

	"github.com/stretchr/testify/require"
)

func TestParseOperatorCommand(t *testing.T) {
	cmd, args, ok := parseOperatorCommand("/status now")
	require.True(t, ok)
	require.Equal(t, "status", cmd)
	require.Equal(t, []string{"now"}, args)

	cmd, _, ok = parseOperatorCommand("/Pause@dca_vault_bot")
	require.True(t, ok)
	require.Equal(t, "pause", cmd, "addressed command")

	_, _, ok = parseOperatorCommand("pause")
	require.False(t, ok, "expected plain text to be ignored")
}

func newOperatorApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	a, _ := newTestApp(t, cfg, router.SimulatedConfig{Rates: testRates()})
	require.NoError(t, a.bootstrap(context.Background()))
	return a
}

func auditEvents(t *testing.T, a *App) []operatorAuditEvent {
	t.Helper()
	raw, err := a.store.(state.Lister).List(context.Background(), "ops:audit:")
	require.NoError(t, err)
	var out []operatorAuditEvent
	for _, v := range raw {
		var ev operatorAuditEvent
		require.NoError(t, json.Unmarshal([]byte(v), &ev))
		out = append(out, ev)
	}
	return out
}

func TestOperatorPauseResumeAudit(t *testing.T) {
	a := newOperatorApp(t, testConfig())
	ctx := context.Background()
	meta := operatorMeta{UpdateID: 1, UserID: 1, ChatID: 2, Raw: "/pause"}

	resp, err := a.handleOperatorCommand(ctx, "pause", nil, meta)
	require.NoError(t, err)
	require.Equal(t, "strategy paused", resp)
	require.True(t, a.isPaused(ctx))

	meta.UpdateID = 2
	resp, _ = a.handleOperatorCommand(ctx, "pause", nil, meta)
	require.Equal(t, "strategy already paused", resp)

	meta.UpdateID = 3
	meta.Raw = "/resume"
	resp, err = a.handleOperatorCommand(ctx, "resume", nil, meta)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(resp, "strategy resumed"), resp)
	require.False(t, a.isPaused(ctx))

	events := auditEvents(t, a)
	require.Len(t, events, 3)
	byUpdate := make(map[int64]operatorAuditEvent)
	for _, ev := range events {
		byUpdate[ev.UpdateID] = ev
	}
	pause := byUpdate[1]
	require.Equal(t, "pause", pause.Action)
	require.False(t, pause.PausedBefore)
	require.True(t, pause.PausedAfter)
	require.Empty(t, pause.Error)
	require.NotEmpty(t, byUpdate[2].Error, "repeated pause audits its error")
	resume := byUpdate[3]
	require.Equal(t, "resume", resume.Action)
	require.True(t, resume.PausedBefore)
	require.False(t, resume.PausedAfter)
}

func TestOperatorCancelNeedsConfirm(t *testing.T) {
	a := newOperatorApp(t, testConfig())
	ctx := context.Background()
	meta := operatorMeta{UpdateID: 9, Raw: "/cancel"}
	resp, err := a.handleOperatorCommand(ctx, "cancel", nil, meta)
	require.NoError(t, err)
	require.Contains(t, resp, "/cancel confirm")
	st, _ := a.chain.State(ctx)
	require.False(t, st.Cancelled, "cancel without confirm must not cancel")

	meta.UpdateID = 10
	resp, err = a.handleOperatorCommand(ctx, "cancel", []string{"confirm"}, meta)
	require.NoError(t, err)
	require.Equal(t, "strategy cancelled, refunded 30uosmo", resp)
	require.Equal(t, int64(30), balance(t, a, testOwner, "uosmo"))
	events := auditEvents(t, a)
	require.Len(t, events, 1)
	require.Equal(t, "30uosmo", events[0].Refund)
}

func TestOperatorStatus(t *testing.T) {
	a := newOperatorApp(t, testConfig())
	resp, err := a.handleOperatorCommand(context.Background(), "status", nil, operatorMeta{})
	require.NoError(t, err)
	for _, want := range []string{"cycle: 0", "trades: 0/3", "paused: false", "next_swap: 2024-03-01T13:00:00Z (due false)", "funds: 30uosmo"} {
		require.Contains(t, resp, want)
	}
	up, err := a.handleOperatorCommand(context.Background(), "upcoming", nil, operatorMeta{})
	require.NoError(t, err)
	require.Len(t, strings.Split(up, "\n"), 3)
}

func TestOperatorUpcomingIsBounded(t *testing.T) {
	cfg := testConfig()
	cfg.Strategy.NumTrades = 25
	a := newOperatorApp(t, cfg)
	up, err := a.handleOperatorCommand(context.Background(), "upcoming", nil, operatorMeta{})
	require.NoError(t, err)
	lines := strings.Split(up, "\n")
	require.Len(t, lines, operatorUpcomingLimit+1)
	require.Equal(t, "(first 20 of 25 remaining trades)", lines[len(lines)-1])
}

func TestOperatorIgnoresForeignChat(t *testing.T) {
	a := newOperatorApp(t, testConfig())
	ctx := context.Background()
	allowed := map[int64]struct{}{7: {}}
	foreign := alerts.Update{UpdateID: 1, Message: &alerts.Message{Text: "/pause", Chat: &alerts.Chat{ID: 99}, From: &alerts.User{ID: 7}}}
	a.handleOperatorUpdate(ctx, foreign, 123, allowed)
	stranger := alerts.Update{UpdateID: 2, Message: &alerts.Message{Text: "/pause", Chat: &alerts.Chat{ID: 123}, From: &alerts.User{ID: 8}}}
	a.handleOperatorUpdate(ctx, stranger, 123, allowed)
	require.False(t, a.isPaused(ctx), "commands from foreign chats or users must be ignored")

	operator := alerts.Update{UpdateID: 3, Message: &alerts.Message{Text: "/pause", Chat: &alerts.Chat{ID: 123}, From: &alerts.User{ID: 7, Username: "ops"}}}
	a.handleOperatorUpdate(ctx, operator, 123, allowed)
	require.True(t, a.isPaused(ctx), "expected allowed operator to pause")
}

func TestOperatorOffsetPersists(t *testing.T) {
	a := newOperatorApp(t, testConfig())
	ctx := context.Background()
	require.Zero(t, a.loadOperatorOffset(ctx))
	a.saveOperatorOffset(ctx, 42)
	require.Equal(t, int64(42), a.loadOperatorOffset(ctx))
}
