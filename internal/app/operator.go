package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dca-vault/internal/alerts"
	"dca-vault/internal/dca"

	"go.uber.org/zap"
)

const (
	operatorOffsetKey     = "telegram:operator:last_update_id"
	operatorUpcomingLimit = 20
)

type operatorMeta struct {
	UpdateID int64
	UserID   int64
	Username string
	ChatID   int64
	Raw      string
}

type operatorAuditEvent struct {
	UpdateID     int64     `json:"update_id"`
	Time         time.Time `json:"time"`
	Action       string    `json:"action"`
	Command      string    `json:"command"`
	UserID       int64     `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	ChatID       int64     `json:"chat_id"`
	PausedBefore bool      `json:"paused_before"`
	PausedAfter  bool      `json:"paused_after"`
	Refund       string    `json:"refund,omitempty"`
	Error        string    `json:"error,omitempty"`
}

func (a *App) startOperator(ctx context.Context) {
	if a.cfg == nil || a.alerts == nil || a.log == nil {
		return
	}
	if !a.cfg.Telegram.OperatorEnabled || !a.alerts.Enabled() {
		return
	}
	chatID, err := strconv.ParseInt(strings.TrimSpace(a.cfg.Telegram.ChatID), 10, 64)
	if err != nil {
		a.log.Warn("telegram operator disabled: invalid chat_id", zap.Error(err))
		return
	}
	pollInterval := a.cfg.Telegram.OperatorPollInterval
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	allowedUsers := make(map[int64]struct{}, len(a.cfg.Telegram.OperatorAllowedUserIDs))
	for _, id := range a.cfg.Telegram.OperatorAllowedUserIDs {
		allowedUsers[id] = struct{}{}
	}
	go a.operatorLoop(ctx, chatID, allowedUsers, pollInterval)
}

func (a *App) operatorLoop(ctx context.Context, chatID int64, allowedUsers map[int64]struct{}, pollInterval time.Duration) {
	offset := a.loadOperatorOffset(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		updates, err := a.alerts.GetUpdates(ctx, offset, pollInterval)
		if err != nil {
			a.logOperatorError(err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(pollInterval):
			}
			continue
		}
		if a.operatorWarned {
			a.log.Info("telegram operator recovered")
			a.operatorWarned = false
		}
		for _, upd := range updates {
			if upd.UpdateID >= offset {
				offset = upd.UpdateID + 1
				a.saveOperatorOffset(ctx, offset)
			}
			a.handleOperatorUpdate(ctx, upd, chatID, allowedUsers)
		}
	}
}

func (a *App) handleOperatorUpdate(ctx context.Context, upd alerts.Update, chatID int64, allowedUsers map[int64]struct{}) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	if msg.Chat == nil || msg.From == nil {
		return
	}
	if msg.Chat.ID != chatID {
		return
	}
	if len(allowedUsers) > 0 {
		if _, ok := allowedUsers[msg.From.ID]; !ok {
			return
		}
	}
	cmd, args, ok := parseOperatorCommand(msg.Text)
	if !ok {
		return
	}
	meta := operatorMeta{
		UpdateID: upd.UpdateID,
		UserID:   msg.From.ID,
		Username: msg.From.Username,
		ChatID:   msg.Chat.ID,
		Raw:      msg.Text,
	}
	resp, err := a.handleOperatorCommand(ctx, cmd, args, meta)
	if err != nil {
		resp = fmt.Sprintf("command failed: %v", err)
	}
	if resp == "" {
		return
	}
	if err := a.alerts.Send(ctx, resp); err != nil {
		a.log.Warn("operator response failed", zap.Error(err))
	}
}

func parseOperatorCommand(text string) (string, []string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", nil, false
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "", nil, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return "", nil, false
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	// Group chats address bots as /cmd@botname.
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd, fields[1:], true
}

// handleOperatorCommand runs admin commands as the strategy owner.
func (a *App) handleOperatorCommand(ctx context.Context, cmd string, args []string, meta operatorMeta) (string, error) {
	switch cmd {
	case "status":
		return a.operatorStatus(ctx)
	case "upcoming":
		return a.operatorUpcoming(ctx)
	case "pause":
		before := a.isPaused(ctx)
		_, err := a.chain.Pause(ctx, a.cfg.Contract.Owner)
		a.auditOperatorEvent(ctx, a.auditEvent("pause", meta, before, err))
		switch {
		case errors.Is(err, dca.ErrPaused):
			return "strategy already paused", nil
		case err != nil:
			return "", err
		}
		return "strategy paused", nil
	case "resume":
		before := a.isPaused(ctx)
		resp, err := a.chain.Resume(ctx, a.cfg.Contract.Owner, a.now())
		a.auditOperatorEvent(ctx, a.auditEvent("resume", meta, before, err))
		switch {
		case errors.Is(err, dca.ErrNotPaused):
			return "strategy already active", nil
		case err != nil:
			return "", err
		}
		next, _ := resp.Attribute("next_swap")
		return "strategy resumed, next swap " + next, nil
	case "cancel":
		if len(args) == 0 || !strings.EqualFold(args[0], "confirm") {
			return "cancel refunds every tracked balance to the owner and stops the schedule; send /cancel confirm", nil
		}
		before := a.isPaused(ctx)
		resp, err := a.chain.Cancel(ctx, a.cfg.Contract.Owner)
		event := a.auditEvent("cancel", meta, before, err)
		refund, _ := resp.Attribute("refund")
		event.Refund = refund
		a.auditOperatorEvent(ctx, event)
		if err != nil {
			return "", err
		}
		return "strategy cancelled, refunded " + refund, nil
	case "help":
		return operatorHelpText(), nil
	default:
		return operatorHelpText(), nil
	}
}

func (a *App) auditEvent(action string, meta operatorMeta, pausedBefore bool, err error) operatorAuditEvent {
	event := operatorAuditEvent{
		UpdateID:     meta.UpdateID,
		Time:         a.now(),
		Action:       action,
		Command:      meta.Raw,
		UserID:       meta.UserID,
		Username:     meta.Username,
		ChatID:       meta.ChatID,
		PausedBefore: pausedBefore,
		PausedAfter:  a.isPaused(context.Background()),
	}
	if err != nil {
		event.Error = err.Error()
	}
	return event
}

func (a *App) operatorStatus(ctx context.Context) (string, error) {
	cfg, err := a.chain.Config(ctx)
	if err != nil {
		return "", err
	}
	st, err := a.chain.State(ctx)
	if err != nil {
		return "", err
	}
	up, err := a.chain.UpcomingSwap(ctx, a.now())
	if err != nil {
		return "", err
	}
	funds, err := a.chain.AllFunds(ctx)
	if err != nil {
		return "", err
	}
	balances := funds.String()
	if balances == "" {
		balances = "none"
	}
	return strings.Join([]string{
		fmt.Sprintf("cycle: %d", st.Cycle),
		fmt.Sprintf("trades: %d/%d", st.TradesExecuted, cfg.NumTrades),
		fmt.Sprintf("paused: %t", st.Paused),
		fmt.Sprintf("cancelled: %t", st.Cancelled),
		fmt.Sprintf("pending_legs: %d", len(st.PendingLegs)),
		fmt.Sprintf("next_swap: %s (due %t)", up.NextSwap.UTC().Format(time.RFC3339), up.CanExecute),
		fmt.Sprintf("funds: %s", balances),
	}, "\n"), nil
}

func (a *App) operatorUpcoming(ctx context.Context) (string, error) {
	ups, err := a.chain.AllUpcomingSwaps(ctx, a.now(), operatorUpcomingLimit)
	if err != nil {
		return "", err
	}
	if len(ups) == 0 {
		return "no swaps scheduled", nil
	}
	lines := make([]string, 0, len(ups)+1)
	for i, up := range ups {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, up.NextSwap.UTC().Format(time.RFC3339)))
	}
	if len(ups) == operatorUpcomingLimit {
		cfg, err := a.chain.Config(ctx)
		if err != nil {
			return "", err
		}
		st, err := a.chain.State(ctx)
		if err != nil {
			return "", err
		}
		lines = append(lines, fmt.Sprintf("(first %d of %d remaining trades)", len(ups), cfg.NumTrades-st.TradesExecuted))
	}
	return strings.Join(lines, "\n"), nil
}

func operatorHelpText() string {
	return strings.Join([]string{
		"commands:",
		"/status - schedule progress and balances",
		"/upcoming - remaining swap times",
		"/pause - stop dispatching swaps",
		"/resume - resume the schedule",
		"/cancel confirm - refund all tracked balances to the owner",
	}, "\n")
}

func (a *App) isPaused(ctx context.Context) bool {
	st, err := a.chain.State(ctx)
	if err != nil {
		return false
	}
	return st.Paused
}

func (a *App) logOperatorError(err error) {
	if a.log == nil {
		return
	}
	if a.operatorWarned {
		return
	}
	a.operatorWarned = true
	a.log.Warn("telegram operator failed", zap.Error(err))
}

func (a *App) loadOperatorOffset(ctx context.Context) int64 {
	if a.store == nil {
		return 0
	}
	raw, ok, err := a.store.Get(ctx, operatorOffsetKey)
	if err != nil || !ok {
		return 0
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	if val < 0 {
		return 0
	}
	return val
}

func (a *App) saveOperatorOffset(ctx context.Context, offset int64) {
	if a.store == nil {
		return
	}
	_ = a.store.Set(ctx, operatorOffsetKey, strconv.FormatInt(offset, 10))
}

func (a *App) auditOperatorEvent(ctx context.Context, event operatorAuditEvent) {
	if a.store == nil {
		return
	}
	key := fmt.Sprintf("ops:audit:%d:%d", event.Time.UnixNano(), event.UpdateID)
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = a.store.Set(ctx, key, string(payload))
}
