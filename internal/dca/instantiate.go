package dca

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MaxDestinations = 25
	MinQuoteWindow  = time.Second
	MaxQuoteWindow  = 120 * time.Second
	maxAddressLen   = 255
)

// MaxSlippage is the upper bound accepted for Config.MaxSlippage.
var MaxSlippage = decimal.RequireFromString("0.15")

// Instantiate validates msg against the deposited funds and stores the
// strategy. The sender becomes the owner.
func (c *Contract) Instantiate(ctx context.Context, sender string, funds coin.Coins, msg InstantiateMsg, now time.Time) (Response, error) {
	if _, ok, err := LoadConfig(ctx, c.store); err != nil {
		return Response{}, err
	} else if ok {
		return Response{}, ErrAlreadyInstantiated
	}
	cfg, err := validateInstantiate(sender, funds, msg)
	if err != nil {
		return Response{}, err
	}
	st := State{NextEligibleTime: now.Add(cfg.SwapInterval)}
	if err := SaveConfig(ctx, c.store, cfg); err != nil {
		return Response{}, err
	}
	if err := SaveState(ctx, c.store, st); err != nil {
		return Response{}, err
	}

	var resp Response
	if fee := msg.PlatformFee; !fee.IsNil() && fee.IsPositive() {
		resp.Messages = append(resp.Messages, Message{Send: &BankSend{
			To:     msg.PlatformFeeRecipient,
			Amount: coin.Coins{coin.New(cfg.SourceDenom, fee)},
		}})
	}
	resp.addAttribute("action", "instantiate")
	resp.addAttribute("owner", cfg.Owner)
	resp.addAttribute("next_swap", st.NextEligibleTime.UTC().Format(time.RFC3339))
	c.log.Info("dca strategy instantiated",
		zap.String("owner", cfg.Owner),
		zap.String("executor", cfg.Executor),
		zap.String("source_denom", cfg.SourceDenom),
		zap.Int("destinations", len(cfg.Destinations)),
		zap.Uint64("num_trades", cfg.NumTrades),
		zap.Duration("interval", cfg.SwapInterval),
	)
	return resp, nil
}

func validateInstantiate(sender string, funds coin.Coins, msg InstantiateMsg) (Config, error) {
	if err := coin.ValidateDenom(msg.SourceDenom); err != nil {
		return Config{}, invalid("source_denom", "%v", err)
	}
	paid, err := mustPay(funds, msg.SourceDenom)
	if err != nil {
		return Config{}, err
	}
	if msg.AmountPerTrade.IsNil() || !msg.AmountPerTrade.IsPositive() {
		return Config{}, invalid("amount_per_trade", "must be greater than 0")
	}
	if msg.NumTrades == 0 {
		return Config{}, invalid("num_trades", "must be greater than 0")
	}
	fee := msg.PlatformFee
	if fee.IsNil() {
		fee = sdkmath.ZeroInt()
	}
	if fee.IsNegative() {
		return Config{}, invalid("platform_fee", "must not be negative")
	}
	expected, err := expectedDeposit(msg.AmountPerTrade, msg.NumTrades, fee)
	if err != nil {
		return Config{}, err
	}
	if !expected.Equal(paid) {
		return Config{}, fmt.Errorf("%w: amount deposited does not match exactly expected: <%s> != actual: <%s>", ErrInvalidFunds, expected, paid)
	}

	if len(msg.Destinations) == 0 || len(msg.Destinations) > MaxDestinations {
		return Config{}, invalid("destinations", "number of destination tokens must be between 1 and %d", MaxDestinations)
	}
	if msg.MaxSlippage.IsNegative() || msg.MaxSlippage.GreaterThan(MaxSlippage) {
		return Config{}, invalid("max_slippage", "must be between 0%% and %s%%", MaxSlippage.Shift(2).String())
	}
	if msg.QuoteWindow < MinQuoteWindow || msg.QuoteWindow > MaxQuoteWindow {
		return Config{}, invalid("quote_window", "twap window must be between %d and %d seconds", int(MinQuoteWindow.Seconds()), int(MaxQuoteWindow.Seconds()))
	}
	if msg.SwapInterval <= 0 {
		return Config{}, invalid("swap_interval", "must be greater than 0")
	}

	executor := msg.Executor
	if executor == "" {
		executor = sender
	}
	for _, addr := range [][2]string{
		{"owner", sender},
		{"executor", executor},
		{"recipient", msg.Recipient},
		{"router_contract", msg.RouterContract},
	} {
		if err := validateAddress(addr[0], addr[1]); err != nil {
			return Config{}, err
		}
	}
	if fee.IsPositive() {
		if err := validateAddress("platform_fee_recipient", msg.PlatformFeeRecipient); err != nil {
			return Config{}, err
		}
	}

	strategy := msg.StrategyType
	if strategy == "" {
		strategy = StrategyLinear
	}
	if strategy != StrategyLinear {
		return Config{}, invalid("strategy_type", "unsupported strategy %q", strategy)
	}

	total := sdkmath.ZeroInt()
	seen := make(map[string]struct{}, len(msg.Destinations))
	destinations := make([]Destination, 0, len(msg.Destinations))
	for i, dest := range msg.Destinations {
		field := "destinations[" + strconv.Itoa(i) + "]"
		if err := coin.ValidateDenom(dest.Denom); err != nil {
			return Config{}, invalid(field, "%v", err)
		}
		if dest.Denom == msg.SourceDenom {
			return Config{}, invalid(field, "destination %s equals source denom", dest.Denom)
		}
		if _, dup := seen[dest.Denom]; dup {
			return Config{}, invalid(field, "duplicate destination %s", dest.Denom)
		}
		seen[dest.Denom] = struct{}{}
		weight := dest.Weight
		if weight.IsNil() {
			weight = sdkmath.ZeroInt()
		}
		if weight.IsNegative() {
			return Config{}, invalid(field, "weight must not be negative")
		}
		total = total.Add(weight)
		destinations = append(destinations, Destination{Denom: dest.Denom, Weight: weight})
	}
	if !total.IsPositive() {
		return Config{}, invalid("destinations", "total weight must be greater than 0")
	}

	return Config{
		Owner:           sender,
		Executor:        executor,
		Recipient:       msg.Recipient,
		StrategyType:    strategy,
		SourceDenom:     msg.SourceDenom,
		Destinations:    destinations,
		AmountPerTrade:  msg.AmountPerTrade,
		NumTrades:       msg.NumTrades,
		SwapInterval:    msg.SwapInterval,
		MaxSlippage:     msg.MaxSlippage,
		QuoteWindow:     msg.QuoteWindow,
		RouterContract:  msg.RouterContract,
		AssignRemainder: msg.AssignRemainder,
	}, nil
}

// mustPay requires exactly one non-zero coin of denom.
func mustPay(funds coin.Coins, denom string) (sdkmath.Int, error) {
	var paid coin.Coins
	for _, c := range funds {
		if c.IsPositive() {
			paid = append(paid, c)
		}
	}
	switch {
	case len(paid) == 0:
		return sdkmath.Int{}, fmt.Errorf("%w: no funds sent", ErrInvalidFunds)
	case len(paid) > 1:
		return sdkmath.Int{}, fmt.Errorf("%w: sent more than one denomination", ErrInvalidFunds)
	case paid[0].Denom != denom:
		return sdkmath.Int{}, fmt.Errorf("%w: must send reserve token '%s'", ErrInvalidFunds, denom)
	}
	return paid[0].Amount, nil
}

func expectedDeposit(amountPerTrade sdkmath.Int, numTrades uint64, fee sdkmath.Int) (sdkmath.Int, error) {
	total, err := amountPerTrade.SafeMul(sdkmath.NewIntFromUint64(numTrades))
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit overflow: %v", ErrInvalidFunds, err)
	}
	total, err = total.SafeAdd(fee)
	if err != nil {
		return sdkmath.Int{}, fmt.Errorf("%w: deposit overflow: %v", ErrInvalidFunds, err)
	}
	return total, nil
}

func validateAddress(field, addr string) error {
	if addr == "" {
		return invalid(field, "address is empty")
	}
	if len(addr) > maxAddressLen {
		return invalid(field, "address longer than %d bytes", maxAddressLen)
	}
	if strings.IndexFunc(addr, unicode.IsSpace) >= 0 {
		return invalid(field, "address contains whitespace")
	}
	if strings.Contains(addr, ":") {
		return invalid(field, "address contains ':'")
	}
	return nil
}

// Deposit is the exact source coin an instantiate call must carry.
func (m InstantiateMsg) Deposit() (coin.Coin, error) {
	fee := m.PlatformFee
	if fee.IsNil() {
		fee = sdkmath.ZeroInt()
	}
	if m.AmountPerTrade.IsNil() {
		return coin.Coin{}, invalid("amount_per_trade", "must be set")
	}
	total, err := expectedDeposit(m.AmountPerTrade, m.NumTrades, fee)
	if err != nil {
		return coin.Coin{}, err
	}
	return coin.New(m.SourceDenom, total), nil
}
