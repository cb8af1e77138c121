package app

import (
	"fmt"
	"strings"

	"dca-vault/internal/coin"
	"dca-vault/internal/config"
	"dca-vault/internal/dca"

	sdkmath "cosmossdk.io/math"
)

// InstantiateMsg turns the strategy section into the contract's instantiate
// message and the exact deposit it needs.
func InstantiateMsg(cfg config.StrategyConfig, executor string) (dca.InstantiateMsg, coin.Coins, error) {
	amount, err := parseInt("strategy.amount_per_trade", cfg.AmountPerTrade)
	if err != nil {
		return dca.InstantiateMsg{}, nil, err
	}
	fee := sdkmath.ZeroInt()
	if strings.TrimSpace(cfg.PlatformFee) != "" {
		if fee, err = parseInt("strategy.platform_fee", cfg.PlatformFee); err != nil {
			return dca.InstantiateMsg{}, nil, err
		}
	}
	dests := make([]dca.Destination, 0, len(cfg.Destinations))
	for i, d := range cfg.Destinations {
		weight, err := parseInt(fmt.Sprintf("strategy.destinations[%d].weight", i), d.Weight)
		if err != nil {
			return dca.InstantiateMsg{}, nil, err
		}
		dests = append(dests, dca.Destination{Denom: strings.TrimSpace(d.Denom), Weight: weight})
	}
	msg := dca.InstantiateMsg{
		Recipient:            cfg.Recipient,
		Executor:             executor,
		StrategyType:         dca.StrategyType(cfg.StrategyType),
		SourceDenom:          strings.TrimSpace(cfg.SourceDenom),
		Destinations:         dests,
		AmountPerTrade:       amount,
		NumTrades:            cfg.NumTrades,
		SwapInterval:         cfg.SwapInterval,
		MaxSlippage:          cfg.MaxSlippage,
		QuoteWindow:          cfg.QuoteWindow,
		RouterContract:       cfg.RouterContract,
		PlatformFee:          fee,
		PlatformFeeRecipient: cfg.PlatformFeeRecipient,
		AssignRemainder:      cfg.AssignRemainder,
	}
	deposit, err := msg.Deposit()
	if err != nil {
		return dca.InstantiateMsg{}, nil, err
	}
	return msg, coin.Coins{deposit}, nil
}

func parseInt(field, raw string) (sdkmath.Int, error) {
	v, ok := sdkmath.NewIntFromString(strings.TrimSpace(raw))
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("%s: invalid integer %q", field, raw)
	}
	return v, nil
}
