package dca

import (
	"time"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

type InstantiateMsg struct {
	Recipient            string          `json:"recipient"`
	Executor             string          `json:"executor,omitempty"`
	StrategyType         StrategyType    `json:"strategy_type"`
	SourceDenom          string          `json:"source_denom"`
	Destinations         []Destination   `json:"destinations"`
	AmountPerTrade       sdkmath.Int     `json:"amount_per_trade"`
	NumTrades            uint64          `json:"num_trades"`
	SwapInterval         time.Duration   `json:"swap_interval"`
	MaxSlippage          decimal.Decimal `json:"max_slippage"`
	QuoteWindow          time.Duration   `json:"quote_window"`
	RouterContract       string          `json:"router_contract"`
	PlatformFee          sdkmath.Int     `json:"platform_fee"`
	PlatformFeeRecipient string          `json:"platform_fee_recipient,omitempty"`
	AssignRemainder      bool            `json:"assign_remainder,omitempty"`
}

// Response carries the side effects of a call. The host applies Messages
// only if the call succeeds.
type Response struct {
	Messages   []Message
	Attributes []Attribute
	// Report is set when the call finalized a cycle.
	Report *CycleReport
	// Stray is set when a swap result did not match any pending leg.
	Stray bool
	// Cycle is the cycle the call acted on.
	Cycle uint64
}

func (r *Response) addAttribute(key, value string) {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
}

// Attribute returns the first value recorded under key.
func (r Response) Attribute(key string) (string, bool) {
	for _, attr := range r.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

func (r Response) SwapCalls() []SwapCall {
	var out []SwapCall
	for _, msg := range r.Messages {
		if msg.Swap != nil {
			out = append(out, *msg.Swap)
		}
	}
	return out
}

func (r Response) BankSends() []BankSend {
	var out []BankSend
	for _, msg := range r.Messages {
		if msg.Send != nil {
			out = append(out, *msg.Send)
		}
	}
	return out
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Message is either a bank transfer from the contract or a swap leg.
type Message struct {
	Send *BankSend
	Swap *SwapCall
}

type BankSend struct {
	To     string     `json:"to"`
	Amount coin.Coins `json:"amount"`
}

type SwapCall struct {
	Request SwapRequest `json:"request"`
	Funds   coin.Coins  `json:"funds"`
}

type SwapRequest struct {
	CorrelationID string    `json:"correlation_id"`
	Router        string    `json:"router"`
	InputCoin     coin.Coin `json:"input_coin"`
	OutputDenom   string    `json:"output_denom"`
	Slippage      Slippage  `json:"slippage"`
}

type Slippage struct {
	Twap TwapSlippage `json:"twap"`
}

// TwapSlippage bounds the output against a time weighted price over Window.
type TwapSlippage struct {
	Window             time.Duration   `json:"window"`
	SlippagePercentage decimal.Decimal `json:"slippage_percentage"`
}

// SwapResult is the typed outcome of one leg as reported by the router adapter.
type SwapResult struct {
	CorrelationID string     `json:"correlation_id"`
	Executed      bool       `json:"executed"`
	TokenIn       *coin.Coin `json:"token_in,omitempty"`
	TokenOut      *coin.Coin `json:"token_out,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

// Succeeded reports whether the result carries a usable output.
func (r SwapResult) Succeeded() bool {
	return r.Executed && r.TokenIn != nil && r.TokenOut != nil && r.TokenOut.IsPositive()
}

// Failed builds a failed result for a leg.
func Failed(correlationID, reason string) SwapResult {
	return SwapResult{CorrelationID: correlationID, Reason: reason}
}
