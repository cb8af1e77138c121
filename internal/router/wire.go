// Package router carries swap legs to an external swap router and turns the
// router's events back into typed swap results.
package router

import (
	"dca-vault/internal/coin"
	"dca-vault/internal/dca"
)

const OutcomeChannel = "swapOutcome"

// Request is the wire form of one swap leg.
type Request struct {
	CorrelationID string   `json:"correlation_id"`
	Sender        string   `json:"sender"`
	Router        string   `json:"router"`
	InputCoin     WireCoin `json:"input_coin"`
	OutputDenom   string   `json:"output_denom"`
	Slippage      Slippage `json:"slippage"`
}

type WireCoin struct {
	Denom  string `json:"denom"`
	Amount string `json:"amount"`
}

type Slippage struct {
	Twap Twap `json:"twap"`
}

type Twap struct {
	WindowSeconds      uint64 `json:"window_seconds"`
	SlippagePercentage string `json:"slippage_percentage"`
}

func NewRequest(sender string, req dca.SwapRequest) Request {
	return Request{
		CorrelationID: req.CorrelationID,
		Sender:        sender,
		Router:        req.Router,
		InputCoin:     WireCoin{Denom: req.InputCoin.Denom, Amount: req.InputCoin.Amount.String()},
		OutputDenom:   req.OutputDenom,
		Slippage: Slippage{Twap: Twap{
			WindowSeconds:      uint64(req.Slippage.Twap.Window.Seconds()),
			SlippagePercentage: req.Slippage.Twap.SlippagePercentage.String(),
		}},
	}
}

// Offer parses the input coin back into a typed coin.
func (r Request) Offer() (coin.Coin, error) {
	return coin.Parse(r.InputCoin.Amount + r.InputCoin.Denom)
}

// Ack is the router's acceptance of a request.
type Ack struct {
	ID     string `json:"id"`
	Digest string `json:"digest"`
}

// Outcome is the router's report for one request.
type Outcome struct {
	CorrelationID string  `json:"correlation_id"`
	Error         string  `json:"error,omitempty"`
	Events        []Event `json:"events,omitempty"`
}

type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
