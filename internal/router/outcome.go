package router

import (
	"fmt"

	"dca-vault/internal/coin"
	"dca-vault/internal/dca"
)

const (
	swapEventType = "token_swapped"
	tokensInAttr  = "tokens_in"
	tokensOutAttr = "tokens_out"
)

// ToResult scans the router events for the swap record. Router errors and
// missing or malformed records become failed results.
func ToResult(o Outcome) dca.SwapResult {
	if o.Error != "" {
		return dca.Failed(o.CorrelationID, o.Error)
	}
	for _, ev := range o.Events {
		if ev.Type != swapEventType {
			continue
		}
		in, out, err := parseSwapEvent(ev)
		if err != nil {
			return dca.Failed(o.CorrelationID, err.Error())
		}
		return dca.SwapResult{CorrelationID: o.CorrelationID, Executed: true, TokenIn: &in, TokenOut: &out}
	}
	return dca.Failed(o.CorrelationID, "no "+swapEventType+" event")
}

func parseSwapEvent(ev Event) (coin.Coin, coin.Coin, error) {
	var inRaw, outRaw string
	for _, attr := range ev.Attributes {
		switch attr.Key {
		case tokensInAttr:
			inRaw = attr.Value
		case tokensOutAttr:
			outRaw = attr.Value
		}
	}
	if inRaw == "" || outRaw == "" {
		return coin.Coin{}, coin.Coin{}, fmt.Errorf("%s event missing %s or %s", swapEventType, tokensInAttr, tokensOutAttr)
	}
	in, err := coin.Parse(inRaw)
	if err != nil {
		return coin.Coin{}, coin.Coin{}, err
	}
	out, err := coin.Parse(outRaw)
	if err != nil {
		return coin.Coin{}, coin.Coin{}, err
	}
	return in, out, nil
}

// SwapEvent builds the event a router emits for a completed swap.
func SwapEvent(in, out coin.Coin) Event {
	return Event{Type: swapEventType, Attributes: []Attribute{
		{Key: tokensInAttr, Value: in.String()},
		{Key: tokensOutAttr, Value: out.String()},
	}}
}
