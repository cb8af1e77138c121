// Package coin holds the denom-tagged integer amounts moved between the
// strategy, the ledger and the router.
package coin

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	sdkmath "cosmossdk.io/math"
)

var ErrInvalidCoin = errors.New("invalid coin")

type Coin struct {
	Denom  string      `json:"denom"`
	Amount sdkmath.Int `json:"amount"`
}

func New(denom string, amount sdkmath.Int) Coin {
	if amount.IsNil() {
		amount = sdkmath.ZeroInt()
	}
	return Coin{Denom: denom, Amount: amount}
}

func NewInt64(denom string, amount int64) Coin {
	return Coin{Denom: denom, Amount: sdkmath.NewInt(amount)}
}

func (c Coin) String() string {
	return c.amount().String() + c.Denom
}

func (c Coin) IsZero() bool {
	return c.amount().IsZero()
}

func (c Coin) IsPositive() bool {
	return c.amount().IsPositive()
}

func (c Coin) amount() sdkmath.Int {
	if c.Amount.IsNil() {
		return sdkmath.ZeroInt()
	}
	return c.Amount
}

// Parse reads the "<amount><denom>" form used in router event attributes,
// e.g. "100uosmo" or "42ibc/27394FB0".
func Parse(raw string) (Coin, error) {
	s := strings.TrimSpace(raw)
	i := 0
	for i < len(s) && isASCIIDigit(s[i]) {
		i++
	}
	if i == 0 {
		return Coin{}, fmt.Errorf("%w: missing amount in %q", ErrInvalidCoin, raw)
	}
	amount, ok := sdkmath.NewIntFromString(s[:i])
	if !ok {
		return Coin{}, fmt.Errorf("%w: bad amount in %q", ErrInvalidCoin, raw)
	}
	denom := s[i:]
	if err := ValidateDenom(denom); err != nil {
		return Coin{}, fmt.Errorf("%w: %q: %v", ErrInvalidCoin, raw, err)
	}
	return Coin{Denom: denom, Amount: amount}, nil
}

type Coins []Coin

// ParseCoins reads a comma separated list of coins. Empty input is an empty list.
func ParseCoins(raw string) (Coins, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var out Coins
	for _, part := range strings.Split(raw, ",") {
		c, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = out.Add(c)
	}
	return out, nil
}

// Add merges coins by denom, keeping first-seen order. Zero coins are dropped.
func (cs Coins) Add(coins ...Coin) Coins {
	out := append(Coins(nil), cs...)
	for _, c := range coins {
		if c.IsZero() {
			continue
		}
		merged := false
		for i := range out {
			if out[i].Denom == c.Denom {
				out[i].Amount = out[i].amount().Add(c.Amount)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, c)
		}
	}
	return out
}

func (cs Coins) AmountOf(denom string) sdkmath.Int {
	total := sdkmath.ZeroInt()
	for _, c := range cs {
		if c.Denom == denom {
			total = total.Add(c.amount())
		}
	}
	return total
}

func (cs Coins) IsZero() bool {
	for _, c := range cs {
		if !c.IsZero() {
			return false
		}
	}
	return true
}

func (cs Coins) Denoms() []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Denom)
	}
	return out
}

// Sorted returns a copy ordered by denom.
func (cs Coins) Sorted() Coins {
	out := append(Coins(nil), cs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Denom < out[j].Denom })
	return out
}

func (cs Coins) String() string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, ",")
}
