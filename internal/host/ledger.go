// Package host runs the strategy contract against the kv store: balances,
// in-flight escrow and the transactional call boundary.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"dca-vault/internal/coin"
	"dca-vault/internal/state"

	sdkmath "cosmossdk.io/math"
)

const (
	balancePrefix = "bank:"
	escrowPrefix  = "escrow:"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEscrowExists      = errors.New("escrow already exists")
	ErrListUnsupported   = errors.New("store does not support listing")
	ErrInvalidAddress    = errors.New("invalid ledger address")
)

// checkAddress keeps bank:<addr>:<denom> keys of different accounts disjoint.
func checkAddress(addr string) error {
	if addr == "" || strings.Contains(addr, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return nil
}

func balanceKey(addr, denom string) string {
	return balancePrefix + addr + ":" + denom
}

func escrowKey(id string) string {
	return escrowPrefix + id
}

// Ledger keeps multi-denom balances under bank:<addr>:<denom>.
type Ledger struct {
	store state.Store
}

func NewLedger(store state.Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Balance(ctx context.Context, addr, denom string) (sdkmath.Int, error) {
	if err := checkAddress(addr); err != nil {
		return sdkmath.Int{}, err
	}
	raw, ok, err := l.store.Get(ctx, balanceKey(addr, denom))
	if err != nil {
		return sdkmath.Int{}, err
	}
	if !ok {
		return sdkmath.ZeroInt(), nil
	}
	amount, ok := sdkmath.NewIntFromString(raw)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("corrupt balance %s/%s: %q", addr, denom, raw)
	}
	return amount, nil
}

// Balances lists every positive balance of addr ordered by denom.
func (l *Ledger) Balances(ctx context.Context, addr string) (coin.Coins, error) {
	if err := checkAddress(addr); err != nil {
		return nil, err
	}
	lister, ok := l.store.(state.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	prefix := balancePrefix + addr + ":"
	items, err := lister.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	var out coin.Coins
	for key, raw := range items {
		amount, ok := sdkmath.NewIntFromString(raw)
		if !ok {
			return nil, fmt.Errorf("corrupt balance %s: %q", key, raw)
		}
		out = out.Add(coin.New(strings.TrimPrefix(key, prefix), amount))
	}
	return out.Sorted(), nil
}

// Mint credits coins that enter the ledger from outside, such as router output.
func (l *Ledger) Mint(ctx context.Context, addr string, coins coin.Coins) error {
	for _, c := range coins {
		if err := l.credit(ctx, addr, c); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) Send(ctx context.Context, from, to string, coins coin.Coins) error {
	for _, c := range coins {
		if err := l.debit(ctx, from, c); err != nil {
			return err
		}
	}
	for _, c := range coins {
		if err := l.credit(ctx, to, c); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) credit(ctx context.Context, addr string, c coin.Coin) error {
	if c.IsZero() {
		return nil
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("negative amount %s", c)
	}
	bal, err := l.Balance(ctx, addr, c.Denom)
	if err != nil {
		return err
	}
	return l.setBalance(ctx, addr, c.Denom, bal.Add(c.Amount))
}

func (l *Ledger) debit(ctx context.Context, addr string, c coin.Coin) error {
	if c.IsZero() {
		return nil
	}
	if c.Amount.IsNegative() {
		return fmt.Errorf("negative amount %s", c)
	}
	bal, err := l.Balance(ctx, addr, c.Denom)
	if err != nil {
		return err
	}
	if bal.LT(c.Amount) {
		return fmt.Errorf("%w: %s has %s%s, needs %s", ErrInsufficientFunds, addr, bal, c.Denom, c)
	}
	return l.setBalance(ctx, addr, c.Denom, bal.Sub(c.Amount))
}

func (l *Ledger) setBalance(ctx context.Context, addr, denom string, amount sdkmath.Int) error {
	if amount.IsZero() {
		return l.store.Delete(ctx, balanceKey(addr, denom))
	}
	return l.store.Set(ctx, balanceKey(addr, denom), amount.String())
}

// Escrow holds the funds of one dispatched swap leg until its result arrives.
type Escrow struct {
	CorrelationID string     `json:"correlation_id"`
	Owner         string     `json:"owner"`
	Router        string     `json:"router"`
	Funds         coin.Coins `json:"funds"`
	LockedAt      time.Time  `json:"locked_at"`
}

func (l *Ledger) Lock(ctx context.Context, esc Escrow) error {
	if _, ok, err := l.Escrow(ctx, esc.CorrelationID); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrEscrowExists, esc.CorrelationID)
	}
	for _, c := range esc.Funds {
		if err := l.debit(ctx, esc.Owner, c); err != nil {
			return err
		}
	}
	payload, err := json.Marshal(esc)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, escrowKey(esc.CorrelationID), string(payload))
}

func (l *Ledger) Escrow(ctx context.Context, id string) (Escrow, bool, error) {
	raw, ok, err := l.store.Get(ctx, escrowKey(id))
	if err != nil || !ok {
		return Escrow{}, ok, err
	}
	var esc Escrow
	if err := json.Unmarshal([]byte(raw), &esc); err != nil {
		return Escrow{}, false, fmt.Errorf("decode escrow %s: %w", id, err)
	}
	return esc, true, nil
}

func (l *Ledger) Escrows(ctx context.Context) ([]Escrow, error) {
	lister, ok := l.store.(state.Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	items, err := lister.List(ctx, escrowPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]Escrow, 0, len(items))
	for key, raw := range items {
		var esc Escrow
		if err := json.Unmarshal([]byte(raw), &esc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, esc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CorrelationID < out[j].CorrelationID })
	return out, nil
}

// Refund returns escrowed funds to their owner.
func (l *Ledger) Refund(ctx context.Context, id string) (Escrow, bool, error) {
	return l.Settle(ctx, id, nil)
}

// Settle closes an escrow where spent was consumed by the router. Whatever was
// locked beyond spent goes back to the owner.
func (l *Ledger) Settle(ctx context.Context, id string, spent coin.Coins) (Escrow, bool, error) {
	esc, ok, err := l.Escrow(ctx, id)
	if err != nil || !ok {
		return esc, ok, err
	}
	for _, c := range esc.Funds {
		left := c.Amount.Sub(spent.AmountOf(c.Denom))
		if left.IsPositive() {
			if err := l.credit(ctx, esc.Owner, coin.New(c.Denom, left)); err != nil {
				return Escrow{}, false, err
			}
		}
	}
	if err := l.store.Delete(ctx, escrowKey(id)); err != nil {
		return Escrow{}, false, err
	}
	return esc, true, nil
}
