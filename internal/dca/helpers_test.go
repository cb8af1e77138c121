package dca

import (
	"context"
	"sync"
	"testing"
	"time"

	"dca-vault/internal/coin"

	sdkmath "cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	owner    = "osmo1owner"
	executor = "osmo1keeper"
	contract = "osmo1contract"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.items))
	for k, v := range m.items {
		out[k] = v
	}
	return out
}

type fakeBank map[string]sdkmath.Int

func (b fakeBank) Balance(ctx context.Context, addr, denom string) (sdkmath.Int, error) {
	_ = ctx
	if amt, ok := b[addr+"/"+denom]; ok {
		return amt, nil
	}
	return sdkmath.ZeroInt(), nil
}

func (b fakeBank) set(addr, denom string, amount int64) {
	b[addr+"/"+denom] = sdkmath.NewInt(amount)
}

func baseMsg() InstantiateMsg {
	return InstantiateMsg{
		Recipient:      "osmo1recipient",
		Executor:       executor,
		SourceDenom:    "uosmo",
		Destinations:   []Destination{{Denom: "uatom", Weight: sdkmath.NewInt(100)}, {Denom: "uion", Weight: sdkmath.NewInt(100)}},
		AmountPerTrade: sdkmath.NewInt(10),
		NumTrades:      3,
		SwapInterval:   time.Hour,
		MaxSlippage:    decimal.RequireFromString("0.01"),
		QuoteWindow:    30 * time.Second,
		RouterContract: "osmo1router",
		PlatformFee:    sdkmath.ZeroInt(),
	}
}

func deposit(amount int64) coin.Coins {
	return coin.Coins{coin.NewInt64("uosmo", amount)}
}

type harness struct {
	store *memoryStore
	bank  fakeBank
	c     *Contract
}

func newHarness(t *testing.T, msg InstantiateMsg) *harness {
	t.Helper()
	h := &harness{store: &memoryStore{}, bank: fakeBank{}}
	h.c = New(h.store, h.bank, contract, nil)
	total := msg.AmountPerTrade.MulRaw(int64(msg.NumTrades)).Add(msg.PlatformFee)
	_, err := h.c.Instantiate(context.Background(), owner, coin.Coins{coin.New(msg.SourceDenom, total)}, msg, t0)
	require.NoError(t, err)
	return h
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	st, err := h.c.State(context.Background())
	require.NoError(t, err)
	return st
}

func success(id string, in, out coin.Coin) SwapResult {
	return SwapResult{CorrelationID: id, Executed: true, TokenIn: &in, TokenOut: &out}
}
