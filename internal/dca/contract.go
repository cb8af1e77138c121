package dca

import (
	"context"

	"dca-vault/internal/state"

	sdkmath "cosmossdk.io/math"
	"go.uber.org/zap"
)

// Bank answers balance queries for the contract account.
type Bank interface {
	Balance(ctx context.Context, addr, denom string) (sdkmath.Int, error)
}

// Contract executes strategy entry points against a store. The host hands it a
// transactional store per call, so a returned error leaves nothing behind.
type Contract struct {
	store   state.Store
	bank    Bank
	address string
	log     *zap.Logger
}

func New(store state.Store, bank Bank, address string, log *zap.Logger) *Contract {
	if log == nil {
		log = zap.NewNop()
	}
	return &Contract{store: store, bank: bank, address: address, log: log}
}

func (c *Contract) Address() string {
	return c.address
}

func (c *Contract) load(ctx context.Context) (Config, State, error) {
	cfg, ok, err := LoadConfig(ctx, c.store)
	if err != nil {
		return Config{}, State{}, err
	}
	if !ok {
		return Config{}, State{}, ErrNotInstantiated
	}
	st, ok, err := LoadState(ctx, c.store)
	if err != nil {
		return Config{}, State{}, err
	}
	if !ok {
		return Config{}, State{}, ErrNotInstantiated
	}
	return cfg, st, nil
}
