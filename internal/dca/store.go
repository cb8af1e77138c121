package dca

import (
	"context"
	"encoding/json"
	"fmt"

	"dca-vault/internal/state"
)

const (
	configKey = "dca:config"
	stateKey  = "dca:state"
)

func LoadConfig(ctx context.Context, store state.Store) (Config, bool, error) {
	var cfg Config
	ok, err := loadJSON(ctx, store, configKey, &cfg)
	return cfg, ok, err
}

func SaveConfig(ctx context.Context, store state.Store, cfg Config) error {
	return saveJSON(ctx, store, configKey, cfg)
}

func LoadState(ctx context.Context, store state.Store) (State, bool, error) {
	var st State
	ok, err := loadJSON(ctx, store, stateKey, &st)
	return st, ok, err
}

func SaveState(ctx context.Context, store state.Store, st State) error {
	return saveJSON(ctx, store, stateKey, st)
}

func loadJSON(ctx context.Context, store state.Store, key string, out any) (bool, error) {
	if store == nil {
		return false, nil
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func saveJSON(ctx context.Context, store state.Store, key string, value any) error {
	if store == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Set(ctx, key, string(payload))
}
