package state

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

var ErrTxDone = errors.New("transaction already committed or discarded")

// Tx buffers writes over a base store. Reads see the buffered writes first.
// Nothing reaches the base store until Commit.
type Tx struct {
	base Store

	mu     sync.Mutex
	writes map[string]*string
	order  []string
	done   bool
}

func Begin(base Store) *Tx {
	return &Tx{base: base, writes: make(map[string]*string)}
}

func (t *Tx) Get(ctx context.Context, key string) (string, bool, error) {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return "", false, ErrTxDone
	}
	if val, ok := t.writes[key]; ok {
		t.mu.Unlock()
		if val == nil {
			return "", false, nil
		}
		return *val, true, nil
	}
	t.mu.Unlock()
	return t.base.Get(ctx, key)
}

func (t *Tx) Set(ctx context.Context, key, value string) error {
	_ = ctx
	return t.put(key, &value)
}

func (t *Tx) Delete(ctx context.Context, key string) error {
	_ = ctx
	return t.put(key, nil)
}

// List merges the base store's keys with buffered writes. The base store must
// implement Lister.
func (t *Tx) List(ctx context.Context, prefix string) (map[string]string, error) {
	lister, ok := t.base.(Lister)
	if !ok {
		return nil, errors.New("base store does not support listing")
	}
	out, err := lister.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, val := range t.writes {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if val == nil {
			delete(out, key)
			continue
		}
		out[key] = *val
	}
	return out, nil
}

// Close discards the transaction. The base store stays open.
func (t *Tx) Close() error {
	t.Discard()
	return nil
}

func (t *Tx) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done = true
	t.writes = nil
	t.order = nil
}

func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxDone
	}
	writes := make([]Write, 0, len(t.order))
	for _, key := range t.order {
		writes = append(writes, Write{Key: key, Value: t.writes[key]})
	}
	t.done = true
	t.mu.Unlock()

	if len(writes) == 0 {
		return nil
	}
	if batcher, ok := t.base.(Batcher); ok {
		return batcher.Apply(ctx, writes)
	}
	for _, w := range writes {
		var err error
		if w.Value == nil {
			err = t.base.Delete(ctx, w.Key)
		} else {
			err = t.base.Set(ctx, w.Key, *w.Value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the keys written so far, sorted.
func (t *Tx) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := append([]string(nil), t.order...)
	sort.Strings(keys)
	return keys
}

func (t *Tx) put(key string, value *string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrTxDone
	}
	if _, seen := t.writes[key]; !seen {
		t.order = append(t.order, key)
	}
	t.writes[key] = value
	return nil
}
