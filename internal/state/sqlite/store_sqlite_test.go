package sqlite

import (
	"context"
	"testing"

	"dca-vault/internal/state"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err, "failed to open store")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "key", "value"))
	val, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "value", val)

	require.NoError(t, store.Delete(ctx, "key"))
	_, ok, err = store.Get(ctx, "key")
	require.NoError(t, err)
	require.False(t, ok, "expected key to be deleted")
}

func TestStoreCommitsTxAtomically(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "bank:a", "1"))
	tx := state.Begin(store)
	_ = tx.Set(ctx, "bank:b", "2")
	_ = tx.Set(ctx, "dca:state", "{}")
	_ = tx.Delete(ctx, "bank:a")
	require.NoError(t, tx.Commit(ctx))

	items, err := store.List(ctx, "bank:")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"bank:b": "2"}, items)
	val, ok, _ := store.Get(ctx, "dca:state")
	require.True(t, ok)
	require.Equal(t, "{}", val)
}

func TestStoreListMatchesBytePrefix(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for key, val := range map[string]string{
		"bank:émile:uosmo": "1",
		"bank:émile:uatom": "2",
		"bank:émilf:uosmo": "3",
		"bank:é":           "4",
		"bank;":            "5",
	} {
		require.NoError(t, store.Set(ctx, key, val))
	}

	items, err := store.List(ctx, "bank:émile:")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"bank:émile:uosmo": "1", "bank:émile:uatom": "2"}, items)

	items, err = store.List(ctx, "bank:")
	require.NoError(t, err)
	require.Len(t, items, 4)

	items, err = store.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, items, 5)
}

func TestPrefixEnd(t *testing.T) {
	cases := []struct {
		prefix string
		end    string
		ok     bool
	}{
		{prefix: "bank:", end: "bank;", ok: true},
		{prefix: "a\xff", end: "b", ok: true},
		{prefix: "\xff\xff", ok: false},
		{prefix: "", ok: false},
	}
	for _, tc := range cases {
		end, ok := prefixEnd(tc.prefix)
		require.Equal(t, tc.ok, ok, "prefix %q", tc.prefix)
		require.Equal(t, tc.end, end, "prefix %q", tc.prefix)
	}
}
