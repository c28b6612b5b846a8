// Package storetest holds the behaviour every database.Store must share. Each
// driver package runs it against a live instance of its backend.
package storetest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpch-docstore/internal/database"
)

type Item struct {
	Key  int64  `bson:"key" json:"key"`
	Name string `bson:"name" json:"name"`
}

type Group struct {
	Key   int64  `bson:"key" json:"key"`
	Label string `bson:"label" json:"label"`
	Items []Item `bson:"items" json:"items"`
}

func groups() []interface{} {
	return []interface{}{
		Group{Key: 1, Label: "first", Items: []Item{{Key: 10, Name: "a"}, {Key: 11, Name: "b"}}},
		Group{Key: 2, Label: "second", Items: []Item{{Key: 20, Name: "c"}}},
		Group{Key: 3, Label: "third", Items: []Item{}},
		Group{Key: 4, Label: "second", Items: []Item{{Key: 40, Name: "d"}, {Key: 11, Name: "e"}}},
	}
}

func readGroups(t *testing.T, ctx context.Context, store database.Store, name string) []Group {
	t.Helper()
	rows, err := store.Find(ctx, name)
	require.NoError(t, err)
	defer rows.Close()

	var out []Group
	for rows.Next() {
		var g Group
		require.NoError(t, rows.Scan(&g))
		out = append(out, g)
	}
	require.NoError(t, rows.Err())
	return out
}

func keys(gs []Group) []int64 {
	out := make([]int64, len(gs))
	for i, g := range gs {
		out[i] = g.Key
	}
	return out
}

// Run exercises store, which must already be connected. It creates and drops
// collections prefixed with "storetest_".
func Run(t *testing.T, store database.Store) {
	t.Run("insert and find keep insertion order", func(t *testing.T) {
		ctx := t.Context()
		name := "storetest_order"
		require.NoError(t, store.DropCollection(ctx, name))
		t.Cleanup(func() { _ = store.DropCollection(context.Background(), name) })

		require.NoError(t, store.InsertMany(ctx, name, groups()))
		got := readGroups(t, ctx, store, name)
		require.Equal(t, []int64{1, 2, 3, 4}, keys(got))
		assert.Equal(t, "first", got[0].Label)
		assert.Equal(t, []Item{{Key: 10, Name: "a"}, {Key: 11, Name: "b"}}, got[0].Items)
	})

	t.Run("insert many appends", func(t *testing.T) {
		ctx := t.Context()
		name := "storetest_append"
		require.NoError(t, store.DropCollection(ctx, name))
		t.Cleanup(func() { _ = store.DropCollection(context.Background(), name) })

		docs := groups()
		require.NoError(t, store.InsertMany(ctx, name, docs[:2]))
		require.NoError(t, store.InsertMany(ctx, name, docs[2:]))
		assert.Equal(t, []int64{1, 2, 3, 4}, keys(readGroups(t, ctx, store, name)))
	})

	t.Run("large inserts keep insertion order", func(t *testing.T) {
		ctx := t.Context()
		name := "storetest_large"
		require.NoError(t, store.DropCollection(ctx, name))
		t.Cleanup(func() { _ = store.DropCollection(context.Background(), name) })

		const total = 2500
		want := make([]int64, 0, total)
		for start := 0; start < total; start += 1000 {
			var docs []interface{}
			for i := start; i < min(start+1000, total); i++ {
				docs = append(docs, Group{Key: int64(i), Items: []Item{}})
				want = append(want, int64(i))
			}
			require.NoError(t, store.InsertMany(ctx, name, docs))
		}
		assert.Equal(t, want, keys(readGroups(t, ctx, store, name)))
	})

	t.Run("empty insert is a no-op", func(t *testing.T) {
		ctx := t.Context()
		name := "storetest_empty"
		require.NoError(t, store.DropCollection(ctx, name))
		t.Cleanup(func() { _ = store.DropCollection(context.Background(), name) })

		require.NoError(t, store.InsertMany(ctx, name, nil))
		n, err := store.CountDocuments(ctx, name)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("missing collection is empty", func(t *testing.T) {
		ctx := t.Context()
		name := "storetest_missing"
		require.NoError(t, store.DropCollection(ctx, name))
		require.NoError(t, store.DropCollection(ctx, name))

		n, err := store.CountDocuments(ctx, name)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Empty(t, readGroups(t, ctx, store, name))

		var g Group
		err = store.FindOne(ctx, name, database.Eq("key", int64(1))).Scan(&g)
		assert.ErrorIs(t, err, database.ErrNoDocuments)
	})

	t.Run("drop and count", func(t *testing.T) {
		ctx := t.Context()
		name := "storetest_drop"
		require.NoError(t, store.DropCollection(ctx, name))
		t.Cleanup(func() { _ = store.DropCollection(context.Background(), name) })

		require.NoError(t, store.InsertMany(ctx, name, groups()))
		n, err := store.CountDocuments(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		require.NoError(t, store.DropCollection(ctx, name))
		n, err = store.CountDocuments(ctx, name)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("find one", func(t *testing.T) {
		ctx := t.Context()
		name := "storetest_findone"
		require.NoError(t, store.DropCollection(ctx, name))
		t.Cleanup(func() { _ = store.DropCollection(context.Background(), name) })
		require.NoError(t, store.InsertMany(ctx, name, groups()))

		tests := []struct {
			name    string
			filter  database.Filter
			wantKey int64
			found   bool
		}{
			{name: "top-level integer", filter: database.Eq("key", int64(2)), wantKey: 2, found: true},
			{name: "top-level string returns first match", filter: database.Eq("label", "second"), wantKey: 2, found: true},
			{name: "embedded array element", filter: database.Eq("items.key", int64(20)), wantKey: 2, found: true},
			{name: "embedded array returns first match", filter: database.Eq("items.key", int64(11)), wantKey: 1, found: true},
			{name: "embedded string", filter: database.Eq("items.name", "d"), wantKey: 4, found: true},
			{name: "no top-level match", filter: database.Eq("key", int64(99))},
			{name: "no embedded match", filter: database.Eq("items.key", int64(99))},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				var g Group
				err := store.FindOne(ctx, name, tt.filter).Scan(&g)
				if !tt.found {
					require.True(t, errors.Is(err, database.ErrNoDocuments), "got %v", err)
					return
				}
				require.NoError(t, err)
				assert.Equal(t, tt.wantKey, g.Key)
			})
		}
	})

	t.Run("invalid names are rejected", func(t *testing.T) {
		ctx := t.Context()
		var g Group
		err := store.FindOne(ctx, "storetest_findone", database.Eq("key; DROP TABLE x", int64(1))).Scan(&g)
		require.Error(t, err)
		assert.NotErrorIs(t, err, database.ErrNoDocuments)
	})
}
