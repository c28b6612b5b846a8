package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpch-docstore/internal/database"
	"tpch-docstore/internal/database/storetest"
)

func TestStore(t *testing.T) {
	d := New()
	require.NoError(t, d.Connect(""))
	t.Cleanup(func() { _ = d.Close() })

	storetest.Run(t, d)
}

func TestInsertedValuesAreCopied(t *testing.T) {
	ctx := t.Context()
	d := New()

	doc := storetest.Group{Key: 1, Items: []storetest.Item{{Key: 10, Name: "a"}}}
	require.NoError(t, d.InsertMany(ctx, "groups", []interface{}{doc}))
	doc.Items[0].Name = "changed"

	var got storetest.Group
	require.NoError(t, d.FindOne(ctx, "groups", database.Eq("key", int64(1))).Scan(&got))
	assert.Equal(t, "a", got.Items[0].Name)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	d := New()
	assert.ErrorIs(t, d.InsertMany(ctx, "groups", []interface{}{storetest.Group{Key: 1}}), context.Canceled)
	_, err := d.CountDocuments(ctx, "groups")
	assert.ErrorIs(t, err, context.Canceled)
}
