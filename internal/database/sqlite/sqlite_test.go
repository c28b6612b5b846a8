package sqlite

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpch-docstore/internal/database"
	"tpch-docstore/internal/database/storetest"
)

func newDriver(t *testing.T) *Driver {
	t.Helper()
	d := &Driver{}
	require.NoError(t, d.Connect(filepath.Join(t.TempDir(), "store.db")))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestStore(t *testing.T) {
	storetest.Run(t, newDriver(t))
}

func TestDeepPathUnsupported(t *testing.T) {
	d := newDriver(t)

	var g storetest.Group
	err := d.FindOne(t.Context(), "groups", database.Eq("items.key.value", int64(1))).Scan(&g)
	assert.True(t, errors.Is(err, database.ErrUnsupportedFilter), "got %v", err)
}

func TestInvalidCollectionName(t *testing.T) {
	d := newDriver(t)

	_, err := d.CountDocuments(t.Context(), "groups; DROP TABLE x")
	assert.Error(t, err)
}
