package tpch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpch-docstore/internal/database/memory"
)

func TestDenormalize(t *testing.T) {
	customers := []Customer{
		{CustKey: 1, Name: "Alice"},
		{CustKey: 2, Name: "Bob"},
		{CustKey: 3, Name: "Carol"},
	}
	orders := []Order{
		{OrderKey: 12, CustKey: 2, TotalPrice: 200},
		{OrderKey: 10, CustKey: 1, TotalPrice: 100},
		{OrderKey: 13, CustKey: 99, TotalPrice: 10},
		{OrderKey: 11, CustKey: 1, TotalPrice: 50},
	}

	nested, summary := Denormalize(customers, orders)
	assert.Equal(t, NestSummary{Customers: 3, EmbeddedOrders: 3, OrphanOrders: 1}, summary)

	require.Len(t, nested, 3)
	assert.Equal(t, customers[0], nested[0].Customer)
	assert.Equal(t, []Order{orders[1], orders[3]}, nested[0].Orders)
	assert.Equal(t, []Order{orders[0]}, nested[1].Orders)
	assert.NotNil(t, nested[2].Orders)
	assert.Empty(t, nested[2].Orders)
}

func TestDenormalizeCopiesOrders(t *testing.T) {
	customers := []Customer{{CustKey: 1}}
	orders := []Order{{OrderKey: 10, CustKey: 1, OrderDate: "2024-01-01"}}

	nested, _ := Denormalize(customers, orders)
	nested[0].Orders[0].OrderDate = "changed"
	assert.Equal(t, "2024-01-01", orders[0].OrderDate)
}

func TestNestRebuildsCollection(t *testing.T) {
	ctx := t.Context()
	store := memory.New()
	cols := DefaultCollections()

	require.NoError(t, Reload(ctx, store, cols.Customer, []Customer{{CustKey: 1, Name: "Alice"}}))
	require.NoError(t, Reload(ctx, store, cols.Orders, []Order{{OrderKey: 10, CustKey: 1}, {OrderKey: 11, CustKey: 2}}))

	for range 2 {
		summary, err := Nest(ctx, store, cols)
		require.NoError(t, err)
		assert.Equal(t, NestSummary{Customers: 1, EmbeddedOrders: 1, OrphanOrders: 1}, summary)
	}

	docs, err := ReadAll[CustomerOrders](ctx, store, cols.CustOrders)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Alice", docs[0].Name)
	assert.Equal(t, []Order{{OrderKey: 10, CustKey: 1}}, docs[0].Orders)
}

func TestNestWithNoCustomers(t *testing.T) {
	ctx := t.Context()
	store := memory.New()
	cols := DefaultCollections()
	require.NoError(t, Reload(ctx, store, cols.Orders, []Order{{OrderKey: 10, CustKey: 1}}))

	summary, err := Nest(ctx, store, cols)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.OrphanOrders)

	n, err := store.CountDocuments(ctx, cols.CustOrders)
	require.NoError(t, err)
	assert.Zero(t, n)
}
