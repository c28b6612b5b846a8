package tpch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tpch-docstore/internal/database/memory"
	"tpch-docstore/internal/logger"
)

const (
	customerTable = "1|Alice|Addr1|5|\n2|Bob|Addr2|7|\n3|Carol|\n"
	orderTable    = "10|1|2024-01-01|100.00|\n11|1|2024-01-05|50.00|\n12|2|2024-01-03|200.00|\n13|99|2024-02-01|5.00|\n"
)

func newPipeline() *Pipeline {
	return &Pipeline{
		Store:       memory.New(),
		Collections: DefaultCollections(),
		Logger:      logger.Discard(),
	}
}

func TestPipelineLoadAndNest(t *testing.T) {
	ctx := t.Context()
	p := newPipeline()
	customerPath := writeFile(t, "customer.tbl", customerTable)
	orderPath := writeFile(t, "order.tbl", orderTable)

	summary, err := p.Load(ctx, customerPath, orderPath)
	require.NoError(t, err)
	assert.Equal(t, LoadStats{Path: customerPath, Lines: 3, Parsed: 2, Skipped: 1}, summary.Customers)
	assert.Equal(t, LoadStats{Path: orderPath, Lines: 4, Parsed: 4}, summary.Orders)

	nest, err := p.LoadNest(ctx)
	require.NoError(t, err)
	assert.Equal(t, &NestSummary{Customers: 2, EmbeddedOrders: 3, OrphanOrders: 1}, nest)

	report, err := NewEngine(p.Store, p.Collections).Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
}

func TestPipelineLoadIsIdempotent(t *testing.T) {
	ctx := t.Context()
	p := newPipeline()
	customerPath := writeFile(t, "customer.tbl", customerTable)
	orderPath := writeFile(t, "order.tbl", orderTable)

	for range 3 {
		_, err := p.Load(ctx, customerPath, orderPath)
		require.NoError(t, err)
	}
	n, err := p.Store.CountDocuments(ctx, OrdersCollection)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestPipelineBadFileLeavesStoreUntouched(t *testing.T) {
	ctx := t.Context()
	p := newPipeline()
	customerPath := writeFile(t, "customer.tbl", customerTable)
	orderPath := writeFile(t, "order.tbl", orderTable)
	_, err := p.Load(ctx, customerPath, orderPath)
	require.NoError(t, err)

	badOrders := writeFile(t, "bad.tbl", "20|1|2024-03-01|oops|\n")
	_, err = p.Load(ctx, writeFile(t, "other.tbl", "5|Eve|Addr5|1|\n"), badOrders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), badOrders+":1:")

	name, found, err := NewEngine(p.Store, p.Collections).CustomerName(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Alice", name)
}

func TestPipelineNonFinitePriceLeavesStoreUntouched(t *testing.T) {
	ctx := t.Context()
	p := newPipeline()
	_, err := p.Load(ctx, writeFile(t, "customer.tbl", customerTable), writeFile(t, "order.tbl", orderTable))
	require.NoError(t, err)

	badOrders := writeFile(t, "nan.tbl", "20|1|2024-03-01|100.00|\n21|1|2024-03-02|NaN|\n")
	_, err = p.Load(ctx, writeFile(t, "other.tbl", "5|Eve|Addr5|1|\n"), badOrders)
	require.Error(t, err)
	assert.Contains(t, err.Error(), badOrders+":2:")
	assert.ErrorIs(t, err, ErrNonFinite)

	engine := NewEngine(p.Store, p.Collections)
	n, err := engine.OrderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	_, found, err := engine.CustomerName(ctx, 5)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPipelineLoadSingleFiles(t *testing.T) {
	ctx := t.Context()
	p := newPipeline()
	p.Delimiter = ","

	stats, err := p.LoadCustomers(ctx, writeFile(t, "customer.csv", "1,Alice,Addr1,5\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Parsed)

	stats, err = p.LoadOrders(ctx, writeFile(t, "order.csv", "10,1,2024-01-01,1.0\n11,1,2024-01-02,2.0\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Parsed)

	n, err := NewEngine(p.Store, p.Collections).OrderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
