package tpch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"tpch-docstore/internal/database"
	"tpch-docstore/internal/metrics"
)

const (
	QueryCustomerName     = "customer_name"
	QueryOrderDate        = "order_date"
	QueryOrderDateNested  = "order_date_nested"
	QueryOrderCount       = "order_count"
	QueryOrderCountNested = "order_count_nested"
	QueryTopSpend         = "top5_by_spend"
	QueryTopSpendNested   = "top5_by_spend_nested"
)

var QueryNames = []string{
	QueryCustomerName,
	QueryOrderDate,
	QueryOrderDateNested,
	QueryOrderCount,
	QueryOrderCountNested,
	QueryTopSpend,
	QueryTopSpendNested,
}

const topSpendLimit = 5

// Engine answers the lookup, count and top-N queries against both the
// normalized and the denormalized collections. It holds no state between
// calls.
type Engine struct {
	store       database.Store
	collections Collections
}

func NewEngine(store database.Store, collections Collections) *Engine {
	return &Engine{store: store, collections: collections}
}

func observe(query string, start time.Time, err error) {
	metrics.QueriesTotal.WithLabelValues(query, metrics.Status(err)).Inc()
	metrics.QueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

func findOne[T any](ctx context.Context, store database.Store, collection string, filter database.Filter) (T, bool, error) {
	var doc T
	err := store.FindOne(ctx, collection, filter).Scan(&doc)
	if errors.Is(err, database.ErrNoDocuments) {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, fmt.Errorf("find %s where %s = %v: %w", collection, filter.Field, filter.Value, err)
	}
	return doc, true, nil
}

// CustomerName returns the name of the customer with custkey. found is false
// when no such customer exists.
func (e *Engine) CustomerName(ctx context.Context, custkey int64) (name string, found bool, err error) {
	defer func(start time.Time) { observe(QueryCustomerName, start, err) }(time.Now())

	c, found, err := findOne[Customer](ctx, e.store, e.collections.Customer, database.Eq("custkey", custkey))
	if err != nil || !found {
		return "", false, err
	}
	return c.Name, true, nil
}

func (e *Engine) OrderDate(ctx context.Context, orderkey int64) (date string, found bool, err error) {
	defer func(start time.Time) { observe(QueryOrderDate, start, err) }(time.Now())

	o, found, err := findOne[Order](ctx, e.store, e.collections.Orders, database.Eq("orderkey", orderkey))
	if err != nil || !found {
		return "", false, err
	}
	return o.OrderDate, true, nil
}

// OrderDateNested finds the order inside the denormalized collection. Orphan
// orders were never embedded, so they are not found here even though
// OrderDate finds them.
func (e *Engine) OrderDateNested(ctx context.Context, orderkey int64) (date string, found bool, err error) {
	defer func(start time.Time) { observe(QueryOrderDateNested, start, err) }(time.Now())

	co, found, err := findOne[CustomerOrders](ctx, e.store, e.collections.CustOrders, database.Eq("orders.orderkey", orderkey))
	if err != nil || !found {
		return "", false, err
	}
	for _, o := range co.Orders {
		if o.OrderKey == orderkey {
			return o.OrderDate, true, nil
		}
	}
	return "", false, nil
}

func (e *Engine) OrderCount(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { observe(QueryOrderCount, start, err) }(time.Now())

	n, err = e.store.CountDocuments(ctx, e.collections.Orders)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", e.collections.Orders, err)
	}
	return n, nil
}

// OrderCountNested sums the embedded order lists. It equals OrderCount minus
// the orphan orders.
func (e *Engine) OrderCountNested(ctx context.Context) (n int64, err error) {
	defer func(start time.Time) { observe(QueryOrderCountNested, start, err) }(time.Now())

	err = ForEach(ctx, e.store, e.collections.CustOrders, func(co CustomerOrders) error {
		n += int64(len(co.Orders))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (e *Engine) Top5BySpend(ctx context.Context) ([]CustomerSpend, error) {
	return e.TopBySpend(ctx, topSpendLimit)
}

func (e *Engine) Top5BySpendNested(ctx context.Context) ([]CustomerSpend, error) {
	return e.TopBySpendNested(ctx, topSpendLimit)
}

// TopBySpend joins customers with the orders collection, sums totalprice per
// customer and returns the n largest spenders.
func (e *Engine) TopBySpend(ctx context.Context, n int) (top []CustomerSpend, err error) {
	defer func(start time.Time) { observe(QueryTopSpend, start, err) }(time.Now())

	totals := make(map[int64]float64)
	err = ForEach(ctx, e.store, e.collections.Orders, func(o Order) error {
		totals[o.CustKey] += o.TotalPrice
		return nil
	})
	if err != nil {
		return nil, err
	}

	var ranked []CustomerSpend
	err = ForEach(ctx, e.store, e.collections.Customer, func(c Customer) error {
		ranked = append(ranked, CustomerSpend{Customer: c, TotalOrderAmount: totals[c.CustKey]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topN(ranked, n), nil
}

// TopBySpendNested sums the embedded orders of each denormalized document and
// returns the n largest spenders.
func (e *Engine) TopBySpendNested(ctx context.Context, n int) (top []CustomerSpend, err error) {
	defer func(start time.Time) { observe(QueryTopSpendNested, start, err) }(time.Now())

	var ranked []CustomerSpend
	err = ForEach(ctx, e.store, e.collections.CustOrders, func(co CustomerOrders) error {
		var total float64
		for _, o := range co.Orders {
			total += o.TotalPrice
		}
		ranked = append(ranked, CustomerSpend{Customer: co.Customer, TotalOrderAmount: total})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return topN(ranked, n), nil
}

// topN orders by totalOrderAmount descending, ties by custkey ascending.
func topN(ranked []CustomerSpend, n int) []CustomerSpend {
	if n <= 0 || len(ranked) == 0 {
		return []CustomerSpend{}
	}
	slices.SortStableFunc(ranked, func(a, b CustomerSpend) int {
		if c := cmp.Compare(b.TotalOrderAmount, a.TotalOrderAmount); c != 0 {
			return c
		}
		return cmp.Compare(a.CustKey, b.CustKey)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return slices.Clone(ranked)
}

// Consistency compares the two representations.
type Consistency struct {
	CustomerCount    int64 `json:"customerCount"`
	CustOrdersCount  int64 `json:"custOrdersCount"`
	OrderCount       int64 `json:"orderCount"`
	OrderCountNested int64 `json:"orderCountNested"`
	OrphanOrders     int64 `json:"orphanOrders"`
	TopSpendAgrees   bool  `json:"topSpendAgrees"`
	Consistent       bool  `json:"consistent"`
}

// Verify checks that the denormalized collection holds one document per
// customer, that it embeds every non-orphan order, and that both top-5
// rankings agree.
func (e *Engine) Verify(ctx context.Context) (*Consistency, error) {
	var report Consistency
	var err error

	known := make(map[int64]struct{})
	err = ForEach(ctx, e.store, e.collections.Customer, func(c Customer) error {
		known[c.CustKey] = struct{}{}
		report.CustomerCount++
		return nil
	})
	if err != nil {
		return nil, err
	}
	err = ForEach(ctx, e.store, e.collections.Orders, func(o Order) error {
		if _, ok := known[o.CustKey]; !ok {
			report.OrphanOrders++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if report.CustOrdersCount, err = e.store.CountDocuments(ctx, e.collections.CustOrders); err != nil {
		return nil, fmt.Errorf("count %s: %w", e.collections.CustOrders, err)
	}
	if report.OrderCount, err = e.OrderCount(ctx); err != nil {
		return nil, err
	}
	if report.OrderCountNested, err = e.OrderCountNested(ctx); err != nil {
		return nil, err
	}

	top, err := e.Top5BySpend(ctx)
	if err != nil {
		return nil, err
	}
	topNested, err := e.Top5BySpendNested(ctx)
	if err != nil {
		return nil, err
	}
	report.TopSpendAgrees = slices.EqualFunc(top, topNested, func(a, b CustomerSpend) bool {
		return a.CustKey == b.CustKey && a.TotalOrderAmount == b.TotalOrderAmount
	})

	report.Consistent = report.TopSpendAgrees &&
		report.CustOrdersCount == report.CustomerCount &&
		report.OrderCountNested == report.OrderCount-report.OrphanOrders
	return &report, nil
}
