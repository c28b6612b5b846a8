package tpch

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"tpch-docstore/internal/database"
)

// QueryWorkload benchmarks one query of the engine. Setup loads both files
// and builds the denormalized collection; each Operation runs the query once,
// cycling through the keys seen during Setup for point lookups.
type QueryWorkload struct {
	Query        string
	CustomerFile string
	OrderFile    string
	Delimiter    string
	Collections  Collections

	custKeys  []int64
	orderKeys []int64
	next      atomic.Uint64
}

func (w *QueryWorkload) Setup(ctx context.Context, db database.Store, logger *slog.Logger) error {
	if !slices.Contains(QueryNames, w.Query) {
		return fmt.Errorf("unknown query %q", w.Query)
	}
	logger.Info("setting up query workload", "query", w.Query)

	p := &Pipeline{Store: db, Collections: w.Collections, Delimiter: w.Delimiter, Logger: logger}
	if _, err := p.Load(ctx, w.CustomerFile, w.OrderFile); err != nil {
		return err
	}
	if _, err := p.LoadNest(ctx); err != nil {
		return err
	}

	w.custKeys = w.custKeys[:0]
	if err := ForEach(ctx, db, w.Collections.Customer, func(c Customer) error {
		w.custKeys = append(w.custKeys, c.CustKey)
		return nil
	}); err != nil {
		return err
	}
	w.orderKeys = w.orderKeys[:0]
	return ForEach(ctx, db, w.Collections.Orders, func(o Order) error {
		w.orderKeys = append(w.orderKeys, o.OrderKey)
		return nil
	})
}

func pick(keys []int64, i uint64) int64 {
	if len(keys) == 0 {
		return 0
	}
	return keys[i%uint64(len(keys))]
}

// Operation is safe for concurrent use once Setup has returned.
func (w *QueryWorkload) Operation(ctx context.Context, db database.Store) error {
	engine := NewEngine(db, w.Collections)
	i := w.next.Add(1) - 1

	var err error
	switch w.Query {
	case QueryCustomerName:
		_, _, err = engine.CustomerName(ctx, pick(w.custKeys, i))
	case QueryOrderDate:
		_, _, err = engine.OrderDate(ctx, pick(w.orderKeys, i))
	case QueryOrderDateNested:
		_, _, err = engine.OrderDateNested(ctx, pick(w.orderKeys, i))
	case QueryOrderCount:
		_, err = engine.OrderCount(ctx)
	case QueryOrderCountNested:
		_, err = engine.OrderCountNested(ctx)
	case QueryTopSpend:
		_, err = engine.Top5BySpend(ctx)
	case QueryTopSpendNested:
		_, err = engine.Top5BySpendNested(ctx)
	default:
		err = fmt.Errorf("unknown query %q", w.Query)
	}
	return err
}

func (w *QueryWorkload) Verify(ctx context.Context, db database.Store) (bool, error) {
	report, err := NewEngine(db, w.Collections).Verify(ctx)
	if err != nil {
		return false, err
	}
	return report.Consistent, nil
}

func (w *QueryWorkload) Teardown(ctx context.Context, db database.Store, logger *slog.Logger) error {
	for _, name := range []string{w.Collections.CustOrders, w.Collections.Orders, w.Collections.Customer} {
		if err := db.DropCollection(ctx, name); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	logger.Info("query workload torn down", "query", w.Query)
	return nil
}
