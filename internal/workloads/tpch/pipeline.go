package tpch

import (
	"context"
	"log/slog"

	"tpch-docstore/internal/database"
	"tpch-docstore/internal/metrics"
)

// Pipeline loads the flat files into the normalized collections and derives
// the denormalized one.
type Pipeline struct {
	Store       database.Store
	Collections Collections
	Delimiter   string
	Logger      *slog.Logger
}

type LoadSummary struct {
	Customers LoadStats `json:"customers"`
	Orders    LoadStats `json:"orders"`
}

func (p *Pipeline) delimiter() string {
	if p.Delimiter == "" {
		return DefaultDelimiter
	}
	return p.Delimiter
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Load parses both files completely before touching the store, so a
// malformed file leaves both collections as they were.
func (p *Pipeline) Load(ctx context.Context, customerPath, orderPath string) (*LoadSummary, error) {
	customers, customerStats, err := LoadFile(customerPath, p.delimiter(), ParseCustomer)
	if err != nil {
		return nil, err
	}
	orders, orderStats, err := LoadFile(orderPath, p.delimiter(), ParseOrder)
	if err != nil {
		return nil, err
	}

	if err := reload(ctx, p, p.Collections.Customer, customers, customerStats); err != nil {
		return nil, err
	}
	if err := reload(ctx, p, p.Collections.Orders, orders, orderStats); err != nil {
		return nil, err
	}

	p.logger().Info("data loaded",
		"customers", customerStats.Parsed, "customers_skipped", customerStats.Skipped,
		"orders", orderStats.Parsed, "orders_skipped", orderStats.Skipped)
	return &LoadSummary{Customers: customerStats, Orders: orderStats}, nil
}

func (p *Pipeline) LoadCustomers(ctx context.Context, path string) (LoadStats, error) {
	customers, stats, err := LoadFile(path, p.delimiter(), ParseCustomer)
	if err != nil {
		return stats, err
	}
	return stats, reload(ctx, p, p.Collections.Customer, customers, stats)
}

func (p *Pipeline) LoadOrders(ctx context.Context, path string) (LoadStats, error) {
	orders, stats, err := LoadFile(path, p.delimiter(), ParseOrder)
	if err != nil {
		return stats, err
	}
	return stats, reload(ctx, p, p.Collections.Orders, orders, stats)
}

func reload[T any](ctx context.Context, p *Pipeline, collection string, entities []T, stats LoadStats) error {
	metrics.RecordsTotal.WithLabelValues(collection, "parsed").Add(float64(stats.Parsed))
	metrics.RecordsTotal.WithLabelValues(collection, "skipped").Add(float64(stats.Skipped))
	if stats.Skipped > 0 {
		p.logger().Debug("skipped short records", "collection", collection, "path", stats.Path, "count", stats.Skipped)
	}
	return Reload(ctx, p.Store, collection, entities)
}

// LoadNest rebuilds the denormalized collection. Call it after Load.
func (p *Pipeline) LoadNest(ctx context.Context) (*NestSummary, error) {
	summary, err := Nest(ctx, p.Store, p.Collections)
	if err != nil {
		return nil, err
	}
	if summary.OrphanOrders > 0 {
		p.logger().Warn("orders without a customer left out of denormalized collection",
			"collection", p.Collections.CustOrders, "orphans", summary.OrphanOrders)
	}
	p.logger().Info("denormalized collection loaded",
		"collection", p.Collections.CustOrders,
		"customers", summary.Customers, "embedded_orders", summary.EmbeddedOrders)
	return &summary, nil
}
