package tpch

import (
	"context"

	"tpch-docstore/internal/database"
	"tpch-docstore/internal/metrics"
)

type NestSummary struct {
	Customers      int `json:"customers"`
	EmbeddedOrders int `json:"embeddedOrders"`
	OrphanOrders   int `json:"orphanOrders"`
}

// Denormalize embeds each customer's orders into one document per customer.
// Orders keep the order they have in the orders slice. Orders whose custkey
// matches no customer are counted as orphans and attached nowhere.
func Denormalize(customers []Customer, orders []Order) ([]CustomerOrders, NestSummary) {
	known := make(map[int64]struct{}, len(customers))
	for _, c := range customers {
		known[c.CustKey] = struct{}{}
	}

	summary := NestSummary{Customers: len(customers)}
	byCustomer := make(map[int64][]Order, len(customers))
	for _, o := range orders {
		if _, ok := known[o.CustKey]; !ok {
			summary.OrphanOrders++
			continue
		}
		byCustomer[o.CustKey] = append(byCustomer[o.CustKey], o)
	}

	nested := make([]CustomerOrders, 0, len(customers))
	for _, c := range customers {
		matched := byCustomer[c.CustKey]
		embedded := make([]Order, len(matched))
		copy(embedded, matched)
		summary.EmbeddedOrders += len(embedded)
		nested = append(nested, CustomerOrders{Customer: c, Orders: embedded})
	}
	return nested, summary
}

// Nest rebuilds the denormalized collection from the customer and orders
// collections. Both must be fully loaded before it runs.
func Nest(ctx context.Context, store database.Store, cols Collections) (NestSummary, error) {
	customers, err := ReadAll[Customer](ctx, store, cols.Customer)
	if err != nil {
		return NestSummary{}, err
	}
	orders, err := ReadAll[Order](ctx, store, cols.Orders)
	if err != nil {
		return NestSummary{}, err
	}

	nested, summary := Denormalize(customers, orders)
	if err := Reload(ctx, store, cols.CustOrders, nested); err != nil {
		return NestSummary{}, err
	}
	metrics.OrphanOrders.Set(float64(summary.OrphanOrders))
	return summary, nil
}
