package tpch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"tpch-docstore/internal/database"
	"tpch-docstore/internal/metrics"
)

const (
	QueryIngest      = "ingest"
	IngestCollection = "orders_ingest"
)

// IngestWorkload measures InsertMany throughput. Each Operation appends the
// whole parsed order file to Collection as one batch.
type IngestWorkload struct {
	OrderFile  string
	Delimiter  string
	Collection string

	docs    []interface{}
	batches atomic.Int64
}

func (w *IngestWorkload) collection() string {
	if w.Collection == "" {
		return IngestCollection
	}
	return w.Collection
}

func (w *IngestWorkload) Setup(ctx context.Context, db database.Store, logger *slog.Logger) error {
	delimiter := w.Delimiter
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	orders, stats, err := LoadFile(w.OrderFile, delimiter, ParseOrder)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		return fmt.Errorf("%s: no orders to ingest", w.OrderFile)
	}

	w.docs = make([]interface{}, len(orders))
	for i := range orders {
		w.docs[i] = orders[i]
	}
	w.batches.Store(0)
	if err := db.DropCollection(ctx, w.collection()); err != nil {
		return fmt.Errorf("drop %s: %w", w.collection(), err)
	}
	logger.Info("set up ingest workload", "collection", w.collection(), "batch_size", len(w.docs), "skipped", stats.Skipped)
	return nil
}

func (w *IngestWorkload) Operation(ctx context.Context, db database.Store) error {
	if err := db.InsertMany(ctx, w.collection(), w.docs); err != nil {
		return err
	}
	w.batches.Add(1)
	metrics.DocumentsWrittenTotal.WithLabelValues(w.collection()).Add(float64(len(w.docs)))
	return nil
}

// Verify reports whether every acknowledged batch landed exactly once.
func (w *IngestWorkload) Verify(ctx context.Context, db database.Store) (bool, error) {
	n, err := db.CountDocuments(ctx, w.collection())
	if err != nil {
		return false, fmt.Errorf("count %s: %w", w.collection(), err)
	}
	return n == w.batches.Load()*int64(len(w.docs)), nil
}

func (w *IngestWorkload) Teardown(ctx context.Context, db database.Store, logger *slog.Logger) error {
	if err := db.DropCollection(ctx, w.collection()); err != nil {
		return fmt.Errorf("drop %s: %w", w.collection(), err)
	}
	logger.Info("ingest workload torn down", "batches", w.batches.Load())
	return nil
}
