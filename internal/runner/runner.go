package runner

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"

	"tpch-docstore/internal/database"
)

// Max latency of 10 seconds in microseconds, significant figures of 3.
const (
	minLatencyMicros = 1
	maxLatencyMicros = 10_000_000
	sigFigs          = 3
)

type Workload interface {
	Setup(ctx context.Context, db database.Store, logger *slog.Logger) error
	Operation(ctx context.Context, db database.Store) error
	Verify(ctx context.Context, db database.Store) (bool, error)
	Teardown(ctx context.Context, db database.Store, logger *slog.Logger) error
}

type Result struct {
	RunID          string
	Operations     int64
	Errors         int64
	Throughput     float64
	P95Latency     time.Duration
	P99Latency     time.Duration
	AverageLatency time.Duration
	ErrorRate      float64
	TotalTime      time.Duration
	DataIntegrity  bool
	// SlowOperations counts latencies above the histogram range, recorded at
	// its maximum.
	SlowOperations int64
}

// recordLatency clamps d to the highest trackable value so slow operations
// still count toward the percentiles. It reports whether d was clamped.
func recordLatency(h *hdrhistogram.Histogram, d time.Duration) bool {
	v := d.Microseconds()
	clamped := v > maxLatencyMicros
	if clamped {
		v = maxLatencyMicros
	}
	_ = h.RecordValue(v)
	return clamped
}

// Run drives workload.Operation from concurrency workers until duration has
// elapsed or ctx is done, then asks the workload to verify its data. Setup
// and Teardown are the caller's job.
func Run(ctx context.Context, db database.Store, workload Workload, concurrency int, duration time.Duration, logger *slog.Logger) (*Result, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	runID := uuid.New().String()
	logger = logger.With("run_id", runID)
	logger.Info("running workload", "concurrency", concurrency, "duration", duration)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		operations atomic.Int64
		errs       atomic.Int64
		slow       atomic.Int64
	)
	histogram := hdrhistogram.New(minLatencyMicros, maxLatencyMicros, sigFigs)

	totalStartTime := time.Now()
	deadline := totalStartTime.Add(duration)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := hdrhistogram.New(minLatencyMicros, maxLatencyMicros, sigFigs)
			for time.Now().Before(deadline) && ctx.Err() == nil {
				opStartTime := time.Now()
				if err := workload.Operation(ctx, db); err != nil {
					errs.Add(1)
					logger.Debug("operation failed", "error", err)
					continue
				}
				operations.Add(1)
				if recordLatency(local, time.Since(opStartTime)) {
					slow.Add(1)
				}
			}
			mu.Lock()
			histogram.Merge(local)
			mu.Unlock()
		}()
	}
	wg.Wait()

	result := &Result{
		RunID:      runID,
		Operations: operations.Load(),
		Errors:     errs.Load(),
		TotalTime:  time.Since(totalStartTime),

		SlowOperations: slow.Load(),
	}
	if result.SlowOperations > 0 {
		logger.Warn("latencies above histogram range recorded at its maximum",
			"count", result.SlowOperations, "max", time.Duration(maxLatencyMicros)*time.Microsecond)
	}
	if secs := result.TotalTime.Seconds(); secs > 0 {
		result.Throughput = float64(result.Operations) / secs
	}
	if total := result.Operations + result.Errors; total > 0 {
		result.ErrorRate = float64(result.Errors) / float64(total)
	}
	result.AverageLatency = time.Duration(histogram.Mean()) * time.Microsecond
	result.P95Latency = time.Duration(histogram.ValueAtQuantile(95)) * time.Microsecond
	result.P99Latency = time.Duration(histogram.ValueAtQuantile(99)) * time.Microsecond

	ok, err := workload.Verify(ctx, db)
	if err != nil {
		return nil, err
	}
	result.DataIntegrity = ok

	logger.Info("workload finished", "operations", result.Operations, "errors", result.Errors, "data_integrity", ok)
	return result, nil
}
