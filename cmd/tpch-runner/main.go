package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"tpch-docstore/internal/config"
	"tpch-docstore/internal/database"
	"tpch-docstore/internal/database/memory"
	"tpch-docstore/internal/database/mongodb"
	"tpch-docstore/internal/database/mysql"
	"tpch-docstore/internal/database/pebbledb"
	"tpch-docstore/internal/database/postgres"
	"tpch-docstore/internal/database/sqlite"
	"tpch-docstore/internal/logger"
	"tpch-docstore/internal/runner"
	"tpch-docstore/internal/workloads/tpch"
)

func main() {
	var exitCode int
	defer func() {
		os.Exit(exitCode)
	}()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exitCode = 1
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml (defaults plus TPCH_* env vars when empty)")
	dbType := flag.String("db", "mongo", "store type (mongo, postgres, mysql, sqlite, pebble, memory)")
	step := flag.String("step", "all", "step to run (load, nest, query, verify, bench, all)")
	custKey := flag.Int64("custkey", 1, "custkey for the customer name query")
	orderKey := flag.Int64("orderkey", 1, "orderkey for the order date queries")
	query := flag.String("query", tpch.QueryTopSpend, "query to benchmark with --step=bench, or \"ingest\" for bulk inserts")
	concurrency := flag.Int("concurrency", 0, "number of concurrent workers for --step=bench (0 = config default)")
	duration := flag.Duration("duration", 0, "duration of the benchmark (0 = config default)")
	verbose := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	log := logger.New(*verbose)

	// A local .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to load .env", "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	driver, dsn, err := newDriver(*dbType, cfg)
	if err != nil {
		return err
	}
	if err := driver.Connect(dsn); err != nil {
		return fmt.Errorf("connect to %s: %w", *dbType, err)
	}
	defer driver.Close()

	if cfg.Metrics.Addr != "" {
		serveMetrics(log, cfg.Metrics.Addr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	collections := tpch.Collections{
		Customer:   cfg.Collections.Customer,
		Orders:     cfg.Collections.Orders,
		CustOrders: cfg.Collections.CustOrders,
	}
	pipeline := &tpch.Pipeline{
		Store:       driver,
		Collections: collections,
		Delimiter:   cfg.Input.Delimiter,
		Logger:      log,
	}
	engine := tpch.NewEngine(driver, collections)

	switch *step {
	case "load":
		summary, err := pipeline.Load(ctx, cfg.Input.CustomerFile, cfg.Input.OrderFile)
		if err != nil {
			return err
		}
		return printJSON(summary)
	case "nest":
		summary, err := pipeline.LoadNest(ctx)
		if err != nil {
			return err
		}
		return printJSON(summary)
	case "query":
		return runQueries(ctx, engine, *custKey, *orderKey)
	case "verify":
		report, err := engine.Verify(ctx)
		if err != nil {
			return err
		}
		return printJSON(report)
	case "bench":
		return runBench(ctx, log, driver, cfg, collections, *query, *concurrency, *duration)
	case "all":
		if _, err := pipeline.Load(ctx, cfg.Input.CustomerFile, cfg.Input.OrderFile); err != nil {
			return err
		}
		if _, err := pipeline.LoadNest(ctx); err != nil {
			return err
		}
		return runQueries(ctx, engine, *custKey, *orderKey)
	default:
		return fmt.Errorf("unsupported step: %s", *step)
	}
}

func newDriver(dbType string, cfg *config.Config) (database.DatabaseDriver, string, error) {
	dbs := map[string]database.DatabaseDriver{
		"mongo":    &mongodb.Driver{Database: cfg.Databases.MongoDatabase},
		"postgres": &postgres.Driver{},
		"mysql":    &mysql.Driver{},
		"sqlite":   &sqlite.Driver{},
		"pebble":   &pebbledb.Driver{},
		"memory":   memory.New(),
	}
	driver, ok := dbs[dbType]
	if !ok {
		return nil, "", fmt.Errorf("unsupported database type: %s", dbType)
	}

	var dsn string
	switch dbType {
	case "mongo":
		dsn = cfg.Databases.Mongo
	case "postgres":
		dsn = cfg.Databases.Postgres
	case "mysql":
		dsn = cfg.Databases.MySQL
	case "sqlite":
		dsn = cfg.Databases.SQLite
	case "pebble":
		dsn = cfg.Databases.Pebble
	}
	return driver, dsn, nil
}

type queryResults struct {
	CustKey           int64                `json:"custkey"`
	CustomerName      *string              `json:"customerName"`
	OrderKey          int64                `json:"orderkey"`
	OrderDate         *string              `json:"orderDate"`
	OrderDateNested   *string              `json:"orderDateNested"`
	OrderCount        int64                `json:"orderCount"`
	OrderCountNested  int64                `json:"orderCountNested"`
	Top5BySpend       []tpch.CustomerSpend `json:"top5BySpend"`
	Top5BySpendNested []tpch.CustomerSpend `json:"top5BySpendNested"`
}

// found maps a lookup result to a JSON null when the key does not exist.
func found(value string, ok bool) *string {
	if !ok {
		return nil
	}
	return &value
}

func runQueries(ctx context.Context, engine *tpch.Engine, custKey, orderKey int64) error {
	res := queryResults{CustKey: custKey, OrderKey: orderKey}

	name, ok, err := engine.CustomerName(ctx, custKey)
	if err != nil {
		return err
	}
	res.CustomerName = found(name, ok)

	date, ok, err := engine.OrderDate(ctx, orderKey)
	if err != nil {
		return err
	}
	res.OrderDate = found(date, ok)

	date, ok, err = engine.OrderDateNested(ctx, orderKey)
	if err != nil {
		return err
	}
	res.OrderDateNested = found(date, ok)

	if res.OrderCount, err = engine.OrderCount(ctx); err != nil {
		return err
	}
	if res.OrderCountNested, err = engine.OrderCountNested(ctx); err != nil {
		return err
	}
	if res.Top5BySpend, err = engine.Top5BySpend(ctx); err != nil {
		return err
	}
	if res.Top5BySpendNested, err = engine.Top5BySpendNested(ctx); err != nil {
		return err
	}
	return printJSON(res)
}

func runBench(ctx context.Context, log *slog.Logger, driver database.Store, cfg *config.Config, collections tpch.Collections, query string, concurrency int, duration time.Duration) error {
	if concurrency == 0 {
		concurrency = cfg.BenchmarkSettings.DefaultConcurrency
	}
	if duration == 0 {
		d, err := cfg.BenchmarkSettings.Duration()
		if err != nil {
			return err
		}
		duration = d
	}

	var workload runner.Workload
	if query == tpch.QueryIngest {
		workload = &tpch.IngestWorkload{
			OrderFile: cfg.Input.OrderFile,
			Delimiter: cfg.Input.Delimiter,
		}
	} else {
		workload = &tpch.QueryWorkload{
			Query:        query,
			CustomerFile: cfg.Input.CustomerFile,
			OrderFile:    cfg.Input.OrderFile,
			Delimiter:    cfg.Input.Delimiter,
			Collections:  collections,
		}
	}
	if err := workload.Setup(ctx, driver, log); err != nil {
		return fmt.Errorf("setup workload: %w", err)
	}
	defer func() {
		if err := workload.Teardown(context.Background(), driver, log); err != nil {
			log.Error("failed to teardown workload", "error", err)
		}
	}()

	log.Info("running benchmark", "query", query)
	result, err := runner.Run(ctx, driver, workload, concurrency, duration, log)
	if err != nil {
		return fmt.Errorf("benchmark failed: %w", err)
	}
	return printJSON(result)
}

func serveMetrics(log *slog.Logger, addr string) {
	go func() {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			log.Error("failed to start prometheus metrics server listener", "error", err)
			return
		}
		log.Info("prometheus metrics server listening", "address", listener.Addr().String())
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.Serve(listener, mux); err != nil {
			log.Error("failed to serve prometheus metrics", "error", err)
		}
	}()
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
