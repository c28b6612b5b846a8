package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Databases         Databases         `yaml:"databases"`
	Input             Input             `yaml:"input"`
	Collections       Collections       `yaml:"collections"`
	BenchmarkSettings BenchmarkSettings `yaml:"benchmark_settings"`
	Metrics           Metrics           `yaml:"metrics"`
}

type Databases struct {
	Postgres      string `yaml:"postgres" env:"TPCH_POSTGRES_DSN"`
	MySQL         string `yaml:"mysql" env:"TPCH_MYSQL_DSN"`
	Mongo         string `yaml:"mongo" env:"TPCH_MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" env:"TPCH_MONGO_DATABASE"`
	SQLite        string `yaml:"sqlite" env:"TPCH_SQLITE_PATH"`
	Pebble        string `yaml:"pebble" env:"TPCH_PEBBLE_DIR"`
}

type Input struct {
	CustomerFile string `yaml:"customer_file" env:"TPCH_CUSTOMER_FILE"`
	OrderFile    string `yaml:"order_file" env:"TPCH_ORDER_FILE"`
	Delimiter    string `yaml:"delimiter" env:"TPCH_DELIMITER"`
}

type Collections struct {
	Customer   string `yaml:"customer"`
	Orders     string `yaml:"orders"`
	CustOrders string `yaml:"custorders"`
}

type BenchmarkSettings struct {
	DefaultDuration    string `yaml:"default_duration" env:"TPCH_BENCH_DURATION"`
	DefaultConcurrency int    `yaml:"default_concurrency" env:"TPCH_BENCH_CONCURRENCY"`
}

type Metrics struct {
	Addr string `yaml:"addr" env:"TPCH_METRICS_ADDR"`
}

func Default() *Config {
	return &Config{
		Databases: Databases{
			Mongo:         "mongodb://localhost:27017",
			MongoDatabase: "tpchdb",
			SQLite:        "tpch.db",
			Pebble:        "tpch.pebble",
		},
		Input: Input{
			CustomerFile: "data/customer.tbl",
			OrderFile:    "data/order.tbl",
			Delimiter:    "|",
		},
		Collections: Collections{
			Customer:   "customer",
			Orders:     "orders",
			CustOrders: "custorders",
		},
		BenchmarkSettings: BenchmarkSettings{
			DefaultDuration:    "30s",
			DefaultConcurrency: 10,
		},
	}
}

// LoadConfig layers the YAML file at path and then the environment over the
// defaults. A missing file is only an error when path was given explicitly.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) Validate() error {
	if c.Input.Delimiter == "" {
		return errors.New("input.delimiter must not be empty")
	}
	if c.Collections.Customer == "" || c.Collections.Orders == "" || c.Collections.CustOrders == "" {
		return errors.New("collections: customer, orders and custorders names are required")
	}
	if c.BenchmarkSettings.DefaultConcurrency < 1 {
		return errors.New("benchmark_settings.default_concurrency must be at least 1")
	}
	if _, err := c.BenchmarkSettings.Duration(); err != nil {
		return err
	}
	return nil
}

func (b BenchmarkSettings) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(b.DefaultDuration)
	if err != nil {
		return 0, fmt.Errorf("benchmark_settings.default_duration: %w", err)
	}
	return d, nil
}
