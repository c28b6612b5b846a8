package tpch

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"tpch-docstore/internal/database"
	"tpch-docstore/internal/metrics"
)

// maxLineSize bounds a single record; TPC-H lines are far shorter.
const maxLineSize = 1 << 20

type LoadStats struct {
	Path    string `json:"path"`
	Lines   int    `json:"lines"`
	Parsed  int    `json:"parsed"`
	Skipped int    `json:"skipped"`
}

// LoadFile parses every line of path. Short lines are skipped; the first
// coercion error aborts the load and is reported as path:line.
func LoadFile[T any](path, delimiter string, parse Parser[T]) ([]T, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{Path: path}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadRecords(f, path, delimiter, parse)
}

// ReadRecords is LoadFile over an open reader; name is used in errors.
func ReadRecords[T any](r io.Reader, name, delimiter string, parse Parser[T]) ([]T, LoadStats, error) {
	stats := LoadStats{Path: name}
	var entities []T

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		stats.Lines++
		entity, ok, err := parse(SplitRecord(scanner.Text(), delimiter))
		if err != nil {
			return nil, stats, fmt.Errorf("%s:%d: %w", name, stats.Lines, err)
		}
		if !ok {
			stats.Skipped++
			continue
		}
		entities = append(entities, entity)
		stats.Parsed++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read %s: %w", name, err)
	}
	return entities, stats, nil
}

// Reload replaces the contents of collection with entities, in order.
func Reload[T any](ctx context.Context, store database.Store, collection string, entities []T) error {
	if err := store.DropCollection(ctx, collection); err != nil {
		return fmt.Errorf("drop %s: %w", collection, err)
	}
	if len(entities) == 0 {
		return nil
	}
	docs := make([]interface{}, len(entities))
	for i := range entities {
		docs[i] = entities[i]
	}
	if err := store.InsertMany(ctx, collection, docs); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	metrics.DocumentsWrittenTotal.WithLabelValues(collection).Add(float64(len(docs)))
	return nil
}

// ForEach decodes the documents of collection one at a time, in store order.
func ForEach[T any](ctx context.Context, store database.Store, collection string, fn func(T) error) error {
	rows, err := store.Find(ctx, collection)
	if err != nil {
		return fmt.Errorf("find %s: %w", collection, err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc T
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("decode %s: %w", collection, err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s: %w", collection, err)
	}
	return nil
}

func ReadAll[T any](ctx context.Context, store database.Store, collection string) ([]T, error) {
	var out []T
	err := ForEach(ctx, store, collection, func(doc T) error {
		out = append(out, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
