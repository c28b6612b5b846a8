// Package sqlite stores document collections in SQLite tables and filters
// them with the JSON1 functions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"tpch-docstore/internal/database"
)

type Driver struct {
	db *sql.DB
}

type sqlRow struct {
	row *sql.Row
}

func (r *sqlRow) Scan(dest interface{}) error {
	var raw string
	if err := r.row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrNoDocuments
		}
		return err
	}
	return json.Unmarshal([]byte(raw), dest)
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Scan(dest interface{}) error {
	var raw string
	if err := r.rows.Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), dest)
}

func (r *sqlRows) Err() error { return r.rows.Err() }

func (r *sqlRows) Close() error { return r.rows.Close() }

// Connect opens the database file at dsn. ":memory:" keeps everything in
// process memory.
func (d *Driver) Connect(dsn string) error {
	if strings.TrimSpace(dsn) == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if dsn != ":memory:" {
		dsn = filepath.Clean(dsn) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" coherent and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping sqlite db: %w", err)
	}
	d.db = db
	return nil
}

func (d *Driver) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func table(name string) (string, error) {
	if err := database.ValidateName(name); err != nil {
		return "", err
	}
	return `"` + name + `"`, nil
}

func (d *Driver) ensureCollection(ctx context.Context, name string) (string, error) {
	t, err := table(name)
	if err != nil {
		return "", err
	}
	_, err = d.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT, doc TEXT NOT NULL)", t))
	if err != nil {
		return "", fmt.Errorf("create collection %s: %w", name, err)
	}
	return t, nil
}

func (d *Driver) DropCollection(ctx context.Context, name string) error {
	t, err := table(name)
	if err != nil {
		return err
	}
	_, err = d.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", t))
	return err
}

func (d *Driver) InsertMany(ctx context.Context, name string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	t, err := d.ensureCollection(ctx, name)
	if err != nil {
		return err
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (doc) VALUES (?)", t))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, string(raw)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// FindOne supports a top-level field or one level of embedded array, which
// covers lookups like "custkey" and "orders.orderkey".
func (d *Driver) FindOne(ctx context.Context, name string, filter database.Filter) database.Row {
	segments, err := database.ValidateField(filter.Field)
	if err != nil {
		return database.ErrRow(err)
	}
	t, err := d.ensureCollection(ctx, name)
	if err != nil {
		return database.ErrRow(err)
	}

	var query string
	var args []interface{}
	switch len(segments) {
	case 1:
		query = fmt.Sprintf("SELECT doc FROM %s WHERE json_extract(doc, ?) = ? ORDER BY id LIMIT 1", t)
		args = []interface{}{"$." + segments[0], filter.Value}
	case 2:
		query = fmt.Sprintf(`SELECT doc FROM %s
			WHERE EXISTS (
				SELECT 1 FROM json_each(doc, ?) AS e
				WHERE json_extract(e.value, ?) = ?
			)
			ORDER BY id LIMIT 1`, t)
		args = []interface{}{"$." + segments[0], "$." + segments[1], filter.Value}
	default:
		return database.ErrRow(fmt.Errorf("%w: %q is nested too deeply", database.ErrUnsupportedFilter, filter.Field))
	}
	return &sqlRow{row: d.db.QueryRowContext(ctx, query, args...)}
}

func (d *Driver) Find(ctx context.Context, name string) (database.Rows, error) {
	t, err := d.ensureCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("SELECT doc FROM %s ORDER BY id", t))
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (d *Driver) CountDocuments(ctx context.Context, name string) (int64, error) {
	t, err := d.ensureCollection(ctx, name)
	if err != nil {
		return 0, err
	}
	var n int64
	err = d.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&n)
	return n, err
}
