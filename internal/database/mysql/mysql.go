package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"tpch-docstore/internal/database"
)

// insertBatch keeps multi-row inserts under the server's placeholder limit.
const insertBatch = 1000

// Driver stores each collection as a table of JSON documents ordered by an
// AUTO_INCREMENT id.
type Driver struct {
	db *sql.DB
}

type sqlRow struct {
	row *sql.Row
}

func (r *sqlRow) Scan(dest interface{}) error {
	var raw []byte
	if err := r.row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return database.ErrNoDocuments
		}
		return err
	}
	return json.Unmarshal(raw, dest)
}

type sqlRows struct {
	rows *sql.Rows
}

func (r *sqlRows) Next() bool { return r.rows.Next() }

func (r *sqlRows) Scan(dest interface{}) error {
	var raw []byte
	if err := r.rows.Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (r *sqlRows) Err() error { return r.rows.Err() }

func (r *sqlRows) Close() error { return r.rows.Close() }

func (md *Driver) Connect(dsn string) error {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("mysql ping: %w", err)
	}
	md.db = db
	return nil
}

func (md *Driver) Close() error {
	if md.db == nil {
		return nil
	}
	return md.db.Close()
}

func table(name string) (string, error) {
	if err := database.ValidateName(name); err != nil {
		return "", err
	}
	return "`" + name + "`", nil
}

func (md *Driver) ensureCollection(ctx context.Context, name string) (string, error) {
	t, err := table(name)
	if err != nil {
		return "", err
	}
	_, err = md.db.ExecContext(ctx, fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (id BIGINT AUTO_INCREMENT PRIMARY KEY, doc JSON NOT NULL)", t))
	if err != nil {
		return "", fmt.Errorf("create collection %s: %w", name, err)
	}
	return t, nil
}

func (md *Driver) DropCollection(ctx context.Context, name string) error {
	t, err := table(name)
	if err != nil {
		return err
	}
	_, err = md.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", t))
	return err
}

func (md *Driver) InsertMany(ctx context.Context, name string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	t, err := md.ensureCollection(ctx, name)
	if err != nil {
		return err
	}

	tx, err := md.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for start := 0; start < len(docs); start += insertBatch {
		end := min(start+insertBatch, len(docs))
		args := make([]interface{}, 0, end-start)
		for _, doc := range docs[start:end] {
			raw, err := json.Marshal(doc)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			args = append(args, string(raw))
		}
		placeholders := strings.TrimSuffix(strings.Repeat("(?),", len(args)), ",")
		query := fmt.Sprintf("INSERT INTO %s (doc) VALUES %s", t, placeholders)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// jsonPath renders a dotted field as a MySQL path. Every intermediate segment
// is treated as an array of embedded documents.
func jsonPath(segments []string) string {
	quoted := make([]string, len(segments))
	for i, s := range segments {
		quoted[i] = `"` + s + `"`
	}
	return "$." + strings.Join(quoted, "[*].")
}

func (md *Driver) FindOne(ctx context.Context, name string, filter database.Filter) database.Row {
	segments, err := database.ValidateField(filter.Field)
	if err != nil {
		return database.ErrRow(err)
	}
	t, err := md.ensureCollection(ctx, name)
	if err != nil {
		return database.ErrRow(err)
	}
	candidate, err := json.Marshal(filter.Value)
	if err != nil {
		return database.ErrRow(err)
	}
	query := fmt.Sprintf(
		"SELECT doc FROM %s WHERE JSON_CONTAINS(JSON_EXTRACT(doc, ?), ?) ORDER BY id LIMIT 1", t)
	return &sqlRow{row: md.db.QueryRowContext(ctx, query, jsonPath(segments), string(candidate))}
}

func (md *Driver) Find(ctx context.Context, name string) (database.Rows, error) {
	t, err := md.ensureCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := md.db.QueryContext(ctx, fmt.Sprintf("SELECT doc FROM %s ORDER BY id", t))
	if err != nil {
		return nil, err
	}
	return &sqlRows{rows: rows}, nil
}

func (md *Driver) CountDocuments(ctx context.Context, name string) (int64, error) {
	t, err := md.ensureCollection(ctx, name)
	if err != nil {
		return 0, err
	}
	var n int64
	err = md.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&n)
	return n, err
}
