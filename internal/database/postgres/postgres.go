package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tpch-docstore/internal/database"
)

// Driver stores each collection as a table of JSONB documents ordered by a
// BIGSERIAL id.
type Driver struct {
	pool *pgxpool.Pool
}

type pgRow struct {
	row pgx.Row
}

func (r *pgRow) Scan(dest interface{}) error {
	var raw []byte
	if err := r.row.Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.ErrNoDocuments
		}
		return err
	}
	return json.Unmarshal(raw, dest)
}

type pgRows struct {
	rows pgx.Rows
}

func (r *pgRows) Next() bool {
	return r.rows.Next()
}

func (r *pgRows) Scan(dest interface{}) error {
	var raw []byte
	if err := r.rows.Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (r *pgRows) Err() error {
	return r.rows.Err()
}

func (r *pgRows) Close() error {
	r.rows.Close()
	return nil
}

func (pd *Driver) Connect(dsn string) error {
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return fmt.Errorf("postgres ping: %w", err)
	}
	pd.pool = pool
	return nil
}

func (pd *Driver) Close() error {
	if pd.pool != nil {
		pd.pool.Close()
	}
	return nil
}

func table(name string) (string, error) {
	if err := database.ValidateName(name); err != nil {
		return "", err
	}
	return pgx.Identifier{name}.Sanitize(), nil
}

func (pd *Driver) ensureCollection(ctx context.Context, name string) (string, error) {
	t, err := table(name)
	if err != nil {
		return "", err
	}
	_, err = pd.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			doc JSONB NOT NULL
		)`, t))
	if err != nil {
		return "", fmt.Errorf("create collection %s: %w", name, err)
	}
	return t, nil
}

func (pd *Driver) DropCollection(ctx context.Context, name string) error {
	t, err := table(name)
	if err != nil {
		return err
	}
	_, err = pd.pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", t))
	return err
}

func (pd *Driver) InsertMany(ctx context.Context, name string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := pd.ensureCollection(ctx, name); err != nil {
		return err
	}
	rows := make([][]interface{}, 0, len(docs))
	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{raw})
	}
	_, err := pd.pool.CopyFrom(ctx, pgx.Identifier{name}, []string{"doc"}, pgx.CopyFromRows(rows))
	return err
}

// jsonPath renders a dotted field as a lax-mode SQL/JSON path filter. Lax
// mode unwraps arrays on member access, which gives "any element" semantics.
func jsonPath(segments []string) string {
	var b strings.Builder
	b.WriteString("$")
	for _, s := range segments {
		b.WriteString(`."`)
		b.WriteString(s)
		b.WriteString(`"`)
	}
	b.WriteString(" ? (@ == $v)")
	return b.String()
}

func (pd *Driver) FindOne(ctx context.Context, name string, filter database.Filter) database.Row {
	segments, err := database.ValidateField(filter.Field)
	if err != nil {
		return database.ErrRow(err)
	}
	t, err := pd.ensureCollection(ctx, name)
	if err != nil {
		return database.ErrRow(err)
	}
	vars, err := json.Marshal(map[string]interface{}{"v": filter.Value})
	if err != nil {
		return database.ErrRow(err)
	}
	query := fmt.Sprintf(
		"SELECT doc FROM %s WHERE jsonb_path_exists(doc, $1::text::jsonpath, $2::jsonb) ORDER BY id LIMIT 1", t)
	return &pgRow{row: pd.pool.QueryRow(ctx, query, jsonPath(segments), string(vars))}
}

func (pd *Driver) Find(ctx context.Context, name string) (database.Rows, error) {
	t, err := pd.ensureCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	rows, err := pd.pool.Query(ctx, fmt.Sprintf("SELECT doc FROM %s ORDER BY id", t))
	if err != nil {
		return nil, err
	}
	return &pgRows{rows: rows}, nil
}

func (pd *Driver) CountDocuments(ctx context.Context, name string) (int64, error) {
	t, err := pd.ensureCollection(ctx, name)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := pd.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", t)).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
