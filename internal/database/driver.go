package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNoDocuments is returned by Row.Scan when FindOne matched nothing.
	ErrNoDocuments = errors.New("database: no documents in result")
	// ErrUnsupportedFilter is returned when a driver cannot express a filter path.
	ErrUnsupportedFilter = errors.New("database: unsupported filter")
)

// Filter is a single field equality. Field may be a dotted path such as
// "orders.orderkey"; an array met along the path matches when any of its
// elements does.
type Filter struct {
	Field string
	Value interface{}
}

func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

type Row interface {
	Scan(dest interface{}) error
}

type Rows interface {
	Next() bool
	Scan(dest interface{}) error
	Err() error
	Close() error
}

// Store is the document capability surface the loader, denormalizer and
// query engine depend on.
type Store interface {
	DropCollection(ctx context.Context, name string) error
	// InsertMany appends docs in order. An empty slice is a no-op.
	InsertMany(ctx context.Context, name string, docs []interface{}) error
	FindOne(ctx context.Context, name string, filter Filter) Row
	// Find returns every document of the collection in insertion order.
	Find(ctx context.Context, name string) (Rows, error)
	CountDocuments(ctx context.Context, name string) (int64, error)
}

type DatabaseDriver interface {
	Store
	Connect(dsn string) error
	Close() error
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateName rejects collection names that cannot be used verbatim as a
// table name or key prefix.
func ValidateName(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("invalid collection name %q", name)
	}
	return nil
}

// ValidateField checks every segment of a dotted field path.
func ValidateField(field string) ([]string, error) {
	segments := splitPath(field)
	for _, s := range segments {
		if !identPattern.MatchString(s) {
			return nil, fmt.Errorf("%w: invalid field path %q", ErrUnsupportedFilter, field)
		}
	}
	return segments, nil
}

type errRow struct {
	err error
}

// ErrRow returns a Row whose Scan reports err.
func ErrRow(err error) Row {
	return &errRow{err: err}
}

func (r *errRow) Scan(dest interface{}) error {
	return r.err
}
