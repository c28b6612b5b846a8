package memory

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"tpch-docstore/internal/database"
)

// Driver keeps every collection as an ordered list of BSON documents. Stored
// values are encoded copies, so callers never alias what they inserted.
type Driver struct {
	mu          sync.RWMutex
	collections map[string][][]byte
}

func New() *Driver {
	return &Driver{collections: make(map[string][][]byte)}
}

func (d *Driver) Connect(dsn string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.collections == nil {
		d.collections = make(map[string][][]byte)
	}
	return nil
}

func (d *Driver) Close() error { return nil }

func (d *Driver) DropCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.collections, name)
	return nil
}

func (d *Driver) InsertMany(ctx context.Context, name string, docs []interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	encoded := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		encoded = append(encoded, raw)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.collections == nil {
		d.collections = make(map[string][][]byte)
	}
	d.collections[name] = append(d.collections[name], encoded...)
	return nil
}

func (d *Driver) FindOne(ctx context.Context, name string, filter database.Filter) database.Row {
	if err := ctx.Err(); err != nil {
		return database.ErrRow(err)
	}
	if _, err := database.ValidateField(filter.Field); err != nil {
		return database.ErrRow(err)
	}
	for _, raw := range d.snapshot(name) {
		ok, err := database.MatchBSON(raw, filter)
		if err != nil {
			return database.ErrRow(err)
		}
		if ok {
			return database.NewRow(raw, bson.Unmarshal)
		}
	}
	return database.ErrRow(database.ErrNoDocuments)
}

func (d *Driver) Find(ctx context.Context, name string) (database.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return database.NewSliceRows(d.snapshot(name), bson.Unmarshal), nil
}

func (d *Driver) CountDocuments(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return int64(len(d.collections[name])), nil
}

func (d *Driver) snapshot(name string) [][]byte {
	d.mu.RLock()
	defer d.mu.RUnlock()
	docs := d.collections[name]
	out := make([][]byte, len(docs))
	copy(out, docs)
	return out
}
