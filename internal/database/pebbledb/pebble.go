package pebbledb

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"go.mongodb.org/mongo-driver/bson"

	"tpch-docstore/internal/database"
)

// MemoryDSN opens the store on an in-memory filesystem.
const MemoryDSN = ":memory:"

// Driver keeps documents as BSON values under "<collection>\x00<seq>" keys,
// where seq is a big-endian counter so iteration follows insertion order.
type Driver struct {
	db *pebble.DB
	// mu serializes InsertMany so sequence numbers are not handed out twice.
	mu sync.Mutex
}

type pebbleRows struct {
	iter    *pebble.Iterator
	started bool
}

func (r *pebbleRows) Next() bool {
	if !r.started {
		r.started = true
		return r.iter.First()
	}
	return r.iter.Next()
}

func (r *pebbleRows) Scan(dest interface{}) error {
	return bson.Unmarshal(r.iter.Value(), dest)
}

func (r *pebbleRows) Err() error { return r.iter.Error() }

func (r *pebbleRows) Close() error { return r.iter.Close() }

func (d *Driver) Connect(dsn string) error {
	opts := &pebble.Options{}
	dir := dsn
	if dsn == "" || dsn == MemoryDSN {
		opts.FS = vfs.NewMem()
		dir = ""
	} else {
		dir = filepath.Clean(dsn)
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return fmt.Errorf("pebble open: %w", err)
	}
	d.db = db
	return nil
}

func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func bounds(name string) (lower, upper []byte, err error) {
	if err := database.ValidateName(name); err != nil {
		return nil, nil, err
	}
	lower = append([]byte(name), 0x00)
	upper = append([]byte(name), 0x01)
	return lower, upper, nil
}

func key(prefix []byte, seq uint64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], seq)
	return k
}

func (d *Driver) iter(name string) (*pebble.Iterator, error) {
	lower, upper, err := bounds(name)
	if err != nil {
		return nil, err
	}
	return d.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
}

func (d *Driver) DropCollection(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lower, upper, err := bounds(name)
	if err != nil {
		return err
	}
	return d.db.DeleteRange(lower, upper, pebble.Sync)
}

func (d *Driver) InsertMany(ctx context.Context, name string, docs []interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	prefix, _, err := bounds(name)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	next, err := d.nextSeq(name, prefix)
	if err != nil {
		return err
	}
	batch := d.db.NewBatch()
	defer batch.Close()
	for i, doc := range docs {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		if err := batch.Set(key(prefix, next+uint64(i)), raw, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

func (d *Driver) nextSeq(name string, prefix []byte) (uint64, error) {
	it, err := d.iter(name)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	if !it.Last() {
		return 0, it.Error()
	}
	return binary.BigEndian.Uint64(it.Key()[len(prefix):]) + 1, nil
}

func (d *Driver) FindOne(ctx context.Context, name string, filter database.Filter) database.Row {
	if err := ctx.Err(); err != nil {
		return database.ErrRow(err)
	}
	if _, err := database.ValidateField(filter.Field); err != nil {
		return database.ErrRow(err)
	}
	it, err := d.iter(name)
	if err != nil {
		return database.ErrRow(err)
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		ok, err := database.MatchBSON(it.Value(), filter)
		if err != nil {
			return database.ErrRow(err)
		}
		if ok {
			raw := append([]byte(nil), it.Value()...)
			return database.NewRow(raw, bson.Unmarshal)
		}
	}
	if err := it.Error(); err != nil {
		return database.ErrRow(err)
	}
	return database.ErrRow(database.ErrNoDocuments)
}

func (d *Driver) Find(ctx context.Context, name string) (database.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it, err := d.iter(name)
	if err != nil {
		return nil, err
	}
	return &pebbleRows{iter: it}, nil
}

func (d *Driver) CountDocuments(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	it, err := d.iter(name)
	if err != nil {
		return 0, err
	}
	defer it.Close()
	var n int64
	for it.First(); it.Valid(); it.Next() {
		n++
	}
	return n, it.Error()
}
