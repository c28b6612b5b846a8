package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tpch-docstore/internal/database"
)

const DefaultDatabase = "tpchdb"

type Driver struct {
	Database string

	client *mongo.Client
}

type mongoRow struct {
	singleResult *mongo.SingleResult
}

func (mr *mongoRow) Scan(dest interface{}) error {
	err := mr.singleResult.Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return database.ErrNoDocuments
	}
	return err
}

type mongoRows struct {
	ctx    context.Context
	cursor *mongo.Cursor
}

func (mr *mongoRows) Next() bool {
	return mr.cursor.Next(mr.ctx)
}

func (mr *mongoRows) Scan(dest interface{}) error {
	return mr.cursor.Decode(dest)
}

func (mr *mongoRows) Err() error {
	return mr.cursor.Err()
}

func (mr *mongoRows) Close() error {
	return mr.cursor.Close(mr.ctx)
}

func (md *Driver) Connect(dsn string) error {
	client, err := mongo.Connect(context.Background(), options.Client().ApplyURI(dsn))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(context.Background(), nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("mongo ping: %w", err)
	}
	md.client = client
	return nil
}

func (md *Driver) Close() error {
	if md.client == nil {
		return nil
	}
	return md.client.Disconnect(context.Background())
}

func (md *Driver) collection(name string) *mongo.Collection {
	db := md.Database
	if db == "" {
		db = DefaultDatabase
	}
	return md.client.Database(db).Collection(name)
}

func (md *Driver) DropCollection(ctx context.Context, name string) error {
	return md.collection(name).Drop(ctx)
}

func (md *Driver) InsertMany(ctx context.Context, name string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	_, err := md.collection(name).InsertMany(ctx, docs)
	return err
}

func (md *Driver) FindOne(ctx context.Context, name string, filter database.Filter) database.Row {
	if _, err := database.ValidateField(filter.Field); err != nil {
		return database.ErrRow(err)
	}
	singleResult := md.collection(name).FindOne(ctx, bson.D{{Key: filter.Field, Value: filter.Value}})
	return &mongoRow{singleResult: singleResult}
}

func (md *Driver) Find(ctx context.Context, name string) (database.Rows, error) {
	// ObjectIDs carry a randomly seeded counter that can wrap, so _id order is
	// not insertion order. Collections here are append-only, which keeps
	// natural order equal to it.
	opts := options.Find().SetSort(bson.D{{Key: "$natural", Value: 1}})
	cursor, err := md.collection(name).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	return &mongoRows{ctx: ctx, cursor: cursor}, nil
}

func (md *Driver) CountDocuments(ctx context.Context, name string) (int64, error) {
	return md.collection(name).CountDocuments(ctx, bson.D{})
}
