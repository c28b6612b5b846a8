package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestMatchBSON(t *testing.T) {
	doc, err := bson.Marshal(bson.M{
		"custkey": int64(1),
		"name":    "Alice",
		"price":   12.5,
		"orders": bson.A{
			bson.M{"orderkey": int64(10), "orderdate": "2024-01-01"},
			bson.M{"orderkey": int64(11), "orderdate": "2024-01-02"},
		},
		"tags":  bson.A{"a", "b"},
		"owner": bson.M{"id": int32(7)},
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"top-level int", Eq("custkey", int64(1)), true},
		{"int width does not matter", Eq("custkey", 1), true},
		{"top-level mismatch", Eq("custkey", int64(2)), false},
		{"string", Eq("name", "Alice"), true},
		{"float", Eq("price", 12.5), true},
		{"array element field", Eq("orders.orderkey", int64(11)), true},
		{"array element string", Eq("orders.orderdate", "2024-01-01"), true},
		{"array element mismatch", Eq("orders.orderkey", int64(12)), false},
		{"scalar array element", Eq("tags", "b"), true},
		{"embedded document", Eq("owner.id", int64(7)), true},
		{"missing field", Eq("nationkey", int64(1)), false},
		{"path through scalar", Eq("name.first", "Alice"), false},
		{"type mismatch", Eq("name", int64(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchBSON(doc, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchBSONRejectsInvalidPath(t *testing.T) {
	doc, err := bson.Marshal(bson.M{"a": 1})
	require.NoError(t, err)

	for _, field := range []string{"", "a..b", "a.", "a b", "a;b"} {
		_, err := MatchBSON(doc, Eq(field, 1))
		assert.ErrorIs(t, err, ErrUnsupportedFilter, field)
	}
}

func TestValidateName(t *testing.T) {
	for _, name := range []string{"customer", "custorders", "_tmp", "Orders2"} {
		assert.NoError(t, ValidateName(name), name)
	}
	for _, name := range []string{"", "2orders", "cust-orders", "a.b", "x; DROP TABLE y"} {
		assert.Error(t, ValidateName(name), name)
	}
}

func TestSliceRows(t *testing.T) {
	var docs [][]byte
	for _, v := range []int64{1, 2, 3} {
		raw, err := bson.Marshal(bson.M{"v": v})
		require.NoError(t, err)
		docs = append(docs, raw)
	}

	rows := NewSliceRows(docs, bson.Unmarshal)
	var got []int64
	for rows.Next() {
		var doc struct {
			V int64 `bson:"v"`
		}
		require.NoError(t, rows.Scan(&doc))
		got = append(got, doc.V)
	}
	require.NoError(t, rows.Err())
	require.NoError(t, rows.Close())
	assert.Equal(t, []int64{1, 2, 3}, got)
	assert.False(t, rows.Next())
}

func TestErrRow(t *testing.T) {
	var dest struct{}
	assert.ErrorIs(t, ErrRow(ErrNoDocuments).Scan(&dest), ErrNoDocuments)
}
