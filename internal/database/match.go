package database

import (
	"reflect"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchBSON evaluates f against a raw BSON document the way a document store
// evaluates an equality query.
func MatchBSON(doc []byte, f Filter) (bool, error) {
	path, err := ValidateField(f.Field)
	if err != nil {
		return false, err
	}
	var m bson.M
	if err := bson.Unmarshal(doc, &m); err != nil {
		return false, err
	}
	return matchValue(m, path, f.Value), nil
}

func splitPath(field string) []string {
	return strings.Split(field, ".")
}

func matchValue(v interface{}, path []string, want interface{}) bool {
	switch arr := v.(type) {
	case primitive.A:
		return matchAny(arr, path, want)
	case []interface{}:
		return matchAny(arr, path, want)
	}

	if len(path) == 0 {
		return equalValues(v, want)
	}

	switch doc := v.(type) {
	case primitive.M:
		child, ok := doc[path[0]]
		return ok && matchValue(child, path[1:], want)
	case map[string]interface{}:
		child, ok := doc[path[0]]
		return ok && matchValue(child, path[1:], want)
	case primitive.D:
		for _, e := range doc {
			if e.Key == path[0] {
				return matchValue(e.Value, path[1:], want)
			}
		}
	}
	return false
}

func matchAny(elems []interface{}, path []string, want interface{}) bool {
	for _, e := range elems {
		if matchValue(e, path, want) {
			return true
		}
	}
	return false
}

func equalValues(a, b interface{}) bool {
	if x, ok := toFloat(a); ok {
		y, ok := toFloat(b)
		return ok && x == y
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
