package tpch

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultDelimiter = "|"
	// MinFields is the shortest record either parser accepts.
	MinFields = 4
)

// ErrNonFinite rejects NaN and infinite prices, which no store can encode.
var ErrNonFinite = errors.New("not a finite number")

// Parser turns one record into an entity. ok is false for a record that is
// too short to use; err is set when a present field cannot be coerced, which
// aborts the whole load.
type Parser[T any] func(fields []string) (entity T, ok bool, err error)

// CoercionError reports a numeric column holding non-numeric text.
type CoercionError struct {
	Column string
	Value  string
	Err    error
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("column %s: cannot parse %q: %v", e.Column, e.Value, e.Err)
}

func (e *CoercionError) Unwrap() error {
	return e.Err
}

// SplitRecord splits a line on the literal delimiter. Trailing empty fields
// are dropped, so the terminating "|" of TPC-H dbgen output adds no field.
func SplitRecord(line, delimiter string) []string {
	fields := strings.Split(line, delimiter)
	for len(fields) > 0 && fields[len(fields)-1] == "" {
		fields = fields[:len(fields)-1]
	}
	return fields
}

func ParseCustomer(fields []string) (Customer, bool, error) {
	if len(fields) < MinFields {
		return Customer{}, false, nil
	}
	custKey, err := parseInt("custkey", fields[0])
	if err != nil {
		return Customer{}, false, err
	}
	nationKey, err := parseInt("nationkey", fields[3])
	if err != nil {
		return Customer{}, false, err
	}
	return Customer{
		CustKey:   custKey,
		Name:      fields[1],
		Address:   fields[2],
		NationKey: nationKey,
	}, true, nil
}

func ParseOrder(fields []string) (Order, bool, error) {
	if len(fields) < MinFields {
		return Order{}, false, nil
	}
	orderKey, err := parseInt("orderkey", fields[0])
	if err != nil {
		return Order{}, false, err
	}
	custKey, err := parseInt("custkey", fields[1])
	if err != nil {
		return Order{}, false, err
	}
	totalPrice, err := parseFloat("totalprice", fields[3])
	if err != nil {
		return Order{}, false, err
	}
	return Order{
		OrderKey:   orderKey,
		CustKey:    custKey,
		OrderDate:  fields[2],
		TotalPrice: totalPrice,
	}, true, nil
}

func parseInt(column, s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, &CoercionError{Column: column, Value: s, Err: err}
	}
	return v, nil
}

// parseFloat tolerates surrounding whitespace; integer columns do not. NaN
// and infinities are coercion errors.
func parseFloat(column, s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, &CoercionError{Column: column, Value: s, Err: err}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &CoercionError{Column: column, Value: s, Err: ErrNonFinite}
	}
	return v, nil
}
