package tpch

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRecord(t *testing.T) {
	tests := []struct {
		line      string
		delimiter string
		want      []string
	}{
		{"1|Alice|Addr1|5|", "|", []string{"1", "Alice", "Addr1", "5"}},
		{"1|Alice|Addr1|5", "|", []string{"1", "Alice", "Addr1", "5"}},
		{"1|Alice||5|||", "|", []string{"1", "Alice", "", "5"}},
		{"1,Alice,Addr1,5", ",", []string{"1", "Alice", "Addr1", "5"}},
		{"1::Alice::Addr1::5", "::", []string{"1", "Alice", "Addr1", "5"}},
		{"", "|", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitRecord(tt.line, tt.delimiter), tt.line)
	}
}

func TestParseCustomer(t *testing.T) {
	c, ok, err := ParseCustomer(SplitRecord("1|Alice|Addr1|5|0.00|extra|", "|"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Customer{CustKey: 1, Name: "Alice", Address: "Addr1", NationKey: 5}, c)
}

func TestParseCustomerShortRecord(t *testing.T) {
	_, ok, err := ParseCustomer(SplitRecord("1|Alice|Addr1|", "|"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseCustomerCoercion(t *testing.T) {
	tests := []struct {
		line   string
		column string
	}{
		{"x|Alice|Addr1|5", "custkey"},
		{"1|Alice|Addr1|five", "nationkey"},
		{" 1|Alice|Addr1|5", "custkey"},
		{"1.0|Alice|Addr1|5", "custkey"},
	}
	for _, tt := range tests {
		_, ok, err := ParseCustomer(SplitRecord(tt.line, "|"))
		assert.False(t, ok, tt.line)

		var coercion *CoercionError
		require.True(t, errors.As(err, &coercion), tt.line)
		assert.Equal(t, tt.column, coercion.Column, tt.line)
		assert.ErrorIs(t, err, strconv.ErrSyntax, tt.line)
	}
}

func TestParseOrder(t *testing.T) {
	o, ok, err := ParseOrder(SplitRecord("10|1|2024-01-01| 100.50 |O|", "|"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Order{OrderKey: 10, CustKey: 1, OrderDate: "2024-01-01", TotalPrice: 100.5}, o)
}

func TestParseOrderKeepsDateVerbatim(t *testing.T) {
	o, ok, err := ParseOrder([]string{"10", "1", "01/02/2024", "3"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "01/02/2024", o.OrderDate)
	assert.Equal(t, 3.0, o.TotalPrice)
}

func TestParseOrderShortRecord(t *testing.T) {
	_, ok, err := ParseOrder([]string{"10", "1", "2024-01-01"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseOrderCoercion(t *testing.T) {
	tests := []struct {
		fields []string
		column string
	}{
		{[]string{"ten", "1", "2024-01-01", "1.0"}, "orderkey"},
		{[]string{"10", "", "2024-01-01", "1.0"}, "custkey"},
		{[]string{"10", "1", "2024-01-01", "abc"}, "totalprice"},
	}
	for _, tt := range tests {
		_, _, err := ParseOrder(tt.fields)
		var coercion *CoercionError
		require.True(t, errors.As(err, &coercion), "%v", tt.fields)
		assert.Equal(t, tt.column, coercion.Column)
	}
}

func TestParseOrderRejectsNonFinitePrice(t *testing.T) {
	for _, price := range []string{"NaN", "nan", "Inf", "-Inf", "+Infinity", "1e400"} {
		_, ok, err := ParseOrder([]string{"10", "1", "2024-01-01", price})
		assert.False(t, ok, price)

		var coercion *CoercionError
		require.True(t, errors.As(err, &coercion), price)
		assert.Equal(t, "totalprice", coercion.Column, price)
	}
}
