package value

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flexbase-backend/internal/metadata"
)

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(nil))
	assert.True(t, IsEmpty(""))
	assert.True(t, IsEmpty([]any{}))
	assert.True(t, IsEmpty([]string{}))

	assert.False(t, IsEmpty(0.0), "zero is a value, not empty")
	assert.False(t, IsEmpty(false), "false is a value, not empty")
	assert.False(t, IsEmpty(" "))
	assert.False(t, IsEmpty([]any{"a"}))
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat(42.5)
	require.True(t, ok)
	assert.Equal(t, 42.5, f)

	f, ok = ToFloat("  1500 ")
	require.True(t, ok)
	assert.Equal(t, 1500.0, f)

	_, ok = ToFloat("n/a")
	assert.False(t, ok)
	_, ok = ToFloat(nil)
	assert.False(t, ok)
	_, ok = ToFloat(true)
	assert.False(t, ok)
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "", Display(nil))
	assert.Equal(t, "1000", Display(1000.0), "whole floats render without fraction")
	assert.Equal(t, "10.5", Display(10.5))
	assert.Equal(t, "true", Display(true))
	assert.Equal(t, "a, b", Display([]any{"a", "b"}))
}

func TestEqualComparesOnDisplay(t *testing.T) {
	assert.True(t, Equal(1000.0, "1000"), "number and its string form compare equal")
	assert.True(t, Equal(nil, ""))
	assert.False(t, Equal("won", "lost"))
}

func TestCompareByFieldType(t *testing.T) {
	cmp, ok := Compare(2.0, 10.0, metadata.FieldNumber)
	require.True(t, ok)
	assert.Negative(t, cmp, "numeric compare, not lexicographic")

	cmp, ok = Compare("2024-01-02", "2024-01-10", metadata.FieldDate)
	require.True(t, ok)
	assert.Negative(t, cmp)

	cmp, ok = Compare("Apple", "banana", metadata.FieldText)
	require.True(t, ok)
	assert.Negative(t, cmp, "text compares case-folded")

	_, ok = Compare("n/a", 5.0, metadata.FieldNumber)
	assert.False(t, ok, "uncoercible side fails the comparison")
}

func TestToTime(t *testing.T) {
	got, ok := ToTime("2024-06-15", metadata.FieldDate)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), got)

	got, ok = ToTime("2024-06-15T10:30:00Z", metadata.FieldDatetime)
	require.True(t, ok)
	assert.Equal(t, 10, got.Hour())

	_, ok = ToTime("June 15th", metadata.FieldDate)
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	status := &metadata.FieldDef{
		Key: "status", Type: metadata.FieldSelect,
		Options: []metadata.SelectOption{{Value: "new"}, {Value: "won"}},
	}
	assert.NoError(t, Validate("won", status))
	assert.NoError(t, Validate(nil, status), "nil is always accepted")
	assert.Error(t, Validate("archived", status), "undeclared option")
	assert.Error(t, Validate(1.0, status))

	amount := &metadata.FieldDef{Key: "amount", Type: metadata.FieldNumber}
	assert.NoError(t, Validate(99.9, amount))
	assert.NoError(t, Validate("150", amount), "numeric strings coerce")
	assert.Error(t, Validate("lots", amount))

	tags := &metadata.FieldDef{
		Key: "tags", Type: metadata.FieldMultiselect,
		Options: []metadata.SelectOption{{Value: "red"}, {Value: "blue"}},
	}
	assert.NoError(t, Validate([]any{"red", "blue"}, tags))
	assert.Error(t, Validate([]any{"green"}, tags))
	assert.Error(t, Validate("red", tags), "multiselect needs an array")
}
