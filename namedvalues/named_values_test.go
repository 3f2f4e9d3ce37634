package namedvalues

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPreservesDeclarationOrder(t *testing.T) {
	v := New()
	v.Set("c", 1)
	v.Set("a", 2)
	v.Set("b", 3)
	assert.Equal(t, []string{"c", "a", "b"}, v.Names())
}

func TestSetOverwriteKeepsOriginalPosition(t *testing.T) {
	v := New()
	v.Set("a", 1)
	v.Set("b", 2)
	v.Set("a", 10)
	assert.Equal(t, []string{"a", "b"}, v.Names())
	assert.Equal(t, 10, v.Get("a"))
}

func TestDeleteRemovesFromOrder(t *testing.T) {
	v := New()
	v.Set("a", 1)
	v.Set("b", 2)
	v.Delete("a")
	assert.Equal(t, []string{"b"}, v.Names())
	assert.False(t, v.Has("a"))
}

func TestCloneIsIndependent(t *testing.T) {
	v := New()
	v.Set("a", 1)
	clone := v.Clone()
	clone.Set("a", 2)
	assert.Equal(t, 1, v.Get("a"))
	assert.Equal(t, 2, clone.Get("a"))
}

func TestGetTypedMismatchErrors(t *testing.T) {
	v := New()
	v.Set("a", "not an int")
	_, err := GetTyped[int](v, "a")
	require.Error(t, err)
}

func TestGetTypedMissingReturnsZero(t *testing.T) {
	v := New()
	got, err := GetTyped[int](v, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestStringifyFormatsKnownTypes(t *testing.T) {
	v := New()
	v.Set("s", "hi")
	v.Set("b", true)
	v.Set("i", int64(42))
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	v.Set("t", at)

	out := Stringify(v)
	assert.Equal(t, "hi", out["s"])
	assert.Equal(t, "true", out["b"])
	assert.Equal(t, "42", out["i"])
	assert.Equal(t, at.Format(time.RFC3339Nano), out["t"])
}
