package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := NewJSONCodec()
	v := namedvalues.New()
	v.Set("amount", float64(42))
	v.Set("label", "invoice-7")

	data, err := c.Encode(v)
	require.NoError(t, err)

	decoded, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, float64(42), decoded.Get("amount"))
	assert.Equal(t, "invoice-7", decoded.Get("label"))
}

func TestDecodeInvalidJSONFails(t *testing.T) {
	c := NewJSONCodec()
	_, err := c.Decode([]byte("not json"))
	assert.Error(t, err)
}
