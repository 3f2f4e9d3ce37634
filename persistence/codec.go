// Package persistence provides the data-field codec a Repository
// implementation uses to serialize a workflow instance's persisted fields
// for storage. JSONCodec is adapted from the teacher ecosystem's default
// payload converter, trimmed to the one case this engine actually needs:
// an already-typed, closed set of namedvalues.Values rather than arbitrary
// proto messages (§10.7).
package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// JSONCodec converts namedvalues.Values to and from JSON. Using
// encoding/json rather than a proto-oriented converter is deliberate: the
// engine's data fields are plain Go values declared up front via Metadata,
// never proto messages, so there is no dynamic-typing problem for a proto
// converter to solve here.
type JSONCodec struct{}

// NewJSONCodec creates a JSONCodec.
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

// Encode serializes v's named entries as a single JSON object. The entries
// pass through a map, so the object's keys come out in encoding/json's
// sorted key order, not in v's declaration order.
func (c *JSONCodec) Encode(v *namedvalues.Values) ([]byte, error) {
	ordered := make(map[string]interface{}, len(v.Names()))
	for _, name := range v.Names() {
		ordered[name] = v.Get(name)
	}
	data, err := json.Marshal(ordered)
	if err != nil {
		return nil, fmt.Errorf("persistence: encode: %w", err)
	}
	return data, nil
}

// Decode parses data into a fresh Values. Field order in the result
// follows json.Unmarshal's own map iteration, since JSON objects are
// unordered by definition — callers that need declaration order should
// re-order against a Metadata after decoding, e.g. via DataStore.Restore.
func (c *JSONCodec) Decode(data []byte) (*namedvalues.Values, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wferrors.InvalidUsagef("persistence: decode: %v", err)
	}
	out := namedvalues.New()
	for k, v := range raw {
		out.Set(k, v)
	}
	return out, nil
}
