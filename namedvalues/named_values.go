// Package namedvalues implements the dynamically-typed, ordered string-keyed
// mapping used at every boundary of the engine: action invocation
// parameters, persisted data fields, and stringified event-log entries. It
// is the Go rendering of the distilled spec's "heterogeneous mapping of
// string to object" (§9).
package namedvalues

import (
	"fmt"
	"strconv"
	"time"

	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// Tristate is a three-valued logical result, used by state-machine action
// allowance resolution (§4.7) where "neither allowed nor disallowed anywhere
// on the path" must be distinguishable from an explicit false.
type Tristate int

const (
	// Unknown means no state on the path expressed an opinion.
	Unknown Tristate = iota
	// True means the path explicitly allows the action.
	True
	// False means the path explicitly disallows the action.
	False
)

// Handle is an opaque reference value, used e.g. to carry an operation
// handle as an action parameter (WaitForAction's exportOperation mode).
type Handle interface{}

// Values is an ordered mapping from name to dynamically-typed value,
// preserving insertion order for deterministic stringification.
type Values struct {
	order []string
	data  map[string]interface{}
}

// New creates an empty Values mapping.
func New() *Values {
	return &Values{data: make(map[string]interface{})}
}

// Clone returns an independent copy of v.
func (v *Values) Clone() *Values {
	out := New()
	if v == nil {
		return out
	}
	for _, k := range v.order {
		out.Set(k, v.data[k])
	}
	return out
}

// Set assigns name to value, appending name to the declaration order the
// first time it is seen.
func (v *Values) Set(name string, value interface{}) {
	if _, ok := v.data[name]; !ok {
		v.order = append(v.order, name)
	}
	v.data[name] = value
}

// Delete removes name, if present.
func (v *Values) Delete(name string) {
	if _, ok := v.data[name]; !ok {
		return
	}
	delete(v.data, name)
	for i, k := range v.order {
		if k == name {
			v.order = append(v.order[:i], v.order[i+1:]...)
			break
		}
	}
}

// Has reports whether name has been set.
func (v *Values) Has(name string) bool {
	if v == nil {
		return false
	}
	_, ok := v.data[name]
	return ok
}

// Names returns the set names in declaration order.
func (v *Values) Names() []string {
	if v == nil {
		return nil
	}
	out := make([]string, len(v.order))
	copy(out, v.order)
	return out
}

// Get returns the raw value for name, or nil if unset.
func (v *Values) Get(name string) interface{} {
	if v == nil {
		return nil
	}
	return v.data[name]
}

// GetTyped returns name as a T, or T's zero value and a nil error if v is nil
// or name is unset. If the stored value has a different dynamic type than
// T, it returns T's zero value and an InvalidUsage error.
func GetTyped[T any](v *Values, name string) (T, error) {
	var zero T
	if v == nil || !v.Has(name) {
		return zero, nil
	}
	raw := v.Get(name)
	typed, ok := raw.(T)
	if !ok {
		return zero, wferrors.InvalidUsagef("named value %q has type %T, want %T", name, raw, zero)
	}
	return typed, nil
}

// String renders value as a string the way the event log persists
// parameters (§4.6: "Parameters' values are stringified").
func String(value interface{}) string {
	switch t := value.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Stringify converts every value in v to its string rendering, used when
// Values are about to be appended to the event log.
func Stringify(v *Values) map[string]string {
	out := make(map[string]string, len(v.Names()))
	for _, name := range v.Names() {
		out[name] = String(v.Get(name))
	}
	return out
}
