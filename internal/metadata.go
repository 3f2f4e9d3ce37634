package internal

import (
	"sync"

	"github.com/DevBiker/WorkflowsCore-sub000/namedvalues"
	"github.com/DevBiker/WorkflowsCore-sub000/wferrors"
)

// DataFieldKind distinguishes fields WorkflowCore persists across restarts
// from ones that exist only for the lifetime of the running process.
type DataFieldKind int

const (
	// Persistent fields are written to the Repository at every milestone
	// (§4.6) and restored on the next run.
	Persistent DataFieldKind = iota
	// Transient fields never reach the Repository.
	Transient
)

// DataField describes one declared field on a workflow type, standing in
// for the distilled spec's reflected-attribute metadata (§9: "Metadata
// exposes declared, not reflected, data-field descriptors").
type DataField struct {
	Name    string
	Kind    DataFieldKind
	Default interface{}
}

// Metadata is the set of data fields a workflow type declares, built once
// at workflow-type registration time and shared by every instance of that
// type.
type Metadata struct {
	mu     sync.RWMutex
	fields map[string]DataField
	order  []string
}

// NewMetadata creates an empty Metadata set.
func NewMetadata() *Metadata {
	return &Metadata{fields: make(map[string]DataField)}
}

// DeclareDataField registers a field. Declaring the same name twice is a
// programmer error and panics, mirroring the state machine's
// panic-on-illegal-declaration idiom.
func (m *Metadata) DeclareDataField(name string, kind DataFieldKind, defaultValue interface{}) *Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.fields[name]; ok {
		panic("internal: data field " + name + " declared twice")
	}
	m.fields[name] = DataField{Name: name, Kind: kind, Default: defaultValue}
	m.order = append(m.order, name)
	return m
}

// Field returns the descriptor for name, or false if undeclared.
func (m *Metadata) Field(name string) (DataField, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.fields[name]
	return f, ok
}

// Fields returns every declared field in declaration order.
func (m *Metadata) Fields() []DataField {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]DataField, 0, len(m.order))
	for _, n := range m.order {
		out = append(out, m.fields[n])
	}
	return out
}

// DataStore holds the current value of every declared field for one
// workflow instance.
type DataStore struct {
	meta   *Metadata
	mu     sync.RWMutex
	values *namedvalues.Values
}

// NewDataStore creates a DataStore seeded with each field's default value.
func NewDataStore(meta *Metadata) *DataStore {
	vs := namedvalues.New()
	for _, f := range meta.Fields() {
		vs.Set(f.Name, f.Default)
	}
	return &DataStore{meta: meta, values: vs}
}

// Get returns the current value of name, or an error if name wasn't
// declared in this workflow type's Metadata.
func (d *DataStore) Get(name string) (interface{}, error) {
	if _, ok := d.meta.Field(name); !ok {
		return nil, wferrors.NotFoundf("data field %q not declared", name)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.values.Get(name), nil
}

// Set assigns name's value. Setting an undeclared field is
// wferrors.InvalidUsage rather than silently accepted, since it almost
// always indicates a typo against the declared Metadata.
func (d *DataStore) Set(name string, value interface{}) error {
	if _, ok := d.meta.Field(name); !ok {
		return wferrors.InvalidUsagef("data field %q not declared", name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.values.Set(name, value)
	return nil
}

// Persistent returns only the fields declared Persistent, suitable for
// handing straight to Repository.SaveWorkflowData.
func (d *DataStore) Persistent() *namedvalues.Values {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := namedvalues.New()
	for _, f := range d.meta.Fields() {
		if f.Kind == Persistent {
			out.Set(f.Name, d.values.Get(f.Name))
		}
	}
	return out
}

// Restore overwrites the store's current values from persisted, leaving
// any declared field persisted doesn't mention at its declared default.
func (d *DataStore) Restore(persisted *namedvalues.Values) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range persisted.Names() {
		if _, ok := d.meta.Field(name); ok {
			d.values.Set(name, persisted.Get(name))
		}
	}
}
