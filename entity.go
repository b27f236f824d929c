package rods

import (
	"encoding/json"
)

// Entity is one row of a collection held in memory.
//
// An entity built by application code through Model.New is new: saving it
// inserts a row. An entity materialized from a query result is persisted:
// saving it updates the row selected by its identifier. The entity keeps a
// private snapshot of its fields as of the last load or save, used for change
// tracking and handed to post-save hooks; the snapshot never appears in any
// exported view.
//
// Entities are not safe for concurrent use.
type Entity struct {
	model    *Model
	fields   Fields
	related  map[string]any
	original Fields
	isNew    bool
}

func newEntity(m *Model, fields Fields, isNew bool) *Entity {
	e := &Entity{
		model:  m,
		fields: fields.Clone(),
		isNew:  isNew,
	}
	e.original = e.fields.Clone()
	return e
}

// Model returns the collection binding the entity belongs to.
func (e *Entity) Model() *Model { return e.model }

// IsNew reports whether the entity has never been saved or loaded.
func (e *Entity) IsNew() bool { return e.isNew }

// ID returns the value of the identifier field, or nil.
func (e *Entity) ID() any { return e.fields[e.model.idField] }

// Get returns the value a populated relation attached under name or, when
// there is none, the plain field of that name. An attachment hides a column
// of the same name here and in the JSON view; the column itself keeps its
// value, stays in ToPlainObject and is still what Save writes.
func (e *Entity) Get(name string) any {
	if v, ok := e.related[name]; ok {
		return v
	}
	return e.fields[name]
}

// GetString returns the named field as a string, or "" when it is absent or of
// another type.
func (e *Entity) GetString(name string) string {
	s, _ := e.fields[name].(string)
	return s
}

// GetInt64 returns the named field normalized to int64.
func (e *Entity) GetInt64(name string) (int64, bool) {
	return GetNumber[int64](e, name)
}

// GetNumber reads a numeric field as N, whatever numeric type the driver
// returned. It reports false when the field is absent or not a number.
//
//	score, ok := rods.GetNumber[float64](u, "score")
func GetNumber[N Number](e *Entity, name string) (N, bool) {
	return numberAs[N](e.fields[name])
}

// Has reports whether a plain field with that name is set.
func (e *Entity) Has(name string) bool {
	_, ok := e.fields[name]
	return ok
}

// Set assigns a plain field and returns the entity for chaining.
func (e *Entity) Set(name string, value any) *Entity {
	e.fields[name] = value
	return e
}

// Unset removes a plain field.
func (e *Entity) Unset(name string) {
	delete(e.fields, name)
}

// Related returns the value attached under name by a populated relation:
// an *Entity, a []*Entity, or nil.
func (e *Entity) Related(name string) any {
	return e.related[name]
}

// One returns the single entity attached under name, if any.
func (e *Entity) One(name string) *Entity {
	switch v := e.related[name].(type) {
	case *Entity:
		return v
	case []*Entity:
		if len(v) > 0 {
			return v[0]
		}
	}
	return nil
}

// Many returns the entities attached under name. A single attachment is
// returned as a one-element slice.
func (e *Entity) Many(name string) []*Entity {
	switch v := e.related[name].(type) {
	case []*Entity:
		return v
	case *Entity:
		if v != nil {
			return []*Entity{v}
		}
	}
	return nil
}

func (e *Entity) attach(name string, value any) {
	if e.related == nil {
		e.related = make(map[string]any)
	}
	e.related[name] = value
}

// ToPlainObject returns a copy of the entity's persisted shape: its plain
// fields without bookkeeping or relation attachments.
func (e *Entity) ToPlainObject() Fields {
	return e.fields.Clone()
}

// Changes returns the fields modified since the last load or save.
func (e *Entity) Changes() Fields {
	return e.fields.diff(e.original)
}

// IsDirty reports whether any field differs from the last load or save.
func (e *Entity) IsDirty() bool {
	return len(e.Changes()) > 0
}

// snapshot refreshes the change-tracking baseline and returns the previous one.
func (e *Entity) snapshot() Fields {
	prev := e.original
	e.original = e.fields.Clone()
	return prev
}

// MarshalJSON renders the plain fields with relation attachments laid over
// them.
func (e *Entity) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.fields)+len(e.related))
	for k, v := range e.fields {
		out[k] = v
	}
	for k, v := range e.related {
		out[k] = v
	}
	return json.Marshal(out)
}
