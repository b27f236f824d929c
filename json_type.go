package rods

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON wraps a value stored in a JSON or TEXT column. Set it as an entity
// field to have it encoded on save:
//
//	u.Set("prefs", rods.NewJSON(Prefs{Theme: "dark"}))
//
// Loaded rows carry the column as text; read it back with DecodeJSON.
type JSON[T any] struct {
	Data T
}

// NewJSON wraps v.
func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{Data: v}
}

// Scan implements sql.Scanner.
func (j *JSON[T]) Scan(value any) error {
	var zero T
	j.Data = zero

	var raw []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("rods: scan JSON: expected []byte or string, got %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &j.Data)
}

// Value implements driver.Valuer.
func (j JSON[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(j.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// MarshalJSON keeps the wrapper out of an entity's JSON view.
func (j JSON[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.Data)
}

// DecodeJSON reads a JSON field of e into a T. The field may hold the raw
// column text of a loaded row, a JSON[T] set by application code, or a T.
// An absent or NULL field yields the zero T.
func DecodeJSON[T any](e *Entity, name string) (T, error) {
	var j JSON[T]
	switch v := e.Get(name).(type) {
	case nil, string, []byte:
		if err := j.Scan(v); err != nil {
			return j.Data, fmt.Errorf("rods: field %s.%s: %w", e.model.name, name, err)
		}
	case JSON[T]:
		j = v
	case *JSON[T]:
		if v != nil {
			j = *v
		}
	case T:
		j.Data = v
	default:
		return j.Data, fmt.Errorf("rods: field %s.%s: cannot decode %T as JSON", e.model.name, name, v)
	}
	return j.Data, nil
}
