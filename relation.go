package rods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arllen133/rods/clause"
)

// Relation is one populate declaration: the field that receives the result,
// the query that produces it and the function deriving the filter from the
// parent entity.
type Relation struct {
	Target string
	Source *Query
	With   FilterFunc
}

// FilterFunc derives the filter applied to a relation's source query from
// the parent entity. It may read relations attached earlier on the same
// parent.
type FilterFunc func(parent *Entity) Key

type keyKind int

const (
	keyScalar keyKind = iota + 1
	keySequence
)

// Key is the filter a FilterFunc returns: either one value matched with
// equality (Scalar) or a list matched with membership (Sequence).
type Key struct {
	kind   keyKind
	column string
	value  any
	values []any
}

// Scalar filters the related collection on column = value.
func Scalar(column string, value any) Key {
	return Key{kind: keyScalar, column: column, value: value}
}

// Sequence filters the related collection on column IN (values...). An
// empty sequence matches no row.
func Sequence(column string, values ...any) Key {
	return Key{kind: keySequence, column: column, values: values}
}

// Column returns the filtered column.
func (k Key) Column() string { return k.column }

// IsSequence reports whether the key is a membership filter.
func (k Key) IsSequence() bool { return k.kind == keySequence }

// Values returns the scalar as a one-element list, or the sequence.
func (k Key) Values() []any {
	if k.kind == keyScalar {
		return []any{k.value}
	}
	return append([]any(nil), k.values...)
}

var errEmptyKey = errors.New("filter returned no key")

func (k Key) expression(table string) (clause.Expression, error) {
	if k.column == "" {
		return nil, errEmptyKey
	}
	col := clause.Col(k.column).Qualify(table)
	switch k.kind {
	case keyScalar:
		return clause.Eq{Column: col, Value: k.value}, nil
	case keySequence:
		return clause.IN{Column: col, Values: k.values}, nil
	default:
		return nil, errEmptyKey
	}
}

// Pluck collects one field from each entity, in order, skipping entities
// that lack it. It is the usual way to turn an attached list into a
// Sequence key.
func Pluck(entities []*Entity, field string) []any {
	out := make([]any, 0, len(entities))
	for _, e := range entities {
		if e == nil {
			continue
		}
		if v := e.Get(field); v != nil {
			out = append(out, v)
		}
	}
	return out
}

// populate resolves relations on e strictly in declared order. Each source
// query gets the parent's filter only for the duration of its own
// execution: its clause state is snapshotted before and restored right
// after, whether or not execution failed. The first failure stops the
// remaining relations; attachments made before it stay in place.
func populate(ctx context.Context, e *Entity, relations []Relation) error {
	for _, rel := range relations {
		src := rel.Source
		expr, err := rel.With(e).expression(src.model.name)
		if err != nil {
			return fmt.Errorf("rods: populate %q: %w", rel.Target, err)
		}

		state := src.Snapshot()
		res, err := src.Where(expr).execute(ctx)
		src.Restore(state)
		if err != nil {
			return err
		}

		e.attach(rel.Target, res.Value())
		e.model.mapper.recordPopulate(ctx, e.model.name, rel.Target, src.model.name)
		e.model.mapper.debug(ctx, "relation populated",
			slog.String("collection", e.model.name),
			slog.String("target", rel.Target),
			slog.String("source", src.model.name),
			slog.Int("rows", res.Len()),
		)
	}
	return nil
}
