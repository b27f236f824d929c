package rods

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Save returns the operation persisting the entity.
//
// Operation flow:
//  1. Run the mapper's pre-save hook, which may change fields. An error
//     from it aborts the save before anything is written.
//  2. Compute the payload: the plain fields, limited to the model's
//     declared columns when it has any.
//  3. A new entity is inserted; the generated identifier is written back
//     and the entity becomes persisted. A persisted entity is updated by
//     its identifier.
//  4. The change-tracking snapshot is refreshed, then the post-save hook
//     receives the snapshot from before the save and the payload sent.
//
// A storage failure yields a *StorageError; hooks after the failure are
// skipped and the entity keeps its previous state, so the save can be
// retried.
func (e *Entity) Save(args Args) Op[*Entity] {
	return func(ctx context.Context) (*Entity, error) {
		if e == nil {
			return nil, ErrNilEntity
		}
		if err := e.save(ctx, args); err != nil {
			return e, err
		}
		return e, nil
	}
}

func (e *Entity) save(ctx context.Context, args Args) error {
	m := e.model
	mp := m.mapper
	if args == nil {
		args = Args{}
	}
	insert := e.isNew

	ctx, span := mp.startSpan(ctx, "rods.save",
		trace.WithAttributes(
			attribute.String(attrCollection, m.name),
			attribute.Bool(attrInsert, insert),
		),
	)
	defer span.End()
	fail := func(err error) error {
		span.fail(err)
		return err
	}

	orig := e.original

	if pre := mp.hooks.preHook(EventSave); pre != nil {
		if err := pre(ctx, args, e); err != nil {
			return fail(fmt.Errorf("rods: pre-save hook on %s: %w", m.name, err))
		}
	}

	payload := e.payload()
	if insert {
		if v, ok := payload[m.idField]; ok && v == nil {
			delete(payload, m.idField)
		}
		id, err := mp.store.Insert(ctx, m.name, payload, m.idField)
		if err != nil {
			return fail(storageErr("insert", m.name, err))
		}
		e.fields[m.idField] = id
		e.isNew = false
	} else {
		id := e.ID()
		if id == nil {
			return fail(fmt.Errorf("%w (%s.%s)", ErrMissingIdentifier, m.name, m.idField))
		}
		if _, err := mp.store.Update(ctx, m.name, Fields{m.idField: id}, payload); err != nil {
			return fail(storageErr("update", m.name, err))
		}
	}
	e.snapshot()
	mp.recordSave(ctx, m.name, insert)

	mp.debug(ctx, "entity saved",
		slog.String("collection", m.name),
		slog.Bool("insert", insert),
		slog.Any("id", e.ID()),
	)

	if post := mp.hooks.postHook(EventSave); post != nil {
		post(ctx, args, orig, payload)
	}
	return nil
}

func (e *Entity) payload() Fields {
	if len(e.model.columns) > 0 {
		return e.fields.Only(e.model.columns)
	}
	return e.fields.Clone()
}
