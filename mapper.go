// Package rods maps database rows to entities, persists them through an
// insert-or-update decision with save hooks, and resolves declared relations
// between entities by issuing secondary queries.
//
// A Mapper is one configured mapping session: a Store, a default identifier
// column and one hook table shared by every Model it binds.
//
//	m := rods.New(session, rods.WithPreHook(rods.EventSave, rods.Timestamps("created_at", "updated_at", nil)))
//	users := m.Model("users")
//	groups := m.Model("groups")
//	memberships := m.Model("user_groups")
//
//	bob := users.New(rods.Fields{"name": "bob"})
//	if _, err := bob.Save(nil).Await(ctx); err != nil {
//	    return err
//	}
//
//	u, err := users.First().
//	    Filter(rods.Fields{"name": "bob"}).
//	    Populate("user_groups", memberships.Select(), func(u *rods.Entity) rods.Key {
//	        return rods.Scalar("user_id", u.ID())
//	    }).
//	    Populate("groups", groups.Select(), func(u *rods.Entity) rods.Key {
//	        return rods.Sequence("id", rods.Pluck(u.Many("user_groups"), "group_id")...)
//	    }).
//	    Execute(ctx)
package rods

import (
	"context"
	"errors"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel/trace"
)

// Mapper is a mapping session bound to one Store.
//
// The hook table and the default identifier column are shared, mutable
// session state. Registering a hook for an event replaces the previous one;
// coordinating registrations from several call sites is up to the caller.
type Mapper struct {
	store   Store
	idField string
	hooks   *hookTable
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *mapperMetrics
}

// New creates a mapping session over store. A nil store renders SQL with
// the SQLite dialect and fails every execution with ErrNoStore.
//
// New panics when an option registers a hook for an unknown event.
func New(store Store, opts ...MapperOption) *Mapper {
	if store == nil {
		store = noStore{}
	}
	m := &Mapper{
		store:   store,
		idField: DefaultIDField,
		hooks:   newHookTable(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.idField == "" {
		m.idField = DefaultIDField
	}
	return m
}

// Store returns the backend the mapper talks to.
func (m *Mapper) Store() Store { return m.store }

// Model binds a collection. Every model of one mapper shares the mapper's
// hook table; the identifier column resolves to the model option, then the
// mapper default, then "id".
func (m *Mapper) Model(name string, opts ...ModelOption) *Model {
	model := &Model{
		mapper:  m,
		name:    name,
		idField: m.idField,
	}
	for _, opt := range opts {
		opt(model)
	}
	if model.idField == "" {
		model.idField = m.idField
	}
	return model
}

// Pre registers the pre hook for ev, replacing any earlier one. A nil fn
// removes it.
func (m *Mapper) Pre(ev Event, fn PreHook) error {
	return m.hooks.setPre(ev, fn)
}

// Post registers the post hook for ev, replacing any earlier one. A nil fn
// removes it.
func (m *Mapper) Post(ev Event, fn PostHook) error {
	return m.hooks.setPost(ev, fn)
}

// WithStore returns a mapper over another store that shares this mapper's
// hooks and defaults. Models must be bound again on the returned mapper.
func (m *Mapper) WithStore(store Store) *Mapper {
	cp := *m
	cp.store = store
	return &cp
}

// ErrNoStore is returned by operations of a Mapper created without a store.
var ErrNoStore = errors.New("rods: mapper has no store")

type noStore struct{}

func (noStore) Dialect() Dialect { return SQLite }

func (noStore) Rows(context.Context, string, sq.Sqlizer) ([]Fields, error) {
	return nil, ErrNoStore
}

func (noStore) Insert(context.Context, string, Fields, string) (any, error) {
	return nil, ErrNoStore
}

func (noStore) Update(context.Context, string, Fields, Fields) (int64, error) {
	return 0, ErrNoStore
}

// ErrNoTransactions is returned by Transaction when the store is not a
// *Session.
var ErrNoTransactions = errors.New("rods: store does not support transactions")

// Transaction runs fn with a mapper bound to a transaction of the
// underlying *Session, committing when fn returns nil.
func (m *Mapper) Transaction(ctx context.Context, fn func(tx *Mapper) error) error {
	sess, ok := m.store.(*Session)
	if !ok {
		return ErrNoTransactions
	}
	return sess.Transaction(ctx, func(txSession *Session) error {
		return fn(m.WithStore(txSession))
	})
}
