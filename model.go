package rods

import (
	"context"

	"github.com/arllen133/rods/clause"
)

// Model is the binding of one collection to a mapping session: the table
// name, its identifier column, an optional column list and, through the
// mapper, the store and the shared hook table. Models are cheap values;
// binding the same table twice yields two equivalent models.
type Model struct {
	mapper  *Mapper
	name    string
	idField string
	columns []string
}

// Name returns the collection (table) name.
func (m *Model) Name() string { return m.name }

// IDField returns the identifier column.
func (m *Model) IDField() string { return m.idField }

// Columns returns the declared column list, or nil when none was declared.
func (m *Model) Columns() []string { return append([]string(nil), m.columns...) }

// Mapper returns the mapping session the model belongs to.
func (m *Model) Mapper() *Mapper { return m.mapper }

// Col returns a column of this collection, qualified with its table name.
func (m *Model) Col(name string) clause.Column {
	return clause.Column{Table: m.name, Name: name}
}

// New creates a new, unsaved entity holding a copy of fields.
func (m *Model) New(fields Fields) *Entity {
	return newEntity(m, fields, true)
}

// load materializes a row read from storage.
func (m *Model) load(row Fields) *Entity {
	return newEntity(m, row, false)
}

// Select starts a query returning every matching row.
func (m *Model) Select() *Query {
	return newQuery(m, false)
}

// First starts a query returning at most one row.
func (m *Model) First() *Query {
	return newQuery(m, true)
}

// Get loads the entity whose identifier equals id. A missing row yields a
// nil entity and no error.
func (m *Model) Get(id any) Op[*Entity] {
	q := m.First().Where(clause.Eq{Column: m.Col(m.idField), Value: id})
	return one(q)
}

// Find loads the first entity matching the equality criteria.
func (m *Model) Find(criteria Fields) Op[*Entity] {
	return one(m.First().Filter(criteria))
}

// Fetch loads every entity matching the equality criteria. Empty criteria
// load the whole collection.
func (m *Model) Fetch(criteria Fields) Op[[]*Entity] {
	return many(m.Select().Filter(criteria))
}

// FetchIDs loads the entities whose identifier is one of ids.
func (m *Model) FetchIDs(ids ...any) Op[[]*Entity] {
	return many(m.Select().Where(clause.IN{Column: m.Col(m.idField), Values: ids}))
}

func one(q *Query) Op[*Entity] {
	return func(ctx context.Context) (*Entity, error) {
		res, err := q.Exec()(ctx)
		if err != nil {
			return nil, err
		}
		return res.One(), nil
	}
}

func many(q *Query) Op[[]*Entity] {
	return func(ctx context.Context) ([]*Entity, error) {
		res, err := q.Exec()(ctx)
		if err != nil {
			return nil, err
		}
		return res.All(), nil
	}
}
