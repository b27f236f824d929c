package rods

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/arllen133/rods/clause"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Query decorates a squirrel SELECT over one collection with the relations
// to populate on every entity it returns.
//
// A Query is mutable: clause methods and Populate modify it in place and
// return it for chaining. A query passed as the source of a relation is
// shared by every parent it is resolved for; the resolver snapshots its
// clause state before adding the parent's filter and restores it right
// after, so one source query serves a whole batch.
//
// Queries are not safe for concurrent use.
type Query struct {
	model     *Model
	builder   sq.SelectBuilder
	single    bool
	relations []Relation
	err       error
}

// QueryState is the accumulated clause state of a Query, as captured by
// Snapshot.
type QueryState struct {
	builder sq.SelectBuilder
	err     error
}

func newQuery(m *Model, single bool) *Query {
	cols := []string{m.name + ".*"}
	if len(m.columns) > 0 {
		cols = make([]string, len(m.columns))
		for i, c := range m.columns {
			cols[i] = m.Col(c).ColumnName()
		}
	}
	sb := sq.Select(cols...).
		From(m.name).
		PlaceholderFormat(m.mapper.store.Dialect().PlaceholderFormat())
	if single {
		sb = sb.Limit(1)
	}
	return &Query{model: m, builder: sb, single: single}
}

// Model returns the collection the query reads.
func (q *Query) Model() *Model { return q.model }

// Single reports whether the query yields at most one entity.
func (q *Query) Single() bool { return q.single }

// Where adds a condition. Conditions are joined with AND.
func (q *Query) Where(expr clause.Expression) *Query {
	if q.err != nil {
		return q
	}
	sql, args, err := expr.Build()
	if err != nil {
		q.err = err
		return q
	}
	q.builder = q.builder.Where(sq.Expr(sql, args...))
	return q
}

// Filter adds equality conditions on this collection's columns. A slice
// value becomes a membership test and a nil value an IS NULL test. Names
// without a table are qualified with the query's table.
func (q *Query) Filter(criteria Fields) *Query {
	if q.err != nil || len(criteria) == 0 {
		return q
	}
	eq := make(sq.Eq, len(criteria))
	for k, v := range criteria {
		eq[clause.Col(k).Qualify(q.model.name).ColumnName()] = v
	}
	q.builder = q.builder.Where(eq)
	return q
}

// OrderBy appends ORDER BY terms.
func (q *Query) OrderBy(orders ...clause.OrderByColumn) *Query {
	if q.err != nil {
		return q
	}
	for _, order := range orders {
		sql, _, err := order.Build()
		if err != nil {
			q.err = err
			return q
		}
		q.builder = q.builder.OrderBy(sql)
	}
	return q
}

// Limit caps the number of rows. It has no effect on a First query, which
// is always limited to one row.
func (q *Query) Limit(n uint64) *Query {
	if !q.single {
		q.builder = q.builder.Limit(n)
	}
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n uint64) *Query {
	q.builder = q.builder.Offset(n)
	return q
}

// Snapshot captures the accumulated clause state.
func (q *Query) Snapshot() QueryState {
	return QueryState{builder: q.builder, err: q.err}
}

// Restore resets the clause state to a snapshot taken from this query.
// Relations are not part of the state.
func (q *Query) Restore(s QueryState) {
	q.builder = s.builder
	q.err = s.err
}

// Populate declares a relation: once an entity is materialized, source is
// filtered by with(entity) and executed, and its result is attached to the
// entity under target. Relations resolve in the order they were declared.
func (q *Query) Populate(target string, source *Query, with FilterFunc) *Query {
	if q.err != nil {
		return q
	}
	switch {
	case target == "":
		q.err = errors.New("rods: populate without target field")
	case source == nil || with == nil:
		q.err = fmt.Errorf("rods: populate %q: source query and filter are required", target)
	case source == q:
		q.err = fmt.Errorf("rods: populate %q: query cannot populate from itself", target)
	default:
		q.relations = append(q.relations, Relation{Target: target, Source: source, With: with})
	}
	return q
}

// Relations returns the declared relations in resolution order.
func (q *Query) Relations() []Relation {
	return append([]Relation(nil), q.relations...)
}

// ToSQL renders the statement the query would run.
func (q *Query) ToSQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	return q.builder.ToSql()
}

// Exec returns the query as an operation. Running it reads the rows,
// materializes them as persisted entities and resolves every declared
// relation on each entity in row order, one entity at a time.
//
// An absent row for a First query is an empty Result, not an error. A
// storage failure yields a *StorageError and no entities.
func (q *Query) Exec() Op[Result] {
	return q.execute
}

// Execute runs the query; it is Exec().Await(ctx).
func (q *Query) Execute(ctx context.Context) (Result, error) {
	return q.Exec().Await(ctx)
}

func (q *Query) execute(ctx context.Context) (Result, error) {
	empty := Result{single: q.single}
	if q.err != nil {
		return empty, q.err
	}
	m := q.model

	ctx, span := m.mapper.startSpan(ctx, "rods.execute",
		trace.WithAttributes(
			attribute.String(attrCollection, m.name),
			attribute.Int("rods.relations", len(q.relations)),
		),
	)
	defer span.End()

	rows, err := m.mapper.store.Rows(ctx, m.name, q.builder)
	if err != nil {
		span.fail(err)
		return empty, storageErr("select", m.name, err)
	}
	if q.single && len(rows) > 1 {
		rows = rows[:1]
	}

	res := Result{single: q.single, entities: make([]*Entity, 0, len(rows))}
	for _, row := range rows {
		e := m.load(row)
		if err := populate(ctx, e, q.relations); err != nil {
			span.fail(err)
			return empty, err
		}
		res.entities = append(res.entities, e)
	}
	m.mapper.debug(ctx, "query executed",
		slog.String("collection", m.name),
		slog.Int("rows", len(res.entities)),
		slog.Int("relations", len(q.relations)),
	)
	return res, nil
}

// Result is the outcome of executing a Query.
type Result struct {
	entities []*Entity
	single   bool
}

// Single reports whether the result came from a First query.
func (r Result) Single() bool { return r.single }

// Len returns the number of entities.
func (r Result) Len() int { return len(r.entities) }

// One returns the first entity, or nil.
func (r Result) One() *Entity {
	if len(r.entities) == 0 {
		return nil
	}
	return r.entities[0]
}

// All returns every entity. It is never nil for a successful Select query.
func (r Result) All() []*Entity {
	if r.entities == nil && !r.single {
		return []*Entity{}
	}
	return r.entities
}

// Value is what a relation attaches: the entity or nil for a First query,
// the entity list for a Select query.
func (r Result) Value() any {
	if r.single {
		if e := r.One(); e != nil {
			return e
		}
		return nil
	}
	return r.All()
}
