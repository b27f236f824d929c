package rods

import (
	"context"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
	"github.com/arllen133/rods/clause"
)

// Aggregates run over the rows the query would return: the query's clauses,
// including LIMIT, OFFSET and joins, are kept and wrapped as a derived table.
// Declared relations are not resolved.
//
//	n, err := users.Select().Filter(rods.Fields{"name": "bob"}).Count(ctx)
//	oldest, err := users.Select().Min(ctx, "created_at")

const aggAlias = "rods_agg"

// Count returns the number of rows the query matches.
func (q *Query) Count(ctx context.Context) (int64, error) {
	v, err := q.aggregate(ctx, "COUNT(*)")
	if err != nil {
		return 0, err
	}
	if n, ok := numberAs[int64](v); ok {
		return n, nil
	}
	f, err := toFloat(v)
	return int64(f), err
}

// Exists reports whether the query matches at least one row.
func (q *Query) Exists(ctx context.Context) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

// Sum returns the sum of a numeric column, 0 when no row matches.
func (q *Query) Sum(ctx context.Context, column string) (float64, error) {
	return q.aggregateFloat(ctx, "SUM", column)
}

// Avg returns the mean of a numeric column, 0 when no row matches.
func (q *Query) Avg(ctx context.Context, column string) (float64, error) {
	return q.aggregateFloat(ctx, "AVG", column)
}

// Min returns the smallest value of a column as the driver reports it, or
// nil when no row matches.
func (q *Query) Min(ctx context.Context, column string) (any, error) {
	return q.aggregate(ctx, "MIN("+aggColumn(column)+")")
}

// Max returns the largest value of a column, or nil when no row matches.
func (q *Query) Max(ctx context.Context, column string) (any, error) {
	return q.aggregate(ctx, "MAX("+aggColumn(column)+")")
}

func (q *Query) aggregateFloat(ctx context.Context, fn, column string) (float64, error) {
	v, err := q.aggregate(ctx, fn+"("+aggColumn(column)+")")
	if err != nil || v == nil {
		return 0, err
	}
	return toFloat(v)
}

// aggColumn addresses a column of the derived table, which exposes the
// query's columns without their table prefix.
func aggColumn(ref string) string {
	return clause.Column{Table: aggAlias, Name: clause.Col(ref).Name}.ColumnName()
}

func (q *Query) aggregate(ctx context.Context, expr string) (any, error) {
	if q.err != nil {
		return nil, q.err
	}
	m := q.model
	stmt := sq.Select(expr+" AS value").
		FromSelect(q.builder, aggAlias).
		PlaceholderFormat(m.mapper.store.Dialect().PlaceholderFormat())

	rows, err := m.mapper.store.Rows(ctx, m.name, stmt)
	if err != nil {
		return nil, storageErr("aggregate", m.name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0]["value"], nil
}

func toFloat(v any) (float64, error) {
	if f, ok := numberAs[float64](v); ok {
		return f, nil
	}
	if s, ok := v.(string); ok {
		// DECIMAL results arrive as text on MySQL and PostgreSQL
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("rods: unexpected aggregate type %T", v)
}
