package rods

import (
	"strings"

	"github.com/arllen133/rods/clause"
)

// JoinOn is one equality of a JOIN ... ON clause.
type JoinOn struct {
	// Left is the column of the query's own table; an unqualified
	// column is qualified with it.
	Left clause.Column

	// Right is the column of the joined table; an unqualified column
	// is qualified with it.
	Right clause.Column
}

// On builds a join condition from two column references written as
// "table.column" or "column".
//
//	users.First().
//	    Join("user_groups", rods.On("id", "user_id")).
//	    Join("groups", rods.On("user_groups.group_id", "id"))
func On(left, right string) JoinOn {
	return JoinOn{Left: clause.Col(left), Right: clause.Col(right)}
}

type joinType int

const (
	joinTypeInner joinType = iota
	joinTypeLeft
)

func (q *Query) join(kind joinType, table string, ons ...JoinOn) *Query {
	if q.err != nil || len(ons) == 0 {
		return q
	}
	parts := make([]string, 0, len(ons))
	for _, on := range ons {
		parts = append(parts, on.Left.Qualify(q.model.name).ColumnName()+" = "+on.Right.Qualify(table).ColumnName())
	}
	expr := table + " ON " + strings.Join(parts, " AND ")
	if kind == joinTypeLeft {
		q.builder = q.builder.LeftJoin(expr)
	} else {
		q.builder = q.builder.Join(expr)
	}
	return q
}

// Join adds an INNER JOIN. Only the query's own columns are selected.
func (q *Query) Join(table string, ons ...JoinOn) *Query {
	return q.join(joinTypeInner, table, ons...)
}

// LeftJoin adds a LEFT JOIN.
func (q *Query) LeftJoin(table string, ons ...JoinOn) *Query {
	return q.join(joinTypeLeft, table, ons...)
}

// JoinWhere adds an INNER JOIN with an arbitrary ON expression.
func (q *Query) JoinWhere(table string, on clause.Expression) *Query {
	if q.err != nil {
		return q
	}
	sql, args, err := on.Build()
	if err != nil {
		q.err = err
		return q
	}
	q.builder = q.builder.Join(table+" ON "+sql, args...)
	return q
}
