// Package clause holds the filter expressions a rods query composes into its
// WHERE clause. Every expression renders to SQL with "?" placeholders; the
// query builder rewrites them for the session dialect.
package clause

import (
	"fmt"
	"sort"
	"strings"
)

// Columnar is anything that can be rendered as a column reference.
type Columnar interface {
	ColumnName() string
}

// Column is a possibly table-qualified column reference.
type Column struct {
	Table string
	Name  string
}

// Col parses "table.column" or "column" into a Column.
func Col(ref string) Column {
	if i := strings.LastIndexByte(ref, '.'); i >= 0 {
		return Column{Table: ref[:i], Name: ref[i+1:]}
	}
	return Column{Name: ref}
}

// Qualify returns c bound to table unless it already names one.
func (c Column) Qualify(table string) Column {
	if c.Table == "" {
		c.Table = table
	}
	return c
}

func (c Column) ColumnName() string {
	if c.Table != "" {
		return c.Table + "." + c.Name
	}
	return c.Name
}

var _ Columnar = Column{}

// Expression renders itself to a SQL fragment plus its bound arguments.
type Expression interface {
	Build() (sql string, args []any, err error)
}

// compare is the shared shape of the single-operator expressions.
func compare(c Column, op string, v any) (string, []any, error) {
	return c.ColumnName() + " " + op + " ?", []any{v}, nil
}

// Eq renders "column = ?".
type Eq struct {
	Column Column
	Value  any
}

func (e Eq) Build() (string, []any, error) {
	if e.Value == nil {
		return IsNull{Column: e.Column}.Build()
	}
	return compare(e.Column, "=", e.Value)
}

// Neq renders "column <> ?".
type Neq struct {
	Column Column
	Value  any
}

func (n Neq) Build() (string, []any, error) { return compare(n.Column, "<>", n.Value) }

// Gt renders "column > ?".
type Gt struct {
	Column Column
	Value  any
}

func (g Gt) Build() (string, []any, error) { return compare(g.Column, ">", g.Value) }

// Lt renders "column < ?".
type Lt struct {
	Column Column
	Value  any
}

func (l Lt) Build() (string, []any, error) { return compare(l.Column, "<", l.Value) }

// Like renders "column LIKE ?".
type Like struct {
	Column Column
	Value  string
}

func (l Like) Build() (string, []any, error) { return compare(l.Column, "LIKE", l.Value) }

// IsNull renders "column IS NULL".
type IsNull struct {
	Column Column
}

func (i IsNull) Build() (string, []any, error) {
	return i.Column.ColumnName() + " IS NULL", nil, nil
}

// IN renders a membership test. An empty value list matches no row.
type IN struct {
	Column Column
	Values []any
}

func (i IN) Build() (string, []any, error) {
	if len(i.Values) == 0 {
		return "1 = 0", nil, nil
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(i.Values)), ", ")
	return fmt.Sprintf("%s IN (%s)", i.Column.ColumnName(), marks), i.Values, nil
}

// Match renders an equality conjunction over a column → value map. Keys are
// emitted in sorted order so the same criteria always yield the same SQL.
// An empty Match is always true.
type Match map[string]any

func (m Match) Build() (string, []any, error) {
	if len(m) == 0 {
		return "1 = 1", nil, nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	exprs := make(And, len(keys))
	for i, k := range keys {
		exprs[i] = Eq{Column: Col(k), Value: m[k]}
	}
	return exprs.Build()
}

// And joins expressions with AND. An empty And is always true.
type And []Expression

func (a And) Build() (string, []any, error) {
	return join(a, " AND ", "1 = 1")
}

// Or joins expressions with OR. An empty Or is always false.
type Or []Expression

func (o Or) Build() (string, []any, error) {
	return join(o, " OR ", "1 = 0")
}

func join(exprs []Expression, sep, empty string) (string, []any, error) {
	if len(exprs) == 0 {
		return empty, nil, nil
	}
	if len(exprs) == 1 {
		return exprs[0].Build()
	}
	parts := make([]string, 0, len(exprs))
	var args []any
	for _, e := range exprs {
		sql, a, err := e.Build()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		args = append(args, a...)
	}
	return strings.Join(parts, sep), args, nil
}

// Not negates an expression.
type Not struct {
	Expr Expression
}

func (n Not) Build() (string, []any, error) {
	if n.Expr == nil {
		return "", nil, fmt.Errorf("clause: NOT without expression")
	}
	sql, args, err := n.Expr.Build()
	if err != nil {
		return "", nil, err
	}
	return "NOT (" + sql + ")", args, nil
}

// Expr is a raw SQL fragment with its arguments.
type Expr struct {
	SQL  string
	Vars []any
}

func (e Expr) Build() (string, []any, error) {
	return e.SQL, e.Vars, nil
}

// OrderByColumn is one ORDER BY term.
type OrderByColumn struct {
	Column Column
	Desc   bool
}

func (o OrderByColumn) Build() (string, []any, error) {
	if o.Desc {
		return o.Column.ColumnName() + " DESC", nil, nil
	}
	return o.Column.ColumnName(), nil, nil
}

// Asc orders by ref ascending.
func Asc(ref string) OrderByColumn { return OrderByColumn{Column: Col(ref)} }

// Desc orders by ref descending.
func Desc(ref string) OrderByColumn { return OrderByColumn{Column: Col(ref), Desc: true} }
