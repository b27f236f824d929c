// Command rods prints the rows of a table as JSON lines, with optional
// relations populated on every row.
//
//	RODS_DRIVER=sqlite3 RODS_DSN=app.db rods -table users -where name=bob \
//	    -with memberships=user_groups.user_id:id
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/arllen133/rods"
	"github.com/arllen133/rods/connect"
)

// pairs collects repeated key=value flags.
type pairs []string

func (p *pairs) String() string     { return strings.Join(*p, ",") }
func (p *pairs) Set(v string) error { *p = append(*p, v); return nil }

// withSpec is one -with flag: target=table.column:field attaches the rows of
// table whose column equals the parent's field.
type withSpec struct {
	target, table, column, field string
}

func parseWith(v string) (withSpec, error) {
	target, rest, ok := strings.Cut(v, "=")
	if !ok {
		return withSpec{}, fmt.Errorf("-with %q: expected target=table.column:field", v)
	}
	ref, field, ok := strings.Cut(rest, ":")
	if !ok {
		return withSpec{}, fmt.Errorf("-with %q: missing :field", v)
	}
	table, column, ok := strings.Cut(ref, ".")
	if !ok {
		return withSpec{}, fmt.Errorf("-with %q: missing table.column", v)
	}
	return withSpec{target: target, table: table, column: column, field: field}, nil
}

func main() {
	driver := flag.String("driver", "", "database/sql driver (overrides "+connect.EnvDriver+")")
	dsn := flag.String("dsn", "", "data source name (overrides "+connect.EnvDSN+")")
	table := flag.String("table", "", "table to read")
	limit := flag.Uint64("limit", 0, "maximum number of rows, 0 for all")
	count := flag.Bool("count", false, "print the number of matching rows instead of the rows")
	verbose := flag.Bool("v", false, "log statements to stderr")
	var where, with pairs
	flag.Var(&where, "where", "equality filter column=value, repeatable")
	flag.Var(&with, "with", "relation target=table.column:field, repeatable")
	flag.Parse()

	if *table == "" {
		log.Fatalf("-table is required")
	}

	cfg, err := connect.FromEnv()
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *dsn != "" {
		cfg.DSN = *dsn
	}
	if *verbose {
		cfg.LogQueries = true
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	ctx := context.Background()
	m, sess, err := connect.OpenMapper(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer sess.Close()

	q, err := buildQuery(m, *table, where, with)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if *limit > 0 {
		q.Limit(*limit)
	}

	if *count {
		n, err := q.Count(ctx)
		if err != nil {
			log.Fatalf("count failed: %v", err)
		}
		fmt.Println(n)
		return
	}

	res, err := q.Execute(ctx)
	if err != nil {
		log.Fatalf("query failed: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	for _, e := range res.All() {
		if err := enc.Encode(e); err != nil {
			log.Fatalf("failed to encode row: %v", err)
		}
	}
}

func buildQuery(m *rods.Mapper, table string, where, with []string) (*rods.Query, error) {
	criteria := rods.Fields{}
	for _, w := range where {
		col, val, ok := strings.Cut(w, "=")
		if !ok {
			return nil, fmt.Errorf("-where %q: expected column=value", w)
		}
		criteria[col] = val
	}

	q := m.Model(table).Select().Filter(criteria)
	for _, w := range with {
		spec, err := parseWith(w)
		if err != nil {
			return nil, err
		}
		q.Populate(spec.target, m.Model(spec.table).Select(), func(parent *rods.Entity) rods.Key {
			return rods.Scalar(spec.column, parent.Get(spec.field))
		})
	}
	return q, nil
}
