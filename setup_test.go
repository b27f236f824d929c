package rods_test

import (
	"database/sql"
	"os"
	"testing"

	"github.com/arllen133/rods"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var schemaDDL = map[string][]string{
	"sqlite3": {
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			prefs TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE user_groups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			group_id INTEGER,
			created_at DATETIME,
			updated_at DATETIME
		)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS users (id SERIAL PRIMARY KEY, name TEXT, prefs TEXT, created_at TIMESTAMP, updated_at TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS groups (id SERIAL PRIMARY KEY, name TEXT, created_at TIMESTAMP, updated_at TIMESTAMP)`,
		`CREATE TABLE IF NOT EXISTS user_groups (id SERIAL PRIMARY KEY, user_id BIGINT, group_id BIGINT, created_at TIMESTAMP, updated_at TIMESTAMP)`,
		"TRUNCATE TABLE users RESTART IDENTITY",
		"TRUNCATE TABLE groups RESTART IDENTITY",
		"TRUNCATE TABLE user_groups RESTART IDENTITY",
	},
}

func setupTestDB(t *testing.T, opts ...rods.SessionOption) (*sql.DB, *rods.Session) {
	t.Helper()
	driver := os.Getenv("TEST_DRIVER")
	dsn := os.Getenv("TEST_DSN")

	if driver == "" {
		driver = "sqlite3"
		dsn = ":memory:"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range schemaDDL[driver] {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("Failed to create/init table: %v", err)
		}
	}

	return db, rods.NewSession(db, rods.DialectFor(driver), opts...)
}

// fixture binds the three test collections on one mapper.
type fixture struct {
	mapper     *rods.Mapper
	users      *rods.Model
	groups     *rods.Model
	userGroups *rods.Model
}

func newFixture(t *testing.T, opts ...rods.MapperOption) (*sql.DB, fixture) {
	t.Helper()
	db, session := setupTestDB(t)
	m := rods.New(session, opts...)
	return db, fixture{
		mapper:     m,
		users:      m.Model("users"),
		groups:     m.Model("groups"),
		userGroups: m.Model("user_groups"),
	}
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
