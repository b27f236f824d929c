package connect_test

import (
	"context"
	"testing"
	"time"

	"github.com/arllen133/rods"
	"github.com/arllen133/rods/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(connect.EnvDriver, "")
	t.Setenv(connect.EnvDSN, "")
	t.Setenv(connect.EnvLogQueries, "")
	t.Setenv(connect.EnvSlowQuery, "")

	cfg, err := connect.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Driver)
	assert.Equal(t, ":memory:", cfg.DSN)
	assert.False(t, cfg.LogQueries)
	assert.Zero(t, cfg.SlowQuery)
}

func TestFromEnv(t *testing.T) {
	t.Setenv(connect.EnvDriver, "pgx")
	t.Setenv(connect.EnvDSN, "postgres://localhost/rods")
	t.Setenv(connect.EnvIDField, "uid")
	t.Setenv(connect.EnvLogQueries, "true")
	t.Setenv(connect.EnvSlowQuery, "250ms")

	cfg, err := connect.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, connect.Config{
		Driver:     "pgx",
		DSN:        "postgres://localhost/rods",
		IDField:    "uid",
		LogQueries: true,
		SlowQuery:  250 * time.Millisecond,
	}, cfg)
	assert.Len(t, cfg.SessionOptions(), 2)
	assert.Len(t, cfg.MapperOptions(), 1)
}

func TestFromEnvInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"bool", connect.EnvLogQueries, "sometimes"},
		{"duration", connect.EnvSlowQuery, "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := connect.FromEnv()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestOpenRequiresDriver(t *testing.T) {
	_, err := connect.Open(context.Background(), connect.Config{})
	assert.Error(t, err)
}

func TestOpenMapper(t *testing.T) {
	for _, driver := range []string{"sqlite3", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			ctx := context.Background()
			m, sess, err := connect.OpenMapper(ctx, connect.Config{Driver: driver, DSN: ":memory:", IDField: "uid"})
			require.NoError(t, err)
			t.Cleanup(func() { sess.Close() })

			assert.Equal(t, rods.SQLite, sess.Dialect())
			_, err = sess.Exec(ctx, `CREATE TABLE accounts (uid INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT)`)
			require.NoError(t, err)

			accounts := m.Model("accounts")
			a := accounts.New(rods.Fields{"email": "bob@example.com"})
			_, err = a.Save(nil).Await(ctx)
			require.NoError(t, err)

			got, err := accounts.Get(a.ID()).Await(ctx)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, "bob@example.com", got.GetString("email"))
		})
	}
}
