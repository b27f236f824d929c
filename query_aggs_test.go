package rods_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arllen133/rods"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAggregates(t *testing.T) {
	_, f := newFixture(t)
	ctx := context.Background()

	n, err := f.users.Select().Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	ok, err := f.users.Select().Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	max, err := f.users.Select().Max(ctx, "id")
	require.NoError(t, err)
	assert.Nil(t, max)

	for _, name := range []string{"bob", "steve", "alice"} {
		mustSave(t, f.users.New(rods.Fields{"name": name}))
	}

	n, err = f.users.Select().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	n, err = f.users.Select().Filter(rods.Fields{"name": []any{"bob", "alice"}}).Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = f.users.First().Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "limit is kept")

	sum, err := f.users.Select().Sum(ctx, "users.id")
	require.NoError(t, err)
	assert.Equal(t, 6.0, sum)

	avg, err := f.users.Select().Avg(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, 2.0, avg)

	min, err := f.users.Select().Min(ctx, "name")
	require.NoError(t, err)
	assert.Equal(t, "alice", min)

	max, err = f.users.Select().Max(ctx, "id")
	require.NoError(t, err)
	assert.EqualValues(t, 3, max)
}

func TestAggregateSQL(t *testing.T) {
	store := &mockStore{}
	m := rods.New(store)
	store.On("Rows",
		"SELECT COUNT(*) AS value FROM (SELECT users.* FROM users WHERE users.name = ?) AS rods_agg",
		[]any{"bob"},
	).Return([]rods.Fields{{"value": int64(4)}}, nil)

	n, err := m.Model("users").Select().Filter(rods.Fields{"name": "bob"}).Count(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
	store.AssertExpectations(t)
}

func TestAggregateStorageError(t *testing.T) {
	store := &mockStore{}
	m := rods.New(store)
	store.On("Rows", mock.Anything, mock.Anything).Return(nil, errors.New("locked"))

	_, err := m.Model("users").Select().Sum(context.Background(), "id")
	var se *rods.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "aggregate", se.Op)
}
