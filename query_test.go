package rods_test

import (
	"context"
	"errors"
	"testing"

	"github.com/arllen133/rods"
	"github.com/arllen133/rods/clause"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func mustSave(t *testing.T, e *rods.Entity) *rods.Entity {
	t.Helper()
	_, err := e.Save(nil).Await(context.Background())
	require.NoError(t, err)
	return e
}

func TestUsersAndGroupsScenario(t *testing.T) {
	_, f := newFixture(t)
	ctx := context.Background()

	t.Run("save assigns identifier", func(t *testing.T) {
		u := mustSave(t, f.users.New(rods.Fields{"name": "bob"}))
		assert.EqualValues(t, 1, u.ID())
	})

	t.Run("get", func(t *testing.T) {
		u, err := f.users.Get(1).Await(ctx)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "bob", u.GetString("name"))
		assert.False(t, u.IsNew())
	})

	t.Run("fetch", func(t *testing.T) {
		mustSave(t, f.users.New(rods.Fields{"name": "steve"}))
		all, err := f.users.Fetch(rods.Fields{}).Await(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("first with join", func(t *testing.T) {
		mustSave(t, f.groups.New(rods.Fields{"name": "admins"}))
		mustSave(t, f.userGroups.New(rods.Fields{"user_id": 1, "group_id": 1}))

		res, err := f.users.First().
			Join("user_groups", rods.On("id", "user_id")).
			Join("groups", rods.On("user_groups.group_id", "id")).
			Execute(ctx)
		require.NoError(t, err)
		require.NotNil(t, res.One())
		assert.Equal(t, "bob", res.One().GetString("name"))
	})

	t.Run("populate through join table", func(t *testing.T) {
		res, err := f.users.First().
			Filter(rods.Fields{"id": 1}).
			Populate("user_groups", f.userGroups.Select(), func(u *rods.Entity) rods.Key {
				return rods.Scalar("user_id", u.ID())
			}).
			Populate("groups", f.groups.Select(), func(u *rods.Entity) rods.Key {
				return rods.Sequence("id", rods.Pluck(u.Many("user_groups"), "group_id")...)
			}).
			Execute(ctx)
		require.NoError(t, err)

		u := res.One()
		require.NotNil(t, u)
		groups := u.Many("groups")
		require.Len(t, groups, 1)
		assert.Equal(t, "admins", groups[0].GetString("name"))
		assert.False(t, groups[0].IsNew())

		assert.NotContains(t, u.ToPlainObject(), "groups", "attachments are not persisted fields")
	})
}

func TestFirstWithoutMatch(t *testing.T) {
	_, f := newFixture(t)
	ctx := context.Background()

	res, err := f.users.First().Filter(rods.Fields{"name": "nobody"}).Execute(ctx)
	require.NoError(t, err)
	assert.Nil(t, res.One())
	assert.Nil(t, res.Value())
	assert.True(t, res.Single())

	u, err := f.users.Get(42).Await(ctx)
	require.NoError(t, err)
	assert.Nil(t, u)

	all, err := f.users.Fetch(nil).Await(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

// Resolving one shared relation query for several parents must not carry
// one parent's filter into the next.
func TestSharedRelationDoesNotLeakFilters(t *testing.T) {
	_, f := newFixture(t)
	ctx := context.Background()

	bob := mustSave(t, f.users.New(rods.Fields{"name": "bob"}))
	steve := mustSave(t, f.users.New(rods.Fields{"name": "steve"}))
	admins := mustSave(t, f.groups.New(rods.Fields{"name": "admins"}))
	staff := mustSave(t, f.groups.New(rods.Fields{"name": "staff"}))
	mustSave(t, f.userGroups.New(rods.Fields{"user_id": bob.ID(), "group_id": admins.ID()}))
	mustSave(t, f.userGroups.New(rods.Fields{"user_id": steve.ID(), "group_id": staff.ID()}))

	memberships := f.userGroups.Select()
	before, _, err := memberships.ToSQL()
	require.NoError(t, err)

	res, err := f.users.Select().
		OrderBy(clause.Asc("id")).
		Populate("user_groups", memberships, func(u *rods.Entity) rods.Key {
			return rods.Scalar("user_id", u.ID())
		}).
		Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, res.Len())

	for i, want := range []*rods.Entity{admins, staff} {
		u := res.All()[i]
		ms := u.Many("user_groups")
		require.Len(t, ms, 1, "user %v", u.ID())
		assert.EqualValues(t, u.ID(), ms[0].Get("user_id"))
		assert.EqualValues(t, want.ID(), ms[0].Get("group_id"))
	}

	after, _, err := memberships.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, before, after, "source query restored after the batch")
}

func TestNestedPopulate(t *testing.T) {
	_, f := newFixture(t)
	ctx := context.Background()

	bob := mustSave(t, f.users.New(rods.Fields{"name": "bob"}))
	admins := mustSave(t, f.groups.New(rods.Fields{"name": "admins"}))
	mustSave(t, f.userGroups.New(rods.Fields{"user_id": bob.ID(), "group_id": admins.ID()}))

	withGroup := f.userGroups.Select().
		Populate("group", f.groups.First(), func(ug *rods.Entity) rods.Key {
			return rods.Scalar("id", ug.Get("group_id"))
		})

	u, err := f.users.Get(bob.ID()).Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)

	res, err := f.users.First().
		Filter(rods.Fields{"id": bob.ID()}).
		Populate("memberships", withGroup, func(u *rods.Entity) rods.Key {
			return rods.Scalar("user_id", u.ID())
		}).
		Execute(ctx)
	require.NoError(t, err)

	ms := res.One().Many("memberships")
	require.Len(t, ms, 1)
	g := ms[0].One("group")
	require.NotNil(t, g)
	assert.Equal(t, "admins", g.GetString("name"))
}

func TestPopulateEmptySequence(t *testing.T) {
	_, f := newFixture(t)
	mustSave(t, f.users.New(rods.Fields{"name": "bob"}))

	res, err := f.users.First().
		Populate("groups", f.groups.Select(), func(*rods.Entity) rods.Key {
			return rods.Sequence("id")
		}).
		Populate("leader", f.users.First(), func(*rods.Entity) rods.Key {
			return rods.Scalar("id", 999)
		}).
		Execute(context.Background())
	require.NoError(t, err)

	u := res.One()
	assert.Equal(t, []*rods.Entity{}, u.Related("groups"))
	assert.Nil(t, u.Related("leader"))
}

func TestPopulateFailureStopsResolution(t *testing.T) {
	store := &mockStore{}
	m := rods.New(store)
	users := m.Model("users")
	groups := m.Model("groups")
	tags := m.Model("tags")
	driverErr := errors.New("no such table: groups")

	store.On("Rows", "SELECT users.* FROM users LIMIT 1", mock.Anything).
		Return([]rods.Fields{{"id": int64(1)}}, nil)
	store.On("Rows", "SELECT groups.* FROM groups WHERE groups.id = ?", []any{int64(1)}).
		Return(nil, driverErr)

	source := groups.Select()
	called := false
	_, err := users.First().
		Populate("groups", source, func(u *rods.Entity) rods.Key {
			return rods.Scalar("id", u.ID())
		}).
		Populate("tags", tags.Select(), func(*rods.Entity) rods.Key {
			called = true
			return rods.Scalar("id", 1)
		}).
		Execute(context.Background())

	var se *rods.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "groups", se.Table)
	assert.False(t, called, "later relations are not attempted")

	sql, _, err := source.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT groups.* FROM groups", sql, "source restored after failure")
	store.AssertExpectations(t)
}

func TestExecuteStorageError(t *testing.T) {
	store := &mockStore{}
	m := rods.New(store)
	store.On("Rows", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	res, err := m.Model("users").Select().Execute(context.Background())
	var se *rods.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "select", se.Op)
	assert.Zero(t, res.Len())
}

func TestPopulateValidation(t *testing.T) {
	m := rods.New(&mockStore{})
	users := m.Model("users")
	key := func(*rods.Entity) rods.Key { return rods.Scalar("id", 1) }

	q := users.Select()
	_, _, err := q.Populate("self", q, key).ToSQL()
	assert.Error(t, err)

	_, _, err = users.Select().Populate("", users.Select(), key).ToSQL()
	assert.Error(t, err)

	_, _, err = users.Select().Populate("x", nil, key).ToSQL()
	assert.Error(t, err)

}

func TestPopulateZeroKey(t *testing.T) {
	store := &mockStore{}
	m := rods.New(store)
	users := m.Model("users")
	groups := m.Model("groups")
	store.On("Rows", "SELECT users.* FROM users LIMIT 1", mock.Anything).
		Return([]rods.Fields{{"id": int64(1)}}, nil)

	_, err := users.First().
		Populate("groups", groups.Select(), func(*rods.Entity) rods.Key { return rods.Key{} }).
		Execute(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, `populate "groups"`)
	assert.ErrorContains(t, err, "filter returned no key")

	var se *rods.StorageError
	assert.False(t, errors.As(err, &se), "rejected before any statement")
	store.AssertNumberOfCalls(t, "Rows", 1)
}

func TestQuerySQL(t *testing.T) {
	m := rods.New(&mockStore{})
	users := m.Model("users")
	accounts := m.Model("accounts", rods.WithColumns("id", "email"))

	tests := []struct {
		name     string
		query    *rods.Query
		wantSQL  string
		wantArgs []any
	}{
		{
			name:    "select",
			query:   users.Select(),
			wantSQL: "SELECT users.* FROM users",
		},
		{
			name:    "first",
			query:   users.First(),
			wantSQL: "SELECT users.* FROM users LIMIT 1",
		},
		{
			name:     "filter",
			query:    users.Select().Filter(rods.Fields{"name": "bob", "id": []any{1, 2}}),
			wantSQL:  "SELECT users.* FROM users WHERE users.id IN (?,?) AND users.name = ?",
			wantArgs: []any{1, 2, "bob"},
		},
		{
			name:    "declared columns",
			query:   accounts.Select().OrderBy(clause.Desc("id")).Limit(10).Offset(5),
			wantSQL: "SELECT accounts.id, accounts.email FROM accounts ORDER BY id DESC LIMIT 10 OFFSET 5",
		},
		{
			name:    "left join",
			query:   users.Select().LeftJoin("user_groups", rods.On("id", "user_id")),
			wantSQL: "SELECT users.* FROM users LEFT JOIN user_groups ON users.id = user_groups.user_id",
		},
		{
			name:     "where",
			query:    users.First().Where(clause.Like{Column: users.Col("name"), Value: "b%"}),
			wantSQL:  "SELECT users.* FROM users WHERE users.name LIKE ? LIMIT 1",
			wantArgs: []any{"b%"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := tt.query.ToSQL()
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := rods.New(&mockStore{})
	q := m.Model("users").Select()

	state := q.Snapshot()
	q.Filter(rods.Fields{"name": "bob"}).Where(clause.Not{})
	_, _, err := q.ToSQL()
	require.Error(t, err)

	q.Restore(state)
	sql, _, err := q.ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT users.* FROM users", sql)
}

func TestExecPresentations(t *testing.T) {
	_, f := newFixture(t)
	ctx := context.Background()
	mustSave(t, f.users.New(rods.Fields{"name": "bob"}))
	mustSave(t, f.users.New(rods.Fields{"name": "steve"}))

	direct, err := f.users.Select().Execute(ctx)
	require.NoError(t, err)

	var viaCallback rods.Result
	f.users.Select().Exec().Then(ctx, func(r rods.Result, err error) {
		require.NoError(t, err)
		viaCallback = r
	})

	viaFuture, err := f.users.Select().Exec().Start(ctx).Wait(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, direct.Len())
	assert.Equal(t, direct.Len(), viaCallback.Len())
	assert.Equal(t, direct.Len(), viaFuture.Len())
	for i := range direct.All() {
		assert.Equal(t, direct.All()[i].ToPlainObject(), viaCallback.All()[i].ToPlainObject())
		assert.Equal(t, direct.All()[i].ToPlainObject(), viaFuture.All()[i].ToPlainObject())
	}
}

func TestFutureWaitHonorsContext(t *testing.T) {
	block := make(chan struct{})
	op := rods.Op[int](func(context.Context) (int, error) {
		<-block
		return 1, nil
	})
	fut := op.Start(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fut.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(block)
	<-fut.Done()
	v, err := fut.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFetchIDs(t *testing.T) {
	_, f := newFixture(t)
	ctx := context.Background()
	for _, n := range []string{"bob", "steve", "alice"} {
		mustSave(t, f.users.New(rods.Fields{"name": n}))
	}

	got, err := f.users.FetchIDs(1, 3).Await(ctx)
	require.NoError(t, err)
	names := []string{}
	for _, u := range got {
		names = append(names, u.GetString("name"))
	}
	assert.ElementsMatch(t, []string{"bob", "alice"}, names)

	none, err := f.users.FetchIDs().Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMapperWithoutStore(t *testing.T) {
	m := rods.New(nil)
	users := m.Model("users")
	ctx := context.Background()

	sql, args, err := users.Select().Filter(rods.Fields{"id": 1}).ToSQL()
	require.NoError(t, err)
	assert.Equal(t, "SELECT users.* FROM users WHERE users.id = ?", sql)
	assert.Equal(t, []any{1}, args)

	_, err = users.Select().Execute(ctx)
	assert.ErrorIs(t, err, rods.ErrNoStore)
	_, err = users.Select().Count(ctx)
	assert.ErrorIs(t, err, rods.ErrNoStore)
	_, err = users.New(rods.Fields{"name": "bob"}).Save(nil).Await(ctx)
	assert.ErrorIs(t, err, rods.ErrNoStore)
}
