package rods_test

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/arllen133/rods"
	"github.com/stretchr/testify/mock"
)

// mockStore is a rods.Store driven by testify expectations.
type mockStore struct {
	mock.Mock
}

var _ rods.Store = (*mockStore)(nil)

func (m *mockStore) Dialect() rods.Dialect { return rods.SQLite }

func (m *mockStore) Rows(ctx context.Context, table string, stmt sq.Sqlizer) ([]rods.Fields, error) {
	query, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}
	ret := m.Called(query, args)
	rows, _ := ret.Get(0).([]rods.Fields)
	return rows, ret.Error(1)
}

func (m *mockStore) Insert(ctx context.Context, table string, payload rods.Fields, idField string) (any, error) {
	ret := m.Called(table, payload, idField)
	return ret.Get(0), ret.Error(1)
}

func (m *mockStore) Update(ctx context.Context, table string, filter, payload rods.Fields) (int64, error) {
	ret := m.Called(table, filter, payload)
	n, _ := ret.Get(0).(int64)
	return n, ret.Error(1)
}
