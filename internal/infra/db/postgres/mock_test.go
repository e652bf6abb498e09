//go:build !integration

package postgres

import (
	"context"
	"time"

	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
	red "captive-portal/internal/infra/redis"
)

// mockInnerExclusionRepo mocks the database repository that the exclusion decorator wraps.
type mockInnerExclusionRepo struct {
	SaveFunc        func(ctx context.Context, tx repository.Tx, e *model.Exclusion) error
	FindByValueFunc func(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string) (*model.Exclusion, error)
	ListFunc        func(ctx context.Context, tx repository.Tx) ([]*model.Exclusion, error)
	DeleteFunc      func(ctx context.Context, tx repository.Tx, id int64) (*model.Exclusion, error)

	findCalls int
}

func (m *mockInnerExclusionRepo) Save(ctx context.Context, tx repository.Tx, e *model.Exclusion) error {
	return m.SaveFunc(ctx, tx, e)
}
func (m *mockInnerExclusionRepo) FindByValue(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string) (*model.Exclusion, error) {
	m.findCalls++
	return m.FindByValueFunc(ctx, tx, typ, value)
}
func (m *mockInnerExclusionRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Exclusion, error) {
	return m.ListFunc(ctx, tx)
}
func (m *mockInnerExclusionRepo) Delete(ctx context.Context, tx repository.Tx, id int64) (*model.Exclusion, error) {
	return m.DeleteFunc(ctx, tx, id)
}

// mockRedisClient is an in-memory stand-in for the Redis wrapper. Func hooks override.
type mockRedisClient struct {
	data map[string]string

	GetFunc func(ctx context.Context, key string) (string, error)
	SetFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc func(ctx context.Context, keys ...string) error
}

var _ red.RedisClient = &mockRedisClient{}

func newMockRedis() *mockRedisClient { return &mockRedisClient{data: map[string]string{}} }

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	v, ok := m.data[key]
	if !ok {
		return "", red.Nil
	}
	return v, nil
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	switch v := value.(type) {
	case []byte:
		m.data[key] = string(v)
	case string:
		m.data[key] = v
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}
func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	return true, m.Set(ctx, key, value, expiration)
}
func (m *mockRedisClient) Ping(ctx context.Context) error                      { return nil }
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) { return 0, nil }
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (m *mockRedisClient) Close() error { return nil }
