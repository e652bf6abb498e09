package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"captive-portal/internal/domain"
	"captive-portal/internal/domain/model"
	"captive-portal/internal/domain/ports/repository"
	"captive-portal/internal/infra/metrics"
	red "captive-portal/internal/infra/redis"
)

var _ repository.ExclusionRepository = (*exclusionRepoCacheDecorator)(nil)

// absentMarker is cached for identifiers with no exclusion so the access check
// hot path does not hit Postgres for every unexcluded client.
const absentMarker = "-"

type exclusionRepoCacheDecorator struct {
	inner repository.ExclusionRepository
	cache red.RedisClient
	ttl   time.Duration
	log   zerolog.Logger
}

func NewExclusionRepoCacheDecorator(inner repository.ExclusionRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.ExclusionRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &exclusionRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   logger.With().Str("component", "ExclusionCache").Logger(),
	}
}

func exclusionKey(typ model.IdentifierType, value string) string {
	return fmt.Sprintf("exclusion:%s:%s", typ, value)
}

// FindByValue is read-through. Lookups inside a transaction bypass the cache.
// Misses fill the key with SETNX so a fill carrying a pre-write read never
// replaces the state a concurrent Save or Delete wrote.
func (d *exclusionRepoCacheDecorator) FindByValue(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string) (*model.Exclusion, error) {
	if tx != nil {
		return d.inner.FindByValue(ctx, tx, typ, value)
	}
	key := exclusionKey(typ, value)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		if val == absentMarker {
			metrics.IncCacheRequest("exclusion", "hit")
			return nil, domain.ErrNotFound
		}
		var e model.Exclusion
		if json.Unmarshal([]byte(val), &e) == nil {
			metrics.IncCacheRequest("exclusion", "hit")
			return &e, nil
		}
	case !errors.Is(err, redis.Nil):
		metrics.IncCacheRequest("exclusion", "error")
		d.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}

	metrics.IncCacheRequest("exclusion", "miss")
	e, err := d.inner.FindByValue(ctx, tx, typ, value)
	if errors.Is(err, domain.ErrNotFound) {
		d.fill(ctx, key, absentMarker)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if b, merr := json.Marshal(e); merr == nil {
		d.fill(ctx, key, b)
	}
	return e, nil
}

func (d *exclusionRepoCacheDecorator) fill(ctx context.Context, key string, v interface{}) {
	if _, err := d.cache.SetNX(ctx, key, v, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// publish overwrites the key with committed state. Writes inside a caller's
// transaction may still roll back, so those only drop the key.
func (d *exclusionRepoCacheDecorator) publish(ctx context.Context, tx repository.Tx, typ model.IdentifierType, value string, v interface{}) {
	key := exclusionKey(typ, value)
	if tx != nil || v == nil {
		d.drop(ctx, key)
		return
	}
	if err := d.cache.Set(ctx, key, v, d.ttl); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		d.drop(ctx, key)
	}
}

func (d *exclusionRepoCacheDecorator) drop(ctx context.Context, key string) {
	if err := d.cache.Del(ctx, key); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("cache invalidation failed")
	}
}

func (d *exclusionRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, e *model.Exclusion) error {
	if err := d.inner.Save(ctx, tx, e); err != nil {
		return err
	}
	var v interface{}
	if b, err := json.Marshal(e); err == nil {
		v = b
	}
	d.publish(ctx, tx, e.Type, e.Value, v)
	return nil
}

func (d *exclusionRepoCacheDecorator) List(ctx context.Context, tx repository.Tx) ([]*model.Exclusion, error) {
	return d.inner.List(ctx, tx)
}

func (d *exclusionRepoCacheDecorator) Delete(ctx context.Context, tx repository.Tx, id int64) (*model.Exclusion, error) {
	e, err := d.inner.Delete(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.publish(ctx, tx, e.Type, e.Value, absentMarker)
	return e, nil
}
