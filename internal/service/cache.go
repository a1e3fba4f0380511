package service

import (
	"context"
	"time"
)

// viewCache is the caching surface used by read-heavy services. The concrete
// implementation is repository.CacheRepository backed by Redis.
type viewCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}
