package di

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	mdadapters "futures_dashboard/internal/feature/marketdata/adapters"
	"futures_dashboard/internal/platform/cache"
	"futures_dashboard/internal/platform/registry"
)

// NewSampleStore creates the price history store.
// If Redis is available, reads are cached in Redis. Otherwise, it queries Postgres directly.
func NewSampleStore(rdb *redis.Client, db *gorm.DB, ttl time.Duration) cache.SampleStore {
	repo := mdadapters.NewSampleRepository(db)
	if rdb != nil {
		return cache.NewCachingSampleRepository(rdb, ttl, repo, "series")
	}
	return repo
}

// NewRegistry loads the market registry from file, or the bundled Sepolia registry when file is empty.
func NewRegistry(file string) (*registry.Registry, error) {
	if file == "" {
		return registry.Default()
	}
	return registry.Load(file)
}
