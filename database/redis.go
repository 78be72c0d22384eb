package database

import (
	"context"
	"fmt"
	"log"

	config "github.com/otieno254/affiliate_program/configs"
	"github.com/redis/go-redis/v9"
)

// Redis is optional: handlers that cache aggregates check for nil and fall
// back to querying Postgres directly.
var Redis *redis.Client

const DashboardCacheKey = "affiliate:dashboard_analytics"

func ConnectRedis() {
	host := config.Config("REDIS_HOST")
	if host == "" {
		log.Println("⚠️ REDIS_HOST not set, dashboard caching disabled")
		return
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", host, config.ConfigOr("REDIS_PORT", "6379")),
		Password: config.Config("REDIS_PASSWORD"),
		DB:       0,
	})

	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("⚠️ Failed to connect to Redis, dashboard caching disabled: %v", err)
		return
	}

	Redis = rdb
	log.Println("✅ Redis connected successfully")
}

// InvalidateDashboardCache drops the cached admin aggregates. Called after
// every ledger mutation so the dashboard never serves stale sums.
func InvalidateDashboardCache(ctx context.Context) {
	if Redis == nil {
		return
	}
	_ = Redis.Del(ctx, DashboardCacheKey).Err()
}
