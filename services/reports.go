package services

import (
	"context"
	"time"

	"Gin_postgres_redis_equipment_tool/cache"
	"Gin_postgres_redis_equipment_tool/clock"
	"Gin_postgres_redis_equipment_tool/models"
)

// Reports serves the read-only dashboard and usage views.
type Reports struct {
	store Store
	cache Cache
	clock clock.Clock
	ttl   time.Duration
}

func NewReports(store Store, c Cache, clk clock.Clock, ttl time.Duration) *Reports {
	if ttl <= 0 {
		ttl = defaultViewTTL
	}
	return &Reports{store: store, cache: c, clock: clk, ttl: ttl}
}

func (r *Reports) DashboardStats(ctx context.Context) (models.DashboardStats, error) {
	var stats models.DashboardStats
	if r.cache.Get(ctx, cache.KeyDashboardStats, &stats) {
		return stats, nil
	}
	stats, err := r.store.DashboardStats(ctx, r.clock.Now())
	if err != nil {
		return models.DashboardStats{}, err
	}
	r.cache.Set(ctx, cache.KeyDashboardStats, stats, r.ttl)
	return stats, nil
}

// Usage lists units with how many times each was lent out.
func (r *Reports) Usage(ctx context.Context) ([]models.UsageRow, error) {
	rows := []models.UsageRow{}
	if r.cache.Get(ctx, cache.KeyUsageReport, &rows) {
		return rows, nil
	}
	found, err := r.store.UsageReport(ctx)
	if err != nil {
		return nil, err
	}
	rows = append(rows, found...)
	r.cache.Set(ctx, cache.KeyUsageReport, rows, r.ttl)
	return rows, nil
}
