package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Check pings both stores. A nil store is skipped.
func Check(ctx context.Context, pool *pgxpool.Pool, rdb *redis.Client) map[string]string {
	status := map[string]string{}
	if pool != nil {
		status["postgres"] = result(pool.Ping(ctx))
	}
	if rdb != nil {
		status["redis"] = result(rdb.Ping(ctx).Err())
	}
	return status
}

func result(err error) string {
	if err != nil {
		return fmt.Sprintf("down: %v", err)
	}
	return "up"
}
