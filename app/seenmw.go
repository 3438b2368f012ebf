package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type SeenToucher interface {
	TouchUserSeen(ctx context.Context, userID string) error
}

// TouchLastSeen records user activity at most once per throttle window,
// using a Redis SETNX key as the gate.
func TouchLastSeen(repo SeenToucher, rdb *redis.Client, throttle time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(CtxUserID)
		if uid == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := "user:lastseen:" + uid
		if ok, _ := rdb.SetNX(ctx, key, "1", throttle).Result(); ok {
			_ = repo.TouchUserSeen(ctx, uid) // best effort
		}
		c.Next()
	}
}
