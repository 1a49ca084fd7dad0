package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"formbuilder/internal/errcode"
)

// RateCounter 是限流所需的 Redis 子集，便于测试替换。
type RateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

func incrWithTTL(ctx context.Context, client RateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}

// RateLimitMiddleware 按客户端 IP 在固定窗口内计数，超过 limit 返回 429。
// Redis 不可用时放行请求，只记录日志。
func RateLimitMiddleware(client RateCounter, prefix string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}

		bucket := time.Now().Unix() / int64(window.Seconds())
		key := fmt.Sprintf("%sratelimit:%s:%d", prefix, c.ClientIP(), bucket)
		count, err := incrWithTTL(c.Request.Context(), client, key, window)
		if err != nil {
			LoggerFromContext(c).Warn("rate limit check failed", slog.Any("error", err))
			c.Next()
			return
		}
		if count > int64(limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests",
				"code":  errcode.RateLimited,
			})
			return
		}
		c.Next()
	}
}
