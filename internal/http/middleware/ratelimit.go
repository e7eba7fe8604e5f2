package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"battle_rooms/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

var (
	limiterMu  sync.RWMutex
	limiterRdb *redis.Client
)

// InitRedisRateLimiter подключает лимитер к Redis. Пустой addr - лимитер выключен.
func InitRedisRateLimiter(addr, password string, db int) error {
	if addr == "" {
		SetRateLimitClient(nil)
		return nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis rate limiter at %s: %w", addr, err)
	}
	SetRateLimitClient(rdb)
	return nil
}

// SetRateLimitClient использует уже открытый клиент Redis
func SetRateLimitClient(rdb *redis.Client) {
	limiterMu.Lock()
	limiterRdb = rdb
	limiterMu.Unlock()
}

func rateLimitClient() *redis.Client {
	limiterMu.RLock()
	defer limiterMu.RUnlock()
	return limiterRdb
}

// RateLimit - фиксированное окно на пользователя (или IP до авторизации).
// Без Redis и при его ошибках запросы пропускаются.
func RateLimit(prefix string, limit int64, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		rdb := rateLimitClient()
		if rdb == nil {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if userID, ok := UserID(c); ok {
			subject = fmt.Sprintf("u%d", userID)
		}
		key := fmt.Sprintf("ratelimit:%s:%s", prefix, subject)

		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()
		count, err := rdb.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rdb.Expire(ctx, key, window)
		}
		if count > limit {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": "too many requests"})
			return
		}
		c.Next()
	}
}
