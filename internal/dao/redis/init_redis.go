package redis

import (
	"context"
	"strconv"
	"time"

	"agrilink_server/internal/config"

	"github.com/redis/go-redis/v9"
)

// Open 根据配置创建 Redis 客户端并验证连接
func Open(cfg config.RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.Db,
		PoolSize:     50,
		MinIdleConns: cfg.Workers,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisCache(client, cfg.Workers, cfg.Buffer), nil
}
