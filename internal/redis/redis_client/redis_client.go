package redis_client

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Options struct {
	Host     string
	Port     uint16
	Password string
	DB       int
}

// NewRedisClient returns a pinged client. Presence writes are sequential, so
// the pool stays small.
func NewRedisClient(ctx context.Context, o Options) (*redis.Client, error) {
	rc := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(o.Host, strconv.Itoa(int(o.Port))),
		Password: o.Password,
		DB:       o.DB,
		PoolSize: 4,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx).Err(); err != nil {
		_ = rc.Close()
		err = fmt.Errorf("redis connection failed: %w", err)
		zap.L().Error("redis_connect", zap.Error(err))
		return nil, err
	}
	return rc, nil
}
