package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/asset-registry/internal/clients/redis"
	"github.com/yungbote/asset-registry/internal/observability"
	"github.com/yungbote/asset-registry/internal/platform/logger"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
)

type Clients struct {
	Redis *goredis.Client
	Mutex resmutex.Mutex
}

// wireClients picks the redis mutex when REDIS_ADDR is set and the
// in-process one otherwise.
func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")
	opts := resmutex.Options{TTL: cfg.MutexTTL, Wait: cfg.MutexWait}

	var out Clients
	if cfg.RedisAddr != "" {
		rdb, err := redis.NewClient(log, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		m, err := redis.NewMutex(log, rdb, "", opts)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis mutex: %w", err)
		}
		out.Redis = rdb
		out.Mutex = m
	} else {
		log.Warn("REDIS_ADDR not set; using in-process mutex (single instance only)")
		out.Mutex = resmutex.NewLocal(opts)
	}
	if metrics != nil {
		out.Mutex = resmutex.Observed(out.Mutex, metrics.ObserveMutexWait)
	}
	return out, nil
}

func (c Clients) Close() {
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
