package redis

import (
	"context"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/asset-registry/internal/platform/logger"
	"github.com/yungbote/asset-registry/internal/platform/resmutex"
)

// unlockScript deletes the key only if it still carries our token, so a
// lease that outlived its TTL cannot release someone else's hold.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type mutex struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
	opts   resmutex.Options
}

// NewMutex returns a resmutex.Mutex backed by SET NX PX.
func NewMutex(log *logger.Logger, rdb goredis.UniversalClient, prefix string, opts resmutex.Options) (resmutex.Mutex, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "registry:mutex:"
	}
	return &mutex{
		log:    log.With("service", "RedisMutex"),
		rdb:    rdb,
		prefix: prefix,
		opts:   resmutex.Normalize(opts),
	}, nil
}

func (m *mutex) Acquire(ctx context.Context, resourceID, purpose string) (*resmutex.Lease, error) {
	key := m.prefix + resourceID
	token := resmutex.NewToken(purpose)
	err := resmutex.Retry(ctx, m.opts, func(ctx context.Context) (bool, error) {
		return m.rdb.SetNX(ctx, key, token, m.opts.TTL).Result()
	})
	if err != nil {
		m.log.Warn("mutex acquire failed", "resource_id", resourceID, "purpose", purpose, "error", err)
		return nil, err
	}
	return resmutex.NewLease(resourceID, purpose, token, func(ctx context.Context) error {
		n, err := unlockScript.Run(ctx, m.rdb, []string{key}, token).Int()
		if err != nil {
			m.log.Warn("mutex release failed", "resource_id", resourceID, "purpose", purpose, "error", err)
			return err
		}
		if n == 0 {
			m.log.Warn("mutex lease expired before release", "resource_id", resourceID, "purpose", purpose)
		}
		return nil
	}), nil
}
