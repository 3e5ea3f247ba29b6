package redis

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"PPChat/tools/errs"

	"github.com/redis/go-redis/v9"
)

var (
	redisMu  sync.RWMutex
	redisMgr *RedisManager
)

type RedisManager struct {
	client *redis.Client
}

// Config 用于初始化 Redis
type Config struct {
	URL         string // redis:// / rediss://，非空时优先
	Addr        string
	Password    string
	DB          int
	TLS         bool
	PoolSize    int
	DialTimeout time.Duration
}

// NewClient 只构造客户端，不做连通性检查
func NewClient(c Config) (*redis.Client, error) {
	var opts *redis.Options
	if c.URL != "" {
		o, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, errs.ErrArgs.WrapMsg("bad redis url", "err", err.Error())
		}
		opts = o
	} else {
		if c.Addr == "" {
			return nil, errs.ErrArgs.WrapMsg("redis addr or url is required")
		}
		opts = &redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
		}
	}
	if c.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	if c.PoolSize > 0 {
		opts.PoolSize = c.PoolSize
	}
	if c.DialTimeout > 0 {
		opts.DialTimeout = c.DialTimeout
	}
	// 关闭驱动内重试，失败直接交给 presence 降级
	opts.MaxRetries = -1
	return redis.NewClient(opts), nil
}

// InitRedis 初始化 Redis 管理器。
// 即使首次 Ping 失败也保留客户端：presence 会在每次调用前重新探测，Redis 恢复后自动切回。
func InitRedis(c Config) error {
	rdb, err := NewClient(c)
	if err != nil {
		return err
	}

	redisMu.Lock()
	old := redisMgr
	redisMgr = &RedisManager{client: rdb}
	redisMu.Unlock()
	if old != nil {
		_ = old.client.Close()
	}

	timeout := c.DialTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return errs.ErrStoreUnavailable.WrapMsg("redis ping failed", "err", err.Error())
	}
	return nil
}

// TryGetRedis 获取 Redis Client；未初始化时返回 false
func TryGetRedis() (*redis.Client, bool) {
	redisMu.RLock()
	defer redisMu.RUnlock()
	if redisMgr == nil || redisMgr.client == nil {
		return nil, false
	}
	return redisMgr.client, true
}

// Ping 健康检查用
func Ping(ctx context.Context) error {
	rdb, ok := TryGetRedis()
	if !ok {
		return errs.ErrStoreUnavailable.WrapMsg("redis not configured")
	}
	return rdb.Ping(ctx).Err()
}

// CloseRedis 关闭连接
func CloseRedis() error {
	redisMu.Lock()
	defer redisMu.Unlock()
	if redisMgr != nil && redisMgr.client != nil {
		err := redisMgr.client.Close()
		redisMgr = nil
		return err
	}
	return nil
}
