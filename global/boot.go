package global

import (
	"context"

	"PPChat/data/database/mgo/mongoutil"
	"PPChat/logger"
	mid "PPChat/middleware"
	midsec "PPChat/middleware/security"
	mgoSrv "PPChat/service/mgo"
	"PPChat/service/storage"
	redisSrv "PPChat/service/storage/redis"
	jwtlib "PPChat/tools/security"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func ConfigLogger(c LogConfig) {
	logger.SetLevel(c.Level)
}

// ConfigRedis 未启用时返回 nil；首次 Ping 失败只告警，presence 会按调用重新探测
func ConfigRedis(c RedisConfig) redis.UniversalClient {
	if !c.Enabled {
		logger.Warn("redis disabled, presence runs in-process only")
		return nil
	}
	err := redisSrv.InitRedis(redisSrv.Config{
		URL:         c.URL,
		Addr:        c.Addr,
		Password:    c.Password,
		DB:          c.DB,
		TLS:         c.TLS,
		PoolSize:    c.PoolSize,
		DialTimeout: c.DialTimeout,
	})
	rdb, ok := redisSrv.TryGetRedis()
	if !ok {
		logger.Error("redis client not created, presence runs in-process only", zap.Error(err))
		return nil
	}
	if err != nil {
		logger.Warn("redis unreachable at startup, presence degraded until it recovers", zap.Error(err))
	} else {
		logger.Info("redis connected")
	}
	return rdb
}

func OnlineConfig(c RedisConfig) storage.OnlineConfig {
	return storage.OnlineConfig{Key: c.OnlineKey, ProbeTimeout: c.ProbeTimeout}
}

// ConfigMgo 后台连接 Mongo，ctx 取消后断开（等待 mgoSrv.Done()）
func ConfigMgo(ctx context.Context, c MongoConfig) {
	mgoSrv.StartAsync(ctx, &mongoutil.Config{
		Uri:         c.URI,
		Database:    c.Database,
		MaxPoolSize: c.MaxPoolSize,
		MaxRetry:    3,
		AppName:     "ppchat",
	})
}

func JWTOptions(c JWTConfig) jwtlib.Options {
	opts := jwtlib.DefaultOptions([]byte(c.Secret))
	if c.TTL > 0 {
		opts.TTL = c.TTL
	}
	return opts
}

// ConfigMiddleware 全局中间件与鉴权默认参数
func ConfigMiddleware(jwt jwtlib.Options) {
	midsec.Configure(jwt)
	mid.Manager().Clear()
	mid.Config(
		mid.RequestIDMiddleware(),
		gin.Recovery(),
		mid.AccessLog(),
	)
}
