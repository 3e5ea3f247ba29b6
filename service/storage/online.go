package storage

import (
	"context"
	"time"

	"PPChat/logger"
	"PPChat/service/metrics"
	"PPChat/tools/errs"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ===== 配置 =====

const (
	DefaultOnlineKey    = "onlineUsers"
	defaultProbeTimeout = 500 * time.Millisecond
)

type OnlineConfig struct {
	Key          string        // 在线集合 key（会话计数 hash 为 Key+":sessions"）
	ProbeTimeout time.Duration // 每次操作前 PING 的超时
}

func (c *OnlineConfig) norm() {
	if c.Key == "" {
		c.Key = DefaultOnlineKey
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
}

var errNotConfigured = errs.ErrStoreUnavailable.WithDetail("redis not configured")

// Status 标记本次调用由哪个后端完成
type Status int

const (
	StatusOK       Status = iota // 共享 Redis
	StatusDegraded               // 进程内兜底
)

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	return "degraded"
}

// Result 在线集合变更结果。Sessions 为该用户在所用后端中的剩余/当前会话数。
type Result struct {
	Status   Status
	Sessions int64
}

// PresenceStore 在线集合。实现不向调用方返回错误，失败时降级到进程内集合。
type PresenceStore interface {
	Add(ctx context.Context, userID string) Result
	Remove(ctx context.Context, userID string) Result
	// Release 撤销一次 Add；via 为那次 Add 的 Status。
	// 降级时写入的计数只在进程内撤销，不去扣减 Redis 里其他进程的会话计数。
	Release(ctx context.Context, userID string, via Status) Result
	Members(ctx context.Context) []string
}

// OnlineStore Redis 优先、进程内兜底的 PresenceStore。
// 每次调用都会重新探测 Redis，不缓存模式，Redis 恢复后自动切回。
// 两个后端的数据互不合并。
type OnlineStore struct {
	remote *redisSet // nil 表示未配置 Redis
	local  *memorySet
	conf   OnlineConfig
	log    *zap.Logger
}

// NewOnlineStore rdb 可以为 nil（始终使用进程内集合）
func NewOnlineStore(rdb redis.UniversalClient, conf OnlineConfig) *OnlineStore {
	conf.norm()
	s := &OnlineStore{
		local: newMemorySet(),
		conf:  conf,
		log:   logger.Named("presence"),
	}
	if rdb != nil {
		s.remote = newRedisSet(rdb, conf.Key)
	}
	return s
}

// probe 有界 PING；返回 nil 表示本次调用可以走 Redis
func (s *OnlineStore) probe(ctx context.Context, op string) error {
	if s.remote == nil {
		metrics.PresenceFallbacks.WithLabelValues(op, "not_configured").Inc()
		return errNotConfigured
	}
	pctx, cancel := context.WithTimeout(ctx, s.conf.ProbeTimeout)
	defer cancel()
	if err := s.remote.ping(pctx); err != nil {
		metrics.PresenceFallbacks.WithLabelValues(op, "unreachable").Inc()
		s.log.Warn("redis unreachable, using in-memory presence", zap.String("op", op), zap.Error(err))
		return err
	}
	return nil
}

func (s *OnlineStore) Add(ctx context.Context, userID string) Result {
	if s.probe(ctx, "add") == nil {
		n, err := s.remote.add(ctx, userID)
		if err == nil {
			metrics.PresenceOps.WithLabelValues("add", metrics.BackendRemote).Inc()
			return Result{Status: StatusOK, Sessions: n}
		}
		metrics.PresenceFallbacks.WithLabelValues("add", "command_failed").Inc()
		s.log.Warn("redis add failed, using in-memory presence", zap.String("user", userID), zap.Error(err))
	}
	metrics.PresenceOps.WithLabelValues("add", metrics.BackendLocal).Inc()
	return Result{Status: StatusDegraded, Sessions: s.local.add(userID)}
}

func (s *OnlineStore) Remove(ctx context.Context, userID string) Result {
	if s.probe(ctx, "remove") == nil {
		n, err := s.remote.remove(ctx, userID)
		if err == nil {
			metrics.PresenceOps.WithLabelValues("remove", metrics.BackendRemote).Inc()
			return Result{Status: StatusOK, Sessions: n}
		}
		metrics.PresenceFallbacks.WithLabelValues("remove", "command_failed").Inc()
		s.log.Warn("redis remove failed, using in-memory presence", zap.String("user", userID), zap.Error(err))
	}
	metrics.PresenceOps.WithLabelValues("remove", metrics.BackendLocal).Inc()
	return Result{Status: StatusDegraded, Sessions: s.local.remove(userID)}
}

func (s *OnlineStore) Release(ctx context.Context, userID string, via Status) Result {
	if via == StatusDegraded {
		metrics.PresenceOps.WithLabelValues("remove", metrics.BackendLocal).Inc()
		return Result{Status: StatusDegraded, Sessions: s.local.remove(userID)}
	}
	return s.Remove(ctx, userID)
}

func (s *OnlineStore) Members(ctx context.Context) []string {
	if s.probe(ctx, "members") == nil {
		ids, err := s.remote.members(ctx)
		if err == nil {
			metrics.PresenceOps.WithLabelValues("members", metrics.BackendRemote).Inc()
			return ids
		}
		metrics.PresenceFallbacks.WithLabelValues("members", "command_failed").Inc()
		s.log.Warn("redis members failed, using in-memory presence", zap.Error(err))
	}
	metrics.PresenceOps.WithLabelValues("members", metrics.BackendLocal).Inc()
	return s.local.members()
}
