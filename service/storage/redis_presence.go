package storage

import (
	"context"
	"sort"

	"github.com/redis/go-redis/v9"
)

// ===== Lua 脚本 =====

// 会话计数 +1，并确保在在线集合中
// KEYS[1] = online set key   (onlineUsers)
// KEYS[2] = session hash key (onlineUsers:sessions)
// ARGV[1] = userId
// 返回：该用户当前会话数
const luaPresenceAdd = `
local n = redis.call("HINCRBY", KEYS[2], ARGV[1], 1)
redis.call("SADD", KEYS[1], ARGV[1])
return n
`

// 会话计数 -1，归零时移出在线集合（幂等：不存在的用户也归零处理）
// KEYS/ARGV 同上
// 返回：剩余会话数
const luaPresenceRemove = `
local n = redis.call("HINCRBY", KEYS[2], ARGV[1], -1)
if n <= 0 then
  redis.call("HDEL", KEYS[2], ARGV[1])
  redis.call("SREM", KEYS[1], ARGV[1])
  return 0
end
return n
`

var (
	presenceAddScript    = redis.NewScript(luaPresenceAdd)
	presenceRemoveScript = redis.NewScript(luaPresenceRemove)
)

// redisSet 跨进程共享的在线集合
type redisSet struct {
	rdb    redis.UniversalClient
	setKey string
	refKey string
}

func newRedisSet(rdb redis.UniversalClient, setKey string) *redisSet {
	return &redisSet{rdb: rdb, setKey: setKey, refKey: setKey + ":sessions"}
}

func (r *redisSet) ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *redisSet) add(ctx context.Context, userID string) (int64, error) {
	return presenceAddScript.Run(ctx, r.rdb, []string{r.setKey, r.refKey}, userID).Int64()
}

func (r *redisSet) remove(ctx context.Context, userID string) (int64, error) {
	return presenceRemoveScript.Run(ctx, r.rdb, []string{r.setKey, r.refKey}, userID).Int64()
}

func (r *redisSet) members(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, r.setKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
