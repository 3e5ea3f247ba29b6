package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*OnlineStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1, DialTimeout: 200 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewOnlineStore(rdb, OnlineConfig{ProbeTimeout: 200 * time.Millisecond}), mr
}

func TestOnlineStoreRemote(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	res := s.Add(ctx, "alice")
	assert.Equal(t, StatusOK, res.Status)
	assert.EqualValues(t, 1, res.Sessions)
	s.Add(ctx, "bob")

	assert.Equal(t, []string{"alice", "bob"}, s.Members(ctx))
	ok, err := mr.SIsMember(DefaultOnlineKey, "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	res = s.Remove(ctx, "alice")
	assert.Equal(t, StatusOK, res.Status)
	assert.EqualValues(t, 0, res.Sessions)
	assert.Equal(t, []string{"bob"}, s.Members(ctx))
	assert.Equal(t, "", mr.HGet(DefaultOnlineKey+":sessions", "alice"))
}

func TestOnlineStoreRefCount(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	s.Add(ctx, "alice")
	res := s.Add(ctx, "alice")
	assert.EqualValues(t, 2, res.Sessions)

	res = s.Remove(ctx, "alice")
	assert.EqualValues(t, 1, res.Sessions)
	assert.Equal(t, []string{"alice"}, s.Members(ctx))

	res = s.Remove(ctx, "alice")
	assert.EqualValues(t, 0, res.Sessions)
	assert.Empty(t, s.Members(ctx))
}

func TestOnlineStoreRemoveUnknownIsIdempotent(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	res := s.Remove(ctx, "ghost")
	assert.Equal(t, StatusOK, res.Status)
	assert.EqualValues(t, 0, res.Sessions)
	assert.Equal(t, "", mr.HGet(DefaultOnlineKey+":sessions", "ghost"))
	assert.Empty(t, s.Members(ctx))
}

// connect/disconnect sequences leave the user present iff the last transition was a connect
func TestOnlineStoreSequences(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	seq := []bool{true, false, true, false, true}
	for _, connect := range seq {
		if connect {
			s.Add(ctx, "u")
		} else {
			s.Remove(ctx, "u")
		}
	}
	assert.Equal(t, []string{"u"}, s.Members(ctx))
	s.Remove(ctx, "u")
	assert.Empty(t, s.Members(ctx))
}

func TestOnlineStoreDegradedAndRecovery(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	s.Add(ctx, "remote-user")

	mr.Close()
	res := s.Add(ctx, "local-user")
	assert.Equal(t, StatusDegraded, res.Status)
	assert.EqualValues(t, 1, res.Sessions)
	// members reflect the local set only while redis is down
	assert.Equal(t, []string{"local-user"}, s.Members(ctx))

	require.NoError(t, mr.Restart())
	assert.Equal(t, []string{"remote-user"}, s.Members(ctx))

	res = s.Add(ctx, "after")
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, []string{"after", "remote-user"}, s.Members(ctx))
}

func TestOnlineStoreReleaseFollowsAddBackend(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	mr.Close()
	added := s.Add(ctx, "u")
	require.Equal(t, StatusDegraded, added.Status)
	require.NoError(t, mr.Restart())

	// 其他进程在 Redis 中持有 u 的一个会话
	s.Add(ctx, "u")

	res := s.Release(ctx, "u", added.Status)
	assert.Equal(t, StatusDegraded, res.Status)
	assert.EqualValues(t, 0, res.Sessions)
	assert.Equal(t, []string{"u"}, s.Members(ctx))
	assert.Equal(t, "1", mr.HGet(DefaultOnlineKey+":sessions", "u"))

	res = s.Release(ctx, "u", StatusOK)
	assert.Equal(t, StatusOK, res.Status)
	assert.EqualValues(t, 0, res.Sessions)
	assert.Empty(t, s.Members(ctx))
}

func TestOnlineStoreWithoutRedis(t *testing.T) {
	s := NewOnlineStore(nil, OnlineConfig{})
	ctx := context.Background()

	res := s.Add(ctx, "a")
	assert.Equal(t, StatusDegraded, res.Status)
	s.Add(ctx, "b")
	s.Add(ctx, "a")
	assert.Equal(t, []string{"a", "b"}, s.Members(ctx))

	assert.EqualValues(t, 1, s.Remove(ctx, "a").Sessions)
	assert.EqualValues(t, 0, s.Remove(ctx, "b").Sessions)
	assert.EqualValues(t, 0, s.Remove(ctx, "nobody").Sessions)
	assert.Equal(t, []string{"a"}, s.Members(ctx))
}

func TestOnlineStoreConcurrent(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(ctx, "u")
			s.Remove(ctx, "u")
		}()
	}
	wg.Wait()
	assert.Empty(t, s.Members(ctx))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ok", StatusOK.String())
	assert.Equal(t, "degraded", StatusDegraded.String())
}
