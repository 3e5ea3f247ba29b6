package mgo

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	mgo "PPChat/data/database/mgo/mongoutil"
	"PPChat/logger"
	"PPChat/tools/errs"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type MongoManager struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once
	done      chan struct{} // 后台协程退出

	lastErr atomic.Value // error
}

var globalMgr = MongoManager{readyCh: make(chan struct{}), done: make(chan struct{})}

// StartAsync: 一直运行到 ctx.Done()；首次连上时 close readyCh，后续掉线会自动重连
func StartAsync(ctx context.Context, cfg *mgo.Config) {
	log := logger.Named("mongo")

	go func() {
		defer close(globalMgr.done)

		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second // 健康检查周期
			failThresh  = 3                // 连续失败阈值
		)

		for {
			// ===== 连接阶段（带退避重试） =====
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := mgo.NewMongoDB(ctx, cfg)
				if err == nil {
					globalMgr.mu.Lock()
					globalMgr.client = cli
					globalMgr.mu.Unlock()

					log.Info("mongo connected", zap.String("database", cfg.Database))
					globalMgr.readyOnce.Do(func() { close(globalMgr.readyCh) })
					break
				}

				globalMgr.lastErr.Store(err)
				log.Warn("mongo connect failed, retrying", zap.Int("attempt", attempt), zap.Error(err))

				// 退避 + 抖动
				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff / 5))) // 0~20%
				sleep := backoff - jitter/2

				timer := time.NewTimer(sleep)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// ===== 健康检查阶段（保持/掉线→重连）=====
			fail := 0
			healthTicker := time.NewTicker(healthEvery)
			stop := func() bool {
				defer healthTicker.Stop()
				for {
					select {
					case <-ctx.Done():
						disconnect()
						return true
					case <-healthTicker.C:
						globalMgr.mu.RLock()
						c := globalMgr.client
						globalMgr.mu.RUnlock()
						if c == nil {
							return false
						}
						pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
						err := c.GetDB().Client().Ping(pctx, nil)
						cancel()
						if err != nil {
							fail++
							globalMgr.lastErr.Store(err)
							log.Warn("mongo health check failed", zap.Int("fail", fail), zap.Error(err))
							if fail >= failThresh {
								disconnect()
								return false
							}
						} else {
							fail = 0
						}
					}
				}
			}()
			if stop {
				return
			}
		}
	}()
}

func disconnect() {
	globalMgr.mu.Lock()
	defer globalMgr.mu.Unlock()
	if globalMgr.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = globalMgr.client.Disconnect(ctx)
		globalMgr.client = nil
	}
}

// Ready: 首次连接成功时会 close；可 select 等待
func Ready() <-chan struct{} {
	return globalMgr.readyCh
}

// Done: StartAsync 的后台协程退出后 close
func Done() <-chan struct{} {
	return globalMgr.done
}

// Err: 最近一次错误
func Err() error {
	if v := globalMgr.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func TryGetDB() (*mongo.Database, bool) {
	globalMgr.mu.RLock()
	defer globalMgr.mu.RUnlock()
	if globalMgr.client == nil {
		return nil, false
	}
	return globalMgr.client.GetDB(), true
}

// WaitReady 已就绪则立刻返回，否则等待首次连接或 ctx 结束
func WaitReady(ctx context.Context) error {
	if _, ok := TryGetDB(); ok {
		return nil
	}
	select {
	case <-globalMgr.readyCh:
		return nil
	case <-ctx.Done():
		if last := Err(); last != nil {
			return errs.ErrStoreUnavailable.WrapMsg("mongo not ready", "last", last.Error())
		}
		return errs.ErrStoreUnavailable.WrapMsg("mongo not ready", "err", ctx.Err().Error())
	}
}

// Ping 健康检查用
func Ping(ctx context.Context) error {
	db, ok := TryGetDB()
	if !ok {
		return errs.ErrStoreUnavailable.WrapMsg("mongo not connected")
	}
	return db.Client().Ping(ctx, nil)
}
