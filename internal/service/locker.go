package service

import (
	"context"
	"time"

	redislock "shopping_mall/pkg/redis"
)

// Locker 抽象分布式互斥锁服务：同一 key 任一时刻全局至多一个持有者，
// 等待与持有时间都有界。拿不到锁返回 redislock.ErrNotAcquired。
type Locker interface {
	TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (LockHandle, error)
}

// LockHandle 是一次成功获取的锁句柄，所有路径都必须 Release。
type LockHandle interface {
	Release(ctx context.Context) error
}

type redisLocker struct {
	m *redislock.LockManager
}

// NewRedisLocker 把 pkg/redis 的锁管理器适配成 Locker。
func NewRedisLocker(m *redislock.LockManager) Locker {
	return redisLocker{m: m}
}

func (r redisLocker) TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (LockHandle, error) {
	lock, err := r.m.TryAcquire(ctx, key, wait, hold)
	if err != nil {
		return nil, err
	}
	return lock, nil
}
