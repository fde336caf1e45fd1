package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
)

// ErrNotAcquired 表示在等待预算内没有抢到锁，调用方可稍后重试。
var ErrNotAcquired = errors.New("lock not acquired within wait budget")

// 等待期间的轮询间隔。
const acquireRetryInterval = 50 * time.Millisecond

// luaReleaseIfMatch 仅当锁值与自己的 token 匹配时才删除，
// 避免误删他人的锁（自己的锁已过期、同名锁被其他进程重新抢到的场景）。
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// LockManager 基于 Redis 的跨进程互斥锁：
// - SET NX PX 抢占，value 为随机 token
// - hold 到期自动过期，持有者崩溃不会造成永久死锁
// - 等待超过 wait 预算即返回 ErrNotAcquired，不无限阻塞
type LockManager struct {
	rdb *rd.Client
}

func NewLockManager(rdb *rd.Client) *LockManager {
	return &LockManager{rdb: rdb}
}

// Lock 是一次成功获取的锁句柄。
type Lock struct {
	rdb   *rd.Client
	key   string
	token string
}

// Key 返回锁键名，用于日志。
func (l *Lock) Key() string { return l.key }

// TryAcquire 在 wait 预算内反复尝试抢锁。
// 成功返回句柄；预算耗尽返回 ErrNotAcquired；Redis 出错原样上抛。
func (m *LockManager) TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (*Lock, error) {
	token := uuid.New().String()
	deadline := time.Now().Add(wait)
	for {
		ok, err := m.rdb.SetNX(ctx, key, token, hold).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Lock{rdb: m.rdb, key: key, token: token}, nil
		}
		if time.Now().Add(acquireRetryInterval).After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}
}

// Release 释放锁。token 不匹配（锁已过期易主）时静默返回，不视为错误。
func (l *Lock) Release(ctx context.Context) error {
	return l.rdb.Eval(ctx, luaReleaseIfMatch, []string{l.key}, l.token).Err()
}
