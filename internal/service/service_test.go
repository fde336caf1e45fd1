package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopping_mall/internal/model"
	"shopping_mall/internal/queue"
	redislock "shopping_mall/pkg/redis"
)

// memLocker 进程内锁，实现与分布式锁相同的契约：有界等待、拿不到返回 ErrNotAcquired。
type memLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newMemLocker() *memLocker {
	return &memLocker{held: make(map[string]bool)}
}

func (m *memLocker) TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (LockHandle, error) {
	deadline := time.Now().Add(wait)
	for {
		m.mu.Lock()
		if !m.held[key] {
			m.held[key] = true
			m.mu.Unlock()
			return &memLock{locker: m, key: key}, nil
		}
		m.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, redislock.ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

type memLock struct {
	locker *memLocker
	key    string
}

func (l *memLock) Release(ctx context.Context) error {
	l.locker.mu.Lock()
	delete(l.locker.held, l.key)
	l.locker.mu.Unlock()
	return nil
}

// keyFailLocker 对指定 key 永远拿不到锁，其余透传，用于模拟锁竞争超时。
type keyFailLocker struct {
	inner Locker
	fail  map[string]bool
}

func (k *keyFailLocker) TryAcquire(ctx context.Context, key string, wait, hold time.Duration) (LockHandle, error) {
	if k.fail[key] {
		return nil, redislock.ErrNotAcquired
	}
	return k.inner.TryAcquire(ctx, key, wait, hold)
}

// memPublisher 记录发出的事件。
type memPublisher struct {
	mu     sync.Mutex
	events []queue.OrderEvent
}

func (p *memPublisher) Publish(ctx context.Context, evt queue.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// :memory: 下每个连接是独立数据库，收敛为单连接
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.User{}, &model.Product{}, &model.Order{}, &model.OrderItem{}, &model.OrderSequence{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB, locker Locker, publisher OrderEventPublisher) *OrderService {
	t.Helper()
	numbers := NewOrderNumberGenerator(db, locker, 2*time.Second, time.Second)
	return NewOrderService(db, locker, numbers, OrderServiceOptions{
		ProductLockWait: 2 * time.Second,
		ProductLockHold: time.Second,
		Publisher:       publisher,
	})
}

func seedUser(t *testing.T, db *gorm.DB) model.User {
	t.Helper()
	u := model.User{Name: "tester", Email: fmt.Sprintf("tester-%d@example.com", time.Now().UnixNano())}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) model.Product {
	t.Helper()
	p := model.Product{
		Name:   name,
		Price:  mustDecimal(t, price),
		Stock:  stock,
		Status: model.SaleStatusFor(stock),
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func loadProduct(t *testing.T, db *gorm.DB, id uint) model.Product {
	t.Helper()
	var p model.Product
	if err := db.First(&p, id).Error; err != nil {
		t.Fatalf("load product %d: %v", id, err)
	}
	return p
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&model.Order{}).Count(&n).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	return n
}
