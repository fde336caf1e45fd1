package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"shopping_mall/internal/apperr"
	"shopping_mall/internal/model"
	redislock "shopping_mall/pkg/redis"
)

// OrderNumberGenerator 在 order:number:generate 全局锁内发号：
// 格式 YYYYMMDD + 当日序号（6 位补零），如 20251225000001。
// 序号由 order_sequences 按天读改写预留，预留在锁释放前已提交，
// 多进程并发下同一序号不会重复下发；orders.order_no 的唯一索引是最后防线。
type OrderNumberGenerator struct {
	db     *gorm.DB
	locker Locker
	wait   time.Duration
	hold   time.Duration
	now    func() time.Time // 测试注入
}

func NewOrderNumberGenerator(db *gorm.DB, locker Locker, wait, hold time.Duration) *OrderNumberGenerator {
	return &OrderNumberGenerator{db: db, locker: locker, wait: wait, hold: hold, now: time.Now}
}

// Generate 发一个订单号。等待预算内拿不到发号锁返回 ErrOrderCreationFailed。
func (g *OrderNumberGenerator) Generate(ctx context.Context) (string, error) {
	lock, err := g.locker.TryAcquire(ctx, redislock.OrderNumberLockKey, g.wait, g.hold)
	if err != nil {
		if errors.Is(err, redislock.ErrNotAcquired) {
			return "", apperr.ErrOrderCreationFailed
		}
		return "", err
	}
	defer func() { _ = lock.Release(ctx) }()

	day := g.now().Format("20060102")
	var seq int64
	err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := model.OrderSequence{Day: day}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
			return err
		}
		var current model.OrderSequence
		if err := tx.First(&current, "day = ?", day).Error; err != nil {
			return err
		}
		seq = current.LastSeq + 1
		return tx.Model(&model.OrderSequence{}).Where("day = ?", day).
			Update("last_seq", seq).Error
	})
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s%06d", day, seq), nil
}
