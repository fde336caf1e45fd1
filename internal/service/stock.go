package service

import (
	"errors"

	"gorm.io/gorm"

	"shopping_mall/internal/apperr"
	"shopping_mall/internal/model"
)

// AdjustStock 是库存唯一的修改入口，调用方必须正持有该商品的分布式锁，
// 且在自己的数据库事务 tx 内调用。
// delta < 0 为下单扣减，delta > 0 为取消回补，两个方向共用同一条路径。
// 结果为负时拒绝调整并返回库存不足；库存与销售状态在同一次写入内落库，
// STOP_SALE 由商品管理独立设置，这里不覆盖。
func AdjustStock(tx *gorm.DB, productID uint, delta int) (int, error) {
	var p model.Product
	if err := tx.First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, apperr.ErrOrderItemInvalidProduct
		}
		return 0, err
	}

	newStock := p.Stock + delta
	if newStock < 0 {
		return 0, apperr.ErrOrderItemOutOfStock.WithMessage(
			"库存不足：当前 %d，请求扣减 %d", p.Stock, -delta)
	}

	updates := map[string]any{"stock": newStock}
	if p.Status != model.ProductStopSale {
		updates["status"] = model.SaleStatusFor(newStock)
	}
	if err := tx.Model(&model.Product{}).Where("id = ?", productID).Updates(updates).Error; err != nil {
		return 0, err
	}
	return newStock, nil
}
