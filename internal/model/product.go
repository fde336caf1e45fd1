package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProductStatus 商品销售状态。
// FOR_SALE / SOLD_OUT 由库存推导；STOP_SALE 由商品管理独立设置，不参与推导。
type ProductStatus string

const (
	ProductForSale  ProductStatus = "FOR_SALE"
	ProductSoldOut  ProductStatus = "SOLD_OUT"
	ProductStopSale ProductStatus = "STOP_SALE"
)

// Product 商品：下单时的价格快照来源。
// Stock 是并发热点，只允许持有该商品分布式锁的一方经 service.AdjustStock 修改。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string          `gorm:"size:50;not null" json:"name"`
	Description string          `gorm:"size:200" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,0);not null" json:"price"`
	Status      ProductStatus   `gorm:"size:20;not null;default:FOR_SALE" json:"status"`
	Stock       int             `gorm:"not null;default:0" json:"stock"`
}

func (Product) TableName() string { return "products" }

// SaleStatusFor 由库存推导销售状态：有货在售，无货售罄。
func SaleStatusFor(stock int) ProductStatus {
	if stock > 0 {
		return ProductForSale
	}
	return ProductSoldOut
}
