package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"shopping_mall/internal/apperr"
)

// OrderStatus 订单状态机：PENDING -> PAID 或 PENDING -> CANCELLED，终态不可再变。
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order 订单聚合根。订单与订单行在同一事务内一起创建，
// 落库后内容不可变，仅 Status 与软删除标记（DeletedAt）可更新，两者相互独立。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNo       string          `gorm:"size:20;uniqueIndex;not null" json:"order_no"`
	UserID        uint            `gorm:"not null;index" json:"user_id"`
	Status        OrderStatus     `gorm:"size:20;not null;default:PENDING" json:"status"`
	ZipCode       string          `gorm:"size:5;not null" json:"zip_code"`
	Address       string          `gorm:"size:200;not null" json:"address"`
	DetailAddress string          `gorm:"size:100;not null" json:"detail_address"`
	TotalPrice    decimal.Decimal `gorm:"type:decimal(10,0);not null" json:"total_price"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (Order) TableName() string { return "orders" }

// AddItem 追加订单行，行归属订单独占。
func (o *Order) AddItem(item OrderItem) {
	o.Items = append(o.Items, item)
}

// Cancel 仅 PENDING 可取消。
func (o *Order) Cancel() error {
	if o.Status != OrderPending {
		return apperr.ErrOrderStatusConflict
	}
	o.Status = OrderCancelled
	return nil
}

// ConfirmPayment 仅 PENDING 可确认支付。
func (o *Order) ConfirmPayment() error {
	if o.Status != OrderPending {
		return apperr.ErrOrderStatusConflict
	}
	o.Status = OrderPaid
	return nil
}

// ValidateTotalPrice 客户端声明总额必须等于逐行累计值，只在落库前校验一次。
func (o *Order) ValidateTotalPrice(calculated decimal.Decimal) error {
	if !o.TotalPrice.Equal(calculated) {
		return apperr.ErrOrderAmountMismatch
	}
	return nil
}

// OrderItem 订单行：下单时快照商品单价。
type OrderItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	OrderID    uint            `gorm:"not null;index" json:"order_id"`
	ProductID  uint            `gorm:"not null;index" json:"product_id"`
	Quantity   int             `gorm:"not null" json:"quantity"`
	OrderPrice decimal.Decimal `gorm:"type:decimal(10,0);not null" json:"order_price"`
}

func (OrderItem) TableName() string { return "order_items" }

// LineTotal = 单价 × 数量。
func (it OrderItem) LineTotal() decimal.Decimal {
	return it.OrderPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Validate 数量 1~99、单价 > 0。违反属于数据错误，构造期立即失败。
func (it OrderItem) Validate() error {
	if it.Quantity < 1 || it.Quantity > 99 {
		return apperr.ErrOrderItemInvalidQuantity
	}
	if !it.OrderPrice.IsPositive() {
		return apperr.ErrOrderItemInvalidPrice
	}
	return nil
}

// OrderSequence 按天维护订单号流水，发号锁内读改写，保证序号不会重复下发。
type OrderSequence struct {
	Day     string `gorm:"primarykey;size:8"` // 形如 20251225
	LastSeq int64  `gorm:"not null;default:0"`
}

func (OrderSequence) TableName() string { return "order_sequences" }
