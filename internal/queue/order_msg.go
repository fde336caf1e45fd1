package queue

import (
	"fmt"
	"time"
)

// 事件类型
const (
	EventOrderPlaced    = "order.placed"
	EventOrderCancelled = "order.cancelled"
)

// OrderEvent 是订单生命周期事件，事务提交后发往 Kafka。
// 发布失败只记日志，不影响已提交的订单。
type OrderEvent struct {
	Type       string           `json:"type"`
	OrderNo    string           `json:"order_no"`
	UserID     uint             `json:"user_id"`
	TotalPrice string           `json:"total_price"`
	Items      []OrderEventItem `json:"items"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// OrderEventItem 事件中的行项目快照。
type OrderEventItem struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

// Validate 做最小字段校验，防止下游消费脏消息。
func (e OrderEvent) Validate() error {
	if e.Type != EventOrderPlaced && e.Type != EventOrderCancelled {
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.OrderNo == "" {
		return fmt.Errorf("order_no is required")
	}
	if e.UserID == 0 {
		return fmt.Errorf("user_id is required")
	}
	if len(e.Items) == 0 {
		return fmt.Errorf("items must not be empty")
	}
	for _, it := range e.Items {
		if it.ProductID == 0 {
			return fmt.Errorf("item product_id is required")
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("item quantity must be > 0")
		}
	}
	return nil
}
