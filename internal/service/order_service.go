package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"shopping_mall/internal/apperr"
	"shopping_mall/internal/model"
	"shopping_mall/internal/queue"
	"shopping_mall/pkg/metrics"
	redislock "shopping_mall/pkg/redis"
)

// OrderEventPublisher 在订单事务提交后对外发事件（见 internal/queue.Producer）。
// 发布失败只记日志，不影响已提交的订单。
type OrderEventPublisher interface {
	Publish(ctx context.Context, evt queue.OrderEvent) error
}

// OrderServiceOptions 下单/取消时的商品锁预算与可选依赖。
type OrderServiceOptions struct {
	ProductLockWait time.Duration
	ProductLockHold time.Duration

	Publisher OrderEventPublisher   // 可为 nil
	Metrics   *metrics.OrderMetrics // 可为 nil
}

// OrderService 订单引擎：下单、取消、确认、软删除与查询。
//
// 并发纪律：
//   - 库存只能在持有对应商品锁时经 AdjustStock 修改；
//   - 同一次请求内多个商品锁按商品 ID 升序获取（防死锁的全局定序）；
//   - 发号锁与商品锁是两个独立锁域，先后使用、从不嵌套；
//   - 锁保证临界区互斥，数据库事务保证效果的原子提交或回滚。
type OrderService struct {
	db      *gorm.DB
	locker  Locker
	numbers *OrderNumberGenerator
	opts    OrderServiceOptions
}

func NewOrderService(db *gorm.DB, locker Locker, numbers *OrderNumberGenerator, opts OrderServiceOptions) *OrderService {
	if opts.ProductLockWait <= 0 {
		opts.ProductLockWait = 5 * time.Second
	}
	if opts.ProductLockHold <= 0 {
		opts.ProductLockHold = 3 * time.Second
	}
	return &OrderService{db: db, locker: locker, numbers: numbers, opts: opts}
}

// PlaceOrderItem 下单请求中的一个行项目。
type PlaceOrderItem struct {
	ProductID uint
	Quantity  int
}

// PlaceOrderRequest 下单请求：收货信息、行项目与客户端声明的总额。
type PlaceOrderRequest struct {
	ZipCode       string
	Address       string
	DetailAddress string
	TotalPrice    decimal.Decimal
	Items         []PlaceOrderItem
}

// PlaceOrder 下单。
// 流程：校验用户 → 发号（独立锁域，进商品锁前已完全释放）→
// 行项目按商品 ID 升序排序 → 单个事务内逐项「加锁/验库存/快照价格/扣减/放锁」→
// 总额校验 → 落库。任何一步失败整单回滚：库存无净变化，也不会留下订单。
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, req PlaceOrderRequest) (*model.Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.ErrOrderNoItems
	}

	// 1. 用户校验
	var user model.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.opts.Metrics.OrderFailed(reasonLabel(apperr.ErrOrderInvalidUser))
			return nil, apperr.ErrOrderInvalidUser
		}
		return nil, err
	}

	// 2. 发号
	orderNo, err := s.numbers.Generate(ctx)
	if err != nil {
		s.opts.Metrics.OrderFailed(reasonLabel(err))
		return nil, err
	}

	// 3. 订单骨架（PENDING，空行项目）
	order := &model.Order{
		OrderNo:       orderNo,
		UserID:        userID,
		Status:        model.OrderPending,
		ZipCode:       req.ZipCode,
		Address:       req.Address,
		DetailAddress: req.DetailAddress,
		TotalPrice:    req.TotalPrice,
	}

	// 4. 防死锁：按商品 ID 升序后再逐个加锁
	items := make([]PlaceOrderItem, len(req.Items))
	copy(items, req.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	log.Printf("place order start: order_no=%s items=%d", orderNo, len(items))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		computed := decimal.Zero
		for _, it := range items {
			lineTotal, err := s.placeOne(ctx, tx, order, it)
			if err != nil {
				return err
			}
			computed = computed.Add(lineTotal)
		}

		// 5. 总额校验：声明值必须等于逐行累计值
		if err := order.ValidateTotalPrice(computed); err != nil {
			return err
		}

		// 6. 落库（级联订单行）
		return tx.Create(order).Error
	})
	if err != nil {
		s.opts.Metrics.OrderFailed(reasonLabel(err))
		return nil, err
	}

	log.Printf("place order done: order_no=%s total=%s", order.OrderNo, order.TotalPrice)
	s.opts.Metrics.OrderPlaced()
	s.publish(ctx, queue.EventOrderPlaced, order)
	return order, nil
}

// placeOne 处理单个行项目：取锁 → 验证商品与库存 → 快照单价 → 扣减。
// 返回该行的小计。锁在本函数所有返回路径上都会释放。
func (s *OrderService) placeOne(ctx context.Context, tx *gorm.DB, order *model.Order, it PlaceOrderItem) (decimal.Decimal, error) {
	waitStart := time.Now()
	lock, err := s.locker.TryAcquire(ctx, redislock.ProductStockLockKey(it.ProductID),
		s.opts.ProductLockWait, s.opts.ProductLockHold)
	if err != nil {
		if errors.Is(err, redislock.ErrNotAcquired) {
			// 锁竞争超时对调用方等价于库存不可用，可稍后重试
			log.Printf("product lock not acquired: product_id=%d", it.ProductID)
			return decimal.Zero, apperr.ErrOrderItemOutOfStock
		}
		return decimal.Zero, err
	}
	s.opts.Metrics.ObserveLockWait(time.Since(waitStart).Seconds())
	defer func() { _ = lock.Release(ctx) }()

	var product model.Product
	if err := tx.First(&product, it.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, apperr.ErrOrderItemInvalidProduct
		}
		return decimal.Zero, err
	}
	if product.Stock < it.Quantity {
		return decimal.Zero, apperr.ErrOrderItemOutOfStock
	}

	item := model.OrderItem{
		ProductID:  product.ID,
		Quantity:   it.Quantity,
		OrderPrice: product.Price,
	}
	if err := item.Validate(); err != nil {
		return decimal.Zero, err
	}
	order.AddItem(item)

	newStock, err := AdjustStock(tx, it.ProductID, -it.Quantity)
	if err != nil {
		return decimal.Zero, err
	}
	log.Printf("stock decremented: product_id=%d remaining=%d", it.ProductID, newStock)

	return item.LineTotal(), nil
}

// CancelOrder 取消订单并回补库存。
// 仅 PENDING 可取消；回补与下单同纪律：商品 ID 升序加锁、AdjustStock 正向调整。
// 回补侧的锁在循环结束后统一释放；中途拿不到锁整个事务回滚，
// 已回补的库存随状态变更一起撤销。
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uint) error {
	var cancelled *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrOrderNotFound
			}
			return err
		}
		if order.UserID != userID {
			return apperr.ErrOrderForbidden
		}
		if err := order.Cancel(); err != nil {
			return err
		}
		if err := tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("status", model.OrderCancelled).Error; err != nil {
			return err
		}

		items := make([]model.OrderItem, len(order.Items))
		copy(items, order.Items)
		sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

		log.Printf("cancel order start: order_no=%s items=%d", order.OrderNo, len(items))

		var held []LockHandle
		defer func() {
			for _, l := range held {
				_ = l.Release(ctx)
			}
		}()
		for _, it := range items {
			lock, err := s.locker.TryAcquire(ctx, redislock.ProductStockLockKey(it.ProductID),
				s.opts.ProductLockWait, s.opts.ProductLockHold)
			if err != nil {
				if errors.Is(err, redislock.ErrNotAcquired) {
					log.Printf("restore lock not acquired: product_id=%d", it.ProductID)
					return apperr.ErrOrderCancelFailed
				}
				return err
			}
			held = append(held, lock)

			newStock, err := AdjustStock(tx, it.ProductID, it.Quantity)
			if err != nil {
				return err
			}
			log.Printf("stock restored: product_id=%d quantity=%d current=%d",
				it.ProductID, it.Quantity, newStock)
		}

		cancelled = &order
		return nil
	})
	if err != nil {
		s.opts.Metrics.OrderFailed(reasonLabel(err))
		return err
	}

	log.Printf("cancel order done: order_no=%s", cancelled.OrderNo)
	s.opts.Metrics.OrderCancelled()
	s.publish(ctx, queue.EventOrderCancelled, cancelled)
	return nil
}

// ConfirmOrder 确认支付：PENDING -> PAID。纯状态迁移，不涉及库存，无需加锁。
func (s *OrderService) ConfirmOrder(ctx context.Context, orderID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order model.Order
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.ErrOrderNotFound
			}
			return err
		}
		if err := order.ConfirmPayment(); err != nil {
			return err
		}
		return tx.Model(&model.Order{}).Where("id = ?", order.ID).
			Update("status", model.OrderPaid).Error
	})
}

// DeleteOrder 软删除：只打 DeletedAt 标记，不碰库存与状态。
func (s *OrderService) DeleteOrder(ctx context.Context, orderID, userID uint) error {
	var order model.Order
	if err := s.db.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrOrderNotFound
		}
		return err
	}
	if order.UserID != userID {
		return apperr.ErrOrderForbidden
	}
	return s.db.WithContext(ctx).Delete(&order).Error
}

// GetOrder 查询订单详情（含行项目），仅本人可见。
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uint) (*model.Order, error) {
	var order model.Order
	if err := s.db.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrOrderNotFound
		}
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.ErrOrderForbidden
	}
	return &order, nil
}

// ListOrders 分页查询本人订单，可按状态过滤；无法识别的状态值退化为不过滤。
func (s *OrderService) ListOrders(ctx context.Context, userID uint, statusFilter string, page, size int) ([]model.Order, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 10
	}

	q := s.db.WithContext(ctx).Model(&model.Order{}).Where("user_id = ?", userID)
	switch model.OrderStatus(statusFilter) {
	case model.OrderPending, model.OrderPaid, model.OrderCancelled:
		q = q.Where("status = ?", statusFilter)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []model.Order
	if err := q.Preload("Items").Order("id DESC").
		Offset((page - 1) * size).Limit(size).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// publish 事务提交后发订单事件；失败只记日志。
func (s *OrderService) publish(ctx context.Context, eventType string, order *model.Order) {
	if s.opts.Publisher == nil {
		return
	}
	evt := queue.OrderEvent{
		Type:       eventType,
		OrderNo:    order.OrderNo,
		UserID:     order.UserID,
		TotalPrice: order.TotalPrice.String(),
		OccurredAt: time.Now(),
	}
	for _, it := range order.Items {
		evt.Items = append(evt.Items, queue.OrderEventItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	if err := s.opts.Publisher.Publish(ctx, evt); err != nil {
		log.Printf("publish order event: type=%s order_no=%s err=%v", eventType, order.OrderNo, err)
	}
}

// reasonLabel 把业务错误映射为指标的 reason 标签。
func reasonLabel(err error) string {
	switch {
	case errors.Is(err, apperr.ErrOrderItemOutOfStock):
		return "out_of_stock"
	case errors.Is(err, apperr.ErrOrderAmountMismatch):
		return "amount_mismatch"
	case errors.Is(err, apperr.ErrOrderItemInvalidProduct):
		return "invalid_product"
	case errors.Is(err, apperr.ErrOrderInvalidUser):
		return "invalid_user"
	case errors.Is(err, apperr.ErrOrderStatusConflict):
		return "status_conflict"
	case errors.Is(err, apperr.ErrOrderCreationFailed):
		return "number_lock_timeout"
	case errors.Is(err, apperr.ErrOrderCancelFailed):
		return "cancel_lock_timeout"
	default:
		return "internal"
	}
}
