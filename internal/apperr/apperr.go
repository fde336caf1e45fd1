// Package apperr 定义业务错误：稳定错误码 + HTTP 状态 + 提示语。
// 业务规则失败一律用这里的类型上抛，由 HTTP 层统一翻译成响应。
package apperr

import "fmt"

// Error 是业务失败的统一载体，通过 errors.Is 按错误码比对。
type Error struct {
	Code       int
	HTTPStatus int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Is 按错误码判定，WithMessage 派生出的错误仍可与原错误比对。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage 保留错误码与状态，替换提示语（用于附带上下文数值）。
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{Code: e.Code, HTTPStatus: e.HTTPStatus, Message: fmt.Sprintf(format, args...)}
}

// 订单相关
var (
	ErrOrderNotFound       = &Error{Code: 40401, HTTPStatus: 404, Message: "订单不存在"}
	ErrOrderForbidden      = &Error{Code: 40301, HTTPStatus: 403, Message: "无权访问该订单"}
	ErrOrderInvalidUser    = &Error{Code: 40001, HTTPStatus: 400, Message: "无效的下单用户"}
	ErrOrderAmountMismatch = &Error{Code: 40002, HTTPStatus: 400, Message: "订单金额不一致"}
	ErrOrderStatusConflict = &Error{Code: 40003, HTTPStatus: 400, Message: "当前订单状态不允许该操作"}
	ErrOrderNoItems        = &Error{Code: 40004, HTTPStatus: 400, Message: "订单至少需要一个商品"}
)

// 订单行相关
var (
	ErrOrderItemInvalidProduct  = &Error{Code: 40005, HTTPStatus: 400, Message: "无效的商品"}
	ErrOrderItemInvalidQuantity = &Error{Code: 40006, HTTPStatus: 400, Message: "数量必须在 1~99 之间"}
	ErrOrderItemInvalidPrice    = &Error{Code: 40007, HTTPStatus: 400, Message: "价格必须大于 0"}
	ErrOrderItemOutOfStock      = &Error{Code: 40008, HTTPStatus: 400, Message: "库存不足"}
)

// 商品相关
var (
	ErrProductStatusConflict = &Error{Code: 40009, HTTPStatus: 400, Message: "库存为 0 的商品不能设置为在售"}
	ErrProductInvalidStock   = &Error{Code: 40010, HTTPStatus: 400, Message: "库存不能为负数"}
)

// 分布式锁获取失败（调用方可稍后重试）
var (
	ErrOrderCreationFailed = &Error{Code: 50001, HTTPStatus: 500, Message: "下单失败，请稍后重试"}
	ErrOrderCancelFailed   = &Error{Code: 50002, HTTPStatus: 500, Message: "取消订单失败，请稍后重试"}
)
