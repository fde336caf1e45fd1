package redis

import "fmt"

// OrderNumberLockKey 订单号发号全局锁，所有进程共用一把。
const OrderNumberLockKey = "order:number:generate"

// ProductStockLockKey 商品库存互斥锁键名。
func ProductStockLockKey(productID uint) string {
	return fmt.Sprintf("product:stock:%d", productID)
}

// RateLimitUserKey 下单接口按用户限流的键名。
func RateLimitUserKey(userID uint) string {
	return fmt.Sprintf("rate_limit:order:user:%d", userID)
}

// RateLimitIPKey 用户解析失败时按 IP 限流的降级键名。
func RateLimitIPKey(ip string) string {
	return fmt.Sprintf("rate_limit:order:ip:%s", ip)
}
