package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）与订单事件 Topic
	KafkaBrokers []string
	KafkaTopic   string

	// 分布式锁预算：商品锁与发号锁分属两个独立锁域，顺序使用、从不嵌套
	ProductLockWait time.Duration
	ProductLockHold time.Duration
	NumberLockWait  time.Duration
	NumberLockHold  time.Duration

	// 下单接口限流
	OrderRateLimit  int
	OrderRateWindow time.Duration
}

// Load 读取并校验配置，缺失时使用默认值。
// 锁预算默认对齐生产值：商品锁 5s 等待 / 3s 持有，发号锁 3s / 2s。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "shopping_mall.db"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:         0,
		KafkaBrokers:    splitCSV(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:      getEnv("KAFKA_TOPIC", "shopping-mall-order-events"),
		ProductLockWait: 5 * time.Second,
		ProductLockHold: 3 * time.Second,
		NumberLockWait:  3 * time.Second,
		NumberLockHold:  2 * time.Second,
		OrderRateLimit:  1000,
		OrderRateWindow: time.Second,
	}

	redisDB, err := getEnvInt("REDIS_DB", cfg.RedisDB)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = redisDB

	if cfg.ProductLockWait, err = getEnvSeconds("PRODUCT_LOCK_WAIT_SEC", cfg.ProductLockWait); err != nil {
		return AppConfig{}, err
	}
	if cfg.ProductLockHold, err = getEnvSeconds("PRODUCT_LOCK_HOLD_SEC", cfg.ProductLockHold); err != nil {
		return AppConfig{}, err
	}
	if cfg.NumberLockWait, err = getEnvSeconds("NUMBER_LOCK_WAIT_SEC", cfg.NumberLockWait); err != nil {
		return AppConfig{}, err
	}
	if cfg.NumberLockHold, err = getEnvSeconds("NUMBER_LOCK_HOLD_SEC", cfg.NumberLockHold); err != nil {
		return AppConfig{}, err
	}

	rateLimit, err := getEnvInt("ORDER_RATE_LIMIT", cfg.OrderRateLimit)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_LIMIT must be > 0")
	}
	cfg.OrderRateLimit = rateLimit

	rateWindowSec, err := getEnvInt("ORDER_RATE_WINDOW_SEC", int(cfg.OrderRateWindow.Seconds()))
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid ORDER_RATE_WINDOW_SEC: %w", err)
	}
	if rateWindowSec <= 0 {
		return AppConfig{}, fmt.Errorf("ORDER_RATE_WINDOW_SEC must be > 0")
	}
	cfg.OrderRateWindow = time.Duration(rateWindowSec) * time.Second

	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.ProductLockWait <= 0 || cfg.ProductLockHold <= 0 ||
		cfg.NumberLockWait <= 0 || cfg.NumberLockHold <= 0 {
		return AppConfig{}, fmt.Errorf("lock wait/hold budgets must be > 0")
	}

	return cfg, nil
}

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getEnvSeconds 读取秒数环境变量并转为 Duration。
func getEnvSeconds(key string, fallback time.Duration) (time.Duration, error) {
	sec, err := getEnvInt(key, int(fallback.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return time.Duration(sec) * time.Second, nil
}
