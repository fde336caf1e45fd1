package main

import (
	"log"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"shopping_mall/internal/config"
	"shopping_mall/internal/model"
	"shopping_mall/internal/queue"
	"shopping_mall/internal/router"
	"shopping_mall/internal/service"
	"shopping_mall/pkg/metrics"
	redislock "shopping_mall/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 1. 连接 SQLite，自动建表
	db, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderSequence{},
	); err != nil {
		log.Fatalf("db migrate: %v", err)
	}

	// 2. Redis：分布式锁 + 限流
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	locker := service.NewRedisLocker(redislock.NewLockManager(rdb))

	// 3. Kafka 订单事件生产者
	producer := queue.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer producer.Close()

	numbers := service.NewOrderNumberGenerator(db, locker, cfg.NumberLockWait, cfg.NumberLockHold)
	orders := service.NewOrderService(db, locker, numbers, service.OrderServiceOptions{
		ProductLockWait: cfg.ProductLockWait,
		ProductLockHold: cfg.ProductLockHold,
		Publisher:       producer,
		Metrics:         metrics.NewOrderMetrics(),
	})

	r := gin.Default()
	router.Setup(r, db, rdb, orders, cfg)

	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
