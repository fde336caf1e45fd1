package router

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"shopping_mall/internal/apperr"
	"shopping_mall/internal/config"
	"shopping_mall/internal/middleware"
	"shopping_mall/internal/model"
	"shopping_mall/internal/service"
	"shopping_mall/pkg/metrics"
)

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, db *gorm.DB, rdb *rd.Client, orders *service.OrderService, cfg config.AppConfig) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// Users
	r.POST("/api/users", createUser(db))

	// Products
	r.GET("/api/products", listProducts(db))
	r.POST("/api/products", createProduct(db))

	// Orders
	r.POST("/api/orders", middleware.RedisRateLimit(rdb, cfg.OrderRateLimit, cfg.OrderRateWindow), placeOrder(orders))
	r.GET("/api/orders", listOrders(orders))
	r.GET("/api/orders/:id", getOrder(orders))
	r.POST("/api/orders/:id/cancel", cancelOrder(orders))
	r.PATCH("/api/orders/:id", deleteOrder(orders))

	// Admin
	r.POST("/api/admin/orders/:id/confirm", confirmOrder(orders))
}

// respondError 业务错误翻译为 {code, msg} 响应，其余按 500 处理。
func respondError(c *gin.Context, err error) {
	var e *apperr.Error
	if errors.As(err, &e) {
		c.JSON(e.HTTPStatus, gin.H{"code": e.Code, "msg": e.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "ID无效"})
		return 0, false
	}
	return uint(id), true
}

// createUser 创建用户（最小实现，认证在上游网关）。
func createUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name  string `json:"name" binding:"required"`
			Email string `json:"email" binding:"required,email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		u := &model.User{Name: req.Name, Email: req.Email}
		if err := db.Create(u).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": u})
	}
}

// listProducts 查询商品列表。
func listProducts(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Product
		if err := db.Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createProduct 创建商品。状态缺省由库存推导；库存为 0 不允许设为在售。
func createProduct(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name        string `json:"name" binding:"required"`
			Description string `json:"description"`
			Price       string `json:"price" binding:"required"`
			Stock       int    `json:"stock"`
			Status      string `json:"status"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if req.Stock < 0 {
			respondError(c, apperr.ErrProductInvalidStock)
			return
		}
		price, err := decimal.NewFromString(req.Price)
		if err != nil || !price.IsPositive() {
			respondError(c, apperr.ErrOrderItemInvalidPrice)
			return
		}
		status := model.SaleStatusFor(req.Stock)
		if req.Status != "" {
			status = model.ProductStatus(req.Status)
		}
		switch status {
		case model.ProductForSale, model.ProductSoldOut, model.ProductStopSale:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "status 取值无效"})
			return
		}
		if req.Stock == 0 && status == model.ProductForSale {
			respondError(c, apperr.ErrProductStatusConflict)
			return
		}

		p := &model.Product{
			Name:        req.Name,
			Description: req.Description,
			Price:       price,
			Stock:       req.Stock,
			Status:      status,
		}
		if err := db.Create(p).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": p})
	}
}

// placeOrder 下单入口。
func placeOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID        uint   `json:"user_id" binding:"required,min=1"`
			ZipCode       string `json:"zip_code" binding:"required,len=5"`
			Address       string `json:"address" binding:"required"`
			DetailAddress string `json:"detail_address" binding:"required"`
			TotalPrice    string `json:"total_price" binding:"required"`
			Items         []struct {
				ProductID uint `json:"product_id" binding:"required,min=1"`
				Quantity  int  `json:"quantity" binding:"required,min=1,max=99"`
			} `json:"items" binding:"required,min=1,dive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		total, err := decimal.NewFromString(req.TotalPrice)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "total_price 格式错误"})
			return
		}

		placeReq := service.PlaceOrderRequest{
			ZipCode:       req.ZipCode,
			Address:       req.Address,
			DetailAddress: req.DetailAddress,
			TotalPrice:    total,
		}
		for _, it := range req.Items {
			placeReq.Items = append(placeReq.Items, service.PlaceOrderItem{
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
			})
		}

		order, err := orders.PlaceOrder(c.Request.Context(), req.UserID, placeReq)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": order})
	}
}

// listOrders 查询本人订单（分页 + 状态过滤）。
func listOrders(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
		if err != nil || userID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "user_id 必填"})
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))

		list, total, err := orders.ListOrders(c.Request.Context(), uint(userID), c.Query("status"), page, size)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": gin.H{
			"orders": list,
			"total":  total,
			"page":   page,
			"size":   size,
		}})
	}
}

// getOrder 查询订单详情（仅本人）。
func getOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		userID, err := strconv.ParseUint(c.Query("user_id"), 10, 32)
		if err != nil || userID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": "user_id 必填"})
			return
		}
		order, err := orders.GetOrder(c.Request.Context(), id, uint(userID))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": order})
	}
}

// cancelOrder 取消订单（回补库存）。
func cancelOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req struct {
			UserID uint `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if err := orders.CancelOrder(c.Request.Context(), id, req.UserID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "订单已取消"})
	}
}

// deleteOrder 软删除本人订单记录。
func deleteOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		var req struct {
			UserID uint `json:"user_id" binding:"required,min=1"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		if err := orders.DeleteOrder(c.Request.Context(), id, req.UserID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "订单已删除"})
	}
}

// confirmOrder 管理员确认支付（PENDING -> PAID）。
func confirmOrder(orders *service.OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathID(c)
		if !ok {
			return
		}
		if err := orders.ConfirmOrder(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "msg": "订单已确认"})
	}
}
