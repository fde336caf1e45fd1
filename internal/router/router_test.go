package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"shopping_mall/internal/apperr"
	"shopping_mall/internal/config"
	"shopping_mall/internal/model"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&model.User{}, &model.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	r := gin.New()
	// 订单路由不在本测试覆盖范围内，service 与 redis 仅为注册占位
	Setup(r, db, rd.NewClient(&rd.Options{}), nil, config.AppConfig{})
	return r, db
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		Code int `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp.Code
}

func TestCreateProductRejectsNegativeStock(t *testing.T) {
	r, db := newTestRouter(t)

	w := postJSON(t, r, "/api/products", `{"name":"键盘","price":"1000","stock":-1}`)
	if w.Code != apperr.ErrProductInvalidStock.HTTPStatus {
		t.Fatalf("status = %d, want %d", w.Code, apperr.ErrProductInvalidStock.HTTPStatus)
	}
	if got := decodeCode(t, w); got != apperr.ErrProductInvalidStock.Code {
		t.Errorf("code = %d, want %d", got, apperr.ErrProductInvalidStock.Code)
	}

	var n int64
	if err := db.Model(&model.Product{}).Count(&n).Error; err != nil {
		t.Fatalf("count products: %v", err)
	}
	if n != 0 {
		t.Errorf("products = %d, want 0", n)
	}
}

func TestCreateProductZeroStockDefaultsToSoldOut(t *testing.T) {
	r, db := newTestRouter(t)

	w := postJSON(t, r, "/api/products", `{"name":"键盘","price":"1000","stock":0}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var p model.Product
	if err := db.First(&p).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if p.Status != model.ProductSoldOut {
		t.Errorf("status = %s, want SOLD_OUT", p.Status)
	}
}

func TestCreateProductZeroStockForSaleConflict(t *testing.T) {
	r, _ := newTestRouter(t)

	w := postJSON(t, r, "/api/products", `{"name":"键盘","price":"1000","stock":0,"status":"FOR_SALE"}`)
	if w.Code != apperr.ErrProductStatusConflict.HTTPStatus {
		t.Fatalf("status = %d, want %d", w.Code, apperr.ErrProductStatusConflict.HTTPStatus)
	}
	if got := decodeCode(t, w); got != apperr.ErrProductStatusConflict.Code {
		t.Errorf("code = %d, want %d", got, apperr.ErrProductStatusConflict.Code)
	}
}
