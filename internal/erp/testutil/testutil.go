package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-jewelry/internal/erp/entity"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/repository"
	"github.com/bitfantasy/nimo-jewelry/internal/erp/service"
	"github.com/bitfantasy/nimo-jewelry/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	JWTSecret = "jewelry-erp-test-secret"
	JWTIssuer = "jewelry-erp"
	UserID    = "test-user-001"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// SetupTestDB 每个测试独立的内存 sqlite 库
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// 单连接：串行化写入，且内存库在测试期间一直存在
	sqlDB.SetMaxOpenConns(1)

	if err := entity.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test tables: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

// SetupServices 使用进程内锁、内存缓存、仅生成路径的对象存储
func SetupServices(t *testing.T, opts service.Options) (*gorm.DB, *service.Services) {
	t.Helper()
	db := SetupTestDB(t)
	svc := service.NewServices(repository.NewRepositories(db), service.Deps{Logger: zap.NewNop()}, opts)
	return db, svc
}

// SetupRouter creates a gin test router
func SetupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(gin.Recovery())
	return r
}

// AuthGroup creates an API group with JWT auth middleware for testing
func AuthGroup(r *gin.Engine, path string) *gin.RouterGroup {
	return r.Group(path, middleware.JWTAuth(JWTSecret))
}

// GenerateTestToken creates a valid JWT token for testing
func GenerateTestToken(userID, name string, roles []string) string {
	if roles == nil {
		roles = []string{}
	}
	token, _ := middleware.IssueToken(JWTSecret, JWTIssuer, userID, name, roles, 24*time.Hour)
	return token
}

// DefaultTestToken returns a token for a default admin test user
func DefaultTestToken() string {
	return GenerateTestToken(UserID, "Test Admin", []string{middleware.AdminRole})
}

// DoRequest executes an HTTP request against the test router
func DoRequest(r *gin.Engine, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	var reqBody io.Reader = http.NoBody
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBytes)
	}
	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// DoUpload posts one multipart file under the "file" field
func DoUpload(r *gin.Engine, path, fileName string, content []byte, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("file", fileName)
	part.Write(content)
	mw.Close()

	req, _ := http.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// ParseResponse parses the JSON envelope into a map
func ParseResponse(w *httptest.ResponseRecorder) map[string]interface{} {
	var result map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &result)
	return result
}

// --- 种子数据 ---

func SeedBranch(t *testing.T, db *gorm.DB, code string) *entity.Branch {
	t.Helper()
	b := &entity.Branch{ID: entity.NewID(), Code: code, Name: "Branch " + code}
	mustCreate(t, db, b)
	return b
}

func SeedSupplier(t *testing.T, db *gorm.DB, code string) *entity.Supplier {
	t.Helper()
	s := &entity.Supplier{ID: entity.NewID(), Code: code, Name: "Supplier " + code}
	mustCreate(t, db, s)
	return s
}

func SeedCustomer(t *testing.T, db *gorm.DB, code string) *entity.Customer {
	t.Helper()
	c := &entity.Customer{ID: entity.NewID(), Code: code, Name: "Customer " + code}
	mustCreate(t, db, c)
	return c
}

func SeedItem(t *testing.T, db *gorm.DB, sku string) *entity.InventoryItem {
	t.Helper()
	i := &entity.InventoryItem{ID: entity.NewID(), SKU: sku, Name: "Item " + sku}
	mustCreate(t, db, i)
	return i
}

func mustCreate(t *testing.T, db *gorm.DB, rec interface{}) {
	t.Helper()
	if err := db.Create(rec).Error; err != nil {
		t.Fatalf("Failed to seed %T: %v", rec, err)
	}
}

// D parses a decimal literal
func D(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
