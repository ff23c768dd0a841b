package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	handlers = append(handlers, func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})
	r.GET("/ping", handlers...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := newRouter(JWTAuth(secret))

	w := get(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = get(r, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := IssueToken(secret, "test", "u-1", "Clerk", []string{"sales"}, time.Hour)
	require.NoError(t, err)
	w = get(r, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", w.Body.String())

	expired, err := IssueToken(secret, "test", "u-1", "Clerk", nil, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, expired).Code)

	other, err := IssueToken("other-secret", "test", "u-1", "Clerk", nil, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, other).Code)
}

func TestRequireRole(t *testing.T) {
	r := newRouter(JWTAuth(secret), RequireRole("accounts"))

	sales, _ := IssueToken(secret, "test", "u-1", "Clerk", []string{"sales"}, time.Hour)
	assert.Equal(t, http.StatusForbidden, get(r, sales).Code)

	accounts, _ := IssueToken(secret, "test", "u-2", "Accountant", []string{"accounts"}, time.Hour)
	assert.Equal(t, http.StatusOK, get(r, accounts).Code)

	admin, _ := IssueToken(secret, "test", "u-3", "Owner", []string{AdminRole}, time.Hour)
	assert.Equal(t, http.StatusOK, get(r, admin).Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
