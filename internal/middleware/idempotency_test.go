package middleware_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-payroll/internal/middleware"
)

func setupIdempotencyRouter(t *testing.T) (*gin.Engine, redismock.ClientMock, *int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rdb, redisMock := redismock.NewClientMock()
	handlerCalls := 0

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("actor_id", "specialist-1")
		c.Next()
	})
	router.Use(middleware.Idempotency(rdb))
	router.POST("/payroll-runs", func(c *gin.Context) {
		handlerCalls++
		c.JSON(http.StatusCreated, gin.H{"status": "success"})
	})

	return router, redisMock, &handlerCalls
}

func TestIdempotency_ReplaysCachedResponse(t *testing.T) {
	router, redisMock, handlerCalls := setupIdempotencyRouter(t)

	cached, err := json.Marshal(map[string]any{"run_number": "PR-2025-0001"})
	require.NoError(t, err)
	redisMock.ExpectGet("idemp:/payroll-runs:specialist-1:key-123").SetVal(string(cached))

	req := httptest.NewRequest(http.MethodPost, "/payroll-runs", nil)
	req.Header.Set("Idempotency-Key", "key-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, *handlerCalls)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "success", body["status"])
	data, ok := body["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "PR-2025-0001", data["run_number"])
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestIdempotency_RejectsKeyStillInFlight(t *testing.T) {
	router, redisMock, handlerCalls := setupIdempotencyRouter(t)

	redisMock.ExpectGet("idemp:/payroll-runs:specialist-1:key-123").RedisNil()
	redisMock.ExpectSetNX("idemp:/payroll-runs:specialist-1:key-123:lock", "locked", 30*time.Second).SetVal(false)

	req := httptest.NewRequest(http.MethodPost, "/payroll-runs", nil)
	req.Header.Set("Idempotency-Key", "key-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, *handlerCalls)
	assert.Contains(t, rec.Body.String(), "PROCESSING")
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestIdempotency_FirstRequestAcquiresLock(t *testing.T) {
	router, redisMock, handlerCalls := setupIdempotencyRouter(t)

	redisMock.ExpectGet("idemp:/payroll-runs:specialist-1:key-123").RedisNil()
	redisMock.ExpectSetNX("idemp:/payroll-runs:specialist-1:key-123:lock", "locked", 30*time.Second).SetVal(true)

	req := httptest.NewRequest(http.MethodPost, "/payroll-runs", nil)
	req.Header.Set("Idempotency-Key", "key-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, *handlerCalls)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	router, redisMock, handlerCalls := setupIdempotencyRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/payroll-runs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, *handlerCalls)
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
