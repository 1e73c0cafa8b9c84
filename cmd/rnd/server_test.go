package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/solefab/rndtrack/internal/config"
	"github.com/solefab/rndtrack/internal/rnd/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite"},
		Code:     config.CodeConfig{SequenceBackend: "db", Timezone: "UTC"},
		Costing:  config.CostingConfig{DefaultMarginPercent: 25},
	}
}

func TestRouterOperationalEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, err := newRouter(testConfig(), &app{db: testutil.SetupTestDB(t)}, zap.NewNop())
	require.NoError(t, err)

	for _, path := range []string{"/health/live", "/health/ready", "/version"} {
		w := testutil.DoRequest(router, "GET", path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}

	w := testutil.DoRequest(router, "GET", "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "rnd_http_request_duration_seconds")
}

func TestRouterRecordsOperator(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router, err := newRouter(testConfig(), &app{db: testutil.SetupTestDB(t)}, zap.NewNop())
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/api/v1/projects", strings.NewReader(`{"name":"Court Classic","target_cost":900}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Operator", "mira")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := testutil.DataMap(t, testutil.ParseResponse(w))
	assert.Equal(t, "mira", data["created_by"])
	assert.True(t, strings.HasPrefix(data["code"].(string), "RND/"))
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, gormLogLevel("warn"), gormLogLevel(""))
	assert.NotEqual(t, gormLogLevel("info"), gormLogLevel("silent"))
}
