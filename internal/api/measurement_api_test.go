package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/wfunc/serial-looptest/internal/looptest"
	"github.com/wfunc/serial-looptest/internal/middleware"
	"github.com/wfunc/serial-looptest/internal/repository"
	"github.com/wfunc/serial-looptest/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MeasurementAPITestSuite 测量记录API测试套件
type MeasurementAPITestSuite struct {
	suite.Suite
	db     *gorm.DB
	svc    *service.MeasurementService
	router *Router
}

func (suite *MeasurementAPITestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	suite.db = repository.SetupTestDB()
	suite.svc = service.NewMeasurementService(suite.db, "COM10", 2400, "payload.txt")
	suite.router = NewRouter(suite.db, suite.svc, zap.NewNop())

	start := time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		begin := start.Add(time.Duration(i) * time.Minute)
		m := looptest.NewMeasurement(begin, begin.Add(2*time.Second), i, "ok")
		suite.Require().NoError(suite.svc.Record(context.Background(), m))
	}
}

func (suite *MeasurementAPITestSuite) TearDownTest() {
	repository.CleanupTestDB(suite.db)
}

func (suite *MeasurementAPITestSuite) get(path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	suite.router.GetEngine().ServeHTTP(w, req)

	var body map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func (suite *MeasurementAPITestSuite) TestHealth() {
	w, body := suite.get("/health")
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "healthy", body["status"])
	assert.NotEmpty(suite.T(), w.Header().Get(middleware.RequestIDHeader))
}

func (suite *MeasurementAPITestSuite) TestQueryMeasurements() {
	w, body := suite.get("/api/v1/measurements?limit=2&session_id=" + suite.svc.SessionID())
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.EqualValues(suite.T(), 3, body["total"])
	assert.EqualValues(suite.T(), 2, body["limit"])
	assert.Len(suite.T(), body["data"], 2)

	w, body = suite.get("/api/v1/measurements?session_id=unknown")
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.EqualValues(suite.T(), 0, body["total"])
}

func (suite *MeasurementAPITestSuite) TestGetLatest() {
	w, body := suite.get("/api/v1/measurements/latest?limit=1")
	require.Equal(suite.T(), http.StatusOK, w.Code)

	data := body["data"].([]interface{})
	require.Len(suite.T(), data, 1)
	latest := data[0].(map[string]interface{})
	assert.EqualValues(suite.T(), 24, latest["bits_sent"])
	assert.InDelta(suite.T(), 12.0, latest["rate"], 1e-9)
}

func (suite *MeasurementAPITestSuite) TestGetStats() {
	w, body := suite.get("/api/v1/measurements/stats")
	require.Equal(suite.T(), http.StatusOK, w.Code)

	stats := body["data"].(map[string]interface{})
	assert.EqualValues(suite.T(), 3, stats["total_count"])
	assert.EqualValues(suite.T(), 48, stats["total_bits"])
	assert.InDelta(suite.T(), 4.0, stats["min_rate"], 1e-9)
}

func (suite *MeasurementAPITestSuite) TestGetMeasurement() {
	list, err := suite.svc.Latest(context.Background(), 1)
	suite.Require().NoError(err)

	w, body := suite.get(fmt.Sprintf("/api/v1/measurements/%d", list[0].ID))
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "COM10", body["data"].(map[string]interface{})["port"])

	w, _ = suite.get("/api/v1/measurements/9999")
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w, _ = suite.get("/api/v1/measurements/abc")
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *MeasurementAPITestSuite) raw(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	suite.router.GetEngine().ServeHTTP(w, req)
	return w
}

func (suite *MeasurementAPITestSuite) TestOpenAPIDocument() {
	w := suite.raw("/openapi")
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Header().Get("Content-Type"), "application/yaml")
	assert.Contains(suite.T(), w.Body.String(), "/api/v1/measurements/{id}:")
	assert.Contains(suite.T(), w.Body.String(), "/api/v1/measurements/stats:")
}

func (suite *MeasurementAPITestSuite) TestSwaggerUI() {
	w := suite.raw("/swagger/index.html")
	require.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Contains(suite.T(), w.Body.String(), "/openapi")
}

func (suite *MeasurementAPITestSuite) TestNoRoute() {
	w, body := suite.get("/api/v1/unknown")
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "not_found", body["error"])
}

func TestMeasurementAPITestSuite(t *testing.T) {
	suite.Run(t, new(MeasurementAPITestSuite))
}
