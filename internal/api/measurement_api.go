package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
	"github.com/wfunc/serial-looptest/internal/models"
	"github.com/wfunc/serial-looptest/internal/service"
)

// MeasurementAPI 测量记录API
type MeasurementAPI struct {
	service *service.MeasurementService
}

// NewMeasurementAPI 创建测量记录API
func NewMeasurementAPI(service *service.MeasurementService) *MeasurementAPI {
	return &MeasurementAPI{
		service: service,
	}
}

// RegisterRoutes 注册路由
func (api *MeasurementAPI) RegisterRoutes(router *gin.RouterGroup) {
	measurements := router.Group("/measurements")
	{
		measurements.GET("", api.QueryMeasurements) // 查询测量列表
		measurements.GET("/latest", api.GetLatest)   // 获取最新测量
		measurements.GET("/stats", api.GetStats)     // 获取统计信息
		measurements.GET("/:id", api.GetMeasurement) // 获取单条测量
	}
}

// parseQuery 解析公共过滤参数
func parseQuery(c *gin.Context) *models.MeasurementQuery {
	query := &models.MeasurementQuery{
		SessionID: c.Query("session_id"),
		Port:      c.Query("port"),
	}

	// 时间范围
	if startTime := c.Query("start_time"); startTime != "" {
		if t, err := time.Parse(time.RFC3339, startTime); err == nil {
			query.StartTime = &t
		}
	}
	if endTime := c.Query("end_time"); endTime != "" {
		if t, err := time.Parse(time.RFC3339, endTime); err == nil {
			query.EndTime = &t
		}
	}
	return query
}

// QueryMeasurements 查询测量列表
func (api *MeasurementAPI) QueryMeasurements(c *gin.Context) {
	query := parseQuery(c)

	// 分页参数
	query.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	query.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	list, total, err := api.service.Query(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "查询失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   list,
		"total":  total,
		"limit":  query.Limit,
		"offset": query.Offset,
	})
}

// GetLatest 获取最新测量
func (api *MeasurementAPI) GetLatest(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	list, err := api.service.Latest(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "查询失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": list,
	})
}

// GetStats 获取统计信息
func (api *MeasurementAPI) GetStats(c *gin.Context) {
	stats, err := api.service.Stats(c.Request.Context(), parseQuery(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "统计失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stats,
	})
}

// GetMeasurement 获取单条测量
func (api *MeasurementAPI) GetMeasurement(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "参数错误",
			"message": "invalid measurement id",
		})
		return
	}

	m, err := api.service.Get(c.Request.Context(), uint(id))
	if apperrors.Is(err, apperrors.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "记录不存在",
			"message": err.Error(),
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "查询失败",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": m,
	})
}
