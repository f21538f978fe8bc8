package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/serial-looptest/internal/middleware"
	"github.com/wfunc/serial-looptest/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine       *gin.Engine
	db           *gorm.DB
	measurements *MeasurementAPI
	log          *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, svc *service.MeasurementService, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(log))

	router := &Router{
		engine:       engine,
		db:           db,
		measurements: NewMeasurementAPI(svc),
		log:          log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// 接口文档
	registerDocRoutes(r.engine)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	r.measurements.RegisterRoutes(v1)

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Handler 返回 http.Handler，供 http.Server 使用
func (r *Router) Handler() http.Handler {
	return r.engine
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
