package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/serial-looptest/internal/api"
	"github.com/wfunc/serial-looptest/internal/config"
	"github.com/wfunc/serial-looptest/internal/database"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
	"github.com/wfunc/serial-looptest/internal/logger"
	"github.com/wfunc/serial-looptest/internal/service"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// cleanupInterval 历史记录清理间隔
const cleanupInterval = time.Hour

// Server 历史查询服务
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpServer *http.Server
	svc        *service.MeasurementService

	// 关闭控制
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
		showHelp    = flag.Bool("help", false, "显示帮助信息")
	)

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)

	if err := server.Start(); err != nil {
		logger.Error("服务器启动失败", zap.Error(err))
		logger.Cleanup()
		os.Exit(1)
	}

	// 等待退出信号
	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("服务器关闭失败", zap.Error(err))
		logger.Cleanup()
		os.Exit(1)
	}

	logger.Info("服务器已安全关闭")
	logger.Cleanup()
}

// NewServer 创建服务器实例
func NewServer(cfg *config.Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("正在启动测量历史查询服务...",
		zap.String("version", Version),
		zap.String("mode", s.cfg.Server.Mode),
	)

	if err := s.initDatabase(); err != nil {
		return err
	}

	s.svc = service.NewMeasurementService(database.GetDB(), "", 0, "")

	gin.SetMode(s.cfg.Server.Mode)
	router := api.NewRouter(database.GetDB(), s.svc, logger.WithModule("http"))

	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      router.Handler(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return apperrors.Wrapf(err, apperrors.ErrUnknown, "监听 %s 失败", addr)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
		}
	}()

	if s.cfg.History.RetentionDays > 0 {
		s.wg.Add(1)
		go s.cleanupLoop()
	}

	// 监听配置变化
	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，正在重新加载...")
		s.reloadConfig(newCfg)
	})

	s.logger.Info("服务器启动成功", zap.String("http", addr))
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "初始化数据库连接失败")
	}

	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return apperrors.Wrap(err, apperrors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	if !database.IsConnected() {
		return apperrors.New(apperrors.ErrDatabaseConnect, "数据库连接检查失败")
	}
	return nil
}

// cleanupLoop 定期清理过期的测量记录
func (s *Server) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		if _, err := s.svc.Cleanup(s.ctx, s.cfg.History.RetentionDays); err != nil {
			s.logger.Warn("清理测量记录失败", zap.Error(err))
		}

		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WaitForShutdown 等待关闭信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,  // Ctrl+C
		syscall.SIGTERM, // kill命令
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭服务器...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("HTTP服务关闭失败", zap.Error(err))
	}

	// 取消主上下文，触发所有goroutine退出
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("所有服务已正常关闭")
	case <-shutdownCtx.Done():
		s.logger.Warn("关闭超时，强制退出")
		return apperrors.New(apperrors.ErrTimeout, "关闭超时")
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	return nil
}

// reloadConfig 重新加载配置，目前只应用日志级别
func (s *Server) reloadConfig(newCfg *config.Config) {
	logger.SetLevel(newCfg.Log.Level)
	s.logger.Info("配置重新加载完成", zap.String("log_level", newCfg.Log.Level))
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("测量历史查询服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("测量历史查询服务")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  looptest-api [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  LOOPTEST_SERVER_PORT       监听端口")
	fmt.Println("  LOOPTEST_DATABASE_DSN      数据库连接串")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  looptest-api -config=./config/config.yaml")
	fmt.Println("  looptest-api -version")
}
