package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/wfunc/serial-looptest/internal/config"
	"github.com/wfunc/serial-looptest/internal/database"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
	"github.com/wfunc/serial-looptest/internal/hardware"
	"github.com/wfunc/serial-looptest/internal/logger"
	"github.com/wfunc/serial-looptest/internal/looptest"
	"github.com/wfunc/serial-looptest/internal/service"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// 命令行参数
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		portName    = flag.String("port", "", "串口名称，覆盖 serial.port")
		baudRate    = flag.Int("baud", 0, "波特率，覆盖 serial.baud_rate")
		filePath    = flag.String("file", "", "待发送文件，覆盖 looptest.file_path")
		listPorts   = flag.Bool("list-ports", false, "列出可用串口后退出")
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

	if *listPorts {
		os.Exit(printPorts())
	}

	// 加载配置
	if err := config.Init(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if err := applyOverrides(*portName, *baudRate, *filePath); err != nil {
		fmt.Fprintf(os.Stderr, "命令行参数无效: %v\n", err)
		os.Exit(1)
	}

	cfg := config.Get()

	// 初始化日志系统
	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	code := run(cfg)
	logger.Cleanup()
	os.Exit(code)
}

// run 打开串口并运行循环，返回进程退出码
func run(cfg *config.Config) int {
	log := logger.GetLogger()
	log.Info("looptest 启动",
		zap.String("version", Version),
		zap.String("config_file", config.ConfigFile()),
		zap.String("port", cfg.Serial.Port),
		zap.Int("baud_rate", cfg.Serial.BaudRate),
		zap.String("file", cfg.LoopTest.FilePath),
	)

	port, err := hardware.OpenPort(serialConfigFrom(&cfg.Serial))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open serial port %s: %v\n", cfg.Serial.Port, err)
		if runtime.GOOS != "windows" && !hardware.SerialPortExists(cfg.Serial.Port) {
			fmt.Fprintln(os.Stderr, "Device does not exist. Use -list-ports to see available ports.")
		}
		return 1
	}

	opts := []looptest.Option{looptest.WithPortName(cfg.Serial.Port)}
	if recorder := openHistory(cfg); recorder != nil {
		defer database.Close()
		opts = append(opts, looptest.WithRecorder(recorder))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := looptest.New(port, &cfg.LoopTest, opts...)
	runErr := runner.Run(ctx, os.Stdin)

	return finish(port, cfg.Serial.Port, runErr, os.Stdout, os.Stderr)
}

// finish 关闭串口并根据循环结果输出提示，返回进程退出码
func finish(port io.Closer, portName string, runErr error, out, errOut io.Writer) int {
	log := logger.GetLogger()

	if err := port.Close(); err != nil {
		log.Warn("关闭串口失败", zap.String("port", portName), zap.Error(err))
	}

	switch {
	case runErr == nil:
		log.Info("looptest 正常退出")
		return 0
	case errors.Is(runErr, context.Canceled):
		fmt.Fprintln(out)
		fmt.Fprintln(out, looptest.PortClosedNotice)
		log.Info("收到中断信号，串口已关闭")
		return 0
	default:
		log.Error("looptest 异常退出",
			zap.Int("code", int(apperrors.GetCode(runErr))),
			zap.Error(runErr))
		fmt.Fprintf(errOut, "Error: %v\n", runErr)
		return 1
	}
}

// applyOverrides 用命令行参数覆盖配置
func applyOverrides(port string, baud int, file string) error {
	if port != "" {
		if err := config.Set("serial.port", port); err != nil {
			return err
		}
	}
	if baud != 0 {
		if err := config.Set("serial.baud_rate", baud); err != nil {
			return err
		}
	}
	if file != "" {
		if err := config.Set("looptest.file_path", file); err != nil {
			return err
		}
	}
	return nil
}

// serialConfigFrom 转换为硬件层串口配置
func serialConfigFrom(c *config.SerialConfig) *hardware.SerialConfig {
	return &hardware.SerialConfig{
		Port:        c.Port,
		BaudRate:    c.BaudRate,
		DataBits:    byte(c.DataBits),
		StopBits:    byte(c.StopBits),
		Parity:      c.Parity,
		ReadTimeout: c.ReadTimeout,
	}
}

// openHistory 启用历史记录时连接数据库并返回记录器，失败只告警
func openHistory(cfg *config.Config) looptest.Recorder {
	if !cfg.History.Enabled {
		return nil
	}
	log := logger.WithModule("history")

	if err := database.Init(&cfg.Database); err != nil {
		log.Warn("历史记录不可用", zap.Error(err))
		return nil
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			log.Warn("历史记录不可用", zap.Error(err))
			_ = database.Close()
			return nil
		}
	}

	svc := service.NewMeasurementService(database.GetDB(), cfg.Serial.Port, cfg.Serial.BaudRate, cfg.LoopTest.FilePath)
	log.Info("历史记录已启用", zap.String("session_id", svc.SessionID()))
	return svc
}

// printPorts 打印可用串口，返回退出码
func printPorts() int {
	ports, err := hardware.ListPorts()
	if err != nil {
		fmt.Fprintf(os.Stderr, "列出串口失败: %v\n", err)
		return 1
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		return 0
	}
	for _, p := range ports {
		if p.IsUSB {
			fmt.Printf("%s\tUSB %s:%s %s %s\n", p.Name, p.VID, p.PID, p.SerialNumber, p.Product)
		} else {
			fmt.Println(p.Name)
		}
	}
	return 0
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("串口回环测速工具\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// printHelp 打印帮助信息
func printHelp() {
	fmt.Println("串口回环测速工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  looptest [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("环境变量:")
	fmt.Println("  LOOPTEST_SERIAL_PORT         串口名称")
	fmt.Println("  LOOPTEST_SERIAL_BAUD_RATE    波特率")
	fmt.Println("  LOOPTEST_LOOPTEST_FILE_PATH  待发送文件")
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  looptest -config=./config/config.yaml")
	fmt.Println("  looptest -port=/dev/ttyUSB0 -baud=9600 -file=payload.txt")
	fmt.Println("  looptest -list-ports")
}
