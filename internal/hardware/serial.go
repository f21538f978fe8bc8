package hardware

import (
	"io"
	"os"
	"time"

	"github.com/tarm/serial"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
	"github.com/wfunc/serial-looptest/internal/logger"
	"go.uber.org/zap"
)

// SerialPort 串口通道接口（便于测试替换）
type SerialPort interface {
	io.ReadWriteCloser
}

// SerialConfig 串口配置
type SerialConfig struct {
	Port        string
	BaudRate    int
	DataBits    byte
	StopBits    byte
	Parity      string
	ReadTimeout time.Duration
}

// SerialPortExists 检查串口设备是否存在（Windows 的 COMx 无法用 Stat 判断）
func SerialPortExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// parseParity 解析校验位
func parseParity(p string) serial.Parity {
	switch p {
	case "O", "odd":
		return serial.ParityOdd
	case "E", "even":
		return serial.ParityEven
	case "M", "mark":
		return serial.ParityMark
	case "S", "space":
		return serial.ParitySpace
	default:
		return serial.ParityNone
	}
}

// parseStopBits 解析停止位
func parseStopBits(b byte) serial.StopBits {
	if b == 2 {
		return serial.Stop2
	}
	return serial.Stop1
}

// toTarmConfig 转换为 tarm/serial 的配置
func toTarmConfig(cfg *SerialConfig) *serial.Config {
	return &serial.Config{
		Name:        cfg.Port,
		Baud:        cfg.BaudRate,
		Size:        cfg.DataBits,
		Parity:      parseParity(cfg.Parity),
		StopBits:    parseStopBits(cfg.StopBits),
		ReadTimeout: cfg.ReadTimeout,
	}
}

// OpenPort 打开串口。
// 每次底层 Read 最多阻塞 ReadTimeout，超时无数据时返回 (0, io.EOF)。
func OpenPort(cfg *SerialConfig) (SerialPort, error) {
	log := logger.WithModule("serial")

	port, err := serial.OpenPort(toTarmConfig(cfg))
	if err != nil {
		log.Error("打开串口失败",
			zap.String("port", cfg.Port),
			zap.Int("baud_rate", cfg.BaudRate),
			zap.Error(err))
		return nil, apperrors.Wrapf(err, apperrors.ErrSerialPortOpen, "port %s @ %d", cfg.Port, cfg.BaudRate)
	}

	log.Info("串口连接成功",
		zap.String("port", cfg.Port),
		zap.Int("baud_rate", cfg.BaudRate),
		zap.Duration("read_timeout", cfg.ReadTimeout))

	return port, nil
}
