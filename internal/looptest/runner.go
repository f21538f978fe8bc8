package looptest

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/wfunc/serial-looptest/internal/config"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
	"github.com/wfunc/serial-looptest/internal/hardware"
	"github.com/wfunc/serial-looptest/internal/logger"
	"go.uber.org/zap"
)

// 控制台提示
const (
	FileNotFoundNotice = "File not found. Please enter a valid file path."
	PortClosedNotice   = "Serial port closed."
)

// State 循环状态
type State int32

const (
	StateIdle State = iota
	StateTransmitting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTransmitting:
		return "transmitting"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Recorder 测量结果记录器（可选）
type Recorder interface {
	Record(ctx context.Context, m *Measurement) error
}

// Option Runner 可选项
type Option func(*Runner)

// WithOutput 设置控制台输出
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithRecorder 设置测量结果记录器
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithSleep 替换等待函数（测试用）
func WithSleep(sleep func(time.Duration)) Option {
	return func(r *Runner) { r.sleep = sleep }
}

// WithPortName 设置串口名称（仅用于日志）
func WithPortName(name string) Option {
	return func(r *Runner) { r.portName = name }
}

// Runner 发送-测量循环。串口由调用方打开和关闭，Runner 只负责使用。
type Runner struct {
	port     hardware.SerialPort
	cfg      config.LoopTestConfig
	portName string

	out      io.Writer
	recorder Recorder
	now      func() time.Time
	sleep    func(time.Duration)
	logger   *zap.Logger

	state atomic.Int32
}

// New 创建循环
func New(port hardware.SerialPort, cfg *config.LoopTestConfig, opts ...Option) *Runner {
	r := &Runner{
		port:   port,
		cfg:    *cfg,
		out:    os.Stdout,
		now:    time.Now,
		sleep:  time.Sleep,
		logger: logger.WithModule("looptest"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.state.Store(int32(StateIdle))
	return r
}

// State 当前状态
func (r *Runner) State() State {
	return State(r.state.Load())
}

func (r *Runner) setState(s State) {
	r.state.Store(int32(s))
}

// IsExitWord 输入是否为退出词（忽略大小写）
func (r *Runner) IsExitWord(input string) bool {
	return strings.EqualFold(input, r.cfg.ExitWord)
}

// Run 运行交互循环，每读到一行输入执行一次发送。
//
// 返回 nil：输入退出词或输入结束。
// 返回 context.Canceled 等 ctx 错误：空闲等待输入时被中断。
// 其余错误均为致命错误，循环终止。
// 中断只在等待输入时生效，进行中的发送-等待-回读不会被打断。
func (r *Runner) Run(ctx context.Context, in io.Reader) error {
	defer r.setState(StateTerminated)

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)

	// readErr 在 close(lines) 之前写入
	var readErr error
	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				select {
				case lines <- strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"):
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr = err
				}
				return
			}
		}
	}()

	r.logger.Info("发送-测量循环启动",
		zap.String("port", r.portName),
		zap.String("file", r.cfg.FilePath),
		zap.Duration("settle", r.cfg.SettleDuration))

	for {
		r.setState(StateIdle)
		if err := ctx.Err(); err != nil {
			r.logger.Info("循环被中断", zap.Error(err))
			return err
		}

		fmt.Fprint(r.out, r.cfg.Prompt)

		var (
			input string
			ok    bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(r.out)
			r.logger.Info("循环被中断", zap.Error(ctx.Err()))
			return ctx.Err()
		case input, ok = <-lines:
		}

		if !ok {
			fmt.Fprintln(r.out)
			if readErr != nil {
				r.logger.Error("读取控制台输入失败", zap.Error(readErr))
				return apperrors.Wrap(readErr, apperrors.ErrInputRead)
			}
			r.logger.Info("输入结束，退出循环")
			return nil
		}
		if r.IsExitWord(input) {
			r.logger.Info("收到退出指令，退出循环")
			return nil
		}

		if _, err := r.Transmit(ctx); err != nil {
			if apperrors.IsRecoverable(err) {
				continue
			}
			return err
		}
	}
}

// Transmit 执行一次发送-等待-回读，并打印结果。
// 文件不存在时打印提示并返回 ErrFileNotFound，串口状态不受影响。
func (r *Runner) Transmit(ctx context.Context) (*Measurement, error) {
	r.setState(StateTransmitting)
	defer r.setState(StateIdle)

	payload, err := LoadPayload(r.cfg.FilePath)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrFileNotFound) {
			fmt.Fprintln(r.out, FileNotFoundNotice)
			r.logger.Warn("待发送文件不存在", zap.String("file", r.cfg.FilePath))
		}
		return nil, err
	}

	start := r.now()

	n, err := r.port.Write(payload.Data)
	if err != nil {
		r.logger.Error("串口写入失败", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrSerialPortWrite)
	}
	if n != len(payload.Data) {
		return nil, apperrors.Newf(apperrors.ErrSerialPortWrite, "short write %d/%d", n, len(payload.Data))
	}

	// 阻塞等待设备处理并回传
	r.sleep(r.cfg.SettleDuration)

	raw, err := hardware.ReadLine(r.port)
	if err != nil {
		r.logger.Error("串口读取失败", zap.Error(err))
		return nil, err
	}
	if !utf8.Valid(raw) {
		return nil, apperrors.Newf(apperrors.ErrInvalidResponse, "response is not valid UTF-8: % x", raw)
	}

	response := strings.TrimRightFunc(string(raw), unicode.IsSpace)
	m := NewMeasurement(start, r.now(), len(payload.Data), response)

	fmt.Fprintf(r.out, "Received data from device: %s\n", m.Response)
	fmt.Fprintf(r.out, "Data Transmission Speed: %.2f bits/second\n", m.Rate)

	logger.LogSerialTransfer(r.portName, m.Bytes, string(raw), m.Elapsed)
	r.logger.Debug("测量完成",
		zap.Int("bits", m.Bits),
		zap.Float64("rate", m.Rate),
		zap.Duration("elapsed", m.Elapsed))

	if r.recorder != nil {
		if err := r.recorder.Record(ctx, m); err != nil {
			r.logger.Warn("测量结果保存失败", zap.Error(err))
		}
	}

	return m, nil
}
