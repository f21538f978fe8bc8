package hardware

import (
	"errors"
	"io"
	"sync"
)

// ErrPortClosed 对已关闭的模拟串口读写
var ErrPortClosed = errors.New("port closed")

// MockPort 模拟串口（用于测试和无硬件调试）
type MockPort struct {
	mu sync.Mutex

	// ReadData 待读取的数据，读完后返回 io.EOF（与串口读超时一致）
	ReadData []byte
	ReadErr  error
	// Loopback 为 true 时写入的数据会追加到 ReadData
	Loopback bool

	WriteData  []byte
	WriteErr   error
	ShortWrite bool
	Writes     int

	Closed     bool
	CloseCalls int
}

// NewLoopbackPort 创建回环模拟串口，写入什么就读回什么
func NewLoopbackPort() *MockPort {
	return &MockPort{Loopback: true}
}

func (m *MockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, ErrPortClosed
	}
	if m.ReadErr != nil {
		return 0, m.ReadErr
	}
	n := copy(p, m.ReadData)
	m.ReadData = m.ReadData[n:]
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Closed {
		return 0, ErrPortClosed
	}
	m.Writes++
	if m.WriteErr != nil {
		return 0, m.WriteErr
	}
	n := len(p)
	if m.ShortWrite && n > 0 {
		n--
	}
	m.WriteData = append(m.WriteData, p[:n]...)
	if m.Loopback {
		m.ReadData = append(m.ReadData, p[:n]...)
	}
	return n, nil
}

func (m *MockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls++
	m.Closed = true
	return nil
}

// IsClosed 是否已关闭
func (m *MockPort) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Closed
}
