package looptest

import (
	"time"
)

// MinElapsed 计算速率时耗时的下限，避免除零
const MinElapsed = time.Microsecond

// Measurement 一次发送-回读的测量结果
type Measurement struct {
	Start    time.Time
	Elapsed  time.Duration
	Bytes    int
	Bits     int
	Rate     float64 // bits/second
	Response string
}

// NewMeasurement 根据起止时间和发送字节数计算速率
func NewMeasurement(start, end time.Time, bytes int, response string) *Measurement {
	elapsed := end.Sub(start)
	bits := bytes * 8
	return &Measurement{
		Start:    start,
		Elapsed:  elapsed,
		Bytes:    bytes,
		Bits:     bits,
		Rate:     Rate(bits, elapsed),
		Response: response,
	}
}

// Rate 计算 bits/second，耗时不足 MinElapsed 时按 MinElapsed 计
func Rate(bits int, elapsed time.Duration) float64 {
	if elapsed < MinElapsed {
		elapsed = MinElapsed
	}
	return float64(bits) / elapsed.Seconds()
}
