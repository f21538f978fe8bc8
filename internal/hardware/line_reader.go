package hardware

import (
	"errors"
	"io"

	apperrors "github.com/wfunc/serial-looptest/internal/errors"
)

// ReadLine 从串口读取一行数据（包含结尾的 '\n'）。
//
// 逐字节读取，遇到 '\n' 立即返回；某次读取在超时内没有拿到数据
// （tarm/serial 返回 0 字节或 io.EOF）时，返回已经累积的内容，可能为空。
// 其他读取错误包装为 ErrSerialPortRead。
func ReadLine(r io.Reader) ([]byte, error) {
	var (
		line []byte
		buf  [1]byte
	)

	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			line = append(line, buf[0])
			if buf[0] == '\n' {
				return line, nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return line, nil
			}
			return line, apperrors.Wrap(err, apperrors.ErrSerialPortRead)
		}
		if n == 0 {
			return line, nil
		}
	}
}
