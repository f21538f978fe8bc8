package looptest

import (
	"errors"
	"io/fs"
	"os"

	apperrors "github.com/wfunc/serial-looptest/internal/errors"
)

// Payload 一次发送的文件内容，每轮重新读取
type Payload struct {
	Path string
	Data []byte
}

// Bits 发送的比特数
func (p *Payload) Bits() int {
	return len(p.Data) * 8
}

// LoadPayload 读取整个文件。
// 文件不存在返回 ErrFileNotFound（可恢复），其余读取错误返回 ErrFileRead。
func LoadPayload(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperrors.Wrapf(err, apperrors.ErrFileNotFound, "%s", path)
		}
		return nil, apperrors.Wrapf(err, apperrors.ErrFileRead, "%s", path)
	}
	return &Payload{Path: path, Data: data}, nil
}
