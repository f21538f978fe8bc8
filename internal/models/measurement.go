package models

import (
	"time"

	"gorm.io/gorm"
)

// Measurement 一次发送-回读测量记录
type Measurement struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `gorm:"index;not null" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// 关联信息
	SessionID string `gorm:"type:varchar(64);index;not null" json:"session_id"` // 一次CLI运行
	Port      string `gorm:"type:varchar(128)" json:"port"`
	BaudRate  int    `json:"baud_rate"`
	FilePath  string `gorm:"type:varchar(512)" json:"file_path"`

	// 测量数据
	StartedAt  time.Time `gorm:"index" json:"started_at"`
	ElapsedNs  int64     `json:"elapsed_ns"`
	BytesSent  int       `json:"bytes_sent"`
	BitsSent   int       `json:"bits_sent"`
	Rate       float64   `json:"rate"` // bits/second
	Response   string    `gorm:"type:text" json:"response"`
	RespLength int       `json:"response_length"`
}

// TableName 指定表名
func (Measurement) TableName() string {
	return "measurements"
}

// BeforeCreate 创建前的钩子
func (m *Measurement) BeforeCreate(tx *gorm.DB) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.BitsSent == 0 {
		m.BitsSent = m.BytesSent * 8
	}
	return nil
}

// Elapsed 耗时
func (m *Measurement) Elapsed() time.Duration {
	return time.Duration(m.ElapsedNs)
}

// MeasurementQuery 查询参数
type MeasurementQuery struct {
	SessionID string     `json:"session_id,omitempty"`
	Port      string     `json:"port,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// MeasurementStats 统计信息
type MeasurementStats struct {
	TotalCount int64   `json:"total_count"`
	TotalBits  int64   `json:"total_bits"`
	AvgRate    float64 `json:"avg_rate"`
	MaxRate    float64 `json:"max_rate"`
	MinRate    float64 `json:"min_rate"`
}
