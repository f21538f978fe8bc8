package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/wfunc/serial-looptest/internal/models"
	"gorm.io/gorm"
)

// MeasurementRepository 测量记录仓库
type MeasurementRepository struct {
	db *gorm.DB
}

// NewMeasurementRepository 创建测量记录仓库
func NewMeasurementRepository(db *gorm.DB) *MeasurementRepository {
	return &MeasurementRepository{db: db}
}

// Create 创建测量记录
func (r *MeasurementRepository) Create(ctx context.Context, m *models.Measurement) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// GetByID 根据ID获取测量记录
func (r *MeasurementRepository) GetByID(ctx context.Context, id uint) (*models.Measurement, error) {
	var m models.Measurement
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// filter 构建查询条件
func (r *MeasurementRepository) filter(ctx context.Context, query *models.MeasurementQuery) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&models.Measurement{})
	if query == nil {
		return db
	}
	if query.SessionID != "" {
		db = db.Where("session_id = ?", query.SessionID)
	}
	if query.Port != "" {
		db = db.Where("port = ?", query.Port)
	}
	if query.StartTime != nil {
		db = db.Where("started_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("started_at <= ?", *query.EndTime)
	}
	return db
}

// Query 分页查询测量记录，按开始时间倒序
func (r *MeasurementRepository) Query(ctx context.Context, query *models.MeasurementQuery) ([]*models.Measurement, int64, error) {
	var total int64
	if err := r.filter(ctx, query).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db := r.filter(ctx, query).Order("started_at DESC").Order("id DESC")
	if query != nil {
		if query.Limit > 0 {
			db = db.Limit(query.Limit)
		}
		if query.Offset > 0 {
			db = db.Offset(query.Offset)
		}
	}

	var list []*models.Measurement
	if err := db.Find(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// GetLatest 获取最新的测量记录
func (r *MeasurementRepository) GetLatest(ctx context.Context, limit int) ([]*models.Measurement, error) {
	list, _, err := r.Query(ctx, &models.MeasurementQuery{Limit: limit})
	return list, err
}

// GetStats 获取统计信息
func (r *MeasurementRepository) GetStats(ctx context.Context, query *models.MeasurementQuery) (*models.MeasurementStats, error) {
	type row struct {
		TotalCount int64
		TotalBits  int64
		AvgRate    float64
		MaxRate    float64
		MinRate    float64
	}
	var res row
	err := r.filter(ctx, query).
		Select("COUNT(*) AS total_count, COALESCE(SUM(bits_sent), 0) AS total_bits, " +
			"COALESCE(AVG(rate), 0) AS avg_rate, COALESCE(MAX(rate), 0) AS max_rate, COALESCE(MIN(rate), 0) AS min_rate").
		Scan(&res).Error
	if err != nil {
		return nil, err
	}
	return &models.MeasurementStats{
		TotalCount: res.TotalCount,
		TotalBits:  res.TotalBits,
		AvgRate:    res.AvgRate,
		MaxRate:    res.MaxRate,
		MinRate:    res.MinRate,
	}, nil
}

// DeleteBefore 物理删除指定时间之前的记录（包括已软删除的行）
func (r *MeasurementRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Unscoped().Where("created_at < ?", before).Delete(&models.Measurement{})
	return result.RowsAffected, result.Error
}

// Cleanup 只保留最近N天的数据
func (r *MeasurementRepository) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention days must be greater than 0")
	}
	return r.DeleteBefore(ctx, time.Now().AddDate(0, 0, -retentionDays))
}
