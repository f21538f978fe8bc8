package service

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
	"github.com/wfunc/serial-looptest/internal/logger"
	"github.com/wfunc/serial-looptest/internal/looptest"
	"github.com/wfunc/serial-looptest/internal/models"
	"github.com/wfunc/serial-looptest/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MeasurementService 测量记录服务
type MeasurementService struct {
	repo      *repository.MeasurementRepository
	logger    *zap.Logger
	sessionID string
	port      string
	baudRate  int
	filePath  string
}

// NewMeasurementService 创建测量记录服务，每个实例对应一次CLI运行
func NewMeasurementService(db *gorm.DB, port string, baudRate int, filePath string) *MeasurementService {
	return &MeasurementService{
		repo:      repository.NewMeasurementRepository(db),
		logger:    logger.WithModule("history"),
		sessionID: uuid.New().String(),
		port:      port,
		baudRate:  baudRate,
		filePath:  filePath,
	}
}

// SessionID 当前会话ID
func (s *MeasurementService) SessionID() string {
	return s.sessionID
}

// Record 保存一次测量结果
func (s *MeasurementService) Record(ctx context.Context, m *looptest.Measurement) error {
	if m == nil {
		return apperrors.New(apperrors.ErrInvalidParam, "measurement is nil")
	}

	record := &models.Measurement{
		SessionID:  s.sessionID,
		Port:       s.port,
		BaudRate:   s.baudRate,
		FilePath:   s.filePath,
		StartedAt:  m.Start,
		ElapsedNs:  int64(m.Elapsed),
		BytesSent:  m.Bytes,
		BitsSent:   m.Bits,
		Rate:       m.Rate,
		Response:   m.Response,
		RespLength: utf8.RuneCountInString(m.Response),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return apperrors.Wrap(err, apperrors.ErrDatabaseInsert, "保存测量记录失败")
	}

	s.logger.Debug("测量记录已保存",
		zap.Uint("id", record.ID),
		zap.String("session_id", s.sessionID),
		zap.Float64("rate", record.Rate),
	)
	return nil
}

// Get 获取单条记录
func (s *MeasurementService) Get(ctx context.Context, id uint) (*models.Measurement, error) {
	m, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "measurement %d not found", id)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询测量记录失败")
	}
	return m, nil
}

// Query 查询测量记录
func (s *MeasurementService) Query(ctx context.Context, query *models.MeasurementQuery) ([]*models.Measurement, int64, error) {
	if query.Limit <= 0 || query.Limit > 1000 {
		query.Limit = 100
	}
	list, total, err := s.repo.Query(ctx, query)
	if err != nil {
		return nil, 0, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询测量记录失败")
	}
	return list, total, nil
}

// Latest 获取最新N条记录
func (s *MeasurementService) Latest(ctx context.Context, limit int) ([]*models.Measurement, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	list, err := s.repo.GetLatest(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "查询最新测量记录失败")
	}
	return list, nil
}

// Stats 获取统计信息
func (s *MeasurementService) Stats(ctx context.Context, query *models.MeasurementQuery) (*models.MeasurementStats, error) {
	stats, err := s.repo.GetStats(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrDatabaseQuery, "统计测量记录失败")
	}
	return stats, nil
}

// Cleanup 清理超过保留天数的记录
func (s *MeasurementService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	n, err := s.repo.Cleanup(ctx, retentionDays)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.ErrDatabaseDelete, "清理测量记录失败")
	}
	if n > 0 {
		s.logger.Info("已清理过期测量记录", zap.Int64("count", n), zap.Int("retention_days", retentionDays))
	}
	return n, nil
}
