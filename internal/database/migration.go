package database

import (
	"fmt"

	"github.com/wfunc/serial-looptest/internal/logger"
	"github.com/wfunc/serial-looptest/internal/models"
	"go.uber.org/zap"
)

// Models 需要迁移的模型
func Models() []interface{} {
	return []interface{}{
		&models.Measurement{},
	}
}

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("数据库未初始化")
	}

	// CLI 和历史查询服务可能同时启动，用锁文件串行化迁移
	if sqlitePath != "" {
		CleanupStaleLocks(sqlitePath)
		lockFile, err := acquireMigrationLock(sqlitePath)
		if err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return fmt.Errorf("获取迁移锁失败: %w", err)
		}
		defer releaseMigrationLock(lockFile)
	}

	logger.Info("开始数据库迁移...")
	for _, model := range Models() {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
	}

	if err := DB.Exec("CREATE INDEX IF NOT EXISTS idx_measurements_session_started ON measurements(session_id, started_at)").Error; err != nil {
		logger.Warn("创建索引失败", zap.String("index", "idx_measurements_session_started"), zap.Error(err))
	}

	logger.Info("数据库迁移完成")
	return nil
}
