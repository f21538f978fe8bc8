package database

import (
	"fmt"
	"os"
	"time"

	"github.com/wfunc/serial-looptest/internal/logger"
	"go.uber.org/zap"
)

var (
	lockAttempts = 30
	lockInterval = time.Second
	lockMaxAge   = 5 * time.Minute
)

func lockPathFor(dbPath string) string {
	return dbPath + ".migration.lock"
}

// acquireMigrationLock 获取迁移锁
func acquireMigrationLock(dbPath string) (*os.File, error) {
	lockPath := lockPathFor(dbPath)

	for i := 0; i < lockAttempts; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
		if err == nil {
			logger.GetLogger().Debug("获取迁移锁成功", zap.String("lock", lockPath))
			return lockFile, nil
		}

		// 锁文件过旧说明持有者已经退出
		if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > lockMaxAge {
			logger.Warn("迁移锁文件过期，尝试删除", zap.String("lock", lockPath))
			_ = os.Remove(lockPath)
			continue
		}

		time.Sleep(lockInterval)
	}

	return nil, fmt.Errorf("无法获取迁移锁，可能有其他进程正在执行迁移")
}

// releaseMigrationLock 释放迁移锁
func releaseMigrationLock(lockFile *os.File) {
	if lockFile == nil {
		return
	}
	lockPath := lockFile.Name()
	_ = lockFile.Close()
	_ = os.Remove(lockPath)
}

// CleanupStaleLocks 清理过期的锁文件
func CleanupStaleLocks(dbPath string) {
	lockPath := lockPathFor(dbPath)
	if info, err := os.Stat(lockPath); err == nil && time.Since(info.ModTime()) > 2*lockMaxAge {
		logger.Info("清理过期锁文件", zap.String("file", lockPath))
		_ = os.Remove(lockPath)
	}
}
