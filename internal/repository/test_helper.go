package repository

import (
	"github.com/wfunc/serial-looptest/internal/database"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 创建内存数据库并迁移所有模型（测试用）
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}

	// 内存库每个连接都是独立的数据库
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(database.Models()...); err != nil {
		panic(err)
	}
	return db
}

// CleanupTestDB 关闭测试数据库
func CleanupTestDB(db *gorm.DB) {
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
}
