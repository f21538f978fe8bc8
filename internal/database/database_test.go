package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/serial-looptest/internal/config"
	"github.com/wfunc/serial-looptest/internal/models"
)

func sqliteConfig(dsn string) *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             dsn,
		MaxIdleConns:    1,
		MaxOpenConns:    1,
		ConnMaxLifetime: time.Hour,
		LogLevel:        "silent",
	}
}

func TestInit_UnsupportedDriver(t *testing.T) {
	err := Init(&config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestInit_SQLiteFileAndMigrate(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "looptest.db")
	require.NoError(t, Init(sqliteConfig(dbPath)))
	defer Close()

	assert.True(t, IsConnected())
	require.NoError(t, AutoMigrate())

	// 迁移结束后锁文件被释放
	_, err := os.Stat(lockPathFor(dbPath))
	assert.True(t, os.IsNotExist(err))

	m := &models.Measurement{SessionID: "s1", BytesSent: 2, Rate: 8}
	require.NoError(t, GetDB().Create(m).Error)
	assert.Equal(t, 16, m.BitsSent)
	assert.False(t, m.CreatedAt.IsZero())

	require.NoError(t, Close())
	assert.False(t, IsConnected())
}

func TestAutoMigrate_NotInitialized(t *testing.T) {
	DB = nil
	assert.Error(t, AutoMigrate())
}

func TestMigrationLock(t *testing.T) {
	origAttempts, origInterval := lockAttempts, lockInterval
	lockAttempts, lockInterval = 2, time.Millisecond
	defer func() { lockAttempts, lockInterval = origAttempts, origInterval }()

	dbPath := filepath.Join(t.TempDir(), "x.db")
	first, err := acquireMigrationLock(dbPath)
	require.NoError(t, err)

	// 锁被占用时获取失败
	_, err = acquireMigrationLock(dbPath)
	assert.Error(t, err)

	releaseMigrationLock(first)
	second, err := acquireMigrationLock(dbPath)
	require.NoError(t, err)
	releaseMigrationLock(second)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, 1, int(parseLogLevel("silent")))
	assert.Equal(t, 4, int(parseLogLevel("")))
}
