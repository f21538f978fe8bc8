package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// 指向空文件，仅使用默认值
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "COM10", cfg.Serial.Port)
	assert.Equal(t, 2400, cfg.Serial.BaudRate)
	assert.Equal(t, time.Second, cfg.Serial.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.LoopTest.SettleDuration)
	assert.Equal(t, "exit", cfg.LoopTest.ExitWord)
	assert.Equal(t, "file", cfg.Log.Output)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
}

func TestLoad_FileOverrides(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB0
  baud_rate: 9600
  read_timeout: 500ms
looptest:
  file_path: /tmp/payload.txt
  exit_word: quit
  settle_duration: 100ms
history:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, 9600, cfg.Serial.BaudRate)
	assert.Equal(t, 500*time.Millisecond, cfg.Serial.ReadTimeout)
	assert.Equal(t, "/tmp/payload.txt", cfg.LoopTest.FilePath)
	assert.Equal(t, "quit", cfg.LoopTest.ExitWord)
	assert.Equal(t, 100*time.Millisecond, cfg.LoopTest.SettleDuration)
	assert.True(t, cfg.History.Enabled)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("LOOPTEST_SERIAL_BAUD_RATE", "115200")

	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
}

func TestLoad_InvalidBaud(t *testing.T) {
	_, err := Load(writeConfig(t, "serial:\n  baud_rate: 0\n"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigValidate))
}

func TestLoad_ZeroReadTimeout(t *testing.T) {
	_, err := Load(writeConfig(t, "serial:\n  read_timeout: 0s\n"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigValidate))
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "serial: [unterminated\n"))
	assert.True(t, apperrors.Is(err, apperrors.ErrConfigLoad))
}

func TestValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"empty port", func(c *Config) { c.Serial.Port = "" }},
		{"negative timeout", func(c *Config) { c.Serial.ReadTimeout = -time.Second }},
		{"zero timeout", func(c *Config) { c.Serial.ReadTimeout = 0 }},
		{"negative settle", func(c *Config) { c.LoopTest.SettleDuration = -time.Second }},
		{"empty file", func(c *Config) { c.LoopTest.FilePath = "" }},
		{"blank exit word", func(c *Config) { c.LoopTest.ExitWord = "  " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := *cfg
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, cfg.Validate())
}
