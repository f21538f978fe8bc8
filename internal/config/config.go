package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	apperrors "github.com/wfunc/serial-looptest/internal/errors"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "LOOPTEST"

// Config 全局配置结构体
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	LoopTest LoopTestConfig `mapstructure:"looptest"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	History  HistoryConfig  `mapstructure:"history"`
	Server   ServerConfig   `mapstructure:"server"`
}

// SerialConfig 串口配置
type SerialConfig struct {
	Port        string        `mapstructure:"port"`
	BaudRate    int           `mapstructure:"baud_rate"`
	DataBits    int           `mapstructure:"data_bits"`
	StopBits    int           `mapstructure:"stop_bits"`
	Parity      string        `mapstructure:"parity"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// LoopTestConfig 发送-测量循环配置
type LoopTestConfig struct {
	FilePath       string        `mapstructure:"file_path"`
	ExitWord       string        `mapstructure:"exit_word"`
	Prompt         string        `mapstructure:"prompt"`
	SettleDuration time.Duration `mapstructure:"settle_duration"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"`
	Output  string            `mapstructure:"output"`
	File    LogFileConfig     `mapstructure:"file"`
	Modules map[string]string `mapstructure:"modules"`
}

// LogFileConfig 日志文件配置
type LogFileConfig struct {
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogLevel        string        `mapstructure:"log_level"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// HistoryConfig 测量历史记录配置
type HistoryConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// ServerConfig 历史查询HTTP服务配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var (
	cfg  *Config
	once sync.Once
	mu   sync.RWMutex
	v    *viper.Viper
)

// Init 初始化全局配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		var loaded *Config
		loaded, v, err = load(configPath)
		if err != nil {
			return
		}
		mu.Lock()
		cfg = loaded
		mu.Unlock()
	})
	return err
}

// Load 读取配置文件并返回独立的配置实例（不影响全局配置）
func Load(configPath string) (*Config, error) {
	c, _, err := load(configPath)
	return c, err
}

func load(configPath string) (*Config, *viper.Viper, error) {
	vp := viper.New()

	// 设置配置文件路径
	if configPath != "" {
		vp.SetConfigFile(configPath)
	} else {
		vp.SetConfigName("config")
		vp.SetConfigType("yaml")
		vp.AddConfigPath("./config")
		vp.AddConfigPath(".")
	}

	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	if err := vp.ReadInConfig(); err != nil {
		// 配置文件不存在时使用默认配置
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, apperrors.Wrap(err, apperrors.ErrConfigLoad, "read config")
		}
	}

	c := &Config{}
	if err := vp.Unmarshal(c); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrConfigLoad, "unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrConfigValidate)
	}
	return c, vp, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 串口默认配置
	v.SetDefault("serial.port", "COM10")
	v.SetDefault("serial.baud_rate", 2400)
	v.SetDefault("serial.data_bits", 8)
	v.SetDefault("serial.stop_bits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.read_timeout", "1s")

	// 循环默认配置
	v.SetDefault("looptest.file_path", "./data/payload.txt")
	v.SetDefault("looptest.exit_word", "exit")
	v.SetDefault("looptest.prompt", "Enter any character to start the process (type 'exit' to quit): ")
	v.SetDefault("looptest.settle_duration", "3s")

	// 日志默认配置（交互模式下默认只写文件）
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "file")
	v.SetDefault("log.file.path", "./logs")
	v.SetDefault("log.file.filename", "looptest.log")
	v.SetDefault("log.file.max_size", 100)
	v.SetDefault("log.file.max_age", 30)
	v.SetDefault("log.file.max_backups", 7)
	v.SetDefault("log.file.compress", true)

	// 数据库默认配置
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/looptest.db")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("history.enabled", false)
	v.SetDefault("history.retention_days", 30)

	// HTTP服务默认配置
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.shutdown_timeout", "5s")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Serial.Port == "" {
		return fmt.Errorf("serial.port 不能为空")
	}
	if c.Serial.BaudRate <= 0 {
		return fmt.Errorf("serial.baud_rate 必须大于0: %d", c.Serial.BaudRate)
	}
	// 0 表示读操作无限阻塞，回读必须有超时
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial.read_timeout 必须大于0: %s", c.Serial.ReadTimeout)
	}
	if c.LoopTest.SettleDuration < 0 {
		return fmt.Errorf("looptest.settle_duration 不能为负数: %s", c.LoopTest.SettleDuration)
	}
	if c.LoopTest.FilePath == "" {
		return fmt.Errorf("looptest.file_path 不能为空")
	}
	if strings.TrimSpace(c.LoopTest.ExitWord) == "" {
		return fmt.Errorf("looptest.exit_word 不能为空")
	}
	return nil
}

// Get 获取配置实例
func Get() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// Watch 监听配置文件变化
func Watch(callback func(*Config)) {
	if v == nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		newCfg := &Config{}
		if err := v.Unmarshal(newCfg); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}
		if err := newCfg.Validate(); err != nil {
			fmt.Printf("配置重载失败: %v\n", err)
			return
		}

		mu.Lock()
		cfg = newCfg
		mu.Unlock()

		if callback != nil {
			callback(newCfg)
		}
	})
	v.WatchConfig()
}

// ConfigFile 返回实际使用的配置文件路径
func ConfigFile() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// Set 动态设置配置值（主要用于命令行参数覆盖）
func Set(key string, value interface{}) error {
	if v == nil {
		return fmt.Errorf("config not initialized")
	}
	v.Set(key, value)

	newCfg := &Config{}
	if err := v.Unmarshal(newCfg); err != nil {
		return err
	}
	if err := newCfg.Validate(); err != nil {
		return err
	}
	mu.Lock()
	cfg = newCfg
	mu.Unlock()
	return nil
}
