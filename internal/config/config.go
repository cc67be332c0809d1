package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config punchsync（考勤同步服务）配置
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Sync       SyncConfig
	Attendance AttendanceConfig
	MQTT       MQTTConfig
	Log        struct {
		Level  string
		Format string
	}
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// SyncConfig 设备轮询配置
type SyncConfig struct {
	TriggerSecret  string // bearer secret checked before any device is touched
	Workers        int    // bounded fan-out across devices
	BatchSize      int    // max events per FetchEvents page
	MaxPages       int    // safety cap on hasMore paging per device per run
	DeviceTimeout  int    // per-request device timeout (seconds)
	BootstrapHours int    // first-run poll window: now minus this many hours
}

// AttendanceConfig 考勤日切配置
type AttendanceConfig struct {
	// TZOffsetSeconds shifts event instants into the school's civil day.
	// Fixed per deployment; the device clock's own zone is never trusted.
	TZOffsetSeconds int
	NotifyStream    string // Redis stream notifications are published to
}

// MQTTConfig MQTT 配置（用于触发轮询，默认禁用）
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "punchsync")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Sync.TriggerSecret = getEnv("SYNC_TRIGGER_SECRET", "")
	cfg.Sync.Workers = parseInt(getEnv("SYNC_WORKERS", "3"), 3)
	cfg.Sync.BatchSize = parseInt(getEnv("SYNC_BATCH_SIZE", "200"), 200)
	cfg.Sync.MaxPages = parseInt(getEnv("SYNC_MAX_PAGES", "50"), 50)
	cfg.Sync.DeviceTimeout = parseInt(getEnv("SYNC_DEVICE_TIMEOUT", "30"), 30)
	cfg.Sync.BootstrapHours = parseInt(getEnv("SYNC_BOOTSTRAP_HOURS", "24"), 24)

	cfg.Attendance.TZOffsetSeconds = parseInt(getEnv("ATT_TZ_OFFSET", "19800"), 19800) // 默认 UTC+5:30
	cfg.Attendance.NotifyStream = getEnv("ATT_NOTIFY_STREAM", "attendance:notifications")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "punchsync-trigger")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "punchsync/poll")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
