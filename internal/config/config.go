// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，敏感项可由环境变量覆盖
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
	"github.com/joho/godotenv"   // .env 文件加载
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称，用于日志标识等
	Host    string `toml:"host"`    // 服务器监听地址，如 "0.0.0.0"
	Port    int    `toml:"port"`    // 服务器监听端口，如 5000
	Mode    string `toml:"mode"`    // 运行模式：dev 或 release
}

// StorageConfig 持久化驱动选择
type StorageConfig struct {
	Driver string `toml:"driver"` // "mysql"、"mongo" 或 "memory"
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// MongoConfig MongoDB 连接配置
type MongoConfig struct {
	URI            string `toml:"uri"`            // 连接串，如 mongodb://localhost:27017
	Database       string `toml:"database"`       // 数据库名称
	TimeoutSeconds int    `toml:"timeoutSeconds"` // 连接超时（秒）
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`  // 是否启用消息列表缓存
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
	Workers  int    `toml:"workers"`  // 异步缓存任务协程数
	Buffer   int    `toml:"buffer"`   // 异步缓存任务缓冲区大小
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 领域事件配置
type KafkaConfig struct {
	Mode       string `toml:"mode"`       // "kafka" 开启事件投递，其余值关闭
	HostPort   string `toml:"hostPort"`   // Kafka 服务器地址，如 "localhost:9092"
	EventTopic string `toml:"eventTopic"` // 领域事件主题
	Partition  int    `toml:"partition"`  // 主题分区数
	Timeout    int    `toml:"timeout"`    // 写超时（秒）
}

// JWTConfig JWT 认证配置
type JWTConfig struct {
	Secret            string `toml:"secret"`            // JWT 签名密钥，需与认证服务一致
	AccessTokenExpiry int    `toml:"accessTokenExpiry"` // Access Token 有效期（分钟）
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023
}

// RealtimeConfig 实时通道配置
type RealtimeConfig struct {
	SendBufferSize     int      `toml:"sendBufferSize"`     // 每个会话的发送缓冲
	EventsPerSecond    float64  `toml:"eventsPerSecond"`    // 每个会话每秒允许的入站事件数
	EventBurst         int      `toml:"eventBurst"`         // 入站事件突发上限
	MaxMessageBytes    int64    `toml:"maxMessageBytes"`    // 单帧最大字节数
	MaxTextLength      int      `toml:"maxTextLength"`      // 聊天消息最大字符数
	PingPeriodSeconds  int      `toml:"pingPeriodSeconds"`  // 心跳间隔
	RingTimeoutSeconds int      `toml:"ringTimeoutSeconds"` // 振铃超时
	AllowedOrigins     []string `toml:"allowedOrigins"`     // 允许的跨域来源，空表示全部
}

// BreakerConfig 持久化写入熔断配置
type BreakerConfig struct {
	MaxFailures     uint32 `toml:"maxFailures"`     // 连续失败多少次后熔断
	OpenSeconds     int    `toml:"openSeconds"`     // 熔断持续时间
	HalfOpenRequest uint32 `toml:"halfOpenRequest"` // 半开状态放行的请求数
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`
	StorageConfig   `toml:"storageConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	MongoConfig     `toml:"mongoConfig"`
	RedisConfig     `toml:"redisConfig"`
	LogConfig       `toml:"logConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	JWTConfig       `toml:"jwtConfig"`
	SnowflakeConfig `toml:"snowflakeConfig"`
	RealtimeConfig  `toml:"realtimeConfig"`
	BreakerConfig   `toml:"breakerConfig"`
}

// config 全局配置单例，延迟加载
var config *Config

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig(cfg *Config) error {
	paths := []string{
		"configs/config_local.toml",       // 本地开发配置（优先）
		"configs/config.toml",             // 默认配置
		"../../configs/config_local.toml", // 从子目录运行时的路径
		"../../configs/config.toml",       // 从子目录运行时的路径
	}

	for _, path := range paths {
		if _, err := toml.DecodeFile(path, cfg); err == nil {
			return nil
		}
	}

	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件、.env 和环境变量
func GetConfig() *Config {
	if config == nil {
		cfg := new(Config)
		_ = LoadConfig(cfg) // 忽略加载错误，使用默认值
		_ = godotenv.Load() // .env 不存在时忽略
		applyEnv(cfg, os.Getenv)
		ApplyDefaults(cfg)
		config = cfg
	}
	return config
}

// applyEnv 用环境变量覆盖敏感配置
func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("AGRILINK_JWT_SECRET"); v != "" {
		cfg.JWTConfig.Secret = v
	}
	if v := getenv("AGRILINK_MYSQL_PASSWORD"); v != "" {
		cfg.MysqlConfig.Password = v
	}
	if v := getenv("AGRILINK_MONGO_URI"); v != "" {
		cfg.MongoConfig.URI = v
	}
	if v := getenv("AGRILINK_REDIS_PASSWORD"); v != "" {
		cfg.RedisConfig.Password = v
	}
	if v := getenv("AGRILINK_KAFKA_HOSTPORT"); v != "" {
		cfg.KafkaConfig.HostPort = v
	}
	if v := getenv("AGRILINK_STORAGE_DRIVER"); v != "" {
		cfg.StorageConfig.Driver = v
	}
	if v := getenv("AGRILINK_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MainConfig.Port = port
		}
	}
}

// ApplyDefaults 为未配置的项填充默认值
// 没有配置文件时也能以 memory 存储启动开发服务器
func ApplyDefaults(cfg *Config) {
	if cfg.MainConfig.AppName == "" {
		cfg.MainConfig.AppName = "agrilink"
	}
	if cfg.MainConfig.Host == "" {
		cfg.MainConfig.Host = "0.0.0.0"
	}
	if cfg.MainConfig.Port == 0 {
		cfg.MainConfig.Port = 5000
	}
	if cfg.MainConfig.Mode == "" {
		cfg.MainConfig.Mode = "dev"
	}
	if cfg.StorageConfig.Driver == "" {
		cfg.StorageConfig.Driver = "memory"
	}
	if cfg.MongoConfig.Database == "" {
		cfg.MongoConfig.Database = "agrilink"
	}
	if cfg.MongoConfig.TimeoutSeconds == 0 {
		cfg.MongoConfig.TimeoutSeconds = 10
	}
	if cfg.RedisConfig.Workers == 0 {
		cfg.RedisConfig.Workers = 8
	}
	if cfg.RedisConfig.Buffer == 0 {
		cfg.RedisConfig.Buffer = 1000
	}
	if cfg.LogConfig.LogPath == "" {
		cfg.LogConfig.LogPath = "logs"
	}
	if cfg.KafkaConfig.EventTopic == "" {
		cfg.KafkaConfig.EventTopic = "agrilink_events"
	}
	if cfg.KafkaConfig.Partition == 0 {
		cfg.KafkaConfig.Partition = 3
	}
	if cfg.KafkaConfig.Timeout == 0 {
		cfg.KafkaConfig.Timeout = 1
	}
	if cfg.JWTConfig.AccessTokenExpiry == 0 {
		cfg.JWTConfig.AccessTokenExpiry = 60 * 24
	}
	r := &cfg.RealtimeConfig
	if r.SendBufferSize == 0 {
		r.SendBufferSize = 256
	}
	if r.EventsPerSecond == 0 {
		r.EventsPerSecond = 20
	}
	if r.EventBurst == 0 {
		r.EventBurst = 40
	}
	if r.MaxMessageBytes == 0 {
		r.MaxMessageBytes = 64 * 1024
	}
	if r.MaxTextLength == 0 {
		r.MaxTextLength = 2000
	}
	if r.PingPeriodSeconds == 0 {
		r.PingPeriodSeconds = 30
	}
	if r.RingTimeoutSeconds == 0 {
		r.RingTimeoutSeconds = 45
	}
	b := &cfg.BreakerConfig
	if b.MaxFailures == 0 {
		b.MaxFailures = 5
	}
	if b.OpenSeconds == 0 {
		b.OpenSeconds = 30
	}
	if b.HalfOpenRequest == 0 {
		b.HalfOpenRequest = 1
	}
}
