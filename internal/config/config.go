// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Log           LogConfig           `mapstructure:"log"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Stream        StreamConfig        `mapstructure:"stream"`
	CORS          CORSConfig          `mapstructure:"cors"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Tika          TikaConfig          `mapstructure:"tika"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port    string `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	Version string `mapstructure:"version"`
}

// DatabaseConfig 存储所有数据库连接的配置。
// Driver 为 memory 时会话只保存在进程内，不连接 MySQL 与 Redis。
type DatabaseConfig struct {
	Driver string      `mapstructure:"driver"`
	MySQL  MySQLConfig `mapstructure:"mysql"`
	Redis  RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_minutes"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey         string              `mapstructure:"api_key"`
	BaseURL        string              `mapstructure:"base_url"`
	Model          string              `mapstructure:"model"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	Generation     LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置，Model 为空时知识库只做关键词检索。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// ChatConfig 存储对话编排相关的配置。
type ChatConfig struct {
	HistoryLimit           int    `mapstructure:"history_limit"`
	TitleMaxRunes          int    `mapstructure:"title_max_runes"`
	FollowUps              bool   `mapstructure:"follow_ups"`
	SkillsDir              string `mapstructure:"skills_dir"`
	HistoryCacheTTLMinutes int    `mapstructure:"history_cache_ttl_minutes"`
}

// StreamConfig 存储 WebSocket 流式票据的配置。
type StreamConfig struct {
	TicketSecret        string `mapstructure:"ticket_secret"`
	TicketExpireMinutes int    `mapstructure:"ticket_expire_minutes"`
}

// CORSConfig 存储跨域配置。
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// KnowledgeConfig 存储知识库入库流程的配置。
// SeedDir 下的文件在启动时按上传流程导入，已存在同名文档时跳过。
type KnowledgeConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	SeedDir      string `mapstructure:"seed_dir"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
// 环境变量 COPILOT_<SECTION>_<KEY> 会覆盖文件中的同名配置，例如 COPILOT_LLM_API_KEY。
func Init(configPath string) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("COPILOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := v.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.version", "0.1.0")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 100)
	v.SetDefault("database.mysql.conn_max_lifetime_minutes", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.timeout_seconds", 120)
	v.SetDefault("llm.generation.temperature", 0.7)
	v.SetDefault("chat.history_limit", 20)
	v.SetDefault("chat.title_max_runes", 30)
	v.SetDefault("chat.follow_ups", true)
	v.SetDefault("chat.skills_dir", ".agents/skills")
	v.SetDefault("chat.history_cache_ttl_minutes", 30)
	v.SetDefault("stream.ticket_expire_minutes", 10)
	v.SetDefault("cors.allow_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("knowledge.chunk_size", 800)
	v.SetDefault("knowledge.chunk_overlap", 100)
	v.SetDefault("knowledge.seed_dir", "initfile")
	v.SetDefault("kafka.group_id", "music-copilot-knowledge")
	v.SetDefault("elasticsearch.index_name", "music_knowledge")
}
