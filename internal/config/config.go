// Package config 提供了博客生成函数的配置管理功能。
// 该包负责从 YAML 配置文件加载配置（本地网关），或仅从环境变量构建配置（Lambda），
// 并支持通过环境变量覆盖模型、存储桶、区域等部署相关的配置项。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oriys/blogsmith/internal/domain"
	"gopkg.in/yaml.v3"
)

// 存储写入失败时的处理策略
const (
	// StoragePolicyBestEffort 写入失败仅记录日志，调用仍返回 200
	StoragePolicyBestEffort = "best_effort"
	// StoragePolicyStrict 写入失败时调用返回 500
	StoragePolicyStrict = "strict"
)

// Config 是应用程序的主配置结构体，包含所有子系统的配置。
// 该结构体通过 YAML 标签与配置文件进行映射。
type Config struct {
	// Server 本地网关的 HTTP 服务配置
	Server ServerConfig `yaml:"server"`
	// Auth 本地网关生成接口的认证配置
	Auth AuthConfig `yaml:"auth"`
	// Inference 托管文本生成模型的调用配置
	Inference InferenceConfig `yaml:"inference"`
	// Storage 对象存储配置
	Storage StorageConfig `yaml:"storage"`
	// Dispatch 分发器行为配置
	Dispatch DispatchConfig `yaml:"dispatch"`
	// Events 文章保存事件的 NATS 配置
	Events EventsConfig `yaml:"events"`
	// Schedule 定时生成任务列表（仅本地网关使用）
	Schedule []ScheduleEntry `yaml:"schedule"`
	// Logging 日志配置，包括日志级别和格式
	Logging LoggingConfig `yaml:"logging"`
	// Metrics 指标配置，用于 Prometheus 监控
	Metrics MetricsConfig `yaml:"metrics"`
	// Telemetry 遥测配置，用于分布式追踪
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig 本地网关的服务配置结构体。
type ServerConfig struct {
	// HTTPPort HTTP 服务端口
	// 默认值：8080
	HTTPPort int `yaml:"http_port"`
	// MetricsPort 指标服务端口，与 HTTPPort 相同时指标挂在主路由上
	// 默认值：9090
	MetricsPort int `yaml:"metrics_port"`
	// RoutePath 触发博客生成的路由
	// 默认值：/blog-generation
	RoutePath string `yaml:"route_path"`
	// RequestTimeout 单个 HTTP 请求的处理超时，需要大于推理超时
	// 默认值：330 秒
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// ShutdownTimeout 优雅关闭超时时间
	// 默认值：30 秒
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig 网关认证配置结构体。
// 启用后生成接口要求 API Key 或 Bearer JWT，健康检查和指标接口不受影响。
type AuthConfig struct {
	// Enabled 是否启用认证
	Enabled bool `yaml:"enabled"`
	// APIKeyHeader 传递 API Key 的请求头
	// 默认值：X-API-Key
	APIKeyHeader string `yaml:"api_key_header"`
	// APIKeyHashes 允许的 API Key 的 SHA-256 哈希（十六进制）
	APIKeyHashes []string `yaml:"api_key_hashes"`
	// JWTSecret HS256 签名密钥，为空时不接受 Bearer 令牌
	JWTSecret string `yaml:"jwt_secret"`
	// TokenTTL blogctl 签发令牌的有效期
	// 默认值：1 小时
	TokenTTL time.Duration `yaml:"token_ttl"`
}

// InferenceConfig 文本生成模型调用配置结构体。
type InferenceConfig struct {
	// Region 推理服务所在区域
	// 默认值：us-east-1
	Region string `yaml:"region"`
	// ModelID 模型标识
	// 默认值：meta.llama3-70b-instruct-v1:0
	ModelID string `yaml:"model_id"`
	// MaxGenLen 生成长度上限（token 数）
	// 默认值：512
	MaxGenLen int `yaml:"max_gen_len"`
	// Temperature 采样温度
	// 默认值：0.7
	Temperature float64 `yaml:"temperature"`
	// TopP 核采样阈值
	// 默认值：0.9
	TopP float64 `yaml:"top_p"`
	// ReadTimeout 单次请求超时
	// 默认值：300 秒
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// MaxAttempts SDK 传输层最大尝试次数（含首次）
	// 默认值：3
	MaxAttempts int `yaml:"max_attempts"`
	// RetryMode SDK 重试模式，可选值：standard、adaptive
	// 默认值：standard
	RetryMode string `yaml:"retry_mode"`
}

// StorageConfig 对象存储配置结构体。
type StorageConfig struct {
	// Bucket 存储桶名称
	// 默认值：aws-bedrock-blog-posts-hexa
	Bucket string `yaml:"bucket"`
	// KeyPrefix 对象键前缀
	// 默认值：blog_posts
	KeyPrefix string `yaml:"key_prefix"`
	// Region 存储桶所在区域，为空时使用 SDK 默认区域解析（Lambda 上即 AWS_REGION），
	// 仍解析不到时使用推理区域
	Region string `yaml:"region"`
	// Endpoint 自定义端点（如本地 MinIO），为空时使用默认端点
	Endpoint string `yaml:"endpoint"`
	// UsePathStyle 是否使用 path-style 寻址，自定义端点通常需要开启
	UsePathStyle bool `yaml:"use_path_style"`
}

// DispatchConfig 分发器配置结构体。
type DispatchConfig struct {
	// StoragePolicy 存储失败处理策略，可选值：best_effort、strict
	// 默认值：best_effort
	StoragePolicy string `yaml:"storage_policy"`
}

// EventsConfig 事件配置结构体。
type EventsConfig struct {
	// NatsURL NATS 消息服务器 URL，为空时不发布事件
	NatsURL string `yaml:"nats_url"`
	// Subject 发布文章保存事件的 subject
	// 默认值：blog.post.saved
	Subject string `yaml:"subject"`
	// RequestSubject 网关订阅的生成请求 subject，为空时不订阅
	// 消息为 blog.post.requested 事件，其 data 与 HTTP 请求体格式相同
	RequestSubject string `yaml:"request_subject"`
}

// ScheduleEntry 定时生成任务。
type ScheduleEntry struct {
	// Cron 六段式 cron 表达式（含秒）
	Cron string `yaml:"cron"`
	// Topic 生成文章使用的主题
	Topic string `yaml:"topic"`
}

// LoggingConfig 日志配置结构体。
type LoggingConfig struct {
	// Level 日志级别，可选值：debug、info、warn、error
	Level string `yaml:"level"`
	// Format 日志格式，可选值：json、text
	Format string `yaml:"format"`
}

// MetricsConfig 指标配置结构体。
type MetricsConfig struct {
	// Enabled 是否启用指标收集
	Enabled bool `yaml:"enabled"`
	// Namespace 指标命名空间前缀
	// 默认值：blogsmith
	Namespace string `yaml:"namespace"`
}

// TelemetryConfig 遥测配置结构体。
type TelemetryConfig struct {
	// Enabled 是否启用遥测
	Enabled bool `yaml:"enabled"`
	// Endpoint OTLP gRPC 端点地址
	// 默认值：tempo:4317
	Endpoint string `yaml:"endpoint"`
	// ServiceName 服务名称，用于追踪标识
	// 默认值：blogsmith
	ServiceName string `yaml:"service_name"`
	// SampleRate 采样率，范围 0.0 到 1.0
	// 默认值：0.1
	SampleRate float64 `yaml:"sample_rate"`
	// Environment 环境标识
	// 默认值：development
	Environment string `yaml:"environment"`
}

// Default 返回填充了全部默认值的配置。
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.finalize()
	return cfg
}

// Load 从指定路径加载配置文件。
// 该函数会读取 YAML 配置文件，应用默认值，并处理环境变量覆盖。
//
// 参数：
//   - path: 配置文件的路径
//
// 返回值：
//   - *Config: 加载并处理后的配置对象
//   - error: 如果读取、解析或校验失败则返回错误
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	cfg.finalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv 仅从默认值和环境变量构建配置。
// Lambda 环境没有配置文件；如果设置了 BLOGSMITH_CONFIG，则改为从该路径加载。
func FromEnv() (*Config, error) {
	if path := strings.TrimSpace(os.Getenv("BLOGSMITH_CONFIG")); path != "" {
		return Load(path)
	}

	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	cfg.finalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置中的枚举值和取值范围。
func (c *Config) Validate() error {
	switch c.Dispatch.StoragePolicy {
	case StoragePolicyBestEffort, StoragePolicyStrict:
	default:
		return fmt.Errorf("%w: unknown storage policy %q", domain.ErrInvalidConfig, c.Dispatch.StoragePolicy)
	}
	switch c.Inference.RetryMode {
	case "standard", "adaptive":
	default:
		return fmt.Errorf("%w: unknown retry mode %q", domain.ErrInvalidConfig, c.Inference.RetryMode)
	}
	if c.Inference.MaxAttempts < 1 {
		return fmt.Errorf("%w: max_attempts must be at least 1", domain.ErrInvalidConfig)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("%w: storage bucket is required", domain.ErrInvalidConfig)
	}
	// 事件 subject 必须落在 BLOG_EVENTS Stream 的 blog.> 范围内
	if !strings.HasPrefix(c.Events.Subject, "blog.") {
		return fmt.Errorf("%w: events subject %q must start with \"blog.\"", domain.ErrInvalidConfig, c.Events.Subject)
	}
	if c.Events.RequestSubject != "" && !strings.HasPrefix(c.Events.RequestSubject, "blog.") {
		return fmt.Errorf("%w: request subject %q must start with \"blog.\"", domain.ErrInvalidConfig, c.Events.RequestSubject)
	}
	if c.Auth.Enabled && len(c.Auth.APIKeyHashes) == 0 && c.Auth.JWTSecret == "" {
		return fmt.Errorf("%w: auth enabled without api keys or jwt secret", domain.ErrInvalidConfig)
	}
	for i, entry := range c.Schedule {
		if strings.TrimSpace(entry.Cron) == "" {
			return fmt.Errorf("%w: schedule[%d] has empty cron expression", domain.ErrInvalidConfig, i)
		}
	}
	return nil
}

// applyEnvOverrides 应用环境变量覆盖。
// 部署相关的值（区域、模型、存储桶）通常由函数的环境变量提供。
// 推理区域只认 BLOGSMITH_REGION：Lambda 运行时注入的 AWS_REGION 是函数所在区域，
// 不一定提供该模型；存储区域为空时才由 SDK 按 AWS_REGION 解析。
func (c *Config) applyEnvOverrides() {
	if v := readEnvOrFileAny([]string{"BLOGSMITH_REGION"}, nil); v != "" {
		c.Inference.Region = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_MODEL_ID"}, []string{"BLOGSMITH_MODEL_ID_FILE"}); v != "" {
		c.Inference.ModelID = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_BUCKET"}, []string{"BLOGSMITH_BUCKET_FILE"}); v != "" {
		c.Storage.Bucket = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_KEY_PREFIX"}, nil); v != "" {
		c.Storage.KeyPrefix = strings.Trim(v, "/")
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_STORAGE_REGION"}, nil); v != "" {
		c.Storage.Region = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_STORAGE_ENDPOINT"}, nil); v != "" {
		c.Storage.Endpoint = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_STORAGE_POLICY"}, nil); v != "" {
		c.Dispatch.StoragePolicy = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_NATS_URL"}, []string{"BLOGSMITH_NATS_URL_FILE"}); v != "" {
		c.Events.NatsURL = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_REQUEST_SUBJECT"}, nil); v != "" {
		c.Events.RequestSubject = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_JWT_SECRET"}, []string{"BLOGSMITH_JWT_SECRET_FILE"}); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_API_KEY_HASHES"}, []string{"BLOGSMITH_API_KEY_HASHES_FILE"}); v != "" {
		c.Auth.APIKeyHashes = strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == '\n' || r == ' '
		})
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_AUTH_ENABLED"}, nil); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Auth.Enabled = b
		}
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_LOG_LEVEL"}, nil); v != "" {
		c.Logging.Level = v
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_MAX_ATTEMPTS"}, nil); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Inference.MaxAttempts = n
		}
	}
	if v := readEnvOrFileAny([]string{"BLOGSMITH_READ_TIMEOUT"}, nil); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Inference.ReadTimeout = d
		}
	}
}

// readEnvOrFileAny 从环境变量或文件读取配置值。
// 优先从 fileKeys 指定的文件路径读取，如果文件不存在或读取失败，
// 则从 envKeys 指定的环境变量读取。
//
// 参数：
//   - envKeys: 直接存储值的环境变量名（按优先级从高到低）
//   - fileKeys: 存储文件路径的环境变量名（按优先级从高到低）
//
// 返回值：
//   - string: 读取到的配置值，如果都未设置则返回空字符串
func readEnvOrFileAny(envKeys []string, fileKeys []string) string {
	for _, fileKey := range fileKeys {
		if filePath := strings.TrimSpace(os.Getenv(fileKey)); filePath != "" {
			if b, err := os.ReadFile(filePath); err == nil {
				return strings.TrimSpace(string(b))
			}
		}
	}

	for _, envKey := range envKeys {
		if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
			return v
		}
	}

	return ""
}

// finalize 推导依赖其他配置项的值，必须在环境变量覆盖之后调用。
func (c *Config) finalize() {
	// 请求超时需要覆盖推理超时，否则网关会先于 SDK 放弃
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = c.Inference.ReadTimeout + 30*time.Second
	}
	// 自定义端点（如 MinIO）通常不支持虚拟主机寻址
	if c.Storage.Endpoint != "" {
		c.Storage.UsePathStyle = true
	}
}

// applyDefaults 应用默认配置值。
// 推理与存储的默认值与最初部署时的硬编码值一致。
func (c *Config) applyDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.MetricsPort == 0 {
		c.Server.MetricsPort = 9090
	}
	if c.Server.RoutePath == "" {
		c.Server.RoutePath = "/blog-generation"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 30 * time.Second
	}

	if c.Auth.APIKeyHeader == "" {
		c.Auth.APIKeyHeader = "X-API-Key"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = time.Hour
	}

	if c.Inference.Region == "" {
		c.Inference.Region = "us-east-1"
	}
	if c.Inference.ModelID == "" {
		c.Inference.ModelID = "meta.llama3-70b-instruct-v1:0"
	}
	if c.Inference.MaxGenLen == 0 {
		c.Inference.MaxGenLen = 512
	}
	if c.Inference.Temperature == 0 {
		c.Inference.Temperature = 0.7
	}
	if c.Inference.TopP == 0 {
		c.Inference.TopP = 0.9
	}
	if c.Inference.ReadTimeout == 0 {
		c.Inference.ReadTimeout = 300 * time.Second
	}
	if c.Inference.MaxAttempts == 0 {
		c.Inference.MaxAttempts = 3
	}
	if c.Inference.RetryMode == "" {
		c.Inference.RetryMode = "standard"
	}

	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "aws-bedrock-blog-posts-hexa"
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "blog_posts"
	}

	if c.Dispatch.StoragePolicy == "" {
		c.Dispatch.StoragePolicy = StoragePolicyBestEffort
	}

	if c.Events.Subject == "" {
		c.Events.Subject = "blog.post.saved"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "blogsmith"
	}

	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "blogsmith"
	}
	if c.Telemetry.Endpoint == "" {
		c.Telemetry.Endpoint = "tempo:4317"
	}
	if c.Telemetry.SampleRate == 0 {
		c.Telemetry.SampleRate = 0.1
	}
	if c.Telemetry.Environment == "" {
		c.Telemetry.Environment = "development"
	}
}
