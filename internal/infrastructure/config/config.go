package config

import (
	"fmt"
	"strings"
	"time"

	"recipe-content-studio/internal/core/carousel"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	Gemini      GeminiConfig     `mapstructure:"gemini"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	Text        TextConfig       `mapstructure:"text"`
	Session     SessionConfig    `mapstructure:"session"`
	Credential  CredentialConfig `mapstructure:"credential"`
	Carousel    CarouselConfig   `mapstructure:"carousel"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Image       ImageConfig      `mapstructure:"image"`
	Queue       QueueConfig      `mapstructure:"queue"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env      string `mapstructure:"env"`
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	Version  string `mapstructure:"version"`
	Name     string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// GeminiConfig Gemini 文字與圖片生成設定
type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	TextModel  string        `mapstructure:"text_model"`
	ImageModel string        `mapstructure:"image_model"`
	ImageSize  string        `mapstructure:"image_size"`
	MaxRetries int           `mapstructure:"max_retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// TextConfig 文字生成供應商選擇
type TextConfig struct {
	Provider string `mapstructure:"provider"` // gemini | openrouter
}

// SessionConfig 工作階段保存設定
type SessionConfig struct {
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// CredentialConfig 憑證儲存設定
type CredentialConfig struct {
	Store     string        `mapstructure:"store"` // memory | redis
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisDB   int           `mapstructure:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl"`
	// RequireSelection 遠端封面是否一律要求使用者選擇 API key；
	// 關閉時只在伺服器沒有設定 key 的情況下要求
	RequireSelection bool `mapstructure:"require_selection"`
}

// CarouselConfig 頁面輪播設定
type CarouselConfig struct {
	DefaultWidth float64 `mapstructure:"default_width"`
	StartIndex   int     `mapstructure:"start_index"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// ImageConfig 圖片配置
type ImageConfig struct {
	MaxSizeBytes int64  `mapstructure:"max_size_bytes"`
	DefaultMode  string `mapstructure:"default_mode"` // remote | local
}

// QueueConfig 遠端生成排隊配置
type QueueConfig struct {
	Workers int `mapstructure:"workers"`  // 同時進行的遠端呼叫數
	MaxSize int `mapstructure:"max_size"` // 等待中的請求上限
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件（不存在時僅使用環境變數與預設值）
	_ = godotenv.Load()

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	_ = v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "API_KEY")
	_ = v.BindEnv("gemini.text_model", "GEMINI_TEXT_MODEL")
	_ = v.BindEnv("gemini.image_model", "GEMINI_IMAGE_MODEL")
	_ = v.BindEnv("openrouter.api_key", "OPENROUTER_API_KEY")
	_ = v.BindEnv("openrouter.model", "OPENROUTER_MODEL")
	_ = v.BindEnv("openrouter.max_tokens", "MODEL_MAX_TOKENS")
	_ = v.BindEnv("text.provider", "TEXT_PROVIDER")
	_ = v.BindEnv("credential.store", "CREDENTIAL_STORE")
	_ = v.BindEnv("credential.redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("credential.require_selection", "REQUIRE_KEY_SELECTION")
	_ = v.BindEnv("image.default_mode", "IMAGE_MODE")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")

	// 設定設定檔名稱和路徑
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")

	// 讀取設定檔
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 添加調試日誌（logger 尚未初始化，改用 fmt.Println）
	fmt.Println("Loading configuration", "gemini_api_key:", MaskAPIKey(v.GetString("gemini.api_key")), "text_provider:", v.GetString("text.provider"))

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "recipe-content-studio")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "180s")
	v.SetDefault("server.idle_timeout", "120s")

	// Gemini 設定
	v.SetDefault("gemini.text_model", "gemini-3-pro-preview")
	v.SetDefault("gemini.image_model", "gemini-3-pro-image-preview")
	v.SetDefault("gemini.image_size", "1K")
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.timeout", "120s")

	// OpenRouter 設定
	v.SetDefault("openrouter.enabled", false)
	v.SetDefault("openrouter.model", "google/gemini-2.5-flash")
	v.SetDefault("openrouter.max_tokens", 4000)
	v.SetDefault("openrouter.timeout", "90s")
	v.SetDefault("openrouter.max_retries", 2)

	v.SetDefault("text.provider", "gemini")

	// 工作階段設定
	v.SetDefault("session.max_size", 1000)
	v.SetDefault("session.ttl", "6h")
	v.SetDefault("session.cleanup_interval", "10m")

	// 憑證設定
	v.SetDefault("credential.store", "memory")
	v.SetDefault("credential.redis_addr", "localhost:6379")
	v.SetDefault("credential.redis_db", 0)
	v.SetDefault("credential.ttl", "24h")
	v.SetDefault("credential.require_selection", true)

	// 輪播設定
	v.SetDefault("carousel.default_width", 1280)
	v.SetDefault("carousel.start_index", 1)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	// 圖片設定
	v.SetDefault("image.max_size_bytes", 10*1024*1024) // 10MB
	v.SetDefault("image.default_mode", "remote")

	// 隊列設定
	v.SetDefault("queue.workers", 4)
	v.SetDefault("queue.max_size", 32)

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	switch config.Text.Provider {
	case "gemini":
		if config.Gemini.TextModel == "" {
			return fmt.Errorf("gemini text model is required")
		}
	case "openrouter":
		if !config.OpenRouter.Enabled {
			return fmt.Errorf("text provider openrouter requires openrouter.enabled")
		}
		if config.OpenRouter.APIKey == "" {
			return fmt.Errorf("openrouter api key is required")
		}
	default:
		return fmt.Errorf("unknown text provider: %q", config.Text.Provider)
	}

	if config.Gemini.MaxRetries < 0 {
		return fmt.Errorf("invalid gemini max retries")
	}
	if config.OpenRouter.MaxRetries < 0 {
		return fmt.Errorf("invalid openrouter max retries")
	}

	// 驗證工作階段設定
	if config.Session.MaxSize <= 0 {
		return fmt.Errorf("invalid session max size")
	}
	if config.Session.TTL <= 0 {
		return fmt.Errorf("invalid session ttl")
	}
	if config.Session.CleanupInterval <= 0 {
		return fmt.Errorf("invalid session cleanup interval")
	}

	switch config.Credential.Store {
	case "memory":
	case "redis":
		if config.Credential.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis credential store")
		}
	default:
		return fmt.Errorf("unknown credential store: %q", config.Credential.Store)
	}

	switch config.Image.DefaultMode {
	case "remote", "local":
	default:
		return fmt.Errorf("unknown image mode: %q", config.Image.DefaultMode)
	}

	if config.Carousel.DefaultWidth <= 0 {
		return fmt.Errorf("invalid carousel default width")
	}
	if pages := len(carousel.DefaultPages()); config.Carousel.StartIndex < 0 || config.Carousel.StartIndex >= pages {
		return fmt.Errorf("carousel start index %d out of range [0, %d)", config.Carousel.StartIndex, pages)
	}

	if config.Queue.Workers <= 0 || config.Queue.MaxSize < 0 {
		return fmt.Errorf("invalid queue settings")
	}

	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return fmt.Errorf("invalid rate limit settings")
	}

	return nil
}
