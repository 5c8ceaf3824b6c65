package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "test-gemini-key-123456")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.Text.Provider)
	assert.Equal(t, "gemini-3-pro-preview", cfg.Gemini.TextModel)
	assert.Equal(t, "gemini-3-pro-image-preview", cfg.Gemini.ImageModel)
	assert.Equal(t, "test-gemini-key-123456", cfg.Gemini.APIKey)
	assert.Equal(t, "memory", cfg.Credential.Store)
	assert.Equal(t, 6*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 1, cfg.Carousel.StartIndex)
	assert.Equal(t, float64(1280), cfg.Carousel.DefaultWidth)
	assert.True(t, cfg.Credential.RequireSelection)
	assert.Equal(t, "remote", cfg.Image.DefaultMode)
	assert.Equal(t, 4, cfg.Queue.Workers)
	assert.Equal(t, 32, cfg.Queue.MaxSize)
	assert.Equal(t, 2, cfg.OpenRouter.MaxRetries)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_SERVER_PORT", "9090")
	t.Setenv("CREDENTIAL_STORE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("DEDUP_WINDOW", "3s")
	t.Setenv("REQUIRE_KEY_SELECTION", "false")
	t.Setenv("IMAGE_MODE", "local")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Credential.Store)
	assert.Equal(t, "redis:6379", cfg.Credential.RedisAddr)
	assert.Equal(t, 3*time.Second, cfg.DedupWindow)
	assert.False(t, cfg.Credential.RequireSelection)
	assert.Equal(t, "local", cfg.Image.DefaultMode)
}

func TestLoadConfig_OpenRouterRequiresKey(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TEXT_PROVIDER", "openrouter")
	t.Setenv("APP_OPENROUTER_ENABLED", "true")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openrouter api key")
}

func TestLoadConfig_RejectsStartIndexOutOfRange(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GEMINI_API_KEY", "test-gemini-key-123456")
	t.Setenv("APP_CAROUSEL_START_INDEX", "7")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carousel start index 7")
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:     ServerConfig{Port: 8080},
			Gemini:     GeminiConfig{TextModel: "m"},
			Text:       TextConfig{Provider: "gemini"},
			Session:    SessionConfig{MaxSize: 1, TTL: time.Minute, CleanupInterval: time.Minute},
			Credential: CredentialConfig{Store: "memory"},
			Carousel:   CarouselConfig{DefaultWidth: 100},
			Image:      ImageConfig{DefaultMode: "remote"},
			Queue:      QueueConfig{Workers: 1},
		}
	}

	require.NoError(t, validateConfig(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown provider", func(c *Config) { c.Text.Provider = "other" }},
		{"session size", func(c *Config) { c.Session.MaxSize = 0 }},
		{"unknown store", func(c *Config) { c.Credential.Store = "disk" }},
		{"redis without addr", func(c *Config) { c.Credential.Store = "redis"; c.Credential.RedisAddr = "" }},
		{"unknown image mode", func(c *Config) { c.Image.DefaultMode = "cloud" }},
		{"carousel width", func(c *Config) { c.Carousel.DefaultWidth = 0 }},
		{"negative start index", func(c *Config) { c.Carousel.StartIndex = -1 }},
		{"start index past last page", func(c *Config) { c.Carousel.StartIndex = 3 }},
		{"openrouter retries", func(c *Config) { c.OpenRouter.MaxRetries = -1 }},
		{"queue workers", func(c *Config) { c.Queue.Workers = 0 }},
		{"rate limit", func(c *Config) { c.RateLimit = RateLimitConfig{Enabled: true} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", MaskAPIKey("short"))
	assert.Equal(t, "abcd...wxyz", MaskAPIKey("abcdefghijklmnopqrstuvwxyz"))
}
