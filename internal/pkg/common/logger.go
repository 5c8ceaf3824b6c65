package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "recipe-content-studio"

var (
	// Logger 全局日誌實例，InitLogger 之前為 no-op
	Logger = zap.NewNop()

	// LogMode concise 時只輸出請求與啟停訊息
	LogMode string

	conciseMessages = map[string]bool{
		"請求完成":                    true,
		"啟動應用":                    true,
		"Shutting down server...": true,
		"Server exited":           true,
	}

	levelLabels = map[zapcore.Level]string{
		zapcore.DebugLevel: "\033[36mDBG\033[0m",
		zapcore.InfoLevel:  "\033[32mINF\033[0m",
		zapcore.WarnLevel:  "\033[33mWRN\033[0m",
		zapcore.ErrorLevel: "\033[31mERR\033[0m",
		zapcore.FatalLevel: "\033[35mFAT\033[0m",
	}
)

func encoderConfig(levelEncoder zapcore.LevelEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    levelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05.000"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

// 終端機輸出使用三字母彩色級別
func colorLevelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if label, ok := levelLabels[l]; ok {
		enc.AppendString(label)
		return
	}
	enc.AppendString(l.CapitalString())
}

// InitLogger 初始化日誌系統：JSON 檔案 + 彩色終端機。
// 檔案目錄取自 LOG_DIR，預設 logs。
func InitLogger(logLevel string) error {
	level, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(logLevel)))
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 讀取 LOG_MODE（必須在 .env 載入後）
	LogMode = os.Getenv("LOG_MODE")

	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig(zapcore.LowercaseLevelEncoder)), zapcore.AddSync(logFile), level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(colorLevelEncoder)), zapcore.AddSync(os.Stdout), level),
	)

	Logger = zap.New(core,
		zap.AddCallerSkip(1),
		zap.Fields(zap.String("service", serviceName)),
	)
	zap.ReplaceGlobals(Logger)

	return nil
}

// LogInfo 記錄信息日誌
func LogInfo(msg string, fields ...zap.Field) {
	if LogMode == "concise" && !conciseMessages[msg] {
		return
	}
	Logger.Info(msg, sanitizeFields(fields)...)
}

// LogError 記錄錯誤日誌
func LogError(msg string, fields ...zap.Field) {
	Logger.Error(msg, sanitizeFields(fields)...)
}

// LogWarn 記錄警告日誌
func LogWarn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, sanitizeFields(fields)...)
}

// LogDebug 記錄調試日誌
func LogDebug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, sanitizeFields(fields)...)
}

// LogFatal 記錄致命錯誤日誌
func LogFatal(msg string, fields ...zap.Field) {
	Logger.Fatal(msg, sanitizeFields(fields)...)
}

// Sync 同步日誌緩衝
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// sanitizeFields 丟棄圖片內容欄位，遮罩 API key
func sanitizeFields(fields []zap.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for _, f := range fields {
		key := strings.ToLower(f.Key)
		switch {
		case key == "image",
			strings.Contains(key, "image_data"),
			strings.Contains(key, "base64"),
			strings.Contains(key, "thumbnail_image"):
			continue
		case f.Type == zapcore.StringType && strings.HasPrefix(f.String, "data:image/"):
			continue
		case f.Type == zapcore.StringType && (strings.Contains(key, "api_key") || strings.Contains(key, "apikey")):
			out = append(out, zap.String(f.Key, maskSecret(f.String)))
			continue
		}
		out = append(out, f)
	}
	return out
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// LogAICall 記錄一次遠端生成呼叫
func LogAICall(provider, kind, model string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("provider", provider),
		zap.String("kind", kind),
		zap.String("model", model),
		zap.Duration("耗時", duration),
	}
	if err != nil {
		LogError("AI 請求失敗", append(fields, zap.Error(err))...)
		return
	}
	LogInfo("AI 請求成功", fields...)
}
