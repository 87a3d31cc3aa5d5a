package app

import (
	"time"

	"github.com/yungbote/deepchat-backend/internal/logger"
	"github.com/yungbote/deepchat-backend/internal/utils"
)

type Config struct {
	Port string

	LLMAPIBase        string
	LLMAPIKey         string
	LLMModel          string
	LLMTemperature    float64
	LLMMaxTokens      int
	GenerationTimeout time.Duration

	SummaryTemperature float64
	SummaryMaxTokens   int

	ExtractorURL string

	CacheDir      string
	UploadMaxSize int64

	DedupWindow   time.Duration
	TaskRetention time.Duration

	RedisAddr        string
	RedisTaskChannel string
}

func LoadConfig(log *logger.Logger) Config {
	generationTimeoutSeconds := utils.GetEnvAsInt("DEEPCHAT_GENERATION_TIMEOUT", 300, log)
	uploadMaxSize := utils.GetEnvAsInt("DEEPCHAT_UPLOAD_MAX_SIZE", 10*1024*1024, log)
	dedupWindowSeconds := utils.GetEnvAsInt("DEEPCHAT_DEDUP_WINDOW", 5, log)
	taskRetentionSeconds := utils.GetEnvAsInt("DEEPCHAT_TASK_RETENTION", 600, log)
	return Config{
		Port:              utils.GetEnv("PORT", "8080", log),
		LLMAPIBase:        utils.GetEnv("DEEPCHAT_API_BASE", "https://api.deepseek.com/v1", log),
		LLMAPIKey:         utils.GetEnv("DEEPCHAT_API_KEY", "", log),
		LLMModel:          utils.GetEnv("DEEPCHAT_MODEL", "deepseek-chat", log),
		LLMTemperature:    utils.GetEnvAsFloat("DEEPCHAT_TEMPERATURE", 0.7, log),
		LLMMaxTokens:      utils.GetEnvAsInt("DEEPCHAT_MAX_TOKENS", 1000, log),
		GenerationTimeout: time.Duration(generationTimeoutSeconds) * time.Second,

		// Summaries run near-deterministic with a larger budget than chat turns.
		SummaryTemperature: utils.GetEnvAsFloat("DEEPCHAT_SUMMARY_TEMPERATURE", 0.3, log),
		SummaryMaxTokens:   utils.GetEnvAsInt("DEEPCHAT_SUMMARY_MAX_TOKENS", 1500, log),

		ExtractorURL: utils.GetEnv("DEEPCHAT_EXTRACTOR_URL", "http://localhost:8081", log),

		CacheDir:      utils.GetEnv("DEEPCHAT_CACHE_DIR", "pdf_cache", log),
		UploadMaxSize: int64(uploadMaxSize),

		DedupWindow:   time.Duration(dedupWindowSeconds) * time.Second,
		TaskRetention: time.Duration(taskRetentionSeconds) * time.Second,

		RedisAddr:        utils.GetEnv("REDIS_ADDR", "", log),
		RedisTaskChannel: utils.GetEnv("REDIS_TASK_CHANNEL", "task-events", log),
	}
}
