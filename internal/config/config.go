package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	LogFormat     string
	DatabaseURL   string

	// WhatsApp Cloud API
	WhatsAppToken     string
	PhoneNumberID     string
	VerifyToken       string
	WhatsAppAppSecret string
	GraphAPIBase      string
	SendMaxRetries    int

	// Link target for generated exhibits
	FrontendBaseURL  string
	FailureReply     string
	UnrecognizedHint string

	// Deduplication window
	DedupBackend string
	DedupWindow  time.Duration

	// Content generation
	ImageProvider       string
	OpenAIAPIKey        string
	OpenAIChatModel     string
	OpenAIImageModel    string
	GeminiAPIKey        string
	GeminiModelID       string
	BedrockImageModelID string
	GeneratorTimeout    time.Duration

	// Async fulfillment
	TaskTimeout          time.Duration
	ConversationQueue    string
	ConversationQueueURL string
	WorkerCount          int

	// Image storage
	MediaBackend    string
	UploadDir       string
	S3Bucket        string
	S3PublicBaseURL string

	// Web API
	CORSAllowedOrigins []string
	APIRateLimit       float64
	APIRateBurst       int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "5000"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "json"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		WhatsAppToken:     getEnv("WHATSAPP_TOKEN", ""),
		PhoneNumberID:     getEnv("PHONE_NUMBER_ID", ""),
		VerifyToken:       getEnv("VERIFY_TOKEN", ""),
		WhatsAppAppSecret: getEnv("WHATSAPP_APP_SECRET", ""),
		GraphAPIBase:      getEnv("GRAPH_API_BASE", "https://graph.facebook.com/v19.0"),
		SendMaxRetries:    getEnvAsInt("WHATSAPP_SEND_MAX_RETRIES", 0),

		FrontendBaseURL:  strings.TrimRight(getEnv("FRONTEND_BASE_URL", getEnv("AR_FRONTEND_URL", "")), "/"),
		FailureReply:     getEnv("FAILURE_REPLY", ""),
		UnrecognizedHint: getEnv("UNRECOGNIZED_HINT", ""),

		DedupBackend: strings.ToLower(strings.TrimSpace(getEnv("DEDUP_BACKEND", "memory"))),
		DedupWindow:  getEnvAsDuration("DEDUP_WINDOW", 5*time.Minute),

		ImageProvider:       strings.ToLower(strings.TrimSpace(getEnv("IMAGE_PROVIDER", "openai"))),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIChatModel:     getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:    getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		BedrockImageModelID: getEnv("BEDROCK_IMAGE_MODEL_ID", "amazon.titan-image-generator-v2:0"),
		GeneratorTimeout:    getEnvAsDuration("GENERATOR_TIMEOUT", 90*time.Second),

		TaskTimeout:          getEnvAsDuration("TASK_TIMEOUT", 3*time.Minute),
		ConversationQueue:    strings.ToLower(strings.TrimSpace(getEnv("CONVERSATION_QUEUE", "inline"))),
		ConversationQueueURL: getEnv("CONVERSATION_QUEUE_URL", ""),
		WorkerCount:          getEnvAsInt("WORKER_COUNT", 2),

		MediaBackend:    strings.ToLower(strings.TrimSpace(getEnv("MEDIA_BACKEND", "disk"))),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3PublicBaseURL: strings.TrimRight(getEnv("S3_PUBLIC_BASE_URL", ""), "/"),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		APIRateLimit:       getEnvAsFloat("API_RATE_LIMIT", 0.5),
		APIRateBurst:       getEnvAsInt("API_RATE_BURST", 5),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
