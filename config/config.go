package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment  string
	HTTPPort     string
	HTTPSPort    string
	Domains      []string
	CertCacheDir string
	LogDir       string

	OpenRouterAPIKey string
	OpenRouterAPIURL string
	VisionModel      string
	ChatModel        string

	RasterDPI     float64
	MaxUploadMB   int
	LLMTimeout    time.Duration
	LLMMaxRetries int
}

var isTest bool

func init() {
	isTest = os.Getenv("GO_ENVIRONMENT") == "test"
	if !isTest {
		err := godotenv.Load()
		if err != nil {
			log.Println("Warning: Error loading .env file:", err)
		}
	}
}

func Load() Config {
	return Config{
		Environment:      getEnv("ENVIRONMENT", "development"),
		HTTPPort:         getEnv("HTTP_PORT", "8086"),
		HTTPSPort:        getEnv("HTTPS_PORT", "443"),
		Domains:          []string{getEnv("DOMAIN", "example.com")},
		CertCacheDir:     getEnv("CERT_CACHE_DIR", "/etc/letsencrypt/live/example.com"),
		LogDir:           getEnv("LOG_DIR", "logs"),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterAPIURL: getEnv("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
		VisionModel:      getEnv("VISION_MODEL", "google/gemini-flash-1.5-8b"),
		ChatModel:        getEnv("CHAT_MODEL", "google/gemini-flash-1.5-8b"),
		RasterDPI:        float64(getEnvAsInt("RASTER_DPI", 200)),
		MaxUploadMB:      getEnvAsInt("MAX_UPLOAD_MB", 25),
		LLMTimeout:       time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 120)) * time.Second,
		LLMMaxRetries:    getEnvAsInt("LLM_MAX_RETRIES", 5),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
