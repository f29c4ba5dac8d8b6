package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Relay     RelayConfig
	Renderer  RendererConfig
	Answer    AnswerConfig
	Corpus    CorpusConfig
	Workbench WorkbenchConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	SurfaceLogFilePath string
	AuditLogFilePath   string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type RelayConfig struct {
	Path         string   // Route the relay is mounted on
	ClientURL    string   // Absolute relay URL the proxy client talks to
	AllowedHosts []string // Empty means any public host
	Timeout      time.Duration
	MaxBytes     int64
	RatePerSec   float64
	Burst        int
	CacheTTL     time.Duration
}

type RendererConfig struct {
	Order            []string // Variant priority, e.g. "embed,pdfjs,native"
	EmbedClientID    string
	EmbedSDKURL      string
	EmbedReadyWait   time.Duration
	PDFJSViewerPath  string
	PDFJSStaticDir   string // Served under /pdfjs when set
	NativeViewerHint string
}

type AnswerConfig struct {
	Provider    string // "http" or "llm"
	ServiceURL  string
	TopK        int
	MaxWords    int
	Timeout     time.Duration
	LLMProvider string // "ollama" or "huggingface"
	LLMBaseURL  string
	LLMModel    string
	LLMAPIKey   string
}

type CorpusConfig struct {
	DocumentsFile string
}

type WorkbenchConfig struct {
	IdleTTL       time.Duration
	IndexCacheTTL time.Duration // Extracted clause indexes, keyed by PDF content
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	port := getEnv("APP_PORT", "3000")
	baseURL := getEnv("APP_BASE_URL", "http://localhost:"+port)
	relayPath := getEnv("RELAY_PATH", "/api/relay")

	return &Config{
		App: AppConfig{
			Port:               port,
			BaseURL:            baseURL,
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			SurfaceLogFilePath: getEnv("SURFACE_LOG_FILE_PATH", "logs/surface.log"),
			AuditLogFilePath:   getEnv("AUDIT_LOG_FILE_PATH", "logs/audit.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Relay: RelayConfig{
			Path:         relayPath,
			ClientURL:    getEnv("RELAY_CLIENT_URL", strings.TrimRight(baseURL, "/")+relayPath),
			AllowedHosts: getEnvAsList("RELAY_ALLOWED_HOSTS", nil),
			Timeout:      getEnvAsDuration("RELAY_TIMEOUT", 30*time.Second),
			MaxBytes:     int64(getEnvAsInt("RELAY_MAX_BYTES", 50*1024*1024)),
			RatePerSec:   getEnvAsFloat("RELAY_RATE_PER_SEC", 5),
			Burst:        getEnvAsInt("RELAY_BURST", 10),
			CacheTTL:     getEnvAsDuration("RELAY_CACHE_TTL", 10*time.Minute),
		},
		Renderer: RendererConfig{
			Order:            getEnvAsList("RENDERER_ORDER", []string{"embed", "pdfjs", "native"}),
			EmbedClientID:    getEnv("EMBED_CLIENT_ID", ""),
			EmbedSDKURL:      getEnv("EMBED_SDK_URL", "https://acrobatservices.adobe.com/view-sdk/viewer.js"),
			EmbedReadyWait:   getEnvAsDuration("EMBED_READY_TIMEOUT", 8*time.Second),
			PDFJSViewerPath:  getEnv("PDFJS_VIEWER_PATH", "/pdfjs/web/viewer.html"),
			PDFJSStaticDir:   getEnv("PDFJS_STATIC_DIR", "./public/pdfjs"),
			NativeViewerHint: getEnv("NATIVE_VIEWER_HINT", "Search is not available in this viewer. Use your browser's find shortcut."),
		},
		Answer: AnswerConfig{
			Provider:    getEnv("ANSWER_PROVIDER", "http"),
			ServiceURL:  getEnv("ANSWER_SERVICE_URL", "http://localhost:8000/api/ask"),
			TopK:        getEnvAsInt("ANSWER_TOP_K", 5),
			MaxWords:    getEnvAsInt("ANSWER_MAX_WORDS", 120),
			Timeout:     getEnvAsDuration("ANSWER_TIMEOUT", 60*time.Second),
			LLMProvider: getEnv("LLM_PROVIDER", "ollama"),
			LLMBaseURL:  getEnv("LLM_BASE_URL", "http://localhost:11434"),
			LLMModel:    getEnv("LLM_MODEL", "llama3"),
			LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		},
		Corpus: CorpusConfig{
			DocumentsFile: getEnv("DOCUMENTS_FILE", "documents.yaml"),
		},
		Workbench: WorkbenchConfig{
			IdleTTL:       getEnvAsDuration("WORKBENCH_IDLE_TTL", time.Hour),
			IndexCacheTTL: getEnvAsDuration("CLAUSE_INDEX_CACHE_TTL", 24*time.Hour),
		},
		Tracing: TracingConfig{
			Enabled:     getEnv("OTEL_ENABLED", "") == "true",
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "compliance-navigator"),
		},
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

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

// getEnvAsList splits a comma separated value, dropping empty items.
func getEnvAsList(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
