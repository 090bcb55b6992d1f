package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Front end
	ListenAddr         string
	OCRAPIURL          string
	ImageBackend       string
	CloudinaryURL      string
	CloudinaryPreset   string
	MinioEndpoint      string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioBucket        string
	MinioRegion        string
	MinioUseSSL        bool
	AssetPath          string
	PublicBaseURL      string
	NotificationTTL    time.Duration
	SessionIdleTimeout time.Duration
	HTTPTimeout        time.Duration

	// OCR backend
	APIListenAddr       string
	DBBackend           string
	DBPath              string
	DatabaseURL         string
	Extractor           string
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAIBaseURL       string
	ClaudeAPIKey        string
	ClaudeModel         string
	GeminiAPIKey        string
	GeminiModel         string
	OllamaHost          string
	OllamaModel         string
	GoogleCredentials   string
	RedisAddr           string
	ExtractCacheTTL     time.Duration
	CORSOrigins         []string
	ImageHosts          []string
	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string

	LogLevel string
	LogFile  string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present, and CARDSCAN_CONFIG may name a YAML
// file of KEY: value pairs. Precedence is environment, then YAML, then the
// built-in default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	l := &loader{}
	if path := os.Getenv("CARDSCAN_CONFIG"); path != "" {
		values, err := readYAML(path)
		if err != nil {
			return nil, err
		}
		l.file = values
	}

	cfg := &Config{
		ListenAddr:         l.get("LISTEN_ADDR", ":8080"),
		OCRAPIURL:          strings.TrimRight(l.get("OCR_API_URL", "http://localhost:5000"), "/"),
		ImageBackend:       l.get("IMAGE_BACKEND", "cloudinary"),
		CloudinaryURL:      l.get("CLOUDINARY_URL", ""),
		CloudinaryPreset:   l.get("CLOUDINARY_UPLOAD_PRESET", ""),
		MinioEndpoint:      l.get("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey:     l.get("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:     l.get("MINIO_SECRET_KEY", ""),
		MinioBucket:        l.get("MINIO_BUCKET", "cardscan"),
		MinioRegion:        l.get("MINIO_REGION", "us-east-1"),
		MinioUseSSL:        l.getBool("MINIO_USE_SSL", false),
		AssetPath:          l.get("ASSET_PATH", "/data/assets"),
		PublicBaseURL:      strings.TrimRight(l.get("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		NotificationTTL:    l.getDuration("NOTIFICATION_TTL", 5*time.Second),
		SessionIdleTimeout: l.getDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		HTTPTimeout:        l.getDuration("HTTP_TIMEOUT", 60*time.Second),

		APIListenAddr:       l.get("API_LISTEN_ADDR", ":5000"),
		DBBackend:           l.get("DB_BACKEND", "sqlite"),
		DBPath:              l.get("DB_PATH", "/data/cardscan.db"),
		DatabaseURL:         l.get("DATABASE_URL", ""),
		Extractor:           l.get("EXTRACTOR", "openai"),
		OpenAIAPIKey:        l.get("OPENAI_API_KEY", ""),
		OpenAIModel:         l.get("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:       l.get("OPENAI_BASE_URL", ""),
		ClaudeAPIKey:        l.get("CLAUDE_API_KEY", ""),
		ClaudeModel:         l.get("CLAUDE_MODEL", "claude-sonnet-4-5"),
		GeminiAPIKey:        l.get("GEMINI_API_KEY", ""),
		GeminiModel:         l.get("GEMINI_MODEL", "gemini-1.5-flash"),
		OllamaHost:          l.get("OLLAMA_HOST", "http://localhost:11434"),
		OllamaModel:         l.get("OLLAMA_MODEL", "llava"),
		GoogleCredentials:   l.get("GOOGLE_APPLICATION_CREDENTIALS", ""),
		RedisAddr:           l.get("REDIS_ADDR", ""),
		ExtractCacheTTL:     l.getDuration("EXTRACT_CACHE_TTL", time.Hour),
		CORSOrigins:         splitList(l.get("CORS_ORIGINS", "*")),
		ImageHosts:          splitList(l.get("IMAGE_HOSTS", "res.cloudinary.com")),
		CloudinaryCloudName: l.get("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    l.get("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: l.get("CLOUDINARY_API_SECRET", ""),

		LogLevel: l.get("LOG_LEVEL", "info"),
		LogFile:  l.get("LOG_FILE", ""),
	}
	if len(l.errs) > 0 {
		return nil, errors.Join(l.errs...)
	}
	return cfg, nil
}

// FetchHosts lists the hosts the OCR backend may download card images
// from: IMAGE_HOSTS plus the hosts of PUBLIC_BASE_URL and MINIO_ENDPOINT.
func (c *Config) FetchHosts() []string {
	hosts := slices.Clone(c.ImageHosts)
	if u, err := url.Parse(c.PublicBaseURL); err == nil && u.Host != "" {
		hosts = append(hosts, u.Host)
	}
	if c.MinioEndpoint != "" {
		hosts = append(hosts, c.MinioEndpoint)
	}
	return hosts
}

type loader struct {
	file map[string]string
	errs []error
}

func (l *loader) get(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	if val, exists := l.file[key]; exists {
		return val
	}
	return defaultVal
}

func (l *loader) getBool(key string, defaultVal bool) bool {
	switch strings.ToLower(l.get(key, "")) {
	case "":
		return defaultVal
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func (l *loader) getDuration(key string, defaultVal time.Duration) time.Duration {
	raw := l.get(key, "")
	if raw == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid %s: %w", key, err))
		return defaultVal
	}
	return d
}

func readYAML(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return values, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
