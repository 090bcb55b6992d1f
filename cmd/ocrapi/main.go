package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"google.golang.org/api/option"

	"github.com/vbonduro/cardscan/internal/api"
	"github.com/vbonduro/cardscan/internal/config"
	"github.com/vbonduro/cardscan/internal/db"
	"github.com/vbonduro/cardscan/internal/extract"
	"github.com/vbonduro/cardscan/internal/extract/cache"
	"github.com/vbonduro/cardscan/internal/extract/claude"
	"github.com/vbonduro/cardscan/internal/extract/gemini"
	"github.com/vbonduro/cardscan/internal/extract/googlevision"
	"github.com/vbonduro/cardscan/internal/extract/ollama"
	"github.com/vbonduro/cardscan/internal/extract/openai"
	"github.com/vbonduro/cardscan/internal/imagestore/cloudinary"
	"github.com/vbonduro/cardscan/internal/logging"
	"github.com/vbonduro/cardscan/internal/store"
	"github.com/vbonduro/cardscan/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New("ocrapi", cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := newRepository(cfg, logger)
	if err != nil {
		logger.Error("failed to open record store", "backend", cfg.DBBackend, "error", err)
		return
	}
	defer closeWithLog(closeRepo, "record store", logger)

	extractor, closeExtractor, err := newExtractor(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize extractor", "extractor", cfg.Extractor, "error", err)
		return
	}
	defer closeWithLog(closeExtractor, "extractor", logger)

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer closeWithLog(rdb, "redis", logger)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, extraction cache will miss until it recovers", "addr", cfg.RedisAddr, "error", err)
		}
		extractor = cache.New(extractor, rdb, cfg.ExtractCacheTTL, logger)
		logger.Info("extraction cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.ExtractCacheTTL)
	}

	var assets api.AssetDestroyer
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		admin, err := cloudinary.NewAdmin(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logger.Error("failed to configure cloudinary", "error", err)
			return
		}
		assets = admin
	} else {
		logger.Info("cloudinary credentials not set, image deletion disabled")
	}

	server := api.NewServer(repo, extractor, assets, cfg.CORSOrigins, logger)
	if err := server.ListenAndServe(ctx, cfg.APIListenAddr); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
	}
}

func newRepository(cfg *config.Config, logger *slog.Logger) (api.Repository, io.Closer, error) {
	switch cfg.DBBackend {
	case "sqlite":
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using sqlite record store", "path", cfg.DBPath)
		return store.NewRecordStore(database), database, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required when DB_BACKEND=postgres")
		}
		pg, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using postgres record store")
		return pg, pg, nil
	default:
		return nil, nil, fmt.Errorf("unknown DB_BACKEND %q", cfg.DBBackend)
	}
}

func newExtractor(ctx context.Context, cfg *config.Config, logger *slog.Logger) (extract.Extractor, io.Closer, error) {
	hosts := cfg.FetchHosts()
	fetcher := extract.NewFetcher(&http.Client{Timeout: cfg.HTTPTimeout}, hosts...)
	logger.Debug("image fetch hosts", "hosts", hosts)

	switch cfg.Extractor {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY is required when EXTRACTOR=openai")
		}
		// Locally stored images are not reachable by the provider.
		var inline *extract.Fetcher
		if cfg.ImageBackend == "local" {
			inline = fetcher
		}
		logger.Info("using OpenAI extractor", "model", cfg.OpenAIModel)
		return openai.New(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL, inline), nil, nil
	case "claude":
		if cfg.ClaudeAPIKey == "" {
			return nil, nil, fmt.Errorf("CLAUDE_API_KEY is required when EXTRACTOR=claude")
		}
		logger.Info("using Claude extractor", "model", cfg.ClaudeModel)
		return claude.New(cfg.ClaudeAPIKey, cfg.ClaudeModel, fetcher), nil, nil
	case "gemini":
		e, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, fetcher)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using Gemini extractor", "model", cfg.GeminiModel)
		return e, e, nil
	case "googlevision":
		var opts []option.ClientOption
		if cfg.GoogleCredentials != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentials))
		}
		e, err := googlevision.New(ctx, fetcher, opts...)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using Google Vision extractor")
		return e, e, nil
	case "ollama":
		logger.Info("using Ollama extractor", "model", cfg.OllamaModel)
		return ollama.New(cfg.OllamaHost, cfg.OllamaModel, &http.Client{Timeout: cfg.HTTPTimeout}, fetcher), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown EXTRACTOR %q", cfg.Extractor)
	}
}

func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.Error("failed to close "+label, "error", err)
	}
}
