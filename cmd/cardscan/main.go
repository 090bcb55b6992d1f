package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/vbonduro/cardscan/internal/config"
	"github.com/vbonduro/cardscan/internal/imagestore"
	"github.com/vbonduro/cardscan/internal/imagestore/cloudinary"
	"github.com/vbonduro/cardscan/internal/imagestore/local"
	"github.com/vbonduro/cardscan/internal/imagestore/minio"
	"github.com/vbonduro/cardscan/internal/logging"
	"github.com/vbonduro/cardscan/internal/notify"
	"github.com/vbonduro/cardscan/internal/ocrapi"
	"github.com/vbonduro/cardscan/internal/service"
	"github.com/vbonduro/cardscan/internal/session"
	"github.com/vbonduro/cardscan/internal/web"
	"github.com/vbonduro/cardscan/internal/web/templates"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, cleanup, err := logging.New("cardscan", cfg.LogLevel, cfg.LogFile)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	ocr := ocrapi.NewClient(cfg.OCRAPIURL, httpClient)

	images, assets, err := newImageStore(ctx, cfg, ocr, logger)
	if err != nil {
		logger.Error("failed to initialize image store", "backend", cfg.ImageBackend, "error", err)
		return
	}

	newFlows := func(notes *notify.Center) (*service.CaptureFlow, *service.ListFlow) {
		return service.NewCaptureFlow(images, ocr, notes, logger), service.NewListFlow(ocr, notes, logger)
	}
	sessions := session.NewRegistry(newFlows, cfg.SessionIdleTimeout, cfg.NotificationTTL,
		strings.HasPrefix(cfg.PublicBaseURL, "https://"), logger)
	defer sessions.Close()
	go sessions.Run(ctx, time.Minute)

	server := web.NewServer(sessions, templates.FS, assets, logger)
	if err := server.ListenAndServe(ctx, cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
	}
}

// newImageStore picks the asset host. The returned AssetSource is non-nil
// only for the local backend, whose files this server serves itself.
func newImageStore(ctx context.Context, cfg *config.Config, ocr *ocrapi.Client, logger *slog.Logger) (imagestore.ImageStore, web.AssetSource, error) {
	switch cfg.ImageBackend {
	case "cloudinary":
		if cfg.CloudinaryURL == "" || cfg.CloudinaryPreset == "" {
			return nil, nil, fmt.Errorf("CLOUDINARY_URL and CLOUDINARY_UPLOAD_PRESET are required when IMAGE_BACKEND=cloudinary")
		}
		store, err := cloudinary.NewStore(cfg.CloudinaryURL, cfg.CloudinaryPreset, ocr)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using Cloudinary image store")
		return store, nil, nil
	case "minio":
		store, err := minio.New(ctx, cfg.MinioEndpoint, cfg.MinioRegion, cfg.MinioBucket,
			cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using MinIO image store", "endpoint", cfg.MinioEndpoint, "bucket", cfg.MinioBucket)
		return store, nil, nil
	case "local":
		store, err := local.NewStore(cfg.AssetPath, cfg.PublicBaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("using local image store", "path", cfg.AssetPath)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown IMAGE_BACKEND %q", cfg.ImageBackend)
	}
}
