// Package api is the record and OCR backend the cardscan front end talks to.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
	"github.com/vbonduro/cardscan/internal/ocrapi"
	"github.com/vbonduro/cardscan/internal/store"
)

const (
	defaultLimit = 10
	maxLimit     = 100
	maxPage      = 1_000_000
	maxBodyBytes = 1 << 20
)

// Repository persists saved records. Implemented by store.RecordStore and
// postgres.Store.
type Repository interface {
	Create(ctx context.Context, rec domain.ExtractedRecord) (*domain.SavedRecord, error)
	List(ctx context.Context, limit, offset int) ([]domain.SavedRecord, int, error)
	Delete(ctx context.Context, id string) error
}

// AssetDestroyer removes a hosted image by public id.
type AssetDestroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

type Server struct {
	repo      Repository
	extractor extract.Extractor
	assets    AssetDestroyer
	logger    *slog.Logger
	router    chi.Router
}

// NewServer wires the routes. assets may be nil, in which case asset
// deletion answers 501.
func NewServer(repo Repository, extractor extract.Extractor, assets AssetDestroyer, corsOrigins []string, logger *slog.Logger) *Server {
	s := &Server{repo: repo, extractor: extractor, assets: assets, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/ocr", func(r chi.Router) {
		r.Post("/aadhar", s.wrap(s.handleExtract))
		r.Get("/aadhar", s.wrap(s.handleList))
		r.Post("/save", s.wrap(s.handleSave))
		r.Delete("/delete/{id}", s.wrap(s.handleDelete))
	})
	r.Post("/cloudinary/delete", s.wrap(s.handleDeleteAsset))

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting api server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// httpError carries the status and user facing message for a failed request.
type httpError struct {
	status  int
	message string
	err     error
}

func (e *httpError) Error() string {
	if e.err != nil {
		return e.message + ": " + e.err.Error()
	}
	return e.message
}

func (e *httpError) Unwrap() error { return e.err }

func badRequest(message string) error {
	return &httpError{status: http.StatusBadRequest, message: message}
}

func failed(status int, message string, err error) error {
	return &httpError{status: status, message: message, err: err}
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (s *Server) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h(w, r)
		if err == nil {
			return
		}
		var he *httpError
		if !errors.As(err, &he) {
			he = &httpError{status: http.StatusInternalServerError, message: "Internal server error", err: err}
		}
		if he.status >= http.StatusInternalServerError {
			s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		} else {
			s.logger.Warn("request rejected", "method", r.Method, "path", r.URL.Path, "status", he.status, "error", err)
		}
		writeJSON(w, he.status, ocrapi.Response{Success: false, Message: he.message})
	}
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) error {
	var req ocrapi.ExtractRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	req.FrontImage = strings.TrimSpace(req.FrontImage)
	req.BackImage = strings.TrimSpace(req.BackImage)
	if req.FrontImage == "" || req.BackImage == "" {
		return badRequest("Both frontImage and backImage are required")
	}

	rec, err := s.extractor.Extract(r.Context(), extract.Image{URL: req.FrontImage}, extract.Image{URL: req.BackImage})
	if errors.Is(err, extract.ErrNoFields) {
		return failed(http.StatusUnprocessableEntity, "Could not read Aadhaar details from the images", err)
	}
	if errors.Is(err, extract.ErrHostNotAllowed) {
		return failed(http.StatusBadRequest, "Image URL host is not allowed", err)
	}
	if err != nil {
		return failed(http.StatusBadGateway, "Failed to process Aadhaar images", err)
	}

	writeJSON(w, http.StatusOK, ocrapi.ExtractResponse{
		Success:    true,
		Message:    "Aadhaar details extracted successfully",
		ParsedData: rec,
	})
	return nil
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) error {
	var rec domain.ExtractedRecord
	if err := decode(w, r, &rec); err != nil {
		return err
	}
	if rec.IsZero() {
		return badRequest("No data to save")
	}

	saved, err := s.repo.Create(r.Context(), rec)
	if err != nil {
		return failed(http.StatusInternalServerError, "Failed to save Aadhaar data", err)
	}
	writeJSON(w, http.StatusCreated, ocrapi.SaveResponse{
		Success: true,
		Message: "Aadhaar data saved successfully",
		Record:  saved,
	})
	return nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) error {
	limit, page := pagination(r)

	records, count, err := s.repo.List(r.Context(), limit, (page-1)*limit)
	if err != nil {
		return failed(http.StatusInternalServerError, "Failed to fetch OCR data", err)
	}
	if records == nil {
		records = []domain.SavedRecord{}
	}
	writeJSON(w, http.StatusOK, ocrapi.ListResponse{
		Success: true,
		Message: "OCR data fetched successfully",
		Records: records,
		Count:   count,
	})
	return nil
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	err := s.repo.Delete(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return failed(http.StatusNotFound, "OCR data not found", err)
	}
	if err != nil {
		return failed(http.StatusInternalServerError, "Failed to delete OCR data", err)
	}
	writeJSON(w, http.StatusOK, ocrapi.Response{Success: true, Message: "OCR data deleted successfully"})
	return nil
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request) error {
	var req ocrapi.DeleteAssetRequest
	if err := decode(w, r, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.PublicID) == "" {
		return badRequest("publicId is required")
	}
	if s.assets == nil {
		return failed(http.StatusNotImplemented, "Image deletion is not configured", nil)
	}
	if err := s.assets.Destroy(r.Context(), req.PublicID); err != nil {
		return failed(http.StatusBadGateway, "Failed to delete image", err)
	}
	writeJSON(w, http.StatusOK, ocrapi.Response{Success: true, Message: "Image deleted successfully"})
	return nil
}

// pagination reads limit and page, clamping limit to 1..maxLimit and page to
// 1..maxPage so the offset cannot overflow.
func pagination(r *http.Request) (limit, page int) {
	q := r.URL.Query()
	limit = defaultLimit
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		limit = min(max(v, 1), maxLimit)
	}
	page = 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 1 {
		page = min(v, maxPage)
	}
	return limit, page
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &httpError{status: http.StatusBadRequest, message: "Invalid request body", err: err}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
