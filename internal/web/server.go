package web

import (
	"context"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/service"
	"github.com/vbonduro/cardscan/internal/session"
)

// AssetSource serves images kept by the local image store. It is nil when
// images are hosted elsewhere.
type AssetSource interface {
	Get(ctx context.Context, key string) (io.ReadCloser, string, error)
}

type Server struct {
	sessions  *session.Registry
	templates fs.FS
	assets    AssetSource
	mux       *http.ServeMux
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(sessions *session.Registry, tmpl fs.FS, assets AssetSource, logger *slog.Logger) *Server {
	s := &Server{
		sessions:  sessions,
		templates: tmpl,
		assets:    assets,
		mux:       http.NewServeMux(),
		logger:    logger,
		tmplFuncs: template.FuncMap{
			"orNA":       orNA,
			"dobParts":   dobParts,
			"fieldValue": service.FieldValue,
			"pinCode":    pinCodeOrNA,
			"inc":        func(i int) int { return i + 1 },
			"sub":        func(a, b int) int { return a - b },
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleCapturePage)
	s.mux.HandleFunc("POST /capture/extract", s.handleExtract)
	s.mux.HandleFunc("POST /capture/fields", s.handleEditFields)
	s.mux.HandleFunc("POST /capture/save", s.handleSave)
	s.mux.HandleFunc("POST /capture/reset", s.handleReset)
	s.mux.HandleFunc("POST /capture/{side}", s.handleSelectImage)
	s.mux.HandleFunc("GET /records", s.handleRecordsPage)
	s.mux.HandleFunc("GET /records/page/{n}", s.handleGoToPage)
	s.mux.HandleFunc("DELETE /records/{id}", s.handleDeleteRecord)
	s.mux.HandleFunc("GET /notifications", s.handleNotifications)
	s.mux.HandleFunc("DELETE /notifications/{id}", s.handleDismissNotification)
	s.mux.HandleFunc("GET /assets/{key}", s.handleGetAsset)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
}

// securityHeaders sets browser hardening headers on every response.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Content-Security-Policy",
			"default-src 'self'; "+
				"script-src 'self' 'unsafe-inline' https://unpkg.com; "+
				"style-src 'self' 'unsafe-inline'; "+
				"img-src 'self' data: https:; "+
				"connect-src 'self'")
		next.ServeHTTP(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the written status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestLogger(s.logger, securityHeaders(s.mux)).ServeHTTP(w, r)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.logger.Info("starting server", "addr", addr)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  60 * time.Second,
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

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial parses and executes a single named partial template.
// The file must contain exactly one {{define "name"}}...{{end}} block.
func (s *Server) renderPartial(w http.ResponseWriter, file string, data any) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, file)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	basename := file
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		basename = file[idx+1:]
	}
	for _, t := range tmpl.Templates() {
		if n := t.Name(); n != "" && n != basename {
			return t.Execute(w, data)
		}
	}
	return tmpl.ExecuteTemplate(w, basename, data)
}

// notifyChanged asks the page to refresh its toast list after the swap.
func notifyChanged(w http.ResponseWriter) {
	w.Header().Set("HX-Trigger", "notifications")
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

// dobParts splits a dd/mm/yyyy date into day, month and year. It returns
// nil when no date is set.
func dobParts(dob *string) []string {
	if dob == nil || strings.TrimSpace(*dob) == "" {
		return nil
	}
	parts := strings.Split(*dob, "/")
	out := make([]string, 3)
	for i := range out {
		if i < len(parts) {
			out[i] = strings.TrimSpace(parts[i])
		}
	}
	return out
}

func pinCodeOrNA(rec domain.SavedRecord) string {
	if rec.PinCode == "" {
		return "N/A"
	}
	return rec.PinCode
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
