package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/cardscan/internal/imagestore/local"
)

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	if err := s.renderPartial(w, "partials/notifications.html", sess.Notes.List()); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	sess.Notes.Dismiss(r.PathValue("id"))
	if err := s.renderPartial(w, "partials/notifications.html", sess.Notes.List()); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

// handleGetAsset serves images written by the local image store.
func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	if s.assets == nil {
		http.NotFound(w, r)
		return
	}
	key := r.PathValue("key")
	reader, mimeType, err := s.assets.Get(r.Context(), key)
	if err != nil {
		if !errors.Is(err, local.ErrNotFound) {
			s.logger.Error("get asset failed", "key", key, "error", err)
		}
		http.NotFound(w, r)
		return
	}
	defer closeWithLog(reader, "asset reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write asset failed", "key", key, "error", err)
	}
}
