package web

import (
	"net/http"
	"strconv"

	"github.com/vbonduro/cardscan/internal/session"
)

func (s *Server) handleRecordsPage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	if err := sess.List.LoadPage(r.Context(), 1); err != nil {
		s.flowError(w, sess, "load page", err)
	}

	if err := s.renderPage(w,
		map[string]any{"List": sess.List.State(), "ActiveNav": "records"},
		"base.html", "pages/records.html", "partials/record_list.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleGoToPage(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	sess := s.sessions.Load(w, r)
	if err := sess.List.GoToPage(r.Context(), n); err != nil {
		s.flowError(w, sess, "go to page", err)
	}
	notifyChanged(w)
	s.renderRecordList(w, sess)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess := s.sessions.Load(w, r)
	if err := sess.List.DeleteItem(r.Context(), id); err != nil {
		s.flowError(w, sess, "delete", err)
	}
	notifyChanged(w)
	s.renderRecordList(w, sess)
}

func (s *Server) renderRecordList(w http.ResponseWriter, sess *session.Session) {
	if err := s.renderPartial(w, "partials/record_list.html", sess.List.State()); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}
