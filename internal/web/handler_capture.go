package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/service"
	"github.com/vbonduro/cardscan/internal/session"
)

const maxImageSize = 20 * 1024 * 1024 // 20 MB

const msgBusy = "Please wait for the current operation to finish."

var fieldLabels = map[service.Field]string{
	service.FieldName:         "Name",
	service.FieldAadharNumber: "Aadhaar Number",
	service.FieldDOB:          "Date of Birth",
	service.FieldGender:       "Gender",
	service.FieldFatherName:   "Father's Name",
	service.FieldAddress:      "Address",
	service.FieldPinCode:      "Pincode",
}

type fieldView struct {
	Name  service.Field
	Label string
	Value string
}

type captureView struct {
	service.CaptureState
	Fields    []fieldView
	ActiveNav string
}

func newCaptureView(state service.CaptureState) captureView {
	v := captureView{CaptureState: state, ActiveNav: "capture"}
	for _, f := range service.Fields {
		v.Fields = append(v.Fields, fieldView{
			Name:  f,
			Label: fieldLabels[f],
			Value: service.FieldValue(state.Editable, f),
		})
	}
	return v
}

// handleCapturePage renders the capture page. A full page load starts a
// fresh capture.
func (s *Server) handleCapturePage(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	if err := sess.Capture.Reset(); err != nil {
		s.logger.Warn("capture reset skipped", "session_id", sess.ID, "error", err)
	}

	if err := s.renderPage(w, newCaptureView(sess.Capture.State()),
		"base.html", "pages/capture.html", "partials/capture_panel.html",
	); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	side := domain.Side(r.PathValue("side"))
	if !side.Valid() {
		http.NotFound(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageSize)
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file required", http.StatusBadRequest)
		return
	}
	defer closeWithLog(file, "upload file", s.logger)

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusInternalServerError)
		s.logger.Error("read upload failed", "side", side, "error", err)
		return
	}

	// Browsers label some camera formats generically; let the flow sniff those.
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}

	sess := s.sessions.Load(w, r)
	if err := sess.Capture.SelectImage(side, data, mimeType, header.Filename); err != nil {
		s.flowError(w, sess, "select image", err)
	}
	s.renderCapturePanel(w, sess)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	if _, err := sess.Capture.SubmitExtraction(r.Context()); err != nil {
		s.flowError(w, sess, "extract", err)
	}
	notifyChanged(w)
	s.renderCapturePanel(w, sess)
}

// handleEditFields applies every posted field to the editable copy.
func (s *Server) handleEditFields(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}
	sess := s.sessions.Load(w, r)
	for _, f := range service.Fields {
		if values, ok := r.PostForm[string(f)]; ok && len(values) > 0 {
			sess.Capture.EditField(f, values[0])
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}
	sess := s.sessions.Load(w, r)
	for _, f := range service.Fields {
		if values, ok := r.PostForm[string(f)]; ok && len(values) > 0 {
			sess.Capture.EditField(f, values[0])
		}
	}
	if _, err := sess.Capture.SubmitSave(r.Context()); err != nil {
		s.flowError(w, sess, "save", err)
	}
	notifyChanged(w)
	s.renderCapturePanel(w, sess)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Load(w, r)
	if err := sess.Capture.Reset(); err != nil {
		s.flowError(w, sess, "reset", err)
	}
	s.renderCapturePanel(w, sess)
}

func (s *Server) renderCapturePanel(w http.ResponseWriter, sess *session.Session) {
	if err := s.renderPartial(w, "partials/capture_panel.html", newCaptureView(sess.Capture.State())); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}

// flowError logs a flow failure. The flows notify the reviewer themselves;
// only a rejected overlapping request needs a message here.
func (s *Server) flowError(w http.ResponseWriter, sess *session.Session, op string, err error) {
	if errors.Is(err, service.ErrBusy) {
		sess.Notes.Info(msgBusy)
		notifyChanged(w)
	}
	s.logger.Debug("flow operation failed", "op", op, "session_id", sess.ID, "error", err)
}
