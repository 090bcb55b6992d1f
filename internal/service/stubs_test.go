package service

import (
	"context"
	"io"
	"sync"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/ocrapi"
)

// calls records the order of remote calls across all stubs.
type calls struct {
	mu  sync.Mutex
	log []string
}

func (c *calls) add(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, s)
}

func (c *calls) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

type stubUploader struct {
	calls     *calls
	failOn    string // upload name that fails
	deleteErr error
	uploaded  [][]byte
	deleted   []string
}

func (s *stubUploader) Upload(_ context.Context, name, _ string, r io.Reader) (domain.Asset, error) {
	s.calls.add("upload:" + name)
	if name == s.failOn {
		return domain.Asset{}, io.ErrUnexpectedEOF
	}
	data, _ := io.ReadAll(r)
	s.uploaded = append(s.uploaded, data)
	return domain.Asset{URL: "https://img.example/v1/" + name + ".jpg", PublicID: name}, nil
}

func (s *stubUploader) Delete(_ context.Context, publicID string) error {
	s.calls.add("delete-asset:" + publicID)
	s.deleted = append(s.deleted, publicID)
	return s.deleteErr
}

type stubOCR struct {
	calls      *calls
	extract    *ocrapi.ExtractResponse
	extractErr error
	saveErr    error
	saved      []domain.ExtractedRecord
	gotFront   string
	gotBack    string
	block      chan struct{}
}

func (s *stubOCR) Extract(_ context.Context, frontURL, backURL string) (*ocrapi.ExtractResponse, error) {
	s.calls.add("extract")
	s.gotFront, s.gotBack = frontURL, backURL
	if s.block != nil {
		<-s.block
	}
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	return s.extract, nil
}

func (s *stubOCR) Save(_ context.Context, rec domain.ExtractedRecord) (*ocrapi.SaveResponse, error) {
	s.calls.add("save")
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	s.saved = append(s.saved, rec)
	return &ocrapi.SaveResponse{
		Success: true,
		Record:  &domain.SavedRecord{ExtractedRecord: rec, ID: "rec-1"},
	}, nil
}

type note struct {
	severity domain.Severity
	message  string
}

type stubNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (n *stubNotifier) push(sev domain.Severity, msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note{sev, msg})
}

func (n *stubNotifier) Info(msg string)    { n.push(domain.SeverityInfo, msg) }
func (n *stubNotifier) Success(msg string) { n.push(domain.SeveritySuccess, msg) }
func (n *stubNotifier) Error(msg string)   { n.push(domain.SeverityError, msg) }

func (n *stubNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notes))
	for _, x := range n.notes {
		out = append(out, x.message)
	}
	return out
}

func (n *stubNotifier) last() note {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notes) == 0 {
		return note{}
	}
	return n.notes[len(n.notes)-1]
}
