package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/ocrapi"
)

// PageSize is the number of record cards shown per page.
const PageSize = 3

// recordLister is the subset of ocrapi.Client that ListFlow requires.
type recordLister interface {
	List(ctx context.Context, limit, page int) (*ocrapi.ListResponse, error)
	Delete(ctx context.Context, id string) (*ocrapi.Response, error)
}

// ListState is a point-in-time copy of the list flow for rendering.
type ListState struct {
	Page  domain.Page
	Busy  bool
	Error string
}

// ListFlow pages through saved records and deletes them.
type ListFlow struct {
	records recordLister
	notify  Notifier
	logger  *slog.Logger

	mu      sync.Mutex
	running bool
	page    domain.Page
	err     *FlowError
}

func NewListFlow(records recordLister, notifier Notifier, logger *slog.Logger) *ListFlow {
	return &ListFlow{
		records: records,
		notify:  notifier,
		logger:  logger,
		page:    domain.EmptyPage(PageSize),
	}
}

// State returns the current page and inline error.
func (f *ListFlow) State() ListState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := ListState{Page: f.page, Busy: f.running}
	if f.err != nil {
		s.Error = f.err.Message
	}
	return s
}

// LoadPage fetches page n and replaces the current page with it. On
// failure the page becomes empty page 1 and the error is kept inline.
func (f *ListFlow) LoadPage(ctx context.Context, n int) error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.end()
	return f.load(ctx, n)
}

// GoToPage loads page n only when it lies within 1..TotalPages.
func (f *ListFlow) GoToPage(ctx context.Context, n int) error {
	f.mu.Lock()
	total := f.page.TotalPages()
	f.mu.Unlock()
	if n < 1 || n > total {
		return nil
	}
	return f.LoadPage(ctx, n)
}

// DeleteItem deletes a record then reloads the page chosen by
// TargetPageAfterDelete. A failed delete leaves the page untouched.
func (f *ListFlow) DeleteItem(ctx context.Context, id string) error {
	if err := f.begin(); err != nil {
		return err
	}
	defer f.end()

	if _, err := f.records.Delete(ctx, id); err != nil {
		ferr := newFlowError(KindDelete, err, msgDeleteFailed)
		f.logger.Error("delete failed", "id", id, "error", err)
		f.fail(ferr)
		return ferr
	}

	f.mu.Lock()
	target := TargetPageAfterDelete(f.page)
	f.mu.Unlock()
	f.logger.Info("record deleted", "id", id, "target_page", target)

	err := f.load(ctx, target)
	f.notify.Success(msgDeleted)
	return err
}

// TargetPageAfterDelete picks the page to show once one item of p has been
// deleted on the server.
func TargetPageAfterDelete(p domain.Page) int {
	newCount := p.Total - 1
	newTotalPages := domain.TotalPages(newCount, p.Size)

	switch {
	case newCount <= 0:
		return 1
	case len(p.Items) == 1 && p.Number > 1:
		return p.Number - 1
	case p.Number > newTotalPages && newTotalPages > 0:
		return newTotalPages
	default:
		return p.Number
	}
}

func (f *ListFlow) load(ctx context.Context, n int) error {
	if n < 1 {
		n = 1
	}
	resp, err := f.records.List(ctx, PageSize, n)
	if err != nil {
		ferr := newFlowError(KindFetchList, err, msgFetchFailed)
		f.logger.Error("list records failed", "page", n, "error", err)
		f.mu.Lock()
		f.page = domain.EmptyPage(PageSize)
		f.mu.Unlock()
		f.fail(ferr)
		return ferr
	}

	page := domain.EmptyPage(PageSize)
	if resp.Records != nil {
		page = domain.Page{
			Items:  resp.Records,
			Number: n,
			Size:   PageSize,
			Total:  resp.Count,
		}
	}

	f.mu.Lock()
	f.page = page
	f.err = nil
	f.mu.Unlock()
	f.logger.Debug("records page loaded", "page", page.Number, "items", len(page.Items), "total", page.Total)
	return nil
}

func (f *ListFlow) fail(ferr *FlowError) {
	f.mu.Lock()
	f.err = ferr
	f.mu.Unlock()
	f.notify.Error(ferr.Message)
}

func (f *ListFlow) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return ErrBusy
	}
	f.running = true
	return nil
}

func (f *ListFlow) end() {
	f.mu.Lock()
	f.running = false
	f.mu.Unlock()
}
