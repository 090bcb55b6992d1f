package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/cardscan/internal/db"
	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
	"github.com/vbonduro/cardscan/internal/ocrapi"
	"github.com/vbonduro/cardscan/internal/store"
)

type fakeExtractor struct {
	rec   *domain.ExtractedRecord
	err   error
	front string
	back  string
}

func (f *fakeExtractor) Extract(_ context.Context, front, back extract.Image) (*domain.ExtractedRecord, error) {
	f.front, f.back = front.URL, back.URL
	return f.rec, f.err
}

type fakeDestroyer struct {
	ids []string
	err error
}

func (f *fakeDestroyer) Destroy(_ context.Context, publicID string) error {
	f.ids = append(f.ids, publicID)
	return f.err
}

type harness struct {
	client    *ocrapi.Client
	url       string
	repo      *store.RecordStore
	extractor *fakeExtractor
	assets    *fakeDestroyer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	h := &harness{
		repo:      store.NewRecordStore(d),
		extractor: &fakeExtractor{},
		assets:    &fakeDestroyer{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(NewServer(h.repo, h.extractor, h.assets, []string{"*"}, logger))
	t.Cleanup(srv.Close)
	h.url = srv.URL
	h.client = ocrapi.NewClient(srv.URL, srv.Client())
	return h
}

func seed(t *testing.T, repo *store.RecordStore, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := range n {
		rec, err := repo.Create(context.Background(), domain.ExtractedRecord{
			Name:    domain.StringPtr(fmt.Sprintf("Holder %d", i)),
			PinCode: "560001",
		})
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	return ids
}

func TestExtract(t *testing.T) {
	h := newHarness(t)
	h.extractor.rec = &domain.ExtractedRecord{Name: domain.StringPtr("Asha Verma"), PinCode: "560038"}

	resp, err := h.client.Extract(context.Background(), "https://img/front.jpg", "https://img/back.jpg")
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.ParsedData)
	assert.Equal(t, "Asha Verma", domain.Deref(resp.ParsedData.Name))
	assert.Equal(t, "https://img/front.jpg", h.extractor.front)
	assert.Equal(t, "https://img/back.jpg", h.extractor.back)
}

func TestExtractRequiresBothImages(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.Extract(context.Background(), "https://img/front.jpg", " ")
	var apiErr *ocrapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Both frontImage and backImage are required", apiErr.Message)
}

func TestExtractFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unreadable", fmt.Errorf("parse: %w", extract.ErrNoFields), http.StatusUnprocessableEntity, "Could not read Aadhaar details from the images"},
		{"backend down", errors.New("connection refused"), http.StatusBadGateway, "Failed to process Aadhaar images"},
		{"foreign host", fmt.Errorf("front image: %w", extract.ErrHostNotAllowed), http.StatusBadRequest, "Image URL host is not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.extractor.err = tt.err

			_, err := h.client.Extract(context.Background(), "a", "b")
			var apiErr *ocrapi.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
		})
	}
}

func TestSaveAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	saved, err := h.client.Save(ctx, domain.ExtractedRecord{Name: domain.StringPtr("Asha Verma"), PinCode: "560038"})
	require.NoError(t, err)
	require.NotNil(t, saved.Record)
	assert.NotEmpty(t, saved.Record.ID)
	assert.Equal(t, "Aadhaar data saved successfully", saved.Message)

	list, err := h.client.List(ctx, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
	require.Len(t, list.Records, 1)
	assert.Equal(t, saved.Record.ID, list.Records[0].ID)
}

func TestSaveRejectsEmptyRecord(t *testing.T) {
	h := newHarness(t)

	_, err := h.client.Save(context.Background(), domain.ExtractedRecord{})
	var apiErr *ocrapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "No data to save", apiErr.Message)
}

func TestListPaging(t *testing.T) {
	h := newHarness(t)
	ids := seed(t, h.repo, 7)

	page3, err := h.client.List(context.Background(), 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 7, page3.Count)
	require.Len(t, page3.Records, 1)
	// Newest first, so the last page holds the oldest record.
	assert.Equal(t, ids[0], page3.Records[0].ID)

	beyond, err := h.client.List(context.Background(), 3, 9)
	require.NoError(t, err)
	assert.Equal(t, 7, beyond.Count)
	assert.NotNil(t, beyond.Records)
	assert.Empty(t, beyond.Records)
}

func TestListHugePageIsEmptyNotError(t *testing.T) {
	h := newHarness(t)
	seed(t, h.repo, 2)

	list, err := h.client.List(context.Background(), maxLimit, math.MaxInt64)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Count)
	assert.Empty(t, list.Records)
}

func TestPagination(t *testing.T) {
	tests := []struct {
		query     string
		wantLimit int
		wantPage  int
	}{
		{"", defaultLimit, 1},
		{"limit=3&page=2", 3, 2},
		{"limit=0&page=0", 1, 1},
		{"limit=-5&page=-1", 1, 1},
		{"limit=500", maxLimit, 1},
		{"limit=abc&page=xyz", defaultLimit, 1},
		{"limit=100&page=9223372036854775807", maxLimit, maxPage},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ocr/aadhar?"+tt.query, nil)
			limit, page := pagination(r)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantPage, page)
		})
	}
}

func TestDelete(t *testing.T) {
	h := newHarness(t)
	ids := seed(t, h.repo, 2)

	resp, err := h.client.Delete(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "OCR data deleted successfully", resp.Message)

	_, err = h.client.Delete(context.Background(), ids[0])
	var apiErr *ocrapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "OCR data not found", apiErr.Message)

	list, err := h.client.List(context.Background(), 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Count)
}

func TestDeleteAsset(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.DeleteAsset(context.Background(), "aadhaar/front_abc"))
	assert.Equal(t, []string{"aadhaar/front_abc"}, h.assets.ids)

	h.assets.err = errors.New("not found")
	err := h.client.DeleteAsset(context.Background(), "missing")
	var apiErr *ocrapi.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)

	err = h.client.DeleteAsset(context.Background(), "")
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestDeleteAssetNotConfigured(t *testing.T) {
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	defer func() { _ = d.Close() }()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(store.NewRecordStore(d), &fakeExtractor{}, nil, []string{"*"}, logger)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cloudinary/delete", strings.NewReader(`{"publicId":"x"}`)))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestInvalidBody(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Post(h.url+"/ocr/save", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)

	req, err := http.NewRequest(http.MethodOptions, h.url+"/ocr/save", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.NotEmpty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)

	resp, err := http.Get(h.url + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
