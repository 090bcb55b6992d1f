package ocrapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/vbonduro/cardscan/internal/domain"
)

// APIError is a non-success answer from the record API. Message is the
// server's own "message" field and may be empty.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ocr api returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ocr api returned status %d", e.StatusCode)
}

// Client calls the OCR and record endpoints of the backend.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Extract asks the backend to read both card faces. A decoded response with
// Success false is returned without error; callers decide how to surface it.
func (c *Client) Extract(ctx context.Context, frontURL, backURL string) (*ExtractResponse, error) {
	var out ExtractResponse
	body := ExtractRequest{FrontImage: frontURL, BackImage: backURL}
	if err := c.do(ctx, http.MethodPost, "/ocr/aadhar", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Save(ctx context.Context, rec domain.ExtractedRecord) (*SaveResponse, error) {
	var out SaveResponse
	if err := c.do(ctx, http.MethodPost, "/ocr/save", rec, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: out.Message}
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context, limit, page int) (*ListResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))

	var out ListResponse
	if err := c.do(ctx, http.MethodGet, "/ocr/aadhar?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Delete(ctx context.Context, id string) (*Response, error) {
	var out Response
	if err := c.do(ctx, http.MethodDelete, "/ocr/delete/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: out.Message}
	}
	return &out, nil
}

// DeleteAsset removes a hosted image through the backend, which holds the
// asset host credentials.
func (c *Client) DeleteAsset(ctx context.Context, publicID string) error {
	var out Response
	if err := c.do(ctx, http.MethodPost, "/cloudinary/delete", DeleteAssetRequest{PublicID: publicID}, &out); err != nil {
		return err
	}
	if !out.Success {
		return &APIError{StatusCode: http.StatusOK, Message: out.Message}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call ocr api: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ocr api response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope Response
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
			apiErr.Message = envelope.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
