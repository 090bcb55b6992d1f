// Package ollama reads Aadhaar cards with a local Ollama vision model.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
)

type generateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images"`
	Format string   `json:"format"`
	Stream bool     `json:"stream"`
}

type Extractor struct {
	host    string
	model   string
	client  *http.Client
	fetcher *extract.Fetcher
}

func New(host, model string, client *http.Client, fetcher *extract.Fetcher) *Extractor {
	if client == nil {
		client = &http.Client{}
	}
	return &Extractor{
		host:    strings.TrimRight(host, "/"),
		model:   model,
		client:  client,
		fetcher: fetcher,
	}
}

func (e *Extractor) Extract(ctx context.Context, front, back extract.Image) (*domain.ExtractedRecord, error) {
	front, back, err := e.fetcher.FetchBoth(ctx, front, back)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(generateRequest{
		Model:  e.model,
		Prompt: extract.Prompt,
		Images: []string{
			base64.StdEncoding.EncodeToString(front.Data),
			base64.StdEncoding.EncodeToString(back.Data),
		},
		Format: "json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ollama: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close ollama response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, errBody)
	}

	var respBody struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	rec, err := extract.ParseJSON(respBody.Response)
	if err != nil {
		return nil, err
	}
	return extract.Finish(rec)
}
