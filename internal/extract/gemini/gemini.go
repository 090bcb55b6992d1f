// Package gemini reads Aadhaar cards with Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
)

type Extractor struct {
	client  *genai.Client
	model   *genai.GenerativeModel
	fetcher *extract.Fetcher
}

func New(ctx context.Context, apiKey, model string, fetcher *extract.Fetcher, opts ...option.ClientOption) (*Extractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to init Gemini client: %w", err)
	}
	m := client.GenerativeModel(model)
	m.GenerationConfig = genai.GenerationConfig{ResponseMIMEType: "application/json"}
	return &Extractor{client: client, model: m, fetcher: fetcher}, nil
}

func (e *Extractor) Extract(ctx context.Context, front, back extract.Image) (*domain.ExtractedRecord, error) {
	front, back, err := e.fetcher.FetchBoth(ctx, front, back)
	if err != nil {
		return nil, err
	}

	resp, err := e.model.GenerateContent(ctx,
		genai.ImageData(imageFormat(front.MimeType), front.Data),
		genai.ImageData(imageFormat(back.MimeType), back.Data),
		genai.Text(extract.Prompt),
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	rec, err := extract.ParseJSON(text)
	if err != nil {
		return nil, err
	}
	return extract.Finish(rec)
}

func (e *Extractor) Close() error {
	return e.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("no text in Gemini response")
	}
	return text, nil
}

// imageFormat turns "image/png" into the "png" genai.ImageData expects.
func imageFormat(mimeType string) string {
	if f, ok := strings.CutPrefix(mimeType, "image/"); ok && f != "" {
		return f
	}
	return "jpeg"
}
