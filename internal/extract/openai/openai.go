// Package openai reads Aadhaar cards with an OpenAI compatible chat
// completions endpoint.
package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
)

const maxTokens = 1024

type Extractor struct {
	client  *openai.Client
	model   string
	fetcher *extract.Fetcher
}

// New returns an Extractor. baseURL may be empty for the public API. When
// fetcher is non-nil the images are downloaded and sent inline as data URIs,
// for image hosts the model provider cannot reach.
func New(apiKey, model, baseURL string, fetcher *extract.Fetcher) *Extractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Extractor{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		fetcher: fetcher,
	}
}

func (e *Extractor) Extract(ctx context.Context, front, back extract.Image) (*domain.ExtractedRecord, error) {
	frontURL, backURL := front.URL, back.URL
	if e.fetcher != nil {
		var err error
		if front, back, err = e.fetcher.FetchBoth(ctx, front, back); err != nil {
			return nil, err
		}
		frontURL, backURL = dataURI(front), dataURI(back)
	}

	req := openai.ChatCompletionRequest{
		Model: e.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: extract.Prompt},
				imagePart(frontURL),
				imagePart(backURL),
			},
		}},
	}
	// Reasoning models reject max_tokens.
	if isReasoningModel(e.model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	rec, err := extract.ParseJSON(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return extract.Finish(rec)
}

func imagePart(url string) openai.ChatMessagePart {
	return openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeImageURL,
		ImageURL: &openai.ChatMessageImageURL{
			URL:    url,
			Detail: openai.ImageURLDetailHigh,
		},
	}
}

func dataURI(img extract.Image) string {
	return "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
