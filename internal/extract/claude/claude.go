// Package claude reads Aadhaar cards with the Anthropic Messages API.
package claude

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
)

// maxTokens comfortably covers a seven field JSON object.
const maxTokens = 1024

type Extractor struct {
	client  *anthropic.Client
	model   string
	fetcher *extract.Fetcher
}

// New returns an Extractor. The API only accepts inline image data, so
// fetcher is used to download both card faces first.
func New(apiKey, model string, fetcher *extract.Fetcher, opts ...anthropic.ClientOption) *Extractor {
	return &Extractor{
		client:  anthropic.NewClient(apiKey, opts...),
		model:   model,
		fetcher: fetcher,
	}
}

func (e *Extractor) Extract(ctx context.Context, front, back extract.Image) (*domain.ExtractedRecord, error) {
	front, back, err := e.fetcher.FetchBoth(ctx, front, back)
	if err != nil {
		return nil, err
	}

	resp, err := e.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(e.model),
		MaxTokens: maxTokens,
		Messages:  buildMessages(front, back),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call claude: %w", err)
	}

	var text string
	for _, c := range resp.Content {
		if c.Type == anthropic.MessagesContentTypeText {
			text = c.GetText()
			break
		}
	}
	if text == "" {
		return nil, fmt.Errorf("claude returned no text content")
	}

	rec, err := extract.ParseJSON(text)
	if err != nil {
		return nil, err
	}
	return extract.Finish(rec)
}

func buildMessages(front, back extract.Image) []anthropic.Message {
	return []anthropic.Message{{
		Role: anthropic.RoleUser,
		Content: []anthropic.MessageContent{
			imageContent(front),
			imageContent(back),
			anthropic.NewTextMessageContent(extract.Prompt),
		},
	}}
}

func imageContent(img extract.Image) anthropic.MessageContent {
	return anthropic.NewImageMessageContent(anthropic.NewMessageContentSource(
		anthropic.MessagesContentSourceTypeBase64,
		normaliseMIME(img.MimeType),
		base64.StdEncoding.EncodeToString(img.Data),
	))
}

// normaliseMIME maps MIME types to the values the Anthropic API accepts.
// Unknown types are sent as jpeg.
func normaliseMIME(mimeType string) string {
	switch mimeType {
	case "image/png", "image/gif", "image/webp":
		return mimeType
	default:
		return "image/jpeg"
	}
}
