// Package googlevision reads Aadhaar cards with Cloud Vision document text
// detection and parses the plain text it returns.
package googlevision

import (
	"bytes"
	"context"
	"fmt"

	vision "cloud.google.com/go/vision/apiv1"
	"google.golang.org/api/option"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/extract"
)

// textDetector runs OCR on one image and returns its full text.
type textDetector interface {
	DetectText(ctx context.Context, data []byte) (string, error)
}

type Extractor struct {
	detector textDetector
	fetcher  *extract.Fetcher
	close    func() error
}

// New connects to Cloud Vision. Credentials come from opts or, when none
// are given, from GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, fetcher *extract.Fetcher, opts ...option.ClientOption) (*Extractor, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vision API client: %w", err)
	}
	return &Extractor{
		detector: annotator{client: client},
		fetcher:  fetcher,
		close:    client.Close,
	}, nil
}

func (e *Extractor) Extract(ctx context.Context, front, back extract.Image) (*domain.ExtractedRecord, error) {
	front, back, err := e.fetcher.FetchBoth(ctx, front, back)
	if err != nil {
		return nil, err
	}

	frontText, err := e.detector.DetectText(ctx, front.Data)
	if err != nil {
		return nil, fmt.Errorf("front image: %w", err)
	}
	backText, err := e.detector.DetectText(ctx, back.Data)
	if err != nil {
		return nil, fmt.Errorf("back image: %w", err)
	}
	return extract.Finish(extract.ParseText(frontText, backText))
}

func (e *Extractor) Close() error {
	if e.close == nil {
		return nil
	}
	return e.close()
}

type annotator struct {
	client *vision.ImageAnnotatorClient
}

func (a annotator) DetectText(ctx context.Context, data []byte) (string, error) {
	image, err := vision.NewImageFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create image object: %w", err)
	}
	annotation, err := a.client.DetectDocumentText(ctx, image, nil)
	if err != nil {
		return "", fmt.Errorf("vision API failed to detect text: %w", err)
	}
	if annotation == nil {
		return "", nil
	}
	return annotation.Text, nil
}
