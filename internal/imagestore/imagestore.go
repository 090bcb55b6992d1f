package imagestore

import (
	"context"
	"io"

	"github.com/vbonduro/cardscan/internal/domain"
)

// ImageStore hosts uploaded card images and hands back a URL the OCR
// backend can fetch.
type ImageStore interface {
	Upload(ctx context.Context, name, mimeType string, r io.Reader) (domain.Asset, error)
	Delete(ctx context.Context, publicID string) error
}

// ExtForMIME returns the file extension used when storing an image of the
// given type.
func ExtForMIME(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
