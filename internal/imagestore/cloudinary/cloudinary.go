package cloudinary

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/vbonduro/cardscan/internal/domain"
)

// AssetDeleter removes a hosted asset. Unsigned uploads cannot delete, so
// deletion goes through the record API which holds the Cloudinary secret.
type AssetDeleter interface {
	DeleteAsset(ctx context.Context, publicID string) error
}

// Store uploads images to Cloudinary with an unsigned upload preset.
type Store struct {
	api     *uploader.API
	preset  string
	deleter AssetDeleter
}

// NewStore takes the unsigned upload endpoint, for example
// https://api.cloudinary.com/v1_1/<cloud>/image/upload, and reads the API
// host and cloud name from it.
func NewStore(uploadURL, preset string, deleter AssetDeleter) (*Store, error) {
	prefix, cloudName, err := parseUploadURL(uploadURL)
	if err != nil {
		return nil, err
	}
	api, err := newUploadAPI(cloudName, "", "", prefix)
	if err != nil {
		return nil, err
	}
	return &Store{api: api, preset: preset, deleter: deleter}, nil
}

func parseUploadURL(raw string) (prefix, cloudName string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid cloudinary upload url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("invalid cloudinary upload url %q", raw)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "v1_1" && i+1 < len(parts) && parts[i+1] != "" {
			return u.Scheme + "://" + u.Host, parts[i+1], nil
		}
	}
	return "", "", fmt.Errorf("cloudinary upload url %q has no cloud name", raw)
}

func (s *Store) Upload(ctx context.Context, name, mimeType string, r io.Reader) (domain.Asset, error) {
	res, err := s.api.UnsignedUpload(ctx, r, s.preset, uploader.UploadParams{})
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to upload %s to cloudinary: %w", name, err)
	}
	if res.Error.Message != "" {
		return domain.Asset{}, fmt.Errorf("cloudinary upload failed: %s", res.Error.Message)
	}
	if res.SecureURL == "" {
		return domain.Asset{}, fmt.Errorf("cloudinary response has no secure_url")
	}

	publicID := res.PublicID
	if publicID == "" {
		publicID = PublicIDFromURL(res.SecureURL)
	}
	return domain.Asset{URL: res.SecureURL, PublicID: publicID}, nil
}

func (s *Store) Delete(ctx context.Context, publicID string) error {
	if s.deleter == nil {
		return fmt.Errorf("cloudinary delete is not configured")
	}
	return s.deleter.DeleteAsset(ctx, publicID)
}

// PublicIDFromURL derives the Cloudinary public id from a delivery URL: the
// path after the version segment (v<digits>) with the extension removed.
//
//	https://res.cloudinary.com/demo/image/upload/v1721982667/folder/card_xyz.jpg -> folder/card_xyz
//
// URLs without a version segment fall back to the path after "upload".
func PublicIDFromURL(rawURL string) string {
	parts := strings.Split(rawURL, "/")

	start := -1
	for i, part := range parts {
		if isVersionSegment(part) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		for i, part := range parts {
			if part == "upload" {
				start = i + 1
				break
			}
		}
	}
	if start < 0 {
		start = len(parts) - 1
	}

	id := strings.Join(parts[start:], "/")
	if i := strings.IndexAny(id, "?#"); i >= 0 {
		id = id[:i]
	}
	if dot := strings.LastIndexByte(id, '.'); dot > strings.LastIndexByte(id, '/') {
		id = id[:dot]
	}
	return id
}

func isVersionSegment(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
