package cloudinary

import (
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

const defaultUploadPrefix = "https://api.cloudinary.com"

// Admin performs signed Cloudinary API calls. It runs on the record API,
// never in the browser-facing server, because it holds the API secret.
type Admin struct {
	api *uploader.API
}

func NewAdmin(cloudName, apiKey, apiSecret string) (*Admin, error) {
	return newAdmin(cloudName, apiKey, apiSecret, defaultUploadPrefix)
}

func newAdmin(cloudName, apiKey, apiSecret, uploadPrefix string) (*Admin, error) {
	api, err := newUploadAPI(cloudName, apiKey, apiSecret, uploadPrefix)
	if err != nil {
		return nil, err
	}
	return &Admin{api: api}, nil
}

// Destroy deletes an image by public id. A "not found" result is reported
// as an error so callers can surface it.
func (a *Admin) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return fmt.Errorf("public id is required")
	}
	res, err := a.api.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("failed to call cloudinary: %w", err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("cloudinary destroy failed: %s", res.Error.Message)
	}
	if res.Result != "ok" {
		return fmt.Errorf("cloudinary destroy failed: %s", res.Result)
	}
	return nil
}

func newUploadAPI(cloudName, apiKey, apiSecret, uploadPrefix string) (*uploader.API, error) {
	if cloudName == "" {
		return nil, fmt.Errorf("cloudinary cloud name is required")
	}
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to build cloudinary config: %w", err)
	}
	cfg.API.UploadPrefix = uploadPrefix
	api, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudinary uploader: %w", err)
	}
	return api, nil
}
