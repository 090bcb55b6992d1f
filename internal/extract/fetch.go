package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vbonduro/cardscan/internal/preview"
)

// MaxImageBytes caps a downloaded card image.
const MaxImageBytes = 20 << 20

// ErrHostNotAllowed is returned for image URLs outside the configured hosts.
var ErrHostNotAllowed = errors.New("image host not allowed")

const maxRedirects = 10

// Fetcher downloads hosted card images for backends that need raw bytes.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	hosts    []string
}

// NewFetcher returns a Fetcher limited to allowedHosts. An entry with a port
// matches that host and port only; an entry without one matches any port.
// With no hosts every http(s) URL is fetched.
func NewFetcher(client *http.Client, allowedHosts ...string) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	f := &Fetcher{maxBytes: MaxImageBytes}
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			f.hosts = append(f.hosts, h)
		}
	}
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return f.checkURL(req.URL)
	}
	f.client = &c
	return f
}

func (f *Fetcher) checkURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported image url scheme %q", u.Scheme)
	}
	if len(f.hosts) == 0 {
		return nil
	}
	host, hostname := strings.ToLower(u.Host), strings.ToLower(u.Hostname())
	for _, h := range f.hosts {
		if h == host || h == hostname {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Host)
}

// Fetch fills img.Data and img.MimeType from img.URL. An image that already
// carries data is returned unchanged.
func (f *Fetcher) Fetch(ctx context.Context, img Image) (Image, error) {
	if len(img.Data) > 0 {
		return img, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, img.URL, nil)
	if err != nil {
		return img, fmt.Errorf("failed to create image request: %w", err)
	}
	if err := f.checkURL(req.URL); err != nil {
		return img, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return img, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close image response body", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return img, fmt.Errorf("image host returned status %d for %s", resp.StatusCode, img.URL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return img, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return img, fmt.Errorf("image at %s exceeds %d bytes", img.URL, f.maxBytes)
	}

	img.Data = data
	img.MimeType = preview.DetectMIME(data)
	if img.MimeType == "application/octet-stream" {
		img.MimeType = resp.Header.Get("Content-Type")
	}
	return img, nil
}

// FetchBoth fetches the front then the back image.
func (f *Fetcher) FetchBoth(ctx context.Context, front, back Image) (Image, Image, error) {
	front, err := f.Fetch(ctx, front)
	if err != nil {
		return front, back, fmt.Errorf("front image: %w", err)
	}
	back, err = f.Fetch(ctx, back)
	if err != nil {
		return front, back, fmt.Errorf("back image: %w", err)
	}
	return front, back, nil
}
