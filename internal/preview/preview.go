// Package preview turns a selected card image into something the page can
// show immediately, before any upload happens.
package preview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Thumbnails are bounded to this box; smaller images keep their size.
const (
	MaxWidth  = 640
	MaxHeight = 640
)

// imageTypes is the set of MIME types the stdlib sniffer recognises for
// images. WebP is checked separately because http.DetectContentType has no
// WebP signature.
var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// DetectMIME sniffs the image type. Anything that is not a recognised image
// is reported as application/octet-stream; it is not rejected here.
func DetectMIME(data []byte) string {
	if isWebP(data) {
		return "image/webp"
	}
	if mime := http.DetectContentType(data); imageTypes[mime] {
		return mime
	}
	return "application/octet-stream"
}

// DataURI returns a data URI for an <img> preview: a JPEG thumbnail when the
// image decodes, otherwise the original bytes as-is.
func DataURI(data []byte, mimeType string) string {
	if thumb, err := Thumbnail(data); err == nil {
		return encode("image/jpeg", thumb)
	}
	if mimeType == "" {
		mimeType = DetectMIME(data)
	}
	return encode(mimeType, data)
}

// Thumbnail decodes data, scales it to fit MaxWidth x MaxHeight on a white
// background and encodes it as JPEG.
func Thumbnail(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	w, h := fit(src.Bounds().Dx(), src.Bounds().Dy())
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales w x h down, keeping aspect ratio, so it fits the bounding box.
func fit(w, h int) (int, int) {
	if w <= MaxWidth && h <= MaxHeight {
		return max(w, 1), max(h, 1)
	}
	if w*MaxHeight > h*MaxWidth {
		return MaxWidth, max(h*MaxWidth/w, 1)
	}
	return max(w*MaxHeight/h, 1), MaxHeight
}

func encode(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
