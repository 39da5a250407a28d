// Package imaging validates uploaded recipe images and normalises them
// before storage: EXIF orientation applied, oversized images scaled down
// to fit a bounding box, and the result re-encoded in its original format.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// MaxPixels bounds the declared width*height of an upload. Decoding
// allocates the full bitmap, so the header is checked before decoding.
const MaxPixels = 25_000_000

var (
	// ErrNotImage is returned when the upload cannot be decoded as an image.
	ErrNotImage = errors.New("not a valid image")
	// ErrTooLarge is returned when the image declares more than MaxPixels.
	ErrTooLarge = errors.New("image dimensions too large")
)

// Image is a normalised upload ready to hand to a storage backend.
type Image struct {
	Data        []byte
	Ext         string // with leading dot, e.g. ".png"
	ContentType string
	Width       int
	Height      int
}

type format struct {
	encoding    imaging.Format
	ext         string
	contentType string
}

// formats maps the names reported by image.DecodeConfig. Anything decodable
// but not listed here (bmp, tiff) is re-encoded as PNG.
var formats = map[string]format{
	"jpeg": {imaging.JPEG, ".jpg", "image/jpeg"},
	"png":  {imaging.PNG, ".png", "image/png"},
	"gif":  {imaging.GIF, ".gif", "image/gif"},
}

var fallback = format{imaging.PNG, ".png", "image/png"}

// Process decodes r and returns the normalised image. maxDimension bounds
// both width and height; zero disables resizing.
func Process(r io.Reader, maxDimension int) (*Image, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("imaging: reading upload: %w", err)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrNotImage
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, ErrNotImage
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, cfg.Width, cfg.Height)
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, ErrNotImage
	}

	b := img.Bounds()
	if maxDimension > 0 && (b.Dx() > maxDimension || b.Dy() > maxDimension) {
		img = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	f, ok := formats[name]
	if !ok {
		f = fallback
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f.encoding, imaging.JPEGQuality(90)); err != nil {
		return nil, fmt.Errorf("imaging: encoding %s: %w", f.ext, err)
	}

	out := img.Bounds()
	return &Image{
		Data:        buf.Bytes(),
		Ext:         f.ext,
		ContentType: f.contentType,
		Width:       out.Dx(),
		Height:      out.Dy(),
	}, nil
}
