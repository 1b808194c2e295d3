package client

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/h2non/filetype"
)

var (
	ErrNotImage      = errors.New("file is not a recognised image")
	ErrImageTooLarge = errors.New("image file is too large")
)

// ImagePreview describes a local image without uploading it. Width and Height
// are zero when the format has no registered decoder (webp, avif).
type ImagePreview struct {
	Name   string
	Size   int64
	MIME   string
	Width  int
	Height int
}

func (p ImagePreview) String() string {
	if p.Width > 0 && p.Height > 0 {
		return fmt.Sprintf("%s (%s, %dx%d, %s)", p.Name, p.MIME, p.Width, p.Height, humanBytes(p.Size))
	}
	return fmt.Sprintf("%s (%s, %s)", p.Name, p.MIME, humanBytes(p.Size))
}

// LoadImage reads path and sniffs its type. maxBytes <= 0 disables the size check.
func LoadImage(path string, maxBytes int64) (*ImageFile, ImagePreview, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ImagePreview{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	r := io.Reader(f)
	if maxBytes > 0 {
		r = io.LimitReader(f, maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ImagePreview{}, fmt.Errorf("read image: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ImagePreview{}, ErrImageTooLarge
	}

	preview, err := PreviewImage(filepath.Base(path), data)
	if err != nil {
		return nil, ImagePreview{}, err
	}
	return &ImageFile{Name: preview.Name, ContentType: preview.MIME, Data: data}, preview, nil
}

func PreviewImage(name string, data []byte) (ImagePreview, error) {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown || !filetype.IsImage(data) {
		return ImagePreview{}, ErrNotImage
	}
	preview := ImagePreview{Name: name, Size: int64(len(data)), MIME: kind.MIME.Value}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		preview.Width = cfg.Width
		preview.Height = cfg.Height
	}
	return preview, nil
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
