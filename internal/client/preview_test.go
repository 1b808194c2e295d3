package client

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write png: %v", err)
	}
	return path
}

func TestLoadImageBuildsPreview(t *testing.T) {
	path := writePNG(t, 4, 3)
	file, preview, err := LoadImage(path, 1<<20)
	if err != nil {
		t.Fatalf("load image: %v", err)
	}
	if preview.Name != "photo.png" || preview.MIME != "image/png" || preview.Width != 4 || preview.Height != 3 {
		t.Fatalf("unexpected preview %+v", preview)
	}
	if file.ContentType != "image/png" || int64(len(file.Data)) != preview.Size {
		t.Fatalf("unexpected file %+v", file)
	}
	if !strings.Contains(preview.String(), "4x3") {
		t.Fatalf("unexpected preview string %q", preview.String())
	}
}

func TestLoadImageRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("just some text"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := LoadImage(path, 0); !errors.Is(err, ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}
}

func TestLoadImageRejectsOversizedFile(t *testing.T) {
	path := writePNG(t, 16, 16)
	if _, _, err := LoadImage(path, 10); !errors.Is(err, ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestFormAttachImage(t *testing.T) {
	f := Form{Name: "Lamp"}
	if err := f.AttachImage(writePNG(t, 2, 2), 0); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if f.Image == nil || f.Preview == nil || f.Preview.Width != 2 {
		t.Fatalf("expected attached image and preview, got %+v", f)
	}
	f.ClearImage()
	if f.Image != nil || f.Preview != nil {
		t.Fatal("expected image cleared")
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{512: "512 B", 2048: "2.0 KiB", 5 << 20: "5.0 MiB"}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Fatalf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
