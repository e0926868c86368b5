package avatar

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// 1x1 transparent PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestEncodeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "me.png")
	if err := os.WriteFile(path, pngPixel, 0600); err != nil {
		t.Fatal(err)
	}

	url, err := Encode(path)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("Encode() = %q", url)
	}

	mime, data, err := Decode(url)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if mime != "image/png" || string(data) != string(pngPixel) {
		t.Errorf("Decode() = %q, %d bytes", mime, len(data))
	}
}

func TestEncodeRejects(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	os.WriteFile(txt, []byte("hello"), 0600)
	if _, err := Encode(txt); !errors.Is(err, ErrNotImage) {
		t.Errorf("Encode(text) error = %v, want ErrNotImage", err)
	}

	big := filepath.Join(dir, "big.png")
	os.WriteFile(big, make([]byte, MaxSize+1), 0600)
	if _, err := Encode(big); err == nil {
		t.Error("Encode(big) succeeded")
	}

	if _, err := Encode(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("Encode(missing) succeeded")
	}
	if _, err := Encode(dir); err == nil {
		t.Error("Encode(dir) succeeded")
	}
}

func TestPlaceholder(t *testing.T) {
	if OrPlaceholder("") != Placeholder {
		t.Error("OrPlaceholder(\"\") did not return the placeholder")
	}
	mime, _, err := Decode(Placeholder)
	if err != nil || mime != "image/gif" {
		t.Errorf("Decode(Placeholder) = %q, %v", mime, err)
	}
	if _, _, err := Decode("https://example.com/a.png"); err == nil {
		t.Error("Decode() accepted a plain URL")
	}
}
