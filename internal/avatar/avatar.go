// Package avatar converts image files into the data URLs stored on
// characters.
package avatar

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// MaxSize bounds the image files accepted by Encode.
const MaxSize = 2 << 20

// Placeholder is shown for characters without an avatar.
const Placeholder = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

var ErrNotImage = errors.New("file is not an image")

// Encode reads the image at path and returns it as
// "data:<mime>;base64,<payload>".
func Encode(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read avatar: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("avatar path %s is a directory", path)
	}
	if info.Size() > MaxSize {
		return "", fmt.Errorf("avatar is %d bytes, limit is %d", info.Size(), MaxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read avatar: %w", err)
	}
	return EncodeBytes(data)
}

// EncodeBytes sniffs the image type of data and returns its data URL.
func EncodeBytes(data []byte) (string, error) {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// Decode splits a data URL produced by Encode into its MIME type and bytes.
func Decode(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URL")
	}
	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok {
		return "", nil, fmt.Errorf("data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("invalid data URL payload: %w", err)
	}
	return mime, data, nil
}

// OrPlaceholder returns dataURL, or Placeholder when it is empty.
func OrPlaceholder(dataURL string) string {
	if dataURL == "" {
		return Placeholder
	}
	return dataURL
}
