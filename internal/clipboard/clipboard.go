package clipboard

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/maximbilan/chatr/internal/render"
)

var (
	readAll  = clipboard.ReadAll
	writeAll = clipboard.WriteAll
)

// Paste reads text from the system clipboard
func Paste() (string, error) {
	return readAll()
}

// Copy writes text to the system clipboard
func Copy(text string) error {
	return writeAll(text)
}

// CopyCodeBlock copies the n-th fenced code block (0-based) of a reply and
// returns the number of blocks the reply has.
func CopyCodeBlock(reply string, n int) (int, error) {
	blocks := render.CodeBlocks(reply)
	if n < 0 || n >= len(blocks) {
		return len(blocks), fmt.Errorf("no code block %d (reply has %d)", n+1, len(blocks))
	}
	if err := writeAll(blocks[n].Code); err != nil {
		return len(blocks), fmt.Errorf("failed to copy code block: %w", err)
	}
	return len(blocks), nil
}
