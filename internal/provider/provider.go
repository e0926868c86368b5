// Package provider streams chat completions from OpenAI-compatible and
// Gemini endpoints and exposes the reply as a pull sequence of text deltas.
package provider

import (
	"context"

	"github.com/maximbilan/chatr/internal/apiconfig"
)

// Message represents a chat message
type Message struct {
	Role    string
	Content string
}

// Role constants
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Request describes one streaming completion. Credentials and endpoint come
// from Config; only the fields of Config.Provider are read.
type Request struct {
	Config       apiconfig.Config
	SystemPrompt string
	Messages     []Message
}

// Stream is a finite, non-restartable sequence of non-empty deltas in
// arrival order.
//
//	for s.Next() {
//		fmt.Print(s.Delta())
//	}
//	if err := s.Err(); err != nil { ... }
type Stream interface {
	// Next advances to the next delta. It returns false at end of stream or
	// on error.
	Next() bool
	// Delta returns the fragment Next advanced to.
	Delta() string
	// Err returns the error that ended the stream, if any.
	Err() error
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Streamer opens streams. *Client and *Mock implement it.
type Streamer interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}
