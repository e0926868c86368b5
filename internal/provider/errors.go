package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrIdleTimeout is wrapped by the TransportError of a request that went
// silent for longer than the configured timeout.
var ErrIdleTimeout = errors.New("no data received from provider before timeout")

// TransportError is a non-2xx response or a network failure. Deltas emitted
// before a mid-stream TransportError remain valid.
type TransportError struct {
	// StatusCode is 0 for network failures.
	StatusCode int
	// Status is the reason phrase, e.g. "Unauthorized".
	Status string
	// Body holds the start of an error response body, if any.
	Body string
	Err  error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		msg := fmt.Sprintf("HTTP Error: %d %s", e.StatusCode, e.Status)
		if e.Body != "" {
			msg += ": " + e.Body
		}
		return msg
	}
	if e.Err != nil {
		return fmt.Sprintf("transport error: %v", e.Err)
	}
	return "transport error"
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// reasonPhrase extracts "Unauthorized" from a status line like
// "401 Unauthorized".
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}

// errorSnippet condenses an error body to one line of bounded length.
func errorSnippet(body []byte) string {
	s := strings.Join(strings.Fields(string(body)), " ")
	const max = 300
	if len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "…"
	}
	return s
}
