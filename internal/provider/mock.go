package provider

import (
	"context"
	"sync"
)

// Mock is a scripted Streamer for tests. Replies are keyed by the content of
// the last user message.
type Mock struct {
	mu        sync.Mutex
	responses map[string][]string
	failures  map[string]error
	openErr   error
	gate      chan struct{}
	requests  []Request
}

// NewMock creates an empty Mock. Unscripted prompts are answered with
// "Mock response for: <prompt>", one rune per delta.
func NewMock() *Mock {
	return &Mock{
		responses: make(map[string][]string),
		failures:  make(map[string]error),
	}
}

// SetResponse scripts the deltas streamed for prompt.
func (m *Mock) SetResponse(prompt string, deltas ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = deltas
}

// SetError makes the stream for prompt fail with err after its deltas.
func (m *Mock) SetError(prompt string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[prompt] = err
}

// FailOpen makes every Stream call fail with err before any delta.
func (m *Mock) FailOpen(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
}

// Hold blocks new streams before their first delta until release is called
// or their context ends.
func (m *Mock) Hold() (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gate = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Requests returns every request received so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// Stream replays the script for the last user message of req.
func (m *Mock) Stream(ctx context.Context, req Request) (Stream, error) {
	var prompt string
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			prompt = req.Messages[i].Content
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.openErr != nil {
		return nil, m.openErr
	}

	deltas, ok := m.responses[prompt]
	if !ok {
		for _, r := range "Mock response for: " + prompt {
			deltas = append(deltas, string(r))
		}
	}
	return &mockStream{
		ctx:    ctx,
		deltas: deltas,
		err:    m.failures[prompt],
		gate:   m.gate,
	}, nil
}

type mockStream struct {
	ctx     context.Context
	deltas  []string
	err     error
	gate    chan struct{}
	pos     int
	current string
	final   error
	done    bool
}

func (s *mockStream) Next() bool {
	if s.done {
		return false
	}
	if s.gate != nil {
		select {
		case <-s.gate:
			s.gate = nil
		case <-s.ctx.Done():
			return s.stop(&TransportError{Err: s.ctx.Err()})
		}
	}
	if err := s.ctx.Err(); err != nil {
		return s.stop(&TransportError{Err: err})
	}
	for s.pos < len(s.deltas) {
		d := s.deltas[s.pos]
		s.pos++
		if d != "" {
			s.current = d
			return true
		}
	}
	return s.stop(s.err)
}

func (s *mockStream) stop(err error) bool {
	s.done = true
	s.current = ""
	s.final = err
	return false
}

func (s *mockStream) Delta() string {
	return s.current
}

func (s *mockStream) Err() error {
	return s.final
}

func (s *mockStream) Close() error {
	s.done = true
	return nil
}
