package provider

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

// parseDataLine returns the payload of an SSE data line. Lines are
// significant only if, once trimmed, they start with "data: ".
func parseDataLine(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, dataPrefix) {
		return "", false
	}
	return strings.TrimSpace(trimmed[len(dataPrefix):]), true
}

// extractFunc pulls the text delta out of one event payload. An error marks
// the payload as malformed; the line is skipped.
type extractFunc func(payload []byte) (string, error)

// watchdog cancels a request once it has been silent for too long. A
// watchdog started with a zero timeout stays disarmed until reset with a
// positive one.
type watchdog struct {
	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	fired  atomic.Bool
}

func newWatchdog(timeout time.Duration, cancel context.CancelFunc) *watchdog {
	w := &watchdog{cancel: cancel}
	w.reset(timeout)
	return w
}

func (w *watchdog) fire() {
	w.fired.Store(true)
	w.cancel()
}

// reset rearms the watchdog for timeout. A zero timeout disarms it.
func (w *watchdog) reset(timeout time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fired.Load() {
		return
	}
	if timeout <= 0 {
		if w.timer != nil {
			w.timer.Stop()
		}
		return
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(timeout, w.fire)
		return
	}
	w.timer.Reset(timeout)
}

func (w *watchdog) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// idleReader pushes the watchdog back every time bytes arrive.
type idleReader struct {
	r       io.Reader
	w       *watchdog
	timeout time.Duration
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.w.reset(r.timeout)
	}
	return n, err
}

// sseStream reads a line-oriented event stream. bufio.Reader keeps partial
// lines buffered across transport reads, so an event split over two reads
// is reassembled before it is parsed.
type sseStream struct {
	body    io.ReadCloser
	reader  *bufio.Reader
	extract extractFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wd      *watchdog
	logger  *zap.Logger

	delta     string
	err       error
	done      bool
	closeOnce sync.Once
}

func newSSEStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, wd *watchdog, idle time.Duration, extract extractFunc, logger *zap.Logger) *sseStream {
	return &sseStream{
		body:    body,
		reader:  bufio.NewReader(&idleReader{r: body, w: wd, timeout: idle}),
		extract: extract,
		ctx:     ctx,
		cancel:  cancel,
		wd:      wd,
		logger:  logger,
	}
}

func (s *sseStream) Next() bool {
	if s.done {
		return false
	}
	s.delta = ""

	for {
		line, readErr := s.reader.ReadString('\n')
		if payload, ok := parseDataLine(line); ok {
			if payload == doneSentinel {
				s.finish(nil)
				return false
			}
			delta, err := s.extract([]byte(payload))
			if err != nil {
				s.logger.Debug("skipping malformed stream event", zap.Error(err), zap.Int("bytes", len(payload)))
			} else if delta != "" {
				s.delta = delta
				if readErr != nil {
					// Emit this last fragment now; the read error surfaces on
					// the following call.
					s.pendingErr(readErr)
				}
				return true
			}
		}

		if readErr != nil {
			s.finishRead(readErr)
			return false
		}
	}
}

// pendingErr handles a read error that arrived together with a delta.
func (s *sseStream) pendingErr(readErr error) {
	s.done = true
	s.err = s.mapReadErr(readErr)
	s.Close()
}

func (s *sseStream) finishRead(readErr error) {
	s.finish(s.mapReadErr(readErr))
}

func (s *sseStream) mapReadErr(readErr error) error {
	if errors.Is(readErr, io.EOF) {
		// A watchdog cancel can surface as a clean EOF on some transports.
		if s.wd.fired.Load() {
			return &TransportError{Err: ErrIdleTimeout}
		}
		return nil
	}
	if s.wd.fired.Load() {
		return &TransportError{Err: ErrIdleTimeout}
	}
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return &TransportError{Err: ctxErr}
	}
	return &TransportError{Err: readErr}
}

func (s *sseStream) finish(err error) {
	s.done = true
	s.err = err
	s.Close()
}

func (s *sseStream) Delta() string {
	return s.delta
}

func (s *sseStream) Err() error {
	return s.err
}

func (s *sseStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.wd.stop()
		err = s.body.Close()
		s.cancel()
	})
	return err
}
