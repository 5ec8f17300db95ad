package llm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"copytoask/src/apperrors"
)

const maxEventLine = 1 << 20

// event is what a decoder extracts from one SSE payload. Either field may be empty.
type event struct {
	text  string
	token string
}

// decoder turns one SSE data payload into the shared event vocabulary.
// Payloads it does not understand decode to an empty event; only an
// explicit server error is returned as an error.
type decoder interface {
	decode(payload []byte) (event, error)
}

// Stream is a lazy sequence of answer fragments backed by one HTTP response.
// Recv must be called from a single goroutine; Close may be called from any.
type Stream struct {
	ctx     context.Context
	body    io.ReadCloser
	cancel  context.CancelFunc
	scanner *bufio.Scanner
	dec     decoder

	closed atomic.Bool
	done   bool

	mu    sync.Mutex
	token string
}

func newStream(ctx context.Context, body io.ReadCloser, cancel context.CancelFunc, dec decoder) *Stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventLine)
	return &Stream{ctx: ctx, body: body, cancel: cancel, scanner: sc, dec: dec}
}

// Recv returns the next fragment. It returns io.EOF once the [DONE] marker
// or the end of the body is reached.
func (s *Stream) Recv() (string, error) {
	for {
		if s.closed.Load() {
			return "", context.Canceled
		}
		if s.done {
			return "", io.EOF
		}
		if !s.scanner.Scan() {
			return "", s.finish()
		}
		payload, ok := dataPayload(s.scanner.Text())
		if !ok {
			continue
		}
		if payload == "[DONE]" {
			s.done = true
			s.release()
			return "", io.EOF
		}
		ev, err := s.dec.decode([]byte(payload))
		if err != nil {
			s.done = true
			s.release()
			return "", err
		}
		if ev.token != "" {
			s.mu.Lock()
			s.token = ev.token
			s.mu.Unlock()
		}
		if ev.text != "" {
			return ev.text, nil
		}
	}
}

func (s *Stream) finish() error {
	s.done = true
	defer s.release()
	if s.closed.Load() {
		return context.Canceled
	}
	if err := s.ctx.Err(); err != nil {
		return fmt.Errorf("stream canceled: %w", err)
	}
	if err := s.scanner.Err(); err != nil {
		return apperrors.New(apperrors.KindTransient,
			"The answer stream was interrupted. Please try again.",
			fmt.Errorf("read stream: %w", err))
	}
	return io.EOF
}

// ContinuationToken is the latest response id seen so far.
func (s *Stream) ContinuationToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Close stops the stream and releases the connection. Further Recv calls
// return context.Canceled.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.release()
	return nil
}

func (s *Stream) release() {
	s.cancel()
	_ = s.body.Close()
}

// dataPayload extracts the payload of an SSE "data:" line.
func dataPayload(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	return payload, payload != ""
}
