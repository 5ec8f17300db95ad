package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"copytoask/src/session"
)

// terminalSink streams answers to a writer and reports terminal updates to
// whoever is waiting.
type terminalSink struct {
	mu   sync.Mutex
	out  io.Writer
	done chan session.Update
}

func newTerminalSink(out io.Writer) *terminalSink {
	return &terminalSink{out: out, done: make(chan session.Update, 8)}
}

func (s *terminalSink) OnState(up session.Update) {
	if up.State == session.StateNotReady {
		log.Printf("terminal: %s not ready for %s", up.SessionID, up.Language)
	}
}

func (s *terminalSink) OnFragment(up session.Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.out, up.Delta)
}

func (s *terminalSink) OnCompleted(up session.Update) {
	s.mu.Lock()
	if up.Cached {
		fmt.Fprint(s.out, up.Text)
	}
	fmt.Fprintln(s.out)
	s.mu.Unlock()
	s.finish(up)
}

func (s *terminalSink) OnFailed(up session.Update) {
	s.finish(up)
}

func (s *terminalSink) finish(up session.Update) {
	select {
	case s.done <- up:
	default:
		log.Printf("terminal: dropped %s outcome for %s", up.Op, up.SessionID)
	}
}

// wait blocks until the next operation ends and returns its failure message
// as an error.
func (s *terminalSink) wait(ctx context.Context) (session.Update, error) {
	select {
	case <-ctx.Done():
		return session.Update{}, ctx.Err()
	case up := <-s.done:
		if up.State == session.StateFailed {
			return up, errors.New(up.Text)
		}
		return up, nil
	}
}
