package session

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync/atomic"

	"copytoask/src/apperrors"
	"copytoask/src/history"
)

// task is one streaming sub-operation. Once canceled it never writes session
// state or reaches the sink again.
type task struct {
	id       uint64
	ctx      context.Context
	cancel   context.CancelFunc
	canceled atomic.Bool
	stream   Stream
}

func (m *Manager) newTaskLocked() *task {
	m.nextTask++
	ctx, cancel := context.WithCancel(context.Background())
	return &task{id: m.nextTask, ctx: ctx, cancel: cancel}
}

func (m *Manager) cancelTaskLocked(t *task) {
	if t == nil {
		return
	}
	m.deliverMu.Lock()
	t.canceled.Store(true)
	m.deliverMu.Unlock()
	t.cancel()
	if t.stream != nil {
		_ = t.stream.Close()
	}
}

// deliver runs fn against the sink unless t has been canceled.
func (m *Manager) deliver(t *task, fn func(Sink)) bool {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()
	if t != nil && t.canceled.Load() {
		return false
	}
	fn(m.opts.Sink)
	return true
}

type taskHooks struct {
	open    func(ctx context.Context) (Stream, error)
	commit  func(final, token string)
	clear   func()
	entry   func(final string) history.Entry
	current func() bool
}

func (m *Manager) runLocked(t *task, s *session, up Update,
	open func(context.Context) (Stream, error),
	commit func(final, token string),
	clear func(),
	entry func(final string) history.Entry,
	current func() bool,
) {
	h := taskHooks{
		open:   open,
		commit: commit,
		clear:  clear,
		entry:  entry,
		current: func() bool {
			return !t.canceled.Load() && m.sessions[s.id] == s && current()
		},
	}
	m.wg.Add(1)
	go m.runTask(t, up, h)
}

func (m *Manager) runTask(t *task, up Update, h taskHooks) {
	defer m.wg.Done()
	defer t.cancel()

	m.deliver(t, func(sink Sink) {
		u := up
		u.State = StateStreaming
		sink.OnState(u)
	})

	stream, err := h.open(t.ctx)
	if err != nil {
		m.fail(t, up, h, err)
		return
	}
	m.mu.Lock()
	if !h.current() {
		m.mu.Unlock()
		_ = stream.Close()
		return
	}
	t.stream = stream
	m.mu.Unlock()
	defer stream.Close()

	var buf strings.Builder
	for {
		frag, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			m.fail(t, up, h, err)
			return
		}
		if frag == "" {
			continue
		}
		buf.WriteString(frag)
		text := buf.String()
		ok := m.deliver(t, func(sink Sink) {
			u := up
			u.State = StateStreaming
			u.Delta = frag
			u.Text = text
			sink.OnFragment(u)
		})
		if !ok {
			return
		}
	}

	final := strings.TrimSpace(buf.String())
	m.mu.Lock()
	if !h.current() {
		m.mu.Unlock()
		return
	}
	h.commit(final, stream.ContinuationToken())
	m.mu.Unlock()
	log.Printf("session %s: %s task=%d completed chars=%d", up.SessionID, up.Op, t.id, len(final))

	if m.opts.History != nil && h.entry != nil {
		if err := m.opts.History.Append(h.entry(final)); err != nil {
			log.Printf("session %s: history append failed: %v", up.SessionID, err)
		}
	}

	m.deliver(t, func(sink Sink) {
		u := up
		u.State = StateCompleted
		u.Text = final
		sink.OnCompleted(u)
	})
}

func (m *Manager) fail(t *task, up Update, h taskHooks, err error) {
	m.mu.Lock()
	current := h.current()
	if current {
		h.clear()
	}
	m.mu.Unlock()

	if !current || apperrors.IsCanceled(err) {
		log.Printf("session %s: %s task=%d canceled", up.SessionID, up.Op, t.id)
		return
	}
	log.Printf("session %s: %s task=%d failed: %v", up.SessionID, up.Op, t.id, err)
	msg := apperrors.PublicMessage(err)
	m.deliver(t, func(sink Sink) {
		u := up
		u.State = StateFailed
		u.Text = msg
		sink.OnFailed(u)
	})
}
