package eventloop

import (
	"context"
	"errors"
	"log"
	"time"

	"copytoask/src/hotkey"
	"copytoask/src/logutil"
	"copytoask/src/selection"
	"copytoask/src/session"
	"copytoask/src/singleinstance"
	"copytoask/src/worker"
)

const (
	msgNothingSelected = "No selected text found"
	msgBusy            = "Busy, please retry"
	// Slack on top of the clipboard timeout for the accessibility read.
	deadlineSlack = 2 * time.Second
)

// Sessions is the part of session.Manager the loop drives.
type Sessions interface {
	StartExplain(sel selection.Captured) (string, error)
	StartAsk(sel selection.Captured) (string, error)
	AddContext(text string) (session.ContextItem, error)
	ContextItems() []session.ContextItem
}

// Presenter shows the outcome of a hotkey. Calls come from the loop goroutine.
type Presenter interface {
	ShowExplain(id string, sel selection.Captured)
	ShowAsk(id string, sel selection.Captured)
	ContextChanged(items []session.ContextItem)
	Notice(msg string)
	SetBusy(busy bool)
}

// Loop is the single-threaded coordinator between hotkeys, capture jobs and sessions.
type Loop struct {
	pool      *worker.Pool
	sessions  Sessions
	presenter Presenter
	busy      bool
	results   chan result
	actions   chan hotkey.Action
	deadline  time.Duration
}

type result struct {
	action   hotkey.Action
	captured selection.Captured
	err      error
	cancel   context.CancelFunc
}

// New creates a loop. captureTimeout is the clipboard fallback budget; the job
// deadline adds slack for the accessibility read.
func New(pool *worker.Pool, sessions Sessions, presenter Presenter, captureTimeout time.Duration) *Loop {
	return &Loop{
		pool:      pool,
		sessions:  sessions,
		presenter: presenter,
		results:   make(chan result, 1),
		actions:   make(chan hotkey.Action, 4),
		deadline:  captureTimeout + deadlineSlack,
	}
}

// Bind routes every capture action of d into the loop.
func (l *Loop) Bind(d *hotkey.Dispatcher) {
	for _, a := range []hotkey.Action{hotkey.ActionExplain, hotkey.ActionAsk, hotkey.ActionSetContext} {
		a := a
		d.Handle(a, func() { l.Post(a) })
	}
}

// Post queues an action without blocking; extra presses are dropped.
func (l *Loop) Post(a hotkey.Action) bool {
	select {
	case l.actions <- a:
		return true
	default:
		log.Printf("eventloop: action queue full, dropping %s", a)
		return false
	}
}

// Serve accepts delegated actions from srv and queues them until ctx ends.
func (l *Loop) Serve(ctx context.Context, srv singleinstance.Server) {
	for {
		conn, err := srv.Next(ctx)
		if err != nil {
			return
		}
		l.handleConn(conn)
	}
}

func (l *Loop) handleConn(conn singleinstance.Conn) {
	defer conn.Close()
	a, err := hotkey.ParseAction(conn.Request().Action)
	if err != nil {
		log.Printf("eventloop: delegated request rejected: %v", err)
		_ = conn.RespondError(err.Error())
		return
	}
	if !l.Post(a) {
		_ = conn.RespondError(msgBusy)
		return
	}
	_ = conn.RespondSuccess(a.String())
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	l.presenter.SetBusy(b)
}

// Run processes actions and capture results. It blocks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case a := <-l.actions:
			l.handleAction(ctx, a)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleAction(ctx context.Context, a hotkey.Action) {
	log.Printf("handleAction: %s", a)
	if l.busy {
		log.Printf("handleAction: busy, skipping %s", a)
		l.presenter.Notice(msgBusy)
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, l.deadline)
	l.setBusy(true)
	submitted := l.pool.Submit(jobCtx, func(c selection.Captured, err error) {
		select {
		case l.results <- result{action: a, captured: c, err: err, cancel: cancel}:
		case <-ctx.Done():
			cancel()
		}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		l.presenter.Notice(msgBusy)
	}
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
	}()
	if res.err != nil && errors.Is(res.err, context.Canceled) {
		log.Printf("handleResult: %s capture canceled", res.action)
		return
	}
	c := res.captured
	log.Printf("handleResult: %s provenance=%s text=%q", res.action, c.Provenance, logutil.Sanitize(c.Text))
	// An ask may stand on its own question.
	if c.Empty() && res.action != hotkey.ActionAsk {
		l.presenter.Notice(msgNothingSelected)
		return
	}

	switch res.action {
	case hotkey.ActionExplain:
		id, err := l.sessions.StartExplain(c)
		if err != nil {
			l.report(err)
			return
		}
		l.presenter.ShowExplain(id, c)
	case hotkey.ActionAsk:
		id, err := l.sessions.StartAsk(c)
		if err != nil {
			l.report(err)
			return
		}
		l.presenter.ShowAsk(id, c)
	case hotkey.ActionSetContext:
		if _, err := l.sessions.AddContext(c.Text); err != nil {
			l.report(err)
			return
		}
		l.presenter.ContextChanged(l.sessions.ContextItems())
	default:
		log.Printf("handleResult: unhandled action %s", res.action)
	}
}

func (l *Loop) report(err error) {
	log.Printf("handleResult: %v", err)
	if errors.Is(err, session.ErrNothingSelected) {
		l.presenter.Notice(msgNothingSelected)
		return
	}
	l.presenter.Notice(err.Error())
}

// Deadline returns the capture job deadline for this loop.
func (l *Loop) Deadline() time.Duration { return l.deadline }
