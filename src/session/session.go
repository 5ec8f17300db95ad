package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"copytoask/src/history"
	"copytoask/src/language"
	"copytoask/src/llm"
	"copytoask/src/prompt"
	"copytoask/src/selection"
)

var (
	ErrUnknownSession  = errors.New("unknown session")
	ErrNothingSelected = errors.New("no selected text found")
	ErrNotReady        = errors.New("the explanation has not finished yet")
	ErrTurnInFlight    = errors.New("a question is already being answered")
	ErrEmptyQuestion   = errors.New("question is empty")
	ErrShutdown        = errors.New("session manager is shut down")
)

// Op names the sub-operation an update belongs to.
type Op string

const (
	OpExplain   Op = "explain"
	OpTranslate Op = "translate"
	OpAsk       Op = "ask"
)

type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateFailed
	StateCanceled
	StateNotReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCanceled:
		return "canceled"
	case StateNotReady:
		return "not_ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Update is delivered to the Sink.
type Update struct {
	SessionID string
	Op        Op
	// Language is the answer language for explain and translate updates.
	Language language.Code
	State    State
	// Delta is the newest fragment; Text is everything accumulated so far,
	// the final answer, or the failure message.
	Delta  string
	Text   string
	Cached bool
}

// Sink receives session output. Callbacks are serialized and must not call
// back into the Manager synchronously.
type Sink interface {
	OnState(Update)
	OnFragment(Update)
	OnCompleted(Update)
	OnFailed(Update)
}

// Stream is one answer stream; *llm.Stream satisfies it.
type Stream interface {
	Recv() (string, error)
	Close() error
	ContinuationToken() string
}

// Streamer opens answer streams.
type Streamer interface {
	StreamCompletion(ctx context.Context, req llm.CompletionRequest) (Stream, error)
	StreamConversationTurn(ctx context.Context, req llm.TurnRequest) (Stream, error)
}

type clientStreamer struct{ c *llm.Client }

// ClientStreamer adapts an llm.Client.
func ClientStreamer(c *llm.Client) Streamer { return clientStreamer{c: c} }

func (s clientStreamer) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (Stream, error) {
	st, err := s.c.StreamCompletion(ctx, req)
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s clientStreamer) StreamConversationTurn(ctx context.Context, req llm.TurnRequest) (Stream, error) {
	st, err := s.c.StreamConversationTurn(ctx, req)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Recorder persists completed answers.
type Recorder interface {
	Append(history.Entry) error
}

type Options struct {
	Streamer       Streamer
	Prompts        *prompt.Store
	Sink           Sink
	History        Recorder
	BaseLanguage   language.Code
	ExplainModel   string
	TranslateModel string
	AskModel       string
	ExplainStyle   string
}

type Kind string

const (
	KindExplain Kind = "explain"
	KindAsk     Kind = "ask"
)

// Turn is one completed question and answer.
type Turn struct {
	Question string
	Answer   string
}

type conversation struct {
	token      string
	transcript []Turn
	turn       *task
}

type session struct {
	id         string
	kind       Kind
	historyID  string
	text       string
	anchor     selection.Anchor
	provenance selection.Provenance
	base       language.Code

	answers         map[language.Code]string
	explain         *task
	translate       *task
	translateTarget language.Code
	conv            conversation
}

// Snapshot is a read-only copy of a session.
type Snapshot struct {
	ID                string
	Kind              Kind
	SelectionText     string
	Anchor            selection.Anchor
	Provenance        selection.Provenance
	BaseLanguage      language.Code
	Answers           map[language.Code]string
	Explaining        bool
	Translating       bool
	TranslateTarget   language.Code
	Asking            bool
	ContinuationToken string
	Transcript        []Turn
}

// ContextItem is a snippet collected for the next ask conversation.
type ContextItem struct {
	ID      string
	Text    string
	AddedAt time.Time
}

// Manager owns every live session and its tasks.
type Manager struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*session
	context  []ContextItem
	nextTask uint64
	shutdown bool
	wg       sync.WaitGroup

	// deliverMu serializes sink callbacks with task cancellation.
	deliverMu sync.Mutex
}

func NewManager(opts Options) *Manager {
	if opts.Prompts == nil {
		opts.Prompts = prompt.Defaults()
	}
	if !opts.BaseLanguage.Valid() {
		opts.BaseLanguage = language.Chinese
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	return &Manager{opts: opts, sessions: make(map[string]*session)}
}

func (m *Manager) BaseLanguage() language.Code { return m.opts.BaseLanguage }

func (m *Manager) newSession(kind Kind, sel selection.Captured) *session {
	return &session{
		id:         uuid.NewString(),
		kind:       kind,
		historyID:  uuid.NewString(),
		text:       sel.Text,
		anchor:     sel.Anchor,
		provenance: sel.Provenance,
		base:       m.opts.BaseLanguage,
		answers:    make(map[language.Code]string),
	}
}

// StartExplain creates an explain session for sel and starts streaming the
// base-language answer.
func (m *Manager) StartExplain(sel selection.Captured) (string, error) {
	if strings.TrimSpace(sel.Text) == "" {
		return "", ErrNothingSelected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return "", ErrShutdown
	}
	s := m.newSession(KindExplain, sel)
	m.sessions[s.id] = s
	log.Printf("session %s: explain started provenance=%s chars=%d", s.id, s.provenance, len(s.text))
	m.startExplainLocked(s)
	return s.id, nil
}

// StartAsk creates an ask session. No request is made until Ask is called.
// The selection may be empty when the question stands on its own.
func (m *Manager) StartAsk(sel selection.Captured) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shutdown {
		return "", ErrShutdown
	}
	s := m.newSession(KindAsk, sel)
	m.sessions[s.id] = s
	log.Printf("session %s: ask opened provenance=%s chars=%d", s.id, s.provenance, len(s.text))
	return s.id, nil
}

// Explain re-delivers the cached base answer or restarts a failed explain.
func (m *Manager) Explain(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSession
	}
	if cached, ok := s.answers[s.base]; ok {
		m.mu.Unlock()
		m.deliverCached(s.id, OpExplain, s.base, cached)
		return nil
	}
	if s.explain == nil {
		m.startExplainLocked(s)
	}
	m.mu.Unlock()
	return nil
}

// SwitchLanguage shows the answer in target. Cached answers are served
// without a request; otherwise the base answer is translated, replacing
// any translation still in flight.
func (m *Manager) SwitchLanguage(id string, target language.Code) (State, error) {
	if !target.Valid() {
		return StateIdle, fmt.Errorf("unsupported language %q", target)
	}
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return StateIdle, ErrUnknownSession
	}

	if cached, ok := s.answers[target]; ok {
		m.cancelTranslateLocked(s)
		m.mu.Unlock()
		m.deliverCached(s.id, OpTranslate, target, cached)
		return StateCompleted, nil
	}

	source, ok := s.answers[s.base]
	if !ok {
		m.mu.Unlock()
		m.deliver(nil, func(sink Sink) {
			sink.OnState(Update{SessionID: id, Op: OpTranslate, Language: target, State: StateNotReady})
		})
		return StateNotReady, ErrNotReady
	}

	// Re-selecting the target already streaming keeps that stream instead of
	// restarting it; it is still the only translate task.
	if s.translate != nil && s.translateTarget == target {
		m.mu.Unlock()
		return StateStreaming, nil
	}
	m.cancelTranslateLocked(s)

	t := m.newTaskLocked()
	s.translate, s.translateTarget = t, target
	messages := m.opts.Prompts.TranslateMessages(source, target)
	model := m.opts.TranslateModel
	log.Printf("session %s: translate to %s task=%d", s.id, target, t.id)

	m.runLocked(t, s, Update{SessionID: s.id, Op: OpTranslate, Language: target},
		func(ctx context.Context) (Stream, error) {
			return m.opts.Streamer.StreamCompletion(ctx, llm.CompletionRequest{Model: model, Messages: messages})
		},
		func(final, _ string) {
			s.translate = nil
			s.answers[target] = final
		},
		func() { s.translate = nil },
		func(final string) history.Entry {
			return history.Entry{ID: s.historyID, SelectionText: s.text, Language: string(target),
				OutputText: final, Model: model, Source: "translate"}
		},
		func() bool { return s.translate == t },
	)
	m.mu.Unlock()
	return StateStreaming, nil
}

// Ask sends one question. The first turn embeds the context items and the
// selection; later turns continue from the last completed turn. Only one
// turn may be in flight per session.
func (m *Manager) Ask(id, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	if s.conv.turn != nil {
		return ErrTurnInFlight
	}

	req := llm.TurnRequest{
		Model:              m.opts.AskModel,
		Instructions:       prompt.AskInstructions(s.base),
		Input:              question,
		PreviousResponseID: s.conv.token,
	}
	if s.conv.token == "" {
		req.Input = prompt.FirstTurnInput(m.contextTextsLocked(), s.text, question)
	}

	t := m.newTaskLocked()
	s.conv.turn = t
	log.Printf("session %s: ask turn task=%d continued=%v", s.id, t.id, req.PreviousResponseID != "")

	m.runLocked(t, s, Update{SessionID: s.id, Op: OpAsk, Language: s.base},
		func(ctx context.Context) (Stream, error) {
			return m.opts.Streamer.StreamConversationTurn(ctx, req)
		},
		func(final, token string) {
			s.conv.turn = nil
			if token != "" {
				s.conv.token = token
			}
			s.conv.transcript = append(s.conv.transcript, Turn{Question: question, Answer: final})
		},
		func() { s.conv.turn = nil },
		func(final string) history.Entry {
			return history.Entry{ID: s.historyID, SelectionText: s.text, Language: string(s.base),
				OutputText: "Q: " + question + "\n\nA: " + final, Model: req.Model, Source: "ask"}
		},
		func() bool { return s.conv.turn == t },
	)
	return nil
}

func (m *Manager) startExplainLocked(s *session) {
	t := m.newTaskLocked()
	s.explain = t
	messages := m.opts.Prompts.ExplainMessages(s.text, s.base, m.opts.ExplainStyle)
	model := m.opts.ExplainModel

	m.runLocked(t, s, Update{SessionID: s.id, Op: OpExplain, Language: s.base},
		func(ctx context.Context) (Stream, error) {
			return m.opts.Streamer.StreamCompletion(ctx, llm.CompletionRequest{Model: model, Messages: messages})
		},
		func(final, _ string) {
			s.explain = nil
			if _, done := s.answers[s.base]; !done {
				s.answers[s.base] = final
			}
		},
		func() { s.explain = nil },
		func(final string) history.Entry {
			return history.Entry{ID: s.historyID, SelectionText: s.text, Language: string(s.base),
				OutputText: final, Model: model, Source: string(s.provenance)}
		},
		func() bool { return s.explain == t },
	)
}

// Close cancels every task of the session and forgets it.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return
	}
	m.closeLocked(s)
	log.Printf("session %s: closed", id)
}

func (m *Manager) closeLocked(s *session) {
	for _, t := range []*task{s.explain, s.translate, s.conv.turn} {
		m.cancelTaskLocked(t)
	}
	s.explain, s.translate, s.conv.turn = nil, nil, nil
	delete(m.sessions, s.id)
}

// Shutdown closes every session and waits for their tasks to return.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	for _, s := range m.sessions {
		m.closeLocked(s)
	}
	m.mu.Unlock()
	m.wg.Wait()
	log.Printf("session manager: shut down")
}

// Answer returns the cached answer of a session in lang.
func (m *Manager) Answer(id string, lang language.Code) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return "", false
	}
	a, ok := s.answers[lang]
	return a, ok
}

// Transcript returns the completed turns of an ask session in order.
func (m *Manager) Transcript(id string) []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	return append([]Turn(nil), s.conv.transcript...)
}

func (m *Manager) Snapshot(id string) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return Snapshot{}, false
	}
	answers := make(map[language.Code]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return Snapshot{
		ID:                s.id,
		Kind:              s.kind,
		SelectionText:     s.text,
		Anchor:            s.anchor,
		Provenance:        s.provenance,
		BaseLanguage:      s.base,
		Answers:           answers,
		Explaining:        s.explain != nil,
		Translating:       s.translate != nil,
		TranslateTarget:   s.translateTarget,
		Asking:            s.conv.turn != nil,
		ContinuationToken: s.conv.token,
		Transcript:        append([]Turn(nil), s.conv.transcript...),
	}, true
}

// Sessions returns the ids of live sessions.
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (m *Manager) cancelTranslateLocked(s *session) {
	if s.translate == nil {
		return
	}
	log.Printf("session %s: canceling translate task=%d", s.id, s.translate.id)
	m.cancelTaskLocked(s.translate)
	s.translate = nil
}

func (m *Manager) deliverCached(id string, op Op, lang language.Code, text string) {
	m.deliver(nil, func(sink Sink) {
		sink.OnCompleted(Update{SessionID: id, Op: op, Language: lang, State: StateCompleted, Text: text, Cached: true})
	})
}

type nopSink struct{}

func (nopSink) OnState(Update)     {}
func (nopSink) OnFragment(Update)  {}
func (nopSink) OnCompleted(Update) {}
func (nopSink) OnFailed(Update)    {}
