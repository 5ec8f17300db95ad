// Package panel renders sessions in fyne windows and owns the tray menu.
package panel

import (
	"log"
	"sync"

	"fyne.io/fyne/v2"

	"copytoask/src/hotkey"
	"copytoask/src/language"
	"copytoask/src/selection"
	"copytoask/src/session"
	"copytoask/src/tray"
)

// Sessions is the session.Manager surface the windows drive.
type Sessions interface {
	BaseLanguage() language.Code
	Explain(id string) error
	SwitchLanguage(id string, target language.Code) (session.State, error)
	Ask(id, question string) error
	Close(id string)
	Answer(id string, lang language.Code) (string, bool)
	ContextItems() []session.ContextItem
	RemoveContext(id string) bool
	ClearContext()
}

// UI is both the session.Sink and the event loop presenter. Every widget
// change is posted to the fyne goroutine with fyne.Do.
type UI struct {
	app      fyne.App
	sessions Sessions
	post     func(hotkey.Action) bool
	tray     *tray.Tray

	mu      sync.Mutex
	windows map[string]*answerWindow
	closed  map[string]bool
	context *contextWindow
}

func New(app fyne.App) *UI {
	return &UI{app: app, windows: make(map[string]*answerWindow), closed: make(map[string]bool)}
}

// Attach connects the session manager and the action queue. The manager is
// built with this UI as its sink, so it is attached after construction.
func (u *UI) Attach(sessions Sessions, post func(hotkey.Action) bool) {
	u.sessions = sessions
	u.post = post
}

// InstallTray puts the tray menu in place; quit runs on Quit.
func (u *UI) InstallTray(quit func()) {
	u.tray = tray.Install(u.app, tray.Handlers{
		Explain:      func() { u.dispatch(hotkey.ActionExplain) },
		Ask:          func() { u.dispatch(hotkey.ActionAsk) },
		ShowContext:  u.ShowContext,
		ClearContext: u.clearContext,
		Quit:         quit,
	})
}

func (u *UI) dispatch(a hotkey.Action) {
	if u.post != nil {
		u.post(a)
	}
}

func (u *UI) window(id string) *answerWindow {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.windows[id]
}

func (u *UI) forget(id string) {
	u.mu.Lock()
	delete(u.windows, id)
	u.closed[id] = true
	u.mu.Unlock()
}

// ShowExplain opens the answer window of an explain session.
func (u *UI) ShowExplain(id string, sel selection.Captured) {
	u.open(id, session.KindExplain, sel)
}

// ShowAsk opens the conversation window of an ask session.
func (u *UI) ShowAsk(id string, sel selection.Captured) {
	u.open(id, session.KindAsk, sel)
}

func (u *UI) open(id string, kind session.Kind, sel selection.Captured) {
	log.Printf("panel: open %s window session=%s anchor=%+v", kind, id, sel.Anchor)
	fyne.Do(func() {
		w := newAnswerWindow(u, id, kind, sel)
		u.mu.Lock()
		// A fragment may have arrived before the window existed.
		if early := u.windows[id]; early != nil {
			w.adopt(early)
		}
		u.windows[id] = w
		u.mu.Unlock()
		w.show()
	})
}

// ContextChanged refreshes the context window if it is open and confirms the
// addition with a notification.
func (u *UI) ContextChanged(items []session.ContextItem) {
	u.Notice(contextNotice(len(items)))
	fyne.Do(func() {
		if u.context != nil {
			u.context.refresh(items)
		}
	})
}

func (u *UI) ShowContext() {
	fyne.Do(func() {
		if u.context == nil {
			u.context = newContextWindow(u)
		}
		u.context.refresh(u.contextItems())
		u.context.win.Show()
		u.context.win.RequestFocus()
	})
}

func (u *UI) contextItems() []session.ContextItem {
	if u.sessions == nil {
		return nil
	}
	return u.sessions.ContextItems()
}

func (u *UI) clearContext() {
	if u.sessions == nil {
		return
	}
	u.sessions.ClearContext()
	u.ContextChanged(nil)
}

func (u *UI) Notice(msg string) {
	log.Printf("panel: notice %q", msg)
	u.app.SendNotification(fyne.NewNotification("copytoask", msg))
}

func (u *UI) SetBusy(busy bool) {
	fyne.Do(func() { u.tray.SetBusy(busy) })
}

// OnState, OnFragment, OnCompleted and OnFailed implement session.Sink.

func (u *UI) OnState(up session.Update)     { u.apply(up) }
func (u *UI) OnFragment(up session.Update)  { u.apply(up) }
func (u *UI) OnCompleted(up session.Update) { u.apply(up) }
func (u *UI) OnFailed(up session.Update)    { u.apply(up) }

func (u *UI) apply(up session.Update) {
	fyne.Do(func() {
		u.mu.Lock()
		if u.closed[up.SessionID] {
			u.mu.Unlock()
			return
		}
		w := u.windows[up.SessionID]
		if w == nil {
			// Updates can outrun open; park them on a placeholder.
			w = &answerWindow{id: up.SessionID, texts: make(map[language.Code]string)}
			u.windows[up.SessionID] = w
		}
		u.mu.Unlock()
		w.apply(up)
	})
}
