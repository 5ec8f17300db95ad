package panel

import (
	"strings"
	"sync"
	"testing"

	"fyne.io/fyne/v2/test"

	"copytoask/src/hotkey"
	"copytoask/src/language"
	"copytoask/src/selection"
	"copytoask/src/session"
)

type fakeSessions struct {
	mu        sync.Mutex
	closed    []string
	switches  []language.Code
	explains  int
	switchErr error
	context   []session.ContextItem
}

func (f *fakeSessions) BaseLanguage() language.Code { return language.Chinese }
func (f *fakeSessions) Explain(string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.explains++
	return nil
}
func (f *fakeSessions) SwitchLanguage(id string, target language.Code) (session.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.switches = append(f.switches, target)
	if f.switchErr != nil {
		return session.StateNotReady, f.switchErr
	}
	return session.StateStreaming, nil
}
func (f *fakeSessions) Ask(string, string) error { return nil }
func (f *fakeSessions) Close(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
}
func (f *fakeSessions) Answer(string, language.Code) (string, bool) { return "", false }
func (f *fakeSessions) ContextItems() []session.ContextItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.ContextItem(nil), f.context...)
}
func (f *fakeSessions) RemoveContext(string) bool { return false }
func (f *fakeSessions) ClearContext() {
	f.mu.Lock()
	f.context = nil
	f.mu.Unlock()
}

func TestStatusText(t *testing.T) {
	tests := []struct {
		name string
		up   session.Update
		want string
	}{
		{"explaining", session.Update{Op: session.OpExplain, State: session.StateStreaming}, "Explaining..."},
		{"translating", session.Update{Op: session.OpTranslate, Language: language.Japanese, State: session.StateStreaming}, "Translating to Japanese..."},
		{"asking", session.Update{Op: session.OpAsk, State: session.StateStreaming}, "Thinking..."},
		{"not ready", session.Update{Op: session.OpTranslate, State: session.StateNotReady}, "The explanation has not finished yet."},
		{"failed", session.Update{Op: session.OpExplain, State: session.StateFailed, Text: "Rate limit exceeded."}, "Rate limit exceeded."},
		{"cached", session.Update{Op: session.OpTranslate, State: session.StateCompleted, Cached: true}, "Cached"},
		{"done", session.Update{Op: session.OpExplain, State: session.StateCompleted}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusText(tt.up); got != tt.want {
				t.Errorf("statusText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTranscriptMarkdown(t *testing.T) {
	turns := []session.Turn{{Question: "what?", Answer: "this"}}
	got := transcriptMarkdown(turns, "why?", "because")
	want := "**Q:** what?\n\nthis\n\n---\n\n**Q:** why?\n\nbecause"
	if got != want {
		t.Errorf("transcriptMarkdown() = %q, want %q", got, want)
	}
	if transcriptMarkdown(nil, "", "") != "" {
		t.Error("empty transcript should render nothing")
	}
}

func TestWindowTitle(t *testing.T) {
	if got := windowTitle(session.KindExplain, "  hello\n world "); got != "Explain: hello world" {
		t.Errorf("title = %q", got)
	}
	if got := windowTitle(session.KindAsk, ""); got != "Ask" {
		t.Errorf("title = %q", got)
	}
	long := strings.Repeat("字", 100)
	if got := windowTitle(session.KindExplain, long); len([]rune(got)) != len("Explain: ")+titleLimit+1 {
		t.Errorf("title not truncated: %q", got)
	}
}

func TestLanguageOptionsParse(t *testing.T) {
	for _, name := range languageOptions() {
		if _, err := language.Parse(name); err != nil {
			t.Errorf("option %q does not parse: %v", name, err)
		}
	}
}

func TestContextNotice(t *testing.T) {
	for n, want := range map[int]string{0: "Context cleared", 1: "Added to context (1 item)", 3: "Added to context (3 items)"} {
		if got := contextNotice(n); got != want {
			t.Errorf("contextNotice(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestPlaceholderAdoptedByWindow(t *testing.T) {
	p := &answerWindow{id: "s1", texts: make(map[language.Code]string)}
	p.apply(session.Update{SessionID: "s1", Op: session.OpExplain, Language: language.Chinese,
		State: session.StateStreaming, Delta: "你", Text: "你"})

	w := &answerWindow{id: "s1", kind: session.KindExplain, lang: language.Chinese, texts: make(map[language.Code]string)}
	w.adopt(p)
	if w.texts[language.Chinese] != "你" || w.status != "Explaining..." {
		t.Errorf("adopted state = %q / %q", w.texts[language.Chinese], w.status)
	}
}

func TestAskTurnsTrackQuestions(t *testing.T) {
	w := &answerWindow{id: "a", kind: session.KindAsk, texts: make(map[language.Code]string)}
	w.question, w.asking = "first?", true
	w.apply(session.Update{Op: session.OpAsk, State: session.StateStreaming, Text: "par"})
	if w.pending != "par" {
		t.Errorf("pending = %q", w.pending)
	}
	w.apply(session.Update{Op: session.OpAsk, State: session.StateCompleted, Text: "partial answer"})
	if len(w.turns) != 1 || w.turns[0] != (session.Turn{Question: "first?", Answer: "partial answer"}) {
		t.Errorf("turns = %+v", w.turns)
	}
	if w.asking || w.currentText() != "partial answer" {
		t.Error("completed turn should re-enable asking and be copyable")
	}
}

func TestUIRoutesUpdatesToWindow(t *testing.T) {
	app := test.NewApp()
	defer app.Quit()

	fs := &fakeSessions{}
	ui := New(app)
	var posted []hotkey.Action
	ui.Attach(fs, func(a hotkey.Action) bool { posted = append(posted, a); return true })
	ui.InstallTray(func() {})

	sel := selection.Captured{Text: "hello", Provenance: selection.ProvenanceAccessibility}
	ui.ShowExplain("s1", sel)
	ui.OnFragment(session.Update{SessionID: "s1", Op: session.OpExplain, Language: language.Chinese,
		State: session.StateStreaming, Delta: "hi", Text: "hi"})

	w := ui.window("s1")
	if w == nil || w.win == nil {
		t.Fatal("window not opened")
	}
	if w.texts[language.Chinese] != "hi" {
		t.Errorf("text = %q", w.texts[language.Chinese])
	}

	w.close()
	if len(fs.closed) != 1 || fs.closed[0] != "s1" {
		t.Errorf("closed = %v", fs.closed)
	}
	ui.OnCompleted(session.Update{SessionID: "s1", Op: session.OpExplain, State: session.StateCompleted, Text: "late"})
	if ui.window("s1") != nil {
		t.Error("updates for a closed session must not reopen it")
	}

	ui.dispatch(hotkey.ActionAsk)
	if len(posted) != 1 || posted[0] != hotkey.ActionAsk {
		t.Errorf("posted = %v", posted)
	}
}

func TestRequestLanguage(t *testing.T) {
	tests := []struct {
		name         string
		target       language.Code
		switchErr    error
		wantExplains int
	}{
		{"translation", language.Japanese, nil, 0},
		{"base language cancels translation", language.Chinese, nil, 0},
		{"base not ready restarts explain", language.Chinese, session.ErrNotReady, 1},
		{"translation not ready", language.Japanese, session.ErrNotReady, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &fakeSessions{switchErr: tt.switchErr}
			requestLanguage(fs, "s1", tt.target)
			if len(fs.switches) != 1 || fs.switches[0] != tt.target {
				t.Errorf("switches = %v, want [%s]", fs.switches, tt.target)
			}
			if fs.explains != tt.wantExplains {
				t.Errorf("explains = %d, want %d", fs.explains, tt.wantExplains)
			}
		})
	}
}
