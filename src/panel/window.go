package panel

import (
	"errors"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"copytoask/src/apperrors"
	"copytoask/src/clipboard"
	"copytoask/src/language"
	"copytoask/src/selection"
	"copytoask/src/session"
	"copytoask/src/tray"
)

// answerWindow shows one session. All fields are owned by the fyne goroutine.
// A window with a nil win is a placeholder holding updates that arrived
// before the window was opened.
type answerWindow struct {
	ui   *UI
	id   string
	kind session.Kind
	sel  selection.Captured

	lang   language.Code
	texts  map[language.Code]string
	status string

	turns    []session.Turn
	question string
	pending  string
	asking   bool

	win      fyne.Window
	body     *widget.RichText
	statusLb *widget.Label
	entry    *widget.Entry
	send     *widget.Button
}

func newAnswerWindow(ui *UI, id string, kind session.Kind, sel selection.Captured) *answerWindow {
	w := &answerWindow{
		ui:    ui,
		id:    id,
		kind:  kind,
		sel:   sel,
		texts: make(map[language.Code]string),
	}
	if ui.sessions != nil {
		w.lang = ui.sessions.BaseLanguage()
	}
	w.build()
	return w
}

// adopt takes over the state parked on a placeholder.
func (w *answerWindow) adopt(p *answerWindow) {
	for k, v := range p.texts {
		w.texts[k] = v
	}
	w.status = p.status
	w.turns = append(w.turns, p.turns...)
	w.pending = p.pending
}

func (w *answerWindow) build() {
	w.win = w.ui.app.NewWindow(windowTitle(w.kind, w.sel.Text))
	w.win.SetIcon(tray.Icon())

	w.body = widget.NewRichText()
	w.body.Wrapping = fyne.TextWrapWord
	w.statusLb = widget.NewLabel("")
	w.statusLb.Wrapping = fyne.TextWrapWord

	quote := widget.NewLabel(truncate(w.sel.Text, quoteLimit))
	quote.Wrapping = fyne.TextWrapWord
	quote.TextStyle = fyne.TextStyle{Italic: true}

	copyBtn := widget.NewButton("Copy", w.copyAnswer)

	var top, bottom fyne.CanvasObject
	switch w.kind {
	case session.KindAsk:
		w.entry = widget.NewMultiLineEntry()
		w.entry.SetPlaceHolder("Ask a question about the selection")
		w.entry.Wrapping = fyne.TextWrapWord
		w.send = widget.NewButton("Send", w.submit)
		top = quote
		bottom = container.NewBorder(nil, nil, nil, container.NewVBox(w.send, copyBtn), w.entry)
	default:
		langs := widget.NewSelect(languageOptions(), nil)
		langs.SetSelected(w.lang.Name())
		langs.OnChanged = w.switchLanguage
		top = container.NewBorder(nil, nil, nil, langs, quote)
		bottom = container.NewBorder(nil, nil, nil, copyBtn, w.statusLb)
	}
	if w.kind == session.KindAsk {
		top = container.NewVBox(top, w.statusLb)
	}

	w.win.SetContent(container.NewBorder(top, bottom, nil, nil, container.NewVScroll(w.body)))
	w.win.Resize(fyne.NewSize(windowWidth, windowHeight))
	w.win.SetCloseIntercept(w.close)
}

func (w *answerWindow) show() {
	w.render()
	w.win.CenterOnScreen()
	w.win.Show()
	w.win.RequestFocus()
}

func (w *answerWindow) close() {
	if w.ui.sessions != nil {
		w.ui.sessions.Close(w.id)
	}
	w.ui.forget(w.id)
	w.win.SetCloseIntercept(nil)
	w.win.Close()
}

func (w *answerWindow) switchLanguage(name string) {
	target, err := language.Parse(name)
	if err != nil || target == w.lang {
		return
	}
	w.lang = target
	w.status = ""
	w.render()
	sessions := w.ui.sessions
	if sessions == nil {
		return
	}
	go requestLanguage(sessions, w.id, target)
}

// requestLanguage routes every switch, the base language included, through
// SwitchLanguage so a translation still streaming is canceled. A base answer
// that is not ready means the explain failed or is running; Explain restarts
// the former and ignores the latter.
func requestLanguage(sessions Sessions, id string, target language.Code) {
	_, err := sessions.SwitchLanguage(id, target)
	if errors.Is(err, session.ErrNotReady) && target == sessions.BaseLanguage() {
		err = sessions.Explain(id)
	}
	if err != nil && !errors.Is(err, session.ErrNotReady) {
		log.Printf("panel: switch %s to %s: %v", id, target, err)
	}
}

func (w *answerWindow) submit() {
	q := w.entry.Text
	if w.asking || w.ui.sessions == nil {
		return
	}
	w.question = q
	w.asking = true
	w.pending = ""
	w.entry.SetText("")
	w.render()
	sessions, id := w.ui.sessions, w.id
	go func() {
		if err := sessions.Ask(id, q); err != nil {
			fyne.Do(func() {
				w.asking = false
				w.status = apperrors.PublicMessage(err)
				w.render()
			})
		}
	}()
}

func (w *answerWindow) copyAnswer() {
	text := w.currentText()
	if text == "" {
		return
	}
	if err := clipboard.Write(text); err != nil {
		log.Printf("panel: copy answer failed: %v", err)
		w.status = "Copy failed"
		w.render()
		return
	}
	w.status = "Copied"
	w.render()
}

func (w *answerWindow) currentText() string {
	if w.kind == session.KindAsk {
		if n := len(w.turns); n > 0 {
			return w.turns[n-1].Answer
		}
		return ""
	}
	return w.texts[w.lang]
}

func (w *answerWindow) apply(up session.Update) {
	switch up.Op {
	case session.OpAsk:
		w.applyAsk(up)
	default:
		w.applyAnswer(up)
	}
	w.render()
}

func (w *answerWindow) applyAnswer(up session.Update) {
	switch up.State {
	case session.StateStreaming:
		if up.Text != "" {
			w.texts[up.Language] = up.Text
		}
	case session.StateCompleted:
		w.texts[up.Language] = up.Text
	}
	if up.Language == w.lang || w.lang == "" {
		w.status = statusText(up)
	}
}

func (w *answerWindow) applyAsk(up session.Update) {
	switch up.State {
	case session.StateStreaming:
		w.pending = up.Text
	case session.StateCompleted:
		w.turns = append(w.turns, session.Turn{Question: w.question, Answer: up.Text})
		w.pending, w.question, w.asking = "", "", false
	case session.StateFailed:
		w.pending, w.asking = "", false
	}
	w.status = statusText(up)
}

func (w *answerWindow) render() {
	if w.win == nil {
		return
	}
	if w.kind == session.KindAsk {
		w.body.ParseMarkdown(transcriptMarkdown(w.turns, w.question, w.pending))
		if w.send != nil {
			if w.asking {
				w.send.Disable()
			} else {
				w.send.Enable()
			}
		}
	} else {
		w.body.ParseMarkdown(w.texts[w.lang])
	}
	w.statusLb.SetText(w.status)
}
