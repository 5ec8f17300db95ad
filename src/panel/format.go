package panel

import (
	"fmt"
	"strings"

	"copytoask/src/language"
	"copytoask/src/session"
)

const (
	windowWidth  = 520
	windowHeight = 420
	quoteLimit   = 280
	titleLimit   = 40
)

func windowTitle(kind session.Kind, text string) string {
	prefix := "Explain"
	if kind == session.KindAsk {
		prefix = "Ask"
	}
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return prefix
	}
	return prefix + ": " + truncate(text, titleLimit)
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func languageOptions() []string {
	out := make([]string, len(language.Supported))
	for i, c := range language.Supported {
		out[i] = c.Name()
	}
	return out
}

func statusText(up session.Update) string {
	switch up.State {
	case session.StateStreaming:
		switch up.Op {
		case session.OpExplain:
			return "Explaining..."
		case session.OpTranslate:
			return fmt.Sprintf("Translating to %s...", up.Language.Name())
		default:
			return "Thinking..."
		}
	case session.StateNotReady:
		return "The explanation has not finished yet."
	case session.StateFailed:
		return up.Text
	case session.StateCompleted:
		if up.Cached {
			return "Cached"
		}
	}
	return ""
}

// transcriptMarkdown renders finished turns followed by the turn in flight.
func transcriptMarkdown(turns []session.Turn, question, pending string) string {
	var b strings.Builder
	write := func(q, a string) {
		if b.Len() > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString("**Q:** ")
		b.WriteString(q)
		if a != "" {
			b.WriteString("\n\n")
			b.WriteString(a)
		}
	}
	for _, t := range turns {
		write(t.Question, t.Answer)
	}
	if question != "" {
		write(question, pending)
	}
	return b.String()
}

func contextNotice(n int) string {
	switch n {
	case 0:
		return "Context cleared"
	case 1:
		return "Added to context (1 item)"
	}
	return fmt.Sprintf("Added to context (%d items)", n)
}
