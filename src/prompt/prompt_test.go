package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"copytoask/src/language"
)

func TestRender(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{"single", "Explain: {text}", map[string]string{"text": "x"}, "Explain: x"},
		{"repeated", "{text}/{text}", map[string]string{"text": "a"}, "a/a"},
		{"two vars", "{text} to {target_language}", map[string]string{"text": "hi", "target_language": "French"}, "hi to French"},
		{"unknown kept", "{other} {text}", map[string]string{"text": "t"}, "{other} t"},
		{"value not re-expanded", "{text}", map[string]string{"text": "{target_language}", "target_language": "no"}, "{target_language}"},
		{"no vars", "{text}", nil, "{text}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.template, tt.vars); got != tt.want {
				t.Errorf("Render() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestExplainMessages(t *testing.T) {
	msgs := Defaults().ExplainMessages("selected words", language.English, StyleCheap)
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "Output in English.") || !strings.HasSuffix(msgs[0].Content, "Be concise.") {
		t.Errorf("system prompt = %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "selected words") || strings.Contains(msgs[1].Content, "{text}") {
		t.Errorf("user prompt = %q", msgs[1].Content)
	}
}

func TestStyleSentence(t *testing.T) {
	if styleSentence("") != styleSentence(StyleMedium) {
		t.Error("unknown style should fall back to medium")
	}
	if !strings.HasPrefix(styleSentence(StyleDetailed), "Be thorough") {
		t.Error("detailed style sentence changed")
	}
}

func TestTranslateMessages(t *testing.T) {
	msgs := Defaults().TranslateMessages("答案", language.Japanese)
	if msgs[0].Content != translateSystem {
		t.Errorf("system = %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "to Japanese.") || !strings.Contains(msgs[1].Content, "答案") {
		t.Errorf("user = %q", msgs[1].Content)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	explain := filepath.Join(dir, "explain.txt")
	if err := os.WriteFile(explain, []byte("Explain this: {text}"), 0600); err != nil {
		t.Fatal(err)
	}
	blank := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(blank, []byte("  \n"), 0600); err != nil {
		t.Fatal(err)
	}
	noPlaceholder := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(noPlaceholder, []byte("Translate to {target_language}"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(explain, blank)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Explain != "Explain this: {text}" {
		t.Errorf("Explain = %q", s.Explain)
	}
	if s.Translate != DefaultTranslateTemplate {
		t.Error("blank override should keep the default")
	}

	if _, err := Load("", noPlaceholder); err == nil {
		t.Error("expected error for template without {text}")
	}
	if _, err := Load(filepath.Join(dir, "missing.txt"), ""); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFirstTurnInput(t *testing.T) {
	got := FirstTurnInput([]string{" first ", "second"}, "  the selection\n", " why? ")
	want := "Context:\n1. first\n2. second\n\nSelected text:\nthe selection\n\nQuestion:\nwhy?"
	if got != want {
		t.Errorf("FirstTurnInput() = %q, expected %q", got, want)
	}
	if got := FirstTurnInput(nil, "", "q"); got != "Question:\nq" {
		t.Errorf("FirstTurnInput() without context = %q", got)
	}
}

func TestAskInstructions(t *testing.T) {
	if !strings.Contains(AskInstructions(language.German), "Answer in German") {
		t.Error("instructions must name the base language")
	}
}

func TestSummaryMessages(t *testing.T) {
	msgs := SummaryMessages("2026-01-02", "- [t] (zh) selection: x", language.Japanese)
	if len(msgs) != 2 || msgs[0].Role != "system" || msgs[1].Role != "user" {
		t.Fatalf("messages = %+v", msgs)
	}
	if !strings.Contains(msgs[0].Content, "Output in Japanese") {
		t.Errorf("system prompt = %q", msgs[0].Content)
	}
	if !strings.Contains(msgs[1].Content, "2026-01-02") || !strings.HasSuffix(msgs[1].Content, "selection: x") {
		t.Errorf("user prompt = %q", msgs[1].Content)
	}
}
