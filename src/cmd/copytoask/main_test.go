package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"copytoask/src/config"
	"copytoask/src/history"
	"copytoask/src/secret"
	"copytoask/src/session"
	"copytoask/src/singleinstance"
)

type memStore struct {
	key string
}

func (m *memStore) Get() (string, error) {
	if m.key == "" {
		return "", secret.ErrNotFound
	}
	return m.key, nil
}
func (m *memStore) Set(k string) error { m.key = k; return nil }
func (m *memStore) Delete() error      { m.key = ""; return nil }

func useStore(t *testing.T, s secret.Store) {
	t.Helper()
	prev := newKeyStore
	newKeyStore = func() secret.Store { return s }
	t.Cleanup(func() { newKeyStore = prev })
}

// setEnv isolates configuration from the host.
func setEnv(t *testing.T, baseURL, key string) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(config.APIKeyPathEnvVar, filepath.Join(dir, "missing"))
	t.Setenv(config.APIKeyEnvVar, key)
	t.Setenv("OPENAI_BASE_URL", baseURL)
	t.Setenv("HISTORY_DIR", filepath.Join(dir, "history"))
	t.Setenv("BASE_LANGUAGE", "en")
	t.Setenv("EXPLAIN_PROMPT_FILE", "")
	t.Setenv("TRANSLATE_PROMPT_FILE", "")
	return dir
}

func sseServer(t *testing.T, fragments ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		switch r.URL.Path {
		case "/responses":
			fmt.Fprint(w, "data: {\"type\":\"response.created\",\"response\":{\"id\":\"resp_1\"}}\n\n")
			for _, f := range fragments {
				fmt.Fprintf(w, "data: {\"type\":\"response.output_text.delta\",\"delta\":%q}\n\n", f)
			}
			fmt.Fprint(w, "data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_1\"}}\n\n")
		default:
			for _, f := range fragments {
				fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", f)
			}
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(&rootOptions{})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := newRootCmd(&rootOptions{})
	for _, path := range [][]string{
		{"run"}, {"explain"}, {"ask"}, {"diagnostics"},
		{"key", "set"}, {"key", "clear"}, {"key", "status"},
		{"history", "show"}, {"history", "prune"}, {"history", "summarize"},
		{"trigger"},
	} {
		t.Run(strings.Join(path, " "), func(t *testing.T) {
			c, _, err := root.Find(path)
			if err != nil || c == nil || c.Name() != path[len(path)-1] {
				t.Errorf("command %v not found: %v", path, err)
			}
		})
	}
}

func TestExplainFromArgs(t *testing.T) {
	useStore(t, &memStore{})
	srv := sseServer(t, "An ", "answer.")
	dir := setEnv(t, srv.URL, "sk-test-1234567890")

	out, err := execute(t, "", "explain", "some", "text")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if !strings.Contains(out, "An answer.") {
		t.Errorf("output = %q", out)
	}

	entries, err := history.ReadFiles(history.NewStore(filepath.Join(dir, "history")).DayFile(time.Now()))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(entries) != 1 || entries[0].SelectionText != "some text" || entries[0].Source != "input" {
		t.Errorf("history = %+v", entries)
	}
}

func TestExplainFromStdinWithTranslation(t *testing.T) {
	useStore(t, &memStore{})
	srv := sseServer(t, "ok")
	setEnv(t, srv.URL, "sk-test-1234567890")

	out, err := execute(t, "piped text\n", "explain", "--lang", "ja")
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if strings.Count(out, "ok") != 2 || !strings.Contains(out, "[Japanese]") {
		t.Errorf("output = %q", out)
	}
}

func TestExplainNothingSelected(t *testing.T) {
	useStore(t, &memStore{})
	setEnv(t, "http://127.0.0.1:1", "sk-test-1234567890")

	_, err := execute(t, "   \n", "explain")
	if !errors.Is(err, session.ErrNothingSelected) {
		t.Errorf("err = %v, want ErrNothingSelected", err)
	}
}

func TestExplainRejectsUnknownLanguage(t *testing.T) {
	useStore(t, &memStore{})
	setEnv(t, "http://127.0.0.1:1", "sk-test-1234567890")
	if _, err := execute(t, "", "explain", "--lang", "klingon", "x"); err == nil {
		t.Error("expected error for unknown language")
	}
}

func TestAskSingleQuestion(t *testing.T) {
	useStore(t, &memStore{})
	srv := sseServer(t, "Because.")
	setEnv(t, srv.URL, "sk-test-1234567890")

	out, err := execute(t, "", "ask", "--selection", "the sky is blue", "--context", "physics", "why?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out, "Because.") {
		t.Errorf("output = %q", out)
	}
}

func TestAskWithoutQuestion(t *testing.T) {
	useStore(t, &memStore{})
	setEnv(t, "http://127.0.0.1:1", "sk-test-1234567890")
	if _, err := execute(t, "", "ask"); !errors.Is(err, session.ErrEmptyQuestion) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestKeyCommands(t *testing.T) {
	store := &memStore{}
	useStore(t, store)
	setEnv(t, "http://127.0.0.1:1", "")

	out, err := execute(t, "", "key", "status")
	if err != nil || !strings.Contains(out, "No API key") {
		t.Fatalf("status = %q, %v", out, err)
	}

	prev := validateKey
	var validated string
	validateKey = func(_ context.Context, _ *config.Config, key string) error { validated = key; return nil }
	t.Cleanup(func() { validateKey = prev })

	out, err = execute(t, "sk-new-0000000000\n", "key", "set")
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if store.key != "sk-new-0000000000" || validated != store.key {
		t.Errorf("stored %q validated %q", store.key, validated)
	}
	if strings.Contains(out, "sk-new-0000000000") {
		t.Errorf("key must be redacted in output: %q", out)
	}

	out, err = execute(t, "", "key", "status")
	if err != nil || !strings.Contains(out, "from keyring") {
		t.Errorf("status = %q, %v", out, err)
	}

	if _, err := execute(t, "", "key", "clear"); err != nil || store.key != "" {
		t.Errorf("clear: key=%q err=%v", store.key, err)
	}
}

func TestKeySetRejected(t *testing.T) {
	store := &memStore{}
	useStore(t, store)
	setEnv(t, "http://127.0.0.1:1", "")
	prev := validateKey
	validateKey = func(context.Context, *config.Config, string) error { return errors.New("401") }
	t.Cleanup(func() { validateKey = prev })

	if _, err := execute(t, "", "key", "set", "sk-bad-0000000000"); err == nil {
		t.Fatal("expected rejection")
	}
	if store.key != "" {
		t.Error("rejected key must not be stored")
	}
}

func TestHistorySummarize(t *testing.T) {
	useStore(t, &memStore{})
	srv := sseServer(t, "# Notes")
	dir := setEnv(t, srv.URL, "sk-test-1234567890")

	store := history.NewStore(filepath.Join(dir, "history"))
	if err := store.Append(history.Entry{SelectionText: "goroutine", OutputText: "a thread", Language: "en"}); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "", "history", "summarize")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(out, "# Notes") || !strings.Contains(out, "Saved: ") {
		t.Errorf("output = %q", out)
	}
	label := strings.TrimSuffix(filepath.Base(store.DayFile(time.Now())), ".jsonl")
	data, err := os.ReadFile(filepath.Join(dir, "history", "Summaries", label+".md"))
	if err != nil || string(data) != "# Notes" {
		t.Errorf("summary = %q, %v", data, err)
	}

	out, err = execute(t, "", "history", "show")
	if err != nil || !strings.Contains(out, "goroutine") {
		t.Errorf("show = %q, %v", out, err)
	}
}

func TestTerminalSink(t *testing.T) {
	var buf bytes.Buffer
	s := newTerminalSink(&buf)
	s.OnFragment(session.Update{Delta: "a"})
	s.OnFragment(session.Update{Delta: "b"})
	s.OnCompleted(session.Update{State: session.StateCompleted, Text: "ab"})
	s.OnCompleted(session.Update{State: session.StateCompleted, Text: "cached", Cached: true})
	s.OnFailed(session.Update{State: session.StateFailed, Text: "Rate limit exceeded."})

	ctx := context.Background()
	if up, err := s.wait(ctx); err != nil || up.Text != "ab" {
		t.Errorf("first wait = %+v, %v", up, err)
	}
	if _, err := s.wait(ctx); err != nil {
		t.Errorf("second wait: %v", err)
	}
	if _, err := s.wait(ctx); err == nil || err.Error() != "Rate limit exceeded." {
		t.Errorf("third wait err = %v", err)
	}
	if buf.String() != "ab\ncached\n" {
		t.Errorf("output = %q", buf.String())
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.wait(canceled); !errors.Is(err, context.Canceled) {
		t.Errorf("wait on canceled ctx = %v", err)
	}
}

func TestRunWithArgsUnknownCommand(t *testing.T) {
	if err := runWithArgs([]string{"copytoask", "nope"}); err == nil {
		t.Error("expected error for unknown command")
	}
}


type fakeTrigger struct {
	delegated bool
	err       error
	got       string
}

func (f *fakeTrigger) Trigger(ctx context.Context, action string) (bool, string, error) {
	f.got = action
	return f.delegated, action, f.err
}

func TestTrigger(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		client  *fakeTrigger
		wantErr error
		want    string
	}{
		{"delegated", "context", &fakeTrigger{delegated: true}, nil, "set-context"},
		{"no resident", "explain", &fakeTrigger{}, ErrNoResident, "explain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := newTriggerClient
			newTriggerClient = func() singleinstance.Client { return tt.client }
			t.Cleanup(func() { newTriggerClient = orig })

			_, err := execute(t, "", "trigger", tt.arg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.client.got != tt.want {
				t.Errorf("sent %q, want %q", tt.client.got, tt.want)
			}
		})
	}

	if _, err := execute(t, "", "trigger", "dance"); err == nil {
		t.Error("unknown action should fail")
	}
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	writeReport(&buf, diagReport{
		TreeErr:      errors.New("no bus"),
		FallbackRan:  true,
		FallbackOK:   true,
		FallbackLen:  12,
		Elapsed:      1500 * time.Millisecond,
		ResidentPort: 49560,
	})
	for _, want := range []string{
		"accessibility: unavailable (no bus)",
		"copy fallback: 12 chars",
		"elapsed: 1.5s",
		"resident: running on port 49560",
	} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("report missing %q:\n%s", want, buf.String())
		}
	}
}
