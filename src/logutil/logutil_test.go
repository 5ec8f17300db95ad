package logutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRedactKey(t *testing.T) {
	if got := RedactKey("sk-1234567890abcd"); got != "sk-1...abcd" {
		t.Errorf("RedactKey = %q", got)
	}
	if got := RedactKey("short"); got != "********" {
		t.Errorf("RedactKey(short) = %q", got)
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello", "hello"},
		{"newlines", "a\nb\r\nc", `a\nb\n\nc`},
		{"tab and control", "a\tb\x01", `a\tb?`},
		{"truncates", strings.Repeat("x", 120), strings.Repeat("x", 100) + "..."},
		{"keeps runes", "日本語", "日本語"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.in); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, expected %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, logFileName)
	if err := os.WriteFile(path, []byte("current"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(archiveName(path, 1), []byte("older"), 0600); err != nil {
		t.Fatal(err)
	}

	rotate(path)

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected %s to be moved away", path)
	}
	b, err := os.ReadFile(archiveName(path, 1))
	if err != nil || string(b) != "current" {
		t.Errorf("Expected .1 to hold the current log, got %q (%v)", b, err)
	}
	b, err = os.ReadFile(archiveName(path, 2))
	if err != nil || string(b) != "older" {
		t.Errorf("Expected .2 to hold the older log, got %q (%v)", b, err)
	}
}
