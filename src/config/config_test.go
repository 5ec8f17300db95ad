package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"copytoask/src/language"
	"copytoask/src/secret"
)

type fakeStore struct {
	key string
}

func (f fakeStore) Get() (string, error) {
	if f.key == "" {
		return "", secret.ErrNotFound
	}
	return f.key, nil
}
func (f fakeStore) Set(string) error { return errors.New("read-only") }
func (f fakeStore) Delete() error    { return nil }

func TestLoad(t *testing.T) {
	t.Setenv(APIKeyPathEnvVar, filepath.Join(t.TempDir(), "missing"))
	t.Setenv(APIKeyEnvVar, "test_api_key")
	t.Setenv("EXPLAIN_MODEL", "test_model")
	t.Setenv("ENABLE_FILE_LOGGING", "true")
	t.Setenv("HOTKEY_EXPLAIN", "Ctrl+Shift+T")
	t.Setenv("BASE_LANGUAGE", "English")
	t.Setenv("EXPLAIN_STYLE", "Detailed")
	t.Setenv("CAPTURE_TIMEOUT_MS", "500")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:9999/v1/")

	cfg, err := LoadWithOptions(LoadOptions{})
	if err != nil {
		t.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.APIKey != "test_api_key" || cfg.APIKeySource != SourceEnv {
		t.Errorf("Expected env API key, got %q from %q", cfg.APIKey, cfg.APIKeySource)
	}
	if cfg.ExplainModel != "test_model" {
		t.Errorf("Expected ExplainModel to be 'test_model', got '%s'", cfg.ExplainModel)
	}
	if !cfg.EnableFileLogging {
		t.Errorf("Expected EnableFileLogging to be true")
	}
	if cfg.HotkeyExplain != "Ctrl+Shift+T" {
		t.Errorf("Expected HotkeyExplain to be 'Ctrl+Shift+T', got '%s'", cfg.HotkeyExplain)
	}
	if cfg.BaseLanguage != language.English {
		t.Errorf("Expected base language en, got %q", cfg.BaseLanguage)
	}
	if cfg.ExplainStyle != StyleDetailed {
		t.Errorf("Expected detailed style, got %q", cfg.ExplainStyle)
	}
	if cfg.CaptureTimeoutMs != 500 {
		t.Errorf("Expected capture timeout 500, got %d", cfg.CaptureTimeoutMs)
	}
	if cfg.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("Expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"EXPLAIN_MODEL", "BASE_LANGUAGE", "EXPLAIN_STYLE", "CAPTURE_TIMEOUT_MS", "HISTORY_RETENTION_DAYS"} {
		t.Setenv(k, "")
	}
	t.Setenv("BASE_LANGUAGE", "klingon")
	t.Setenv("CAPTURE_TIMEOUT_MS", "0")

	cfg, err := LoadWithOptions(LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseLanguage != language.Chinese {
		t.Errorf("Expected fallback base language zh, got %q", cfg.BaseLanguage)
	}
	if cfg.ExplainStyle != StyleCheap {
		t.Errorf("Expected cheap style, got %q", cfg.ExplainStyle)
	}
	if cfg.CaptureTimeoutMs != 800 {
		t.Errorf("Expected default capture timeout, got %d", cfg.CaptureTimeoutMs)
	}
	if cfg.HistoryRetentionDays != 30 {
		t.Errorf("Expected default retention 30, got %d", cfg.HistoryRetentionDays)
	}
}

func TestAPIKeyPrecedence(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key")
	if err := os.WriteFile(keyFile, []byte("  from-file \n"), 0600); err != nil {
		t.Fatal(err)
	}

	t.Run("override file wins", func(t *testing.T) {
		t.Setenv(APIKeyEnvVar, "from-env")
		cfg, _ := LoadWithOptions(LoadOptions{APIKeyPathOverride: keyFile, Keyring: fakeStore{key: "from-keyring"}})
		if cfg.APIKey != "from-file" || cfg.APIKeySource != SourceFile {
			t.Errorf("Expected file key, got %q (%s)", cfg.APIKey, cfg.APIKeySource)
		}
	})

	t.Run("keyring is last", func(t *testing.T) {
		t.Setenv(APIKeyPathEnvVar, filepath.Join(dir, "missing"))
		t.Setenv(APIKeyEnvVar, "")
		cfg, _ := LoadWithOptions(LoadOptions{Keyring: fakeStore{key: "from-keyring"}})
		if cfg.APIKey != "from-keyring" || cfg.APIKeySource != SourceKeyring {
			t.Errorf("Expected keyring key, got %q (%s)", cfg.APIKey, cfg.APIKeySource)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(APIKeyPathEnvVar, filepath.Join(dir, "missing"))
		t.Setenv(APIKeyEnvVar, "")
		cfg, _ := LoadWithOptions(LoadOptions{Keyring: fakeStore{}})
		if cfg.APIKey != "" || cfg.APIKeySource != "" {
			t.Errorf("Expected no key, got %q (%s)", cfg.APIKey, cfg.APIKeySource)
		}
	})
}
