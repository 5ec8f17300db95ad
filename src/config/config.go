package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"copytoask/src/language"
	"copytoask/src/secret"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/openai"
	APIKeyPathEnvVar  = "OPENAI_API_KEY_FILE"
	APIKeyEnvVar      = "OPENAI_API_KEY"
	EnvFileEnvVar     = "COPYTOASK_ENV"
	DefaultBaseURL    = "https://api.openai.com/v1"

	StyleCheap    = "cheap"
	StyleMedium   = "medium"
	StyleDetailed = "detailed"
)

// Key sources reported by Config.APIKeySource.
const (
	SourceFile    = "file"
	SourceEnv     = "env"
	SourceKeyring = "keyring"
)

type LoadOptions struct {
	APIKeyPathOverride string
	// Keyring is consulted last; nil disables it.
	Keyring secret.Store
}

type Config struct {
	APIKey       string
	APIKeyPath   string
	APIKeySource string
	BaseURL      string

	ExplainModel   string
	TranslateModel string
	AskModel       string
	ExplainStyle   string
	BaseLanguage   language.Code

	HotkeyExplain string
	HotkeyAsk     string
	HotkeyContext string

	CaptureTimeoutMs int

	EnableFileLogging bool
	LogDir            string

	HistoryDir           string
	HistoryRetentionDays int

	ExplainPromptFile   string
	TranslatePromptFile string
}

func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{Keyring: secret.NewKeyring()})
}

func LoadWithOptions(opts LoadOptions) (*Config, error) {
	// Sources in priority order:
	// 1) .env in the executable directory
	// 2) the file named by COPYTOASK_ENV
	envPath := resolveEnvPath()
	dotenvValues := readDotenvValues(envPath)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	apiKeyPath := resolveAPIKeyPath(opts, dotenvValues)
	apiKey, source := resolveAPIKey(apiKeyPath, opts.Keyring)

	cfg := &Config{
		APIKey:       apiKey,
		APIKeyPath:   apiKeyPath,
		APIKeySource: source,
		BaseURL:      strings.TrimRight(getEnvWithDefault("OPENAI_BASE_URL", DefaultBaseURL), "/"),

		ExplainModel:   getEnvWithDefault("EXPLAIN_MODEL", "gpt-4o-mini"),
		TranslateModel: getEnvWithDefault("TRANSLATE_MODEL", "gpt-4o-mini"),
		AskModel:       getEnvWithDefault("ASK_MODEL", "gpt-4o"),
		ExplainStyle:   resolveStyle(os.Getenv("EXPLAIN_STYLE")),
		BaseLanguage:   resolveBaseLanguage(os.Getenv("BASE_LANGUAGE")),

		HotkeyExplain: getEnvWithDefault("HOTKEY_EXPLAIN", "Ctrl+Alt+E"),
		HotkeyAsk:     getEnvWithDefault("HOTKEY_ASK", "Ctrl+Alt+A"),
		HotkeyContext: getEnvWithDefault("HOTKEY_CONTEXT", "Ctrl+Alt+C"),

		CaptureTimeoutMs: getEnvInt("CAPTURE_TIMEOUT_MS", 800, false),

		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		LogDir:            os.Getenv("LOG_DIR"),

		HistoryDir:           resolveHistoryDir(),
		HistoryRetentionDays: getEnvInt("HISTORY_RETENTION_DAYS", 30, true),

		ExplainPromptFile:   os.Getenv("EXPLAIN_PROMPT_FILE"),
		TranslatePromptFile: os.Getenv("TRANSLATE_PROMPT_FILE"),
	}

	return cfg, nil
}

func resolveEnvPath() string {
	if execPath, err := os.Executable(); err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}

	return ""
}

func readDotenvValues(envPath string) map[string]string {
	if envPath == "" {
		return map[string]string{}
	}

	values, err := godotenv.Read(envPath)
	if err != nil {
		return map[string]string{}
	}

	return values
}

func resolveAPIKeyPath(opts LoadOptions, dotenvValues map[string]string) string {
	keyPath := DefaultAPIKeyPath

	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		keyPath = envPath
	}

	if dotenvPath := strings.TrimSpace(dotenvValues[APIKeyPathEnvVar]); dotenvPath != "" {
		keyPath = dotenvPath
	}

	if overridePath := strings.TrimSpace(opts.APIKeyPathOverride); overridePath != "" {
		keyPath = overridePath
	}

	return keyPath
}

func resolveAPIKey(keyPath string, store secret.Store) (string, string) {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey, SourceFile
		}
	}

	if envKey := strings.TrimSpace(os.Getenv(APIKeyEnvVar)); envKey != "" {
		return envKey, SourceEnv
	}

	if store != nil {
		if k, err := store.Get(); err == nil && k != "" {
			return k, SourceKeyring
		}
	}

	return "", ""
}

func resolveHistoryDir() string {
	if v := strings.TrimSpace(os.Getenv("HISTORY_DIR")); v != "" {
		return v
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "history")
	}
	return filepath.Join(base, "copytoask", "history")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, allowZero bool) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 0 || (n == 0 && !allowZero) {
		return defaultValue
	}
	return n
}

func resolveStyle(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case StyleMedium:
		return StyleMedium
	case StyleDetailed:
		return StyleDetailed
	default:
		return StyleCheap
	}
}

func resolveBaseLanguage(value string) language.Code {
	if value == "" {
		return language.Chinese
	}
	c, err := language.Parse(value)
	if err != nil {
		return language.Chinese
	}
	return c
}
