package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"time"

	"copytoask/src/accessibility"
	"copytoask/src/clipboard"
	"copytoask/src/config"
	"copytoask/src/history"
	"copytoask/src/llm"
	"copytoask/src/logutil"
	"copytoask/src/prompt"
	"copytoask/src/selection"
	"copytoask/src/session"
)

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(enable bool, dir string)
	// Ping validates the key against the API before anything else starts.
	Ping bool
	// Capture initializes the system clipboard and accessibility tree.
	Capture bool
}

// Runtime is everything a front end needs besides its own sink.
type Runtime struct {
	Config    *config.Config
	Client    *llm.Client
	Prompts   *prompt.Store
	History   *history.Store
	Selection *selection.Service
}

func Bootstrap(ctx context.Context, opts Options) (*Runtime, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging, cfg.LogDir)
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required. Checked key file %s, OPENAI_API_KEY env var and the OS keyring", cfg.APIKeyPath)
	}
	log.Printf("API key loaded from %s: %s", cfg.APIKeySource, logutil.RedactKey(cfg.APIKey))

	prompts, err := prompt.Load(cfg.ExplainPromptFile, cfg.TranslatePromptFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}

	client := llm.NewClient(llm.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
	if opts.Ping {
		if err := client.Ping(ctx, cfg.ExplainModel); err != nil {
			return nil, fmt.Errorf("startup check failed: %w", err)
		}
		log.Printf("LLM ping succeeded")
	}

	rt := &Runtime{
		Config:  cfg,
		Client:  client,
		Prompts: prompts,
		History: history.NewStore(cfg.HistoryDir),
	}
	rt.Selection = newSelection(cfg, opts.Capture)
	return rt, nil
}

// newSelection wires both capture tiers; a tier that cannot start is left
// out so capture degrades instead of failing.
func newSelection(cfg *config.Config, enabled bool) *selection.Service {
	timeout := time.Duration(cfg.CaptureTimeoutMs) * time.Millisecond
	if !enabled {
		return selection.NewService(nil, nil, timeout)
	}

	var ax selection.AccessibilitySource
	if tree, err := accessibility.NewPlatformTree(); err != nil {
		log.Printf("Accessibility unavailable: %v", err)
	} else {
		ax = accessibility.NewReader(tree)
	}

	var fallback selection.CopySource
	if err := clipboard.Init(); err != nil {
		log.Printf("Clipboard unavailable, copy fallback disabled: %v", err)
	} else {
		fallback = clipboard.NewFallback(clipboard.NewSystemBoard(), clipboard.NewKeyInjector())
	}
	return selection.NewService(ax, fallback, timeout)
}

// NewManager builds the session orchestrator that reports to sink.
func (rt *Runtime) NewManager(sink session.Sink) *session.Manager {
	cfg := rt.Config
	return session.NewManager(session.Options{
		Streamer:       session.ClientStreamer(rt.Client),
		Prompts:        rt.Prompts,
		Sink:           sink,
		History:        historyRecorder(rt.History, cfg.HistoryRetentionDays),
		BaseLanguage:   cfg.BaseLanguage,
		ExplainModel:   cfg.ExplainModel,
		TranslateModel: cfg.TranslateModel,
		AskModel:       cfg.AskModel,
		ExplainStyle:   cfg.ExplainStyle,
	})
}

// historyRecorder returns nil when retention is disabled.
func historyRecorder(store *history.Store, retentionDays int) session.Recorder {
	if retentionDays == 0 || store == nil {
		return nil
	}
	return store
}

// PruneHistory deletes expired history now and then every history.PruneInterval
// until ctx is done.
func (rt *Runtime) PruneHistory(ctx context.Context) {
	days := rt.Config.HistoryRetentionDays
	if days == 0 {
		return
	}
	prune := func() {
		n, err := rt.History.Prune(days)
		if err != nil {
			log.Printf("History prune failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("History prune removed %d files", n)
		}
	}
	prune()
	go func() {
		ticker := time.NewTicker(history.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				prune()
			}
		}
	}()
}
