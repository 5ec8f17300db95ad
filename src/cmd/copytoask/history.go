package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"copytoask/src/config"
	"copytoask/src/history"
	"copytoask/src/llm"
	"copytoask/src/logutil"
	"copytoask/src/prompt"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect, summarize and prune the answer history",
	}
	cmd.AddCommand(newHistoryShowCmd(opts), newHistoryPruneCmd(opts), newHistorySummarizeCmd(opts))
	return cmd
}

func loadHistory(opts *rootOptions) (*config.Config, *history.Store, error) {
	logutil.SetupVerbose(opts.verbose)
	cfg, err := config.LoadWithOptions(opts.loadOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, history.NewStore(cfg.HistoryDir), nil
}

// lastFiles returns the newest n day files.
func lastFiles(store *history.Store, n int) ([]string, error) {
	files, err := store.Files()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(files) > n {
		files = files[len(files)-n:]
	}
	return files, nil
}

func newHistoryShowCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print entries from the most recent days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, store, err := loadHistory(opts)
			if err != nil {
				return err
			}
			files, err := lastFiles(store, days)
			if err != nil {
				return err
			}
			entries, err := history.ReadFiles(files...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No history")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%s  %-13s %-3s %s\n", e.Timestamp.Format("2006-01-02 15:04"), e.Source, e.Language,
					logutil.Sanitize(e.SelectionText))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "Number of most recent day files to read (0 for all)")
	return cmd
}

func newHistoryPruneCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete history files older than the retention window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, store, err := loadHistory(opts)
			if err != nil {
				return err
			}
			keep := days
			if keep <= 0 {
				keep = cfg.HistoryRetentionDays
			}
			if keep <= 0 {
				return errors.New("history retention is disabled; pass --days")
			}
			n, err := store.Prune(keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d file(s)\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days to keep (defaults to HISTORY_RETENTION_DAYS)")
	return cmd
}

func newHistorySummarizeCmd(opts *rootOptions) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Stream a Markdown study note of recent history and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			cfg, store, err := loadHistory(opts)
			if err != nil {
				return err
			}
			if cfg.APIKey == "" {
				return fmt.Errorf("%s is required. Checked key file %s, %s env var and the OS keyring", config.APIKeyEnvVar, cfg.APIKeyPath, config.APIKeyEnvVar)
			}
			files, err := lastFiles(store, days)
			if err != nil {
				return err
			}
			entries, err := history.ReadFiles(files...)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return errors.New("history files are empty")
			}

			label := history.SummaryLabel(files)
			messages := prompt.SummaryMessages(label, history.SummaryInput(entries, history.SummaryMaxChars), cfg.BaseLanguage)
			client := llm.NewClient(llm.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL})
			stream, err := client.StreamCompletion(ctx, llm.CompletionRequest{Model: cfg.AskModel, Messages: messages})
			if err != nil {
				return err
			}
			defer stream.Close()

			out := cmd.OutOrStdout()
			var md strings.Builder
			for {
				frag, err := stream.Recv()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return fmt.Errorf("summary failed: %w", err)
				}
				md.WriteString(frag)
				fmt.Fprint(out, frag)
			}
			path, err := store.WriteSummary(strings.TrimSpace(md.String()), label)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n\nSaved: %s\n", path)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 1, "Number of most recent day files to summarize (0 for all)")
	return cmd
}
