package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"copytoask/src/config"
	"copytoask/src/llm"
	"copytoask/src/logutil"
)

// validateKey is replaced in tests.
var validateKey = func(ctx context.Context, cfg *config.Config, key string) error {
	client := llm.NewClient(llm.Config{APIKey: key, BaseURL: cfg.BaseURL})
	return client.Ping(ctx, cfg.ExplainModel)
}

func newKeyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the API key stored in the OS keyring",
	}
	cmd.AddCommand(newKeySetCmd(opts), newKeyClearCmd(opts), newKeyStatusCmd(opts))
	return cmd
}

func newKeySetCmd(opts *rootOptions) *cobra.Command {
	var noVerify bool
	cmd := &cobra.Command{
		Use:   "set [key]",
		Short: "Validate and store an API key (read from the terminal when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logutil.SetupVerbose(opts.verbose)
			key := ""
			if len(args) == 1 {
				key = args[0]
			} else {
				k, err := readKey(cmd)
				if err != nil {
					return err
				}
				key = k
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("api key is empty")
			}

			if !noVerify {
				cfg, err := config.LoadWithOptions(config.LoadOptions{APIKeyPathOverride: opts.apiKeyPath})
				if err != nil {
					return fmt.Errorf("failed to load configuration: %w", err)
				}
				if err := validateKey(cmd.Context(), cfg, key); err != nil {
					return fmt.Errorf("key rejected: %w", err)
				}
			}
			if err := newKeyStore().Set(key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved API key %s to the keyring\n", logutil.RedactKey(key))
			return nil
		},
	}
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "Store without checking the key against the API")
	return cmd
}

func readKey(cmd *cobra.Command) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.OutOrStdout(), "API key: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read key from stdin: %w", err)
	}
	return line, nil
}

func newKeyClearCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logutil.SetupVerbose(opts.verbose)
			if err := newKeyStore().Delete(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key removed from the keyring")
			return nil
		},
	}
}

func newKeyStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which API key source is in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logutil.SetupVerbose(opts.verbose)
			cfg, err := config.LoadWithOptions(opts.loadOptions())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			out := cmd.OutOrStdout()
			if cfg.APIKey == "" {
				fmt.Fprintf(out, "No API key. Checked key file %s, %s and the OS keyring\n", cfg.APIKeyPath, config.APIKeyEnvVar)
				return nil
			}
			fmt.Fprintf(out, "API key %s from %s\n", logutil.RedactKey(cfg.APIKey), cfg.APIKeySource)
			return nil
		},
	}
}
