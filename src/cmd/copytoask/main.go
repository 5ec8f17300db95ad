package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"copytoask/src/config"
	"copytoask/src/logutil"
	"copytoask/src/runtimeinit"
	"copytoask/src/secret"
)

type rootOptions struct {
	verbose    bool
	apiKeyPath string
}

// newKeyStore is replaced in tests.
var newKeyStore = func() secret.Store { return secret.NewKeyring() }

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	return runWithArgs(os.Args)
}

func runWithArgs(args []string) error {
	if len(args) == 0 {
		args = []string{"copytoask"}
	}

	opts := &rootOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	return cmd.Execute()
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "copytoask",
		Short:         "Explain, translate and ask about selected text",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	cmd.PersistentFlags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")

	cmd.AddCommand(
		newRunCmd(opts),
		newExplainCmd(opts),
		newAskCmd(opts),
		newDiagnosticsCmd(opts),
		newKeyCmd(opts),
		newHistoryCmd(opts),
		newTriggerCmd(opts),
	)
	return cmd
}

func (o *rootOptions) loadOptions() config.LoadOptions {
	return config.LoadOptions{APIKeyPathOverride: o.apiKeyPath, Keyring: newKeyStore()}
}

// bootstrapOneShot prepares a runtime for a single command. Logs go to stderr
// with -v and are discarded otherwise.
func (o *rootOptions) bootstrapOneShot(ctx context.Context, capture bool) (*runtimeinit.Runtime, error) {
	return runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions:  o.loadOptions(),
		SetupLogging: func(bool, string) { logutil.SetupVerbose(o.verbose) },
		Capture:      capture,
	})
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
