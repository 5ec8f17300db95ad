package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"copytoask/src/hotkey"
	"copytoask/src/singleinstance"
)

// ErrNoResident is returned by trigger when no resident answers.
var ErrNoResident = errors.New("copytoask is not running; start it with 'copytoask run'")

// newTriggerClient is replaced in tests.
var newTriggerClient = singleinstance.NewClient

func newTriggerCmd(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:       "trigger <explain|ask|context>",
		Short:     "Ask the running resident to capture the selection and run an action",
		Long:      "Bind this command to a desktop shortcut where global hotkeys cannot be grabbed.",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"explain", "ask", "context"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := hotkey.ParseAction(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			delegated, reply, err := newTriggerClient().Trigger(ctx, a.String())
			if err != nil {
				return err
			}
			if !delegated {
				return ErrNoResident
			}
			if opts.verbose {
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s\n", reply)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "How long to wait for the resident")
	return cmd
}
