package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"copytoask/src/accessibility"
	"copytoask/src/clipboard"
	"copytoask/src/logutil"
	"copytoask/src/singleinstance"
)

type diagReport struct {
	TreeErr     error
	Trusted     bool
	AX          accessibility.Result
	ClipErr     error
	FallbackRan bool
	FallbackOK  bool
	FallbackLen int
	Elapsed     time.Duration
	// ResidentPort is 0 when no resident answered.
	ResidentPort int
}

func newDiagnosticsCmd(opts *rootOptions) *cobra.Command {
	var delay, timeout time.Duration
	var prompt bool
	cmd := &cobra.Command{
		Use:   "diagnostics",
		Short: "Check accessibility access and both capture tiers against the current selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logutil.SetupVerbose(opts.verbose)
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()
			if delay > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Capturing in %s; select some text in another app...\n", delay)
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			rep := runDiagnostics(ctx, prompt, timeout)
			writeReport(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.Flags().DurationVar(&delay, "delay", 3*time.Second, "Wait before capturing")
	cmd.Flags().DurationVar(&timeout, "timeout", clipboard.DefaultTimeout, "Clipboard fallback timeout")
	cmd.Flags().BoolVar(&prompt, "prompt", false, "Ask the platform to enable accessibility if it is off")
	return cmd
}

// runDiagnostics runs each tier on its own, unlike selection.Service which
// stops at the first one that finds text.
func runDiagnostics(ctx context.Context, prompt bool, timeout time.Duration) diagReport {
	var rep diagReport
	start := time.Now()

	tree, err := accessibility.NewPlatformTree()
	rep.TreeErr = err
	if err == nil {
		reader := accessibility.NewReader(tree)
		rep.Trusted = reader.Trusted(prompt)
		if rep.Trusted {
			rep.AX = reader.Read()
		}
	}

	if err := clipboard.Init(); err != nil {
		rep.ClipErr = err
	} else {
		fb := clipboard.NewFallback(clipboard.NewSystemBoard(), clipboard.NewKeyInjector())
		text, ok := fb.CaptureViaSyntheticCopy(ctx, timeout)
		rep.FallbackRan, rep.FallbackOK, rep.FallbackLen = true, ok, len([]rune(text))
	}
	rep.Elapsed = time.Since(start)
	if port, ok := singleinstance.DetectResidentPort(ctx); ok {
		rep.ResidentPort = port
	}
	return rep
}

func writeReport(w io.Writer, rep diagReport) {
	if rep.TreeErr != nil {
		fmt.Fprintf(w, "accessibility: unavailable (%v)\n", rep.TreeErr)
	} else {
		fmt.Fprintf(w, "accessibility trusted: %s\n", yesNo(rep.Trusted))
		if rep.AX.HasText {
			fmt.Fprintf(w, "accessibility text: %d chars\n", len([]rune(rep.AX.Text)))
		} else {
			fmt.Fprintln(w, "accessibility text: none")
		}
		if rep.AX.HasRect {
			r := rep.AX.Rect
			fmt.Fprintf(w, "accessibility bounds: x=%.0f y=%.0f w=%.0f h=%.0f\n", r.X, r.Y, r.Width, r.Height)
		} else {
			fmt.Fprintln(w, "accessibility bounds: none")
		}
	}
	switch {
	case rep.ClipErr != nil:
		fmt.Fprintf(w, "copy fallback: unavailable (%v)\n", rep.ClipErr)
	case rep.FallbackOK:
		fmt.Fprintf(w, "copy fallback: %d chars\n", rep.FallbackLen)
	case rep.FallbackRan:
		fmt.Fprintln(w, "copy fallback: nothing copied")
	}
	fmt.Fprintf(w, "elapsed: %s\n", rep.Elapsed.Round(time.Millisecond))
	if rep.ResidentPort != 0 {
		fmt.Fprintf(w, "resident: running on port %d\n", rep.ResidentPort)
	} else {
		fmt.Fprintln(w, "resident: not running")
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
