package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"copytoask/src/language"
	"copytoask/src/runtimeinit"
	"copytoask/src/selection"
	"copytoask/src/session"
)

type captureOptions struct {
	capture bool
	delay   time.Duration
}

func (c *captureOptions) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&c.capture, "capture", false, "Read the current on-screen selection")
	cmd.Flags().DurationVar(&c.delay, "delay", 0, "Wait before capturing, to switch to the source app")
}

func newExplainCmd(opts *rootOptions) *cobra.Command {
	var capOpts captureOptions
	var lang string
	cmd := &cobra.Command{
		Use:   "explain [text...]",
		Short: "Explain text from arguments, stdin or the current selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, opts, capOpts, lang, args)
		},
	}
	capOpts.register(cmd)
	cmd.Flags().StringVarP(&lang, "lang", "l", "", "Also show the answer in this language")
	return cmd
}

func newAskCmd(opts *rootOptions) *cobra.Command {
	var capOpts captureOptions
	var selText string
	var contextItems []string
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask about a selection; follow-up questions are read from the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, capOpts, selText, contextItems, args)
		},
	}
	capOpts.register(cmd)
	cmd.Flags().StringVar(&selText, "selection", "", "Selected text the questions are about")
	cmd.Flags().StringArrayVar(&contextItems, "context", nil, "Context item embedded in the first question (repeatable)")
	return cmd
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// oneShot is a manager wired to a terminal sink.
type oneShot struct {
	rt      *runtimeinit.Runtime
	sink    *terminalSink
	manager *session.Manager
}

func startOneShot(ctx context.Context, cmd *cobra.Command, opts *rootOptions, capture bool) (*oneShot, error) {
	rt, err := opts.bootstrapOneShot(ctx, capture)
	if err != nil {
		return nil, err
	}
	sink := newTerminalSink(cmd.OutOrStdout())
	return &oneShot{rt: rt, sink: sink, manager: rt.NewManager(sink)}, nil
}

func (o *oneShot) capture(ctx context.Context, c captureOptions) (selection.Captured, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return selection.Captured{}, ctx.Err()
		}
	}
	sel := o.rt.Selection.Capture(ctx)
	log.Printf("capture: provenance=%s chars=%d", sel.Provenance, len(sel.Text))
	return sel, nil
}

func textSelection(text string) selection.Captured {
	text = strings.TrimSpace(text)
	if text == "" {
		return selection.Captured{Anchor: selection.PointerAnchor(), Provenance: selection.ProvenanceNone}
	}
	return selection.Captured{Text: text, Anchor: selection.PointerAnchor(), Provenance: selection.ProvenanceInput}
}

func runExplain(cmd *cobra.Command, opts *rootOptions, c captureOptions, lang string, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	var target language.Code
	if lang != "" {
		code, err := language.Parse(lang)
		if err != nil {
			return err
		}
		target = code
	}

	var sel selection.Captured
	useCapture := c.capture
	switch {
	case len(args) > 0:
		sel = textSelection(strings.Join(args, " "))
	case !useCapture && !isTerminal(cmd.InOrStdin()):
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read from stdin: %w", err)
		}
		sel = textSelection(string(data))
	default:
		useCapture = true
	}

	o, err := startOneShot(ctx, cmd, opts, useCapture)
	if err != nil {
		return err
	}
	defer o.manager.Shutdown()

	if useCapture {
		if sel, err = o.capture(ctx, c); err != nil {
			return err
		}
	}

	id, err := o.manager.StartExplain(sel)
	if err != nil {
		return err
	}
	if _, err := o.sink.wait(ctx); err != nil {
		return err
	}

	if target == "" || target == o.manager.BaseLanguage() {
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\n[%s]\n", target.Name())
	if _, err := o.manager.SwitchLanguage(id, target); err != nil {
		return err
	}
	_, err = o.sink.wait(ctx)
	return err
}

func runAsk(cmd *cobra.Command, opts *rootOptions, c captureOptions, selText string, contextItems []string, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	o, err := startOneShot(ctx, cmd, opts, c.capture)
	if err != nil {
		return err
	}
	defer o.manager.Shutdown()

	sel := textSelection(selText)
	if c.capture {
		if sel, err = o.capture(ctx, c); err != nil {
			return err
		}
	}
	for _, item := range contextItems {
		if _, err := o.manager.AddContext(item); err != nil && !errors.Is(err, session.ErrNothingSelected) {
			return err
		}
	}

	id, err := o.manager.StartAsk(sel)
	if err != nil {
		return err
	}

	in := cmd.InOrStdin()
	interactive := isTerminal(in)
	var reader *bufio.Reader
	if interactive {
		reader = bufio.NewReader(in)
	}

	question := strings.Join(args, " ")
	for {
		if strings.TrimSpace(question) == "" {
			if !interactive {
				if len(args) == 0 {
					return session.ErrEmptyQuestion
				}
				return nil
			}
			fmt.Fprint(cmd.OutOrStdout(), "> ")
			line, err := reader.ReadString('\n')
			if strings.TrimSpace(line) == "" {
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				return nil
			}
			question = line
		}
		if err := o.manager.Ask(id, question); err != nil {
			return err
		}
		if _, err := o.sink.wait(ctx); err != nil {
			// A failed turn leaves the conversation usable.
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			if !interactive {
				return err
			}
		}
		question = ""
		if !interactive {
			return nil
		}
	}
}
