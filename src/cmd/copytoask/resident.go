package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"copytoask/src/eventloop"
	"copytoask/src/hotkey"
	"copytoask/src/logutil"
	"copytoask/src/panel"
	"copytoask/src/runtimeinit"
	"copytoask/src/singleinstance"
	"copytoask/src/tray"
	"copytoask/src/worker"
)

const appID = "com.copytoask.app"

func newRunCmd(opts *rootOptions) *cobra.Command {
	var noPing bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run resident with tray menu and global hotkeys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResident(opts, !noPing)
		},
	}
	cmd.Flags().BoolVar(&noPing, "no-ping", false, "Skip the startup API check")
	return cmd
}

func runResident(opts *rootOptions, ping bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := singleinstance.NewServer()
	if err := srv.Start(ctx); err != nil {
		if port, ok := singleinstance.DetectResidentPort(ctx); ok {
			return fmt.Errorf("copytoask is already running (port %d)", port)
		}
		return fmt.Errorf("cannot claim resident port: %w", err)
	}
	defer srv.Close()

	rt, err := runtimeinit.Bootstrap(ctx, runtimeinit.Options{
		LoadOptions: opts.loadOptions(),
		SetupLogging: func(enable bool, dir string) {
			if opts.verbose {
				logutil.SetupVerbose(true)
				return
			}
			logutil.Setup(enable, dir)
		},
		Ping:    ping,
		Capture: true,
	})
	if err != nil {
		return err
	}
	cfg := rt.Config
	log.Printf("copytoask initialized")
	log.Printf("Models: explain=%s translate=%s ask=%s style=%s", cfg.ExplainModel, cfg.TranslateModel, cfg.AskModel, cfg.ExplainStyle)
	log.Printf("Hotkeys: explain=%s ask=%s context=%s", cfg.HotkeyExplain, cfg.HotkeyAsk, cfg.HotkeyContext)

	a := app.NewWithID(appID)
	a.SetIcon(tray.Icon())

	ui := panel.New(a)
	manager := rt.NewManager(ui)
	pool := worker.New(1, rt.Selection.Capture)
	loop := eventloop.New(pool, manager, ui, time.Duration(cfg.CaptureTimeoutMs)*time.Millisecond)
	ui.Attach(manager, loop.Post)
	ui.InstallTray(a.Quit)

	dispatcher := hotkey.NewDispatcher()
	loop.Bind(dispatcher)
	for action, combo := range map[hotkey.Action]string{
		hotkey.ActionExplain:    cfg.HotkeyExplain,
		hotkey.ActionAsk:        cfg.HotkeyAsk,
		hotkey.ActionSetContext: cfg.HotkeyContext,
	} {
		if err := dispatcher.Bind(action, combo); err != nil {
			log.Printf("Hotkey for %s disabled: %v", action, err)
			ui.Notice(fmt.Sprintf("Hotkey %q is invalid", combo))
		}
	}
	if err := dispatcher.Start(); err != nil {
		log.Printf("Global hotkeys unavailable: %v", err)
		ui.Notice("Global hotkeys unavailable; use the tray menu")
	}
	defer dispatcher.Stop()

	rt.PruneHistory(ctx)

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("event loop stopped: %v", err)
		}
	}()

	go loop.Serve(ctx, srv)

	// Handle SIGINT/SIGTERM
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-ch:
			log.Printf("Received %v, shutting down", sig)
			fyne.Do(a.Quit)
		case <-ctx.Done():
		}
	}()

	a.Run()

	cancel()
	<-loopDone
	manager.Shutdown()
	pool.Close()
	log.Printf("copytoask stopped")
	return nil
}
