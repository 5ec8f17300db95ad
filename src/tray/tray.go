package tray

import (
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
)

const (
	labelExplain = "Explain Selection"
	labelAsk     = "Ask About Selection"
	labelContext = "Show Context"
	labelClear   = "Clear Context"
	labelQuit    = "Quit"
	labelBusy    = "Capturing selection..."
)

// Handlers are the tray menu actions.
type Handlers struct {
	Explain      func()
	Ask          func()
	ShowContext  func()
	ClearContext func()
	Quit         func()
}

// Tray owns the system tray menu.
type Tray struct {
	desk    desktop.App
	menu    *fyne.Menu
	explain *fyne.MenuItem
	ask     *fyne.MenuItem
}

// Install sets the tray icon and menu. It returns nil when the driver has no
// system tray.
func Install(app fyne.App, h Handlers) *Tray {
	desk, ok := app.(desktop.App)
	if !ok {
		log.Printf("System tray not supported by this driver")
		return nil
	}
	t := &Tray{desk: desk}
	t.explain = fyne.NewMenuItem(labelExplain, h.Explain)
	t.ask = fyne.NewMenuItem(labelAsk, h.Ask)
	quit := fyne.NewMenuItem(labelQuit, h.Quit)
	quit.IsQuit = true
	t.menu = fyne.NewMenu("copytoask",
		t.explain,
		t.ask,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem(labelContext, h.ShowContext),
		fyne.NewMenuItem(labelClear, h.ClearContext),
		fyne.NewMenuItemSeparator(),
		quit,
	)
	desk.SetSystemTrayMenu(t.menu)
	desk.SetSystemTrayIcon(Icon())
	return t
}

// SetBusy disables the capture items while a capture runs. Must run on the
// fyne goroutine.
func (t *Tray) SetBusy(busy bool) {
	if t == nil {
		return
	}
	t.explain.Disabled = busy
	t.ask.Disabled = busy
	if busy {
		t.explain.Label = labelBusy
	} else {
		t.explain.Label = labelExplain
	}
	t.menu.Refresh()
}
