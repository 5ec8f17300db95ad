package panel

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"copytoask/src/session"
	"copytoask/src/tray"
)

// contextWindow lists the context items the next ask conversation embeds.
type contextWindow struct {
	ui    *UI
	win   fyne.Window
	items []session.ContextItem
	list  *widget.List
	empty *widget.Label
}

func newContextWindow(ui *UI) *contextWindow {
	c := &contextWindow{ui: ui}
	c.win = ui.app.NewWindow("Context")
	c.win.SetIcon(tray.Icon())
	c.empty = widget.NewLabel("No context items. Select text and press the context hotkey.")
	c.empty.Wrapping = fyne.TextWrapWord

	c.list = widget.NewList(
		func() int { return len(c.items) },
		func() fyne.CanvasObject {
			label := widget.NewLabel("")
			label.Truncation = fyne.TextTruncateEllipsis
			return container.NewBorder(nil, nil, nil, widget.NewButton("Remove", nil), label)
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if i >= len(c.items) {
				return
			}
			it := c.items[i]
			row := o.(*fyne.Container)
			row.Objects[0].(*widget.Label).SetText(truncate(it.Text, quoteLimit))
			row.Objects[1].(*widget.Button).OnTapped = func() { c.remove(it.ID) }
		},
	)

	clearBtn := widget.NewButton("Clear", c.ui.clearContext)
	c.win.SetContent(container.NewBorder(c.empty, clearBtn, nil, nil, c.list))
	c.win.Resize(fyne.NewSize(windowWidth, windowHeight/2))
	c.win.SetCloseIntercept(func() { c.win.Hide() })
	return c
}

func (c *contextWindow) remove(id string) {
	if c.ui.sessions == nil {
		return
	}
	c.ui.sessions.RemoveContext(id)
	c.refresh(c.ui.sessions.ContextItems())
}

func (c *contextWindow) refresh(items []session.ContextItem) {
	c.items = items
	if len(items) == 0 {
		c.empty.Show()
	} else {
		c.empty.Hide()
	}
	c.list.Refresh()
}
