//go:build linux

package accessibility

import (
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	a11yBusName      = "org.a11y.Bus"
	a11yBusPath      = "/org/a11y/bus"
	a11yStatusIface  = "org.a11y.Status"
	accessibleIface  = "org.a11y.atspi.Accessible"
	textIface        = "org.a11y.atspi.Text"
	registryName     = "org.a11y.atspi.Registry"
	registryPath     = "/org/a11y/atspi/registry"
	nullPath         = "/org/a11y/atspi/null"
	eventObjectIface = "org.a11y.atspi.Event.Object"
	eventFocusIface  = "org.a11y.atspi.Event.Focus"

	coordTypeScreen = uint32(0)
)

// atspiRef addresses one accessible object on the a11y bus.
type atspiRef struct {
	Dest string
	Path dbus.ObjectPath
}

// ATSPI implements Tree over the AT-SPI2 D-Bus protocol. Focus is tracked
// from focus events, so Focused is empty until the first focus change.
type ATSPI struct {
	mu      sync.Mutex
	session *dbus.Conn
	conn    *dbus.Conn
	focused *atspiRef
	signals chan *dbus.Signal
}

// NewPlatformTree connects to the accessibility bus and starts focus tracking.
func NewPlatformTree() (Tree, error) {
	session, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}
	var addr string
	if err := session.Object(a11yBusName, a11yBusPath).Call(a11yBusName+".GetAddress", 0).Store(&addr); err != nil {
		return nil, fmt.Errorf("a11y bus address: %w", err)
	}
	conn, err := dbus.Connect(addr)
	if err != nil {
		return nil, fmt.Errorf("a11y bus connect: %w", err)
	}

	t := &ATSPI{session: session, conn: conn, signals: make(chan *dbus.Signal, 16)}
	t.watchFocus()
	return t, nil
}

func (t *ATSPI) watchFocus() {
	for _, ev := range []string{"object:state-changed:focused", "focus:"} {
		if call := t.conn.Object(registryName, registryPath).Call(registryName+".RegisterEvent", 0, ev); call.Err != nil {
			log.Printf("accessibility: RegisterEvent %s: %v", ev, call.Err)
		}
	}
	_ = t.conn.AddMatchSignal(dbus.WithMatchInterface(eventObjectIface), dbus.WithMatchMember("StateChanged"))
	_ = t.conn.AddMatchSignal(dbus.WithMatchInterface(eventFocusIface), dbus.WithMatchMember("Focus"))
	t.conn.Signal(t.signals)

	go func() {
		for sig := range t.signals {
			if !isFocusGained(sig) {
				continue
			}
			t.mu.Lock()
			t.focused = &atspiRef{Dest: sig.Sender, Path: sig.Path}
			t.mu.Unlock()
		}
	}()
}

// isFocusGained matches Focus events and StateChanged("focused", 1, ...).
func isFocusGained(sig *dbus.Signal) bool {
	switch sig.Name {
	case eventFocusIface + ".Focus":
		return true
	case eventObjectIface + ".StateChanged":
		if len(sig.Body) < 2 {
			return false
		}
		kind, _ := sig.Body[0].(string)
		detail, _ := sig.Body[1].(int32)
		return kind == "focused" && detail == 1
	}
	return false
}

func (t *ATSPI) Trusted(prompt bool) bool {
	obj := t.session.Object(a11yBusName, a11yBusPath)
	v, err := obj.GetProperty(a11yStatusIface + ".IsEnabled")
	if err != nil {
		return false
	}
	enabled, _ := v.Value().(bool)
	if !enabled && prompt {
		if err := obj.SetProperty(a11yStatusIface+".IsEnabled", dbus.MakeVariant(true)); err == nil {
			return true
		}
	}
	return enabled
}

func (t *ATSPI) Focused() (Element, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.focused == nil {
		return nil, false
	}
	return *t.focused, true
}

func (t *ATSPI) Attribute(el Element, key Attr) (any, bool) {
	ref, ok := el.(atspiRef)
	if !ok {
		return nil, false
	}
	switch key {
	case AttrParent:
		return t.parent(ref)
	case AttrSelectedTextRange:
		return t.selection(ref)
	case AttrSelectedText:
		rng, ok := t.selection(ref)
		if !ok {
			return nil, false
		}
		var s string
		if err := t.obj(ref).Call(textIface+".GetText", 0, int32(rng.Start), int32(rng.End)).Store(&s); err != nil {
			return nil, false
		}
		return s, true
	}
	return nil, false
}

func (t *ATSPI) ParameterizedAttribute(el Element, key Attr, param any) (any, bool) {
	ref, ok := el.(atspiRef)
	if !ok || key != ParamBoundsForRange {
		return nil, false
	}
	rng, ok := param.(TextRange)
	if !ok {
		return nil, false
	}
	var x, y, w, h int32
	call := t.obj(ref).Call(textIface+".GetRangeExtents", 0, int32(rng.Start), int32(rng.End), coordTypeScreen)
	if err := call.Store(&x, &y, &w, &h); err != nil {
		return nil, false
	}
	return Rect{X: float64(x), Y: float64(y), Width: float64(w), Height: float64(h)}, true
}

func (t *ATSPI) obj(ref atspiRef) dbus.BusObject {
	return t.conn.Object(ref.Dest, ref.Path)
}

func (t *ATSPI) parent(ref atspiRef) (any, bool) {
	v, err := t.obj(ref).GetProperty(accessibleIface + ".Parent")
	if err != nil {
		return nil, false
	}
	fields, ok := v.Value().([]interface{})
	if !ok || len(fields) != 2 {
		return nil, false
	}
	dest, _ := fields[0].(string)
	path, _ := fields[1].(dbus.ObjectPath)
	if dest == "" || path == "" || path == nullPath {
		return nil, false
	}
	return atspiRef{Dest: dest, Path: path}, true
}

// selection returns the first selection range; AT-SPI reports a caret as
// zero selections, which is "no selection here".
func (t *ATSPI) selection(ref atspiRef) (TextRange, bool) {
	var n int32
	if err := t.obj(ref).Call(textIface+".GetNSelections", 0).Store(&n); err != nil || n < 1 {
		return TextRange{}, false
	}
	var start, end int32
	if err := t.obj(ref).Call(textIface+".GetSelection", 0, int32(0)).Store(&start, &end); err != nil {
		return TextRange{}, false
	}
	if end <= start {
		return TextRange{}, false
	}
	return TextRange{Start: int(start), End: int(end)}, true
}
