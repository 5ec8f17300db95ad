package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// Action identifies what a hotkey does.
type Action int

const (
	ActionExplain Action = iota + 1
	ActionAsk
	ActionSetContext
)

func (a Action) String() string {
	switch a {
	case ActionExplain:
		return "explain"
	case ActionAsk:
		return "ask"
	case ActionSetContext:
		return "set-context"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction maps an action name as printed by String back to its Action.
func ParseAction(name string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "explain":
		return ActionExplain, nil
	case "ask":
		return ActionAsk, nil
	case "set-context", "context":
		return ActionSetContext, nil
	}
	return 0, fmt.Errorf("unknown action %q", name)
}

// keycodes is the cross-platform key table used by gohook events.
var keycodes map[string]uint16 = gohook.Keycode

// Left and right variants of each modifier.
var modifierNames = map[string][]string{
	"ctrl":  {"ctrl", "rctrl"},
	"alt":   {"alt", "ralt"},
	"shift": {"shift", "rshift"},
	"cmd":   {"cmd", "rcmd"},
}

type keyState struct {
	name     string
	keycodes []uint16
	pressed  bool
}

type binding struct {
	action Action
	combo  string
	keys   []keyState
}

// Dispatcher maps key combinations to actions and actions to handlers.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[Action]func()
	bindings []*binding
	stop     func()
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[Action]func())}
}

// Handle sets the handler for an action, replacing any previous one.
func (d *Dispatcher) Handle(a Action, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[a] = fn
}

// Bind registers combo (e.g. "Ctrl+Alt+E") for an action.
func (d *Dispatcher) Bind(a Action, combo string) error {
	keys := parseHotkey(combo)
	if len(keys) == 0 {
		return fmt.Errorf("empty hotkey for %s", a)
	}
	b := &binding{action: a, combo: combo}
	for _, name := range keys {
		codes := keyNameToKeycodes(name)
		if len(codes) == 0 {
			return fmt.Errorf("hotkey %q: unknown key %q", combo, name)
		}
		b.keys = append(b.keys, keyState{name: name, keycodes: codes})
	}
	d.mu.Lock()
	d.bindings = append(d.bindings, b)
	d.mu.Unlock()
	log.Printf("Hotkey %s bound to %s", combo, a)
	return nil
}

// Dispatch runs the handler for a directly, as the tray menu does.
func (d *Dispatcher) Dispatch(a Action) bool {
	d.mu.Lock()
	fn := d.handlers[a]
	d.mu.Unlock()
	if fn == nil {
		log.Printf("Hotkey: no handler for %s", a)
		return false
	}
	fn()
	return true
}

// Start listens for global key events until Stop is called.
func (d *Dispatcher) Start() error {
	evChan := gohook.Start()
	if evChan == nil {
		return fmt.Errorf("gohook.Start() returned nil channel")
	}
	d.mu.Lock()
	d.stop = gohook.End
	d.mu.Unlock()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("PANIC in hotkey goroutine: %v", r)
			}
		}()
		for ev := range evChan {
			d.feed(ev)
		}
		log.Printf("Hotkey event channel closed")
	}()
	return nil
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	stop := d.stop
	d.stop = nil
	d.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// feed updates key state for one event and fires at most one action when a
// combination becomes fully pressed.
func (d *Dispatcher) feed(ev gohook.Event) {
	var pressed bool
	switch ev.Kind {
	case gohook.KeyDown, gohook.KeyHold:
		pressed = true
	case gohook.KeyUp:
		pressed = false
	default:
		return
	}

	d.mu.Lock()
	var fire []Action
	for _, b := range d.bindings {
		matched := false
		for i := range b.keys {
			if containsCode(b.keys[i].keycodes, ev.Keycode) {
				b.keys[i].pressed = pressed
				matched = true
			}
		}
		if !pressed || !matched || !b.allPressed() {
			continue
		}
		log.Printf("Hotkey combination detected: %s", b.combo)
		b.reset()
		fire = append(fire, b.action)
	}
	handlers := make([]func(), 0, len(fire))
	for _, a := range fire {
		if fn := d.handlers[a]; fn != nil {
			handlers = append(handlers, fn)
		}
	}
	d.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (b *binding) allPressed() bool {
	for i := range b.keys {
		if !b.keys[i].pressed {
			return false
		}
	}
	return true
}

func (b *binding) reset() {
	for i := range b.keys {
		b.keys[i].pressed = false
	}
}

func containsCode(codes []uint16, c uint16) bool {
	for _, x := range codes {
		if x == c {
			return true
		}
	}
	return false
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(hotkeyConfig string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(hotkeyConfig), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "option":
			keys = append(keys, "alt")
		case "win", "cmd", "super", "command", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// keyNameToKeycodes maps a key name to the gohook keycodes that produce it;
// modifiers map to both their left and right keys.
func keyNameToKeycodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	names, ok := modifierNames[keyName]
	if !ok {
		switch keyName {
		case "return":
			keyName = "enter"
		case "escape":
			keyName = "esc"
		case "del":
			keyName = "delete"
		}
		names = []string{keyName}
	}
	var out []uint16
	for _, n := range names {
		if c, ok := keycodes[n]; ok {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		log.Printf("WARNING: Unknown key name '%s', cannot map to keycode", keyName)
	}
	return out
}
