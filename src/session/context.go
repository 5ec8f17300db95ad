package session

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AddContext appends text to the context list used by the next ask
// conversation's first turn.
func (m *Manager) AddContext(text string) (ContextItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ContextItem{}, ErrNothingSelected
	}
	item := ContextItem{ID: uuid.NewString(), Text: text, AddedAt: time.Now()}
	m.mu.Lock()
	m.context = append(m.context, item)
	m.mu.Unlock()
	return item, nil
}

func (m *Manager) RemoveContext(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.context {
		if it.ID == id {
			m.context = append(m.context[:i], m.context[i+1:]...)
			return true
		}
	}
	return false
}

func (m *Manager) ClearContext() {
	m.mu.Lock()
	m.context = nil
	m.mu.Unlock()
}

// ContextItems returns the context list oldest first.
func (m *Manager) ContextItems() []ContextItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ContextItem(nil), m.context...)
}

func (m *Manager) contextTextsLocked() []string {
	out := make([]string, len(m.context))
	for i, it := range m.context {
		out[i] = it.Text
	}
	return out
}
