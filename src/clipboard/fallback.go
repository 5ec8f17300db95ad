package clipboard

import (
	"context"
	"log"
	"time"
)

const (
	// DefaultTimeout bounds how long the fallback waits for the host to copy.
	DefaultTimeout = 800 * time.Millisecond
	// PollInterval is how often the change counter is re-read.
	PollInterval = 30 * time.Millisecond
)

// Format names one clipboard representation.
type Format string

const (
	FormatText  Format = "text"
	FormatImage Format = "image"
)

// Item is one representation of the clipboard content.
type Item struct {
	Format Format
	Data   []byte
}

// Snapshot is every representation present at the time it was taken.
type Snapshot []Item

// Board is the system clipboard as seen by the fallback.
type Board interface {
	// ChangeCount increases whenever the clipboard content changes.
	ChangeCount() int64
	Snapshot() (Snapshot, error)
	Restore(Snapshot) error
	ReadText() (string, error)
}

// Marker is implemented by boards whose change counter only sees content
// changes. Mark replaces the clipboard with a value no application copies,
// so a copy of content equal to the current one still moves the counter.
type Marker interface {
	Mark() error
}

// markable reports a snapshot that Restore brings back whole: text only.
func (s Snapshot) markable() bool {
	if len(s) == 0 {
		return false
	}
	for _, it := range s {
		if it.Format != FormatText {
			return false
		}
	}
	return true
}

// Injector posts a platform copy shortcut to the focused application.
type Injector interface {
	PostCopy() error
}

// Fallback captures a selection by asking the focused application to copy it.
// Whenever the clipboard was written during a capture it is restored to its
// prior content before returning.
type Fallback struct {
	Board    Board
	Injector Injector
	Interval time.Duration
}

func NewFallback(board Board, injector Injector) *Fallback {
	return &Fallback{Board: board, Injector: injector, Interval: PollInterval}
}

// CaptureViaSyntheticCopy returns the copied text and true only when the
// change counter moved after the injected copy. Text already on the
// clipboard is never returned.
func (f *Fallback) CaptureViaSyntheticCopy(ctx context.Context, timeout time.Duration) (string, bool) {
	if f == nil || f.Board == nil || f.Injector == nil {
		return "", false
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := f.Interval
	if interval <= 0 {
		interval = PollInterval
	}

	before := f.Board.ChangeCount()
	snap, err := f.Board.Snapshot()
	if err != nil {
		// Without a snapshot there is nothing to restore, so the clipboard stays untouched.
		log.Printf("clipboard: snapshot failed, skipping synthetic copy: %v", err)
		return "", false
	}
	defer func() {
		// An unmoved counter means nothing was written; the clipboard still
		// holds every original format, which a restore would narrow.
		if f.Board.ChangeCount() == before {
			return
		}
		if err := f.Board.Restore(snap); err != nil {
			log.Printf("clipboard: restore failed: %v", err)
		}
	}()

	base := before
	if m, ok := f.Board.(Marker); ok && snap.markable() {
		if err := m.Mark(); err != nil {
			log.Printf("clipboard: mark failed: %v", err)
		} else {
			base = f.Board.ChangeCount()
		}
	}

	if err := f.Injector.PostCopy(); err != nil {
		log.Printf("clipboard: copy injection failed: %v", err)
		return "", false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if f.Board.ChangeCount() != base {
			text, err := f.Board.ReadText()
			if err != nil {
				log.Printf("clipboard: read after copy failed: %v", err)
				return "", false
			}
			log.Printf("clipboard: synthetic copy captured %d bytes", len(text))
			return text, true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-timer.C:
			log.Printf("clipboard: no change within %v", timeout)
			return "", false
		case <-ticker.C:
		}
	}
}
