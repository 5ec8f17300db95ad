package clipboard

import (
	"bytes"
	"crypto/sha256"
	"runtime"
	"sync"

	"github.com/go-vgo/robotgo"
	"github.com/google/uuid"
	"golang.design/x/clipboard"
)

// SystemBoard is the OS clipboard. The underlying library exposes no change
// counter, so one is derived from a digest of the text and image content.
// Mark lets the fallback see copies of content equal to the current one.
type SystemBoard struct {
	counter changeCounter
}

func NewSystemBoard() *SystemBoard {
	return &SystemBoard{}
}

func (b *SystemBoard) ChangeCount() int64 {
	text := clipboard.Read(clipboard.FmtText)
	img := clipboard.Read(clipboard.FmtImage)
	return b.counter.observe(contentDigest(text, img))
}

// Mark writes a unique throwaway text; Restore replaces it.
func (b *SystemBoard) Mark() error {
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(markerPrefix+uuid.NewString()))
	return nil
}

const markerPrefix = "copytoask-capture-"

// changeCounter advances once per observed digest change.
type changeCounter struct {
	mu     sync.Mutex
	digest [sha256.Size]byte
	count  int64
	seeded bool
}

func (c *changeCounter) observe(d [sha256.Size]byte) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.seeded {
		c.digest, c.seeded = d, true
		return c.count
	}
	if d != c.digest {
		c.digest = d
		c.count++
	}
	return c.count
}

func (b *SystemBoard) Snapshot() (Snapshot, error) {
	var snap Snapshot
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		snap = append(snap, Item{Format: FormatText, Data: bytes.Clone(text)})
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		snap = append(snap, Item{Format: FormatImage, Data: bytes.Clone(img)})
	}
	return snap, nil
}

// Restore writes the snapshot back. The clipboard holds one owner at a time,
// so when both text and an image were present the text is what comes back.
// An empty snapshot clears the text the capture left behind.
func (b *SystemBoard) Restore(snap Snapshot) error {
	writeMu.Lock()
	defer writeMu.Unlock()

	if len(snap) == 0 {
		clipboard.Write(clipboard.FmtText, []byte{})
		return nil
	}
	var chosen *Item
	for i := range snap {
		if snap[i].Format == FormatText {
			chosen = &snap[i]
			break
		}
		if chosen == nil {
			chosen = &snap[i]
		}
	}
	switch chosen.Format {
	case FormatImage:
		clipboard.Write(clipboard.FmtImage, chosen.Data)
	default:
		clipboard.Write(clipboard.FmtText, chosen.Data)
	}
	return nil
}

func (b *SystemBoard) ReadText() (string, error) {
	return string(clipboard.Read(clipboard.FmtText)), nil
}

func contentDigest(text, img []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write(text)
	h.Write([]byte{0})
	h.Write(img)
	var d [sha256.Size]byte
	copy(d[:], h.Sum(nil))
	return d
}

// KeyInjector taps Cmd+C on macOS and Ctrl+C elsewhere.
type KeyInjector struct {
	Modifier string
}

func NewKeyInjector() KeyInjector {
	mod := "ctrl"
	if runtime.GOOS == "darwin" {
		mod = "cmd"
	}
	return KeyInjector{Modifier: mod}
}

func (k KeyInjector) PostCopy() error {
	return robotgo.KeyTap("c", k.Modifier)
}
