package selection

import (
	"context"
	"log"
	"strings"
	"time"

	"copytoask/src/accessibility"
)

// DefaultTimeout bounds the synthetic copy when the caller sets none.
const DefaultTimeout = 800 * time.Millisecond

// Provenance records which tier produced the captured text.
type Provenance string

const (
	ProvenanceAccessibility Provenance = "accessibility"
	ProvenancePasteboard    Provenance = "pasteboard"
	ProvenanceNone          Provenance = "none"
	// ProvenanceInput marks text typed or piped in by the user.
	ProvenanceInput Provenance = "input"
)

type AnchorKind int

const (
	// AnchorPointer means "position at the mouse pointer".
	AnchorPointer AnchorKind = iota
	AnchorRect
)

// Anchor is where the answer surface should be placed.
type Anchor struct {
	Kind AnchorKind
	Rect accessibility.Rect
}

func PointerAnchor() Anchor { return Anchor{Kind: AnchorPointer} }

func anchorFor(res accessibility.Result) Anchor {
	if res.HasRect && !res.Rect.Empty() {
		return Anchor{Kind: AnchorRect, Rect: res.Rect}
	}
	return PointerAnchor()
}

// Captured is a normalized selection. Text is always trimmed and is empty
// when Provenance is ProvenanceNone.
type Captured struct {
	Text       string
	Anchor     Anchor
	Provenance Provenance
}

func (c Captured) Empty() bool { return c.Provenance == ProvenanceNone }

// AccessibilitySource is the first capture tier.
type AccessibilitySource interface {
	Trusted(prompt bool) bool
	Read() accessibility.Result
}

// CopySource is the synthetic copy tier.
type CopySource interface {
	CaptureViaSyntheticCopy(ctx context.Context, timeout time.Duration) (string, bool)
}

// Service composes the accessibility read with the clipboard fallback.
type Service struct {
	Accessibility AccessibilitySource
	Fallback      CopySource
	Timeout       time.Duration
}

func NewService(ax AccessibilitySource, fallback CopySource, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{Accessibility: ax, Fallback: fallback, Timeout: timeout}
}

// Capture never fails; when neither tier finds text it returns an empty
// selection anchored at the pointer.
func (s *Service) Capture(ctx context.Context) Captured {
	var ax accessibility.Result
	if s.Accessibility != nil && s.Accessibility.Trusted(false) {
		ax = s.Accessibility.Read()
	} else {
		log.Printf("selection: accessibility not trusted, using copy fallback")
	}

	if ax.HasText {
		if text := trim(ax.Text); text != "" {
			log.Printf("selection: captured via accessibility: %d chars", len(text))
			return Captured{Text: text, Anchor: anchorFor(ax), Provenance: ProvenanceAccessibility}
		}
	}

	if s.Fallback != nil && ctx.Err() == nil {
		if raw, ok := s.Fallback.CaptureViaSyntheticCopy(ctx, s.Timeout); ok {
			if text := trim(raw); text != "" {
				log.Printf("selection: captured via pasteboard: %d chars", len(text))
				return Captured{Text: text, Anchor: anchorFor(ax), Provenance: ProvenancePasteboard}
			}
		}
	}

	log.Printf("selection: nothing selected")
	return Captured{Anchor: PointerAnchor(), Provenance: ProvenanceNone}
}

func trim(s string) string {
	return strings.TrimSpace(s)
}
