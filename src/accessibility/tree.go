package accessibility

// Element is an opaque handle to one node of the accessibility tree.
type Element any

// Attr names an attribute that can be queried on an Element.
type Attr string

const (
	AttrSelectedText      Attr = "selected-text"
	AttrSelectedTextRange Attr = "selected-text-range"
	AttrParent            Attr = "parent"

	// ParamBoundsForRange takes a TextRange and yields a Rect.
	ParamBoundsForRange Attr = "bounds-for-range"
)

// Tree is the capability-query surface over the platform accessibility API.
// Every lookup reports ok=false when the attribute is missing, unsupported or
// fails to read; callers treat that as "not available here" and move on.
type Tree interface {
	// Trusted reports whether this process may read the tree. When prompt is
	// true the backend may ask the platform to enable access.
	Trusted(prompt bool) bool
	Focused() (Element, bool)
	Attribute(el Element, key Attr) (any, bool)
	ParameterizedAttribute(el Element, key Attr, param any) (any, bool)
}

// TextRange is a [Start, End) character range inside an element's text.
type TextRange struct {
	Start int
	End   int
}

// Rect is a rectangle in global screen coordinates.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// Empty reports a rectangle without area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}
