package accessibility

import "log"

// MaxAncestorDepth bounds how many parents above the focused element are searched.
const MaxAncestorDepth = 6

// Result is what the tree exposed for the current selection. HasText and
// HasRect are independent: they may come from different ancestors.
type Result struct {
	Text    string
	HasText bool
	Rect    Rect
	HasRect bool
}

// Reader reads the selected text and its bounds from the focused element.
type Reader struct {
	Tree     Tree
	MaxDepth int
}

func NewReader(tree Tree) *Reader {
	return &Reader{Tree: tree, MaxDepth: MaxAncestorDepth}
}

// Trusted is the permission check; it never blocks on a prompt unless asked to.
func (r *Reader) Trusted(prompt bool) bool {
	if r == nil || r.Tree == nil {
		return false
	}
	return r.Tree.Trusted(prompt)
}

// Read never fails: a missing focus, attribute or rectangle just leaves the
// corresponding field unset.
func (r *Reader) Read() Result {
	var res Result
	if r == nil || r.Tree == nil {
		return res
	}
	focused, ok := r.Tree.Focused()
	if !ok || focused == nil {
		return res
	}

	for _, el := range r.ancestors(focused) {
		if !res.HasText {
			res.Text, res.HasText = r.selectedText(el)
		}
		if !res.HasRect {
			res.Rect, res.HasRect = r.selectedBounds(el)
		}
		if res.HasText && res.HasRect {
			break
		}
	}
	log.Printf("accessibility: hasText=%v textLen=%d hasRect=%v", res.HasText, len(res.Text), res.HasRect)
	return res
}

// ancestors returns focused followed by up to MaxDepth parents.
func (r *Reader) ancestors(focused Element) []Element {
	depth := r.MaxDepth
	if depth <= 0 {
		depth = MaxAncestorDepth
	}
	out := []Element{focused}
	cur := focused
	for i := 0; i < depth; i++ {
		v, ok := r.Tree.Attribute(cur, AttrParent)
		if !ok || v == nil {
			break
		}
		parent, ok := v.(Element)
		if !ok || parent == nil {
			break
		}
		out = append(out, parent)
		cur = parent
	}
	return out
}

func (r *Reader) selectedText(el Element) (string, bool) {
	v, ok := r.Tree.Attribute(el, AttrSelectedText)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (r *Reader) selectedBounds(el Element) (Rect, bool) {
	v, ok := r.Tree.Attribute(el, AttrSelectedTextRange)
	if !ok {
		return Rect{}, false
	}
	rng, ok := v.(TextRange)
	if !ok {
		return Rect{}, false
	}
	b, ok := r.Tree.ParameterizedAttribute(el, ParamBoundsForRange, rng)
	if !ok {
		return Rect{}, false
	}
	rect, ok := b.(Rect)
	if !ok || rect.Empty() {
		return Rect{}, false
	}
	return rect, true
}
