package tray

import "fyne.io/fyne/v2"

// SVG content for the tray icon: a speech bubble over a text caret.
const SVGContent = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16" width="16" height="16">
  <path d="M2 3.5a1.5 1.5 0 0 1 1.5-1.5h9A1.5 1.5 0 0 1 14 3.5v6A1.5 1.5 0 0 1 12.5 11H7l-3 3v-3h-.5A1.5 1.5 0 0 1 2 9.5z" fill="none" stroke="#0078d4" stroke-width="1.3"/>
  <line x1="5" y1="5" x2="11" y2="5" stroke="#333333" stroke-width="1" stroke-linecap="round"/>
  <line x1="5" y1="7.5" x2="9" y2="7.5" stroke="#333333" stroke-width="1" stroke-linecap="round"/>
  <line x1="10.5" y1="6.5" x2="10.5" y2="9" stroke="#0078d4" stroke-width="1" stroke-linecap="round"/>
</svg>`

// Icon is the tray and window icon.
func Icon() fyne.Resource {
	return fyne.NewStaticResource("copytoask.svg", []byte(SVGContent))
}
