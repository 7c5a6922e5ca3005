package editor

// Style selects how the renderer draws an editor element.
type Style int

const (
	// StyleSeat is an unselected seat rectangle and label.
	StyleSeat Style = iota
	// StyleSelected is the selected seat while editing is enabled.
	StyleSelected
	// StylePreview is the live rectangle drawn during a create drag.
	StylePreview
)

// Canvas is the drawing surface the editor renders onto. The preview window
// implements it over whatever imaging stack it uses; the editor only issues
// pixel-space draw calls.
type Canvas interface {
	// Rect draws a rectangle outline between two pixel corners.
	Rect(x1, y1, x2, y2 int, style Style)
	// Label draws a seat id near the given pixel position.
	Label(text string, x, y int, style Style)
	// Handle draws a corner handle marker centered on the given pixel.
	Handle(cx, cy int)
	// StatusText draws the mode/help lines in the window corner.
	StatusText(lines []string)
}
