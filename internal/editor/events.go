package editor

// PointerKind discriminates pointer event types delivered by the preview
// renderer.
type PointerKind int

const (
	PointerDown PointerKind = iota
	PointerMove
	PointerUp
)

// PointerEvent is a pointer sample in pixel coordinates of the preview
// frame.
type PointerEvent struct {
	Kind PointerKind
	X    int
	Y    int
}

// Key is a logical editor key. The preview window maps its own keycodes to
// these before calling HandleKey, keeping the editor independent of any
// windowing toolkit.
type Key int

const (
	// KeyToggle switches editing on and off.
	KeyToggle Key = iota
	// KeyNext cycles the selection forward through existing seats.
	KeyNext
	// KeyDelete removes the selected seat.
	KeyDelete
	// KeyCreate arms creation of a new seat by drag.
	KeyCreate
	// KeyClear removes all seats.
	KeyClear
)

// Corner names a resize handle of the selected seat.
type Corner int

const (
	CornerLT Corner = iota
	CornerRT
	CornerLB
	CornerRB
)

func (c Corner) String() string {
	switch c {
	case CornerLT:
		return "lt"
	case CornerRT:
		return "rt"
	case CornerLB:
		return "lb"
	case CornerRB:
		return "rb"
	}
	return "?"
}

// left/top report which edges the corner controls.
func (c Corner) left() bool { return c == CornerLT || c == CornerLB }
func (c Corner) top() bool  { return c == CornerLT || c == CornerRT }
