// Package editor implements the live seating editor: an overlay state
// machine that mutates a seating layout from pointer and key events inside
// the camera preview.
//
// The model lives in normalized [0,1] coordinates and is rendered in pixel
// space derived from the current frame's dimensions, so edits stay valid
// across resolution changes. Every committed mutation rebuilds an immutable
// seating.Layout and hands it to the change callback; an empty layout is
// delivered as nil.
package editor

import (
	"fmt"

	"github.com/posecast/posecast/internal/monitoring"
	"github.com/posecast/posecast/internal/seating"
)

const (
	// handleRadius is the pixel distance within which a pointer-down grabs
	// a corner handle instead of the seat body.
	handleRadius = 12
	// minExtent is the smallest normalized width/height a resize or create
	// may leave a seat with; collapse to zero size is forbidden.
	minExtent = 0.02
	// minCreateDragPx is the smallest pixel extent, per axis, for a create
	// drag to commit a new seat.
	minCreateDragPx = 8
)

// mode is the tagged union of mutually exclusive editing sub-states. Only
// one mode value exists at a time, so invalid combinations (dragging while
// a create is pending, and so on) cannot be represented.
type mode interface{ editorMode() }

type modeIdle struct{}

type modeDragMove struct {
	startX, startY int // pointer-down pixel position
	start          seating.Bounds
}

type modeDragResize struct {
	corner Corner
}

type modePendingCreate struct{}

type modeCreating struct {
	anchorX, anchorY int
}

func (modeIdle) editorMode()          {}
func (modeDragMove) editorMode()      {}
func (modeDragResize) editorMode()    {}
func (modePendingCreate) editorMode() {}
func (modeCreating) editorMode()      {}

// Editor is the live seating editing state machine. It is driven from the
// preview window's event thread and is not safe for concurrent use; commits
// cross into the capture loop through the change callback, which typically
// calls Loop.UpdateLayout.
type Editor struct {
	onChanged func(*seating.Layout)

	seats    []seating.Region
	selected int // index into seats, -1 when nothing is selected

	frameW, frameH int

	enabled bool
	mode    mode

	lastX, lastY int
	status       string
}

// New returns a disabled editor with no seats. The callback receives every
// committed layout; nil means all seats were removed.
func New(onChanged func(*seating.Layout)) *Editor {
	return &Editor{
		onChanged: onChanged,
		selected:  -1,
		frameW:    1,
		frameH:    1,
		mode:      modeIdle{},
		status:    "press toggle key to edit seats",
	}
}

// SetOnChanged replaces the layout change callback.
func (e *Editor) SetOnChanged(cb func(*seating.Layout)) { e.onChanged = cb }

// SetLayout loads the editor model from an existing layout. nil clears it.
// The first seat becomes selected, matching the behaviour on session start.
func (e *Editor) SetLayout(layout *seating.Layout) {
	e.seats = e.seats[:0]
	if layout != nil {
		e.seats = append(e.seats, layout.Regions()...)
	}
	if len(e.seats) > 0 {
		e.selected = 0
	} else {
		e.selected = -1
	}
}

// Enabled reports whether editing mode is active.
func (e *Editor) Enabled() bool { return e.enabled }

// SelectedSeatID returns the id of the selected seat, or "" when none.
func (e *Editor) SelectedSeatID() string {
	if e.selected < 0 || e.selected >= len(e.seats) {
		return ""
	}
	return e.seats[e.selected].SeatID
}

// Seats returns a copy of the current draft regions in order.
func (e *Editor) Seats() []seating.Region {
	out := make([]seating.Region, len(e.seats))
	copy(out, e.seats)
	return out
}

// HandleKey processes one logical key press.
func (e *Editor) HandleKey(key Key) {
	if key == KeyToggle {
		e.toggle()
		return
	}
	if !e.enabled {
		return
	}
	switch key {
	case KeyNext:
		e.cycleSelection()
	case KeyDelete:
		e.deleteSelected()
	case KeyCreate:
		e.mode = modePendingCreate{}
		e.status = "new seat: drag to place"
	case KeyClear:
		e.clearAll()
	}
}

// HandlePointer processes one pointer event in preview pixel coordinates.
func (e *Editor) HandlePointer(ev PointerEvent) {
	e.lastX, e.lastY = ev.X, ev.Y
	if !e.enabled {
		return
	}
	switch m := e.mode.(type) {
	case modePendingCreate:
		if ev.Kind == PointerDown {
			e.mode = modeCreating{anchorX: ev.X, anchorY: ev.Y}
		}
	case modeCreating:
		// The preview rectangle is drawn in Render; moves need no model
		// update.
		if ev.Kind == PointerUp {
			e.finishCreate(m, ev.X, ev.Y)
		}
	case modeIdle:
		if ev.Kind == PointerDown {
			e.startDrag(ev.X, ev.Y)
		}
	case modeDragMove:
		switch ev.Kind {
		case PointerMove:
			e.applyMove(m, ev.X, ev.Y)
		case PointerUp:
			e.applyMove(m, ev.X, ev.Y)
			e.mode = modeIdle{}
			e.emit()
		}
	case modeDragResize:
		switch ev.Kind {
		case PointerMove:
			e.applyResize(m, ev.X, ev.Y)
		case PointerUp:
			e.applyResize(m, ev.X, ev.Y)
			e.mode = modeIdle{}
			e.emit()
		}
	}
}

// Render draws the overlay for the given frame dimensions. Safe to call in
// any state; it also records the dimensions used to map pointer pixels back
// to normalized coordinates.
func (e *Editor) Render(c Canvas, frameW, frameH int) {
	if frameW > 0 {
		e.frameW = frameW
	}
	if frameH > 0 {
		e.frameH = frameH
	}

	for i, seat := range e.seats {
		style := StyleSeat
		if e.enabled && i == e.selected {
			style = StyleSelected
		}
		x1, y1, x2, y2 := e.seatPixels(seat)
		c.Rect(x1, y1, x2, y2, style)
		c.Label(seat.SeatID, x1+4, y1+18, style)
		if e.enabled && i == e.selected {
			c.Handle(x1, y1)
			c.Handle(x2, y1)
			c.Handle(x1, y2)
			c.Handle(x2, y2)
		}
	}

	if e.enabled {
		c.StatusText([]string{
			"edit mode: drag seat to move, drag corner to resize",
			"next: cycle seats / delete: remove / create: add / clear: remove all / toggle: exit",
		})
	} else {
		c.StatusText([]string{e.status})
	}

	if m, ok := e.mode.(modeCreating); ok {
		c.Rect(m.anchorX, m.anchorY, e.lastX, e.lastY, StylePreview)
	}
}

func (e *Editor) toggle() {
	e.enabled = !e.enabled
	// Entering either state cancels any in-progress drag or pending
	// create.
	e.mode = modeIdle{}
	if e.enabled {
		e.status = "edit mode enabled"
	} else {
		e.status = "edit mode disabled"
	}
}

func (e *Editor) cycleSelection() {
	if len(e.seats) == 0 {
		return
	}
	if e.selected < 0 {
		e.selected = 0
		return
	}
	e.selected = (e.selected + 1) % len(e.seats)
}

func (e *Editor) deleteSelected() {
	if e.selected < 0 || e.selected >= len(e.seats) {
		return
	}
	removed := e.seats[e.selected]
	e.seats = append(e.seats[:e.selected], e.seats[e.selected+1:]...)
	monitoring.Logf("live editor: removed seat %q", removed.SeatID)
	if len(e.seats) == 0 {
		e.selected = -1
	} else if e.selected >= len(e.seats) {
		e.selected = len(e.seats) - 1
	}
	e.emit()
}

func (e *Editor) clearAll() {
	if len(e.seats) == 0 {
		return
	}
	e.seats = e.seats[:0]
	e.selected = -1
	e.status = "all seats removed"
	e.emit()
}

// startDrag picks the seat (and optionally a corner handle) under the
// pointer. Pointer-down outside every seat is ignored.
func (e *Editor) startDrag(x, y int) {
	index, corner, ok := e.pickSeat(x, y)
	if !ok {
		return
	}
	e.selected = index
	if corner != nil {
		e.mode = modeDragResize{corner: *corner}
		return
	}
	e.mode = modeDragMove{startX: x, startY: y, start: e.seats[index].Bounds}
}

// applyMove translates the selected seat by the pointer delta, preserving
// width and height and clamping so the rectangle stays inside [0,1].
func (e *Editor) applyMove(m modeDragMove, x, y int) {
	if e.selected < 0 {
		return
	}
	seat := &e.seats[e.selected]
	dx := float64(x-m.startX) / float64(maxInt(1, e.frameW))
	dy := float64(y-m.startY) / float64(maxInt(1, e.frameH))
	width := m.start.XMax - m.start.XMin
	height := m.start.YMax - m.start.YMin
	xMin := clamp(m.start.XMin+dx, 0, 1-width)
	yMin := clamp(m.start.YMin+dy, 0, 1-height)
	seat.Bounds = seating.Bounds{
		XMin: xMin,
		YMin: yMin,
		XMax: xMin + width,
		YMax: yMin + height,
	}
}

// applyResize moves the one or two edges adjacent to the grabbed corner,
// clamping each axis so the seat keeps at least the minimum normalized
// extent.
func (e *Editor) applyResize(m modeDragResize, x, y int) {
	if e.selected < 0 {
		return
	}
	seat := &e.seats[e.selected]
	nx := float64(x) / float64(maxInt(1, e.frameW))
	ny := float64(y) / float64(maxInt(1, e.frameH))
	if m.corner.left() {
		seat.Bounds.XMin = clamp(nx, 0, seat.Bounds.XMax-minExtent)
	} else {
		seat.Bounds.XMax = clamp(nx, seat.Bounds.XMin+minExtent, 1)
	}
	if m.corner.top() {
		seat.Bounds.YMin = clamp(ny, 0, seat.Bounds.YMax-minExtent)
	} else {
		seat.Bounds.YMax = clamp(ny, seat.Bounds.YMin+minExtent, 1)
	}
}

// finishCreate commits a create drag. A drag below the minimum pixel extent
// on either axis is discarded.
func (e *Editor) finishCreate(m modeCreating, x, y int) {
	e.mode = modeIdle{}
	if absInt(x-m.anchorX) < minCreateDragPx || absInt(y-m.anchorY) < minCreateDragPx {
		return
	}
	x1, x2 := minInt(m.anchorX, x), maxInt(m.anchorX, x)
	y1, y2 := minInt(m.anchorY, y), maxInt(m.anchorY, y)
	width := float64(maxInt(1, e.frameW))
	height := float64(maxInt(1, e.frameH))

	xMin := clamp(float64(x1)/width, 0, 1-minExtent)
	xMax := clamp(float64(x2)/width, xMin+minExtent, 1)
	yMin := clamp(float64(y1)/height, 0, 1-minExtent)
	yMax := clamp(float64(y2)/height, yMin+minExtent, 1)

	seat := seating.Region{
		SeatID: e.generateSeatID(),
		Bounds: seating.Bounds{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax},
	}
	e.seats = append(e.seats, seat)
	e.selected = len(e.seats) - 1
	e.status = "seat added"
	monitoring.Logf("live editor: added seat %q", seat.SeatID)
	e.emit()
}

// emit rebuilds an immutable layout from the drafts and invokes the change
// callback. nil is delivered when no seats remain. A construction failure is
// logged and the emission skipped; the on-screen state is deliberately kept
// (ids are generated uniquely and bounds clamped, so this guards only
// programmatic misuse).
func (e *Editor) emit() {
	if e.onChanged == nil {
		return
	}
	if len(e.seats) == 0 {
		e.onChanged(nil)
		return
	}
	regions := make([]seating.Region, len(e.seats))
	copy(regions, e.seats)
	layout, err := seating.NewLayout(regions)
	if err != nil {
		monitoring.Logf("live editor: failed to build seating layout: %v", err)
		return
	}
	e.onChanged(layout)
}

// generateSeatID returns the first free id of the form seat-NN.
func (e *Editor) generateSeatID() string {
	used := make(map[string]struct{}, len(e.seats))
	for _, seat := range e.seats {
		used[seat.SeatID] = struct{}{}
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("seat-%02d", i)
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}

func (e *Editor) seatPixels(seat seating.Region) (x1, y1, x2, y2 int) {
	x1 = int(seat.Bounds.XMin * float64(e.frameW))
	y1 = int(seat.Bounds.YMin * float64(e.frameH))
	x2 = int(seat.Bounds.XMax * float64(e.frameW))
	y2 = int(seat.Bounds.YMax * float64(e.frameH))
	return x1, y1, x2, y2
}

// pickSeat finds the first seat containing the pixel point, and the corner
// handle if the point is within the handle radius of one.
func (e *Editor) pickSeat(x, y int) (int, *Corner, bool) {
	for i, seat := range e.seats {
		x1, y1, x2, y2 := e.seatPixels(seat)
		if x < x1 || x > x2 || y < y1 || y > y2 {
			continue
		}
		corners := []struct {
			c      Corner
			cx, cy int
		}{
			{CornerLT, x1, y1},
			{CornerRT, x2, y1},
			{CornerLB, x1, y2},
			{CornerRB, x2, y2},
		}
		for _, h := range corners {
			if absInt(x-h.cx) <= handleRadius && absInt(y-h.cy) <= handleRadius {
				c := h.c
				return i, &c, true
			}
		}
		return i, nil, true
	}
	return -1, nil, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
