// Package seating models normalized seat rectangles over the camera plane
// and evaluates which seat a tracked skeleton occupies.
package seating

import (
	"errors"
	"fmt"

	"github.com/posecast/posecast/internal/skeleton"
)

// ErrValidation reports an invalid seat set: empty layout, duplicate seat
// ids, or malformed bounds at construction time.
var ErrValidation = errors.New("invalid seating layout")

// Bounds is an axis-aligned rectangle in normalized [0,1] camera-plane
// coordinates.
type Bounds struct {
	XMin float64 `json:"xMin"`
	XMax float64 `json:"xMax"`
	YMin float64 `json:"yMin"`
	YMax float64 `json:"yMax"`
}

// Region is a single named seat rectangle.
type Region struct {
	SeatID string
	Bounds Bounds
}

// Contains reports whether the point lies inside the seat, boundaries
// inclusive.
func (r Region) Contains(x, y float64) bool {
	return r.Bounds.XMin <= x && x <= r.Bounds.XMax &&
		r.Bounds.YMin <= y && y <= r.Bounds.YMax
}

// Width returns the horizontal extent, never negative.
func (r Region) Width() float64 {
	if w := r.Bounds.XMax - r.Bounds.XMin; w > 0 {
		return w
	}
	return 0
}

// Height returns the vertical extent, never negative.
func (r Region) Height() float64 {
	if h := r.Bounds.YMax - r.Bounds.YMin; h > 0 {
		return h
	}
	return 0
}

// Layout is an ordered, id-unique collection of seat regions. It is
// immutable once constructed: edits build a new Layout and holders swap the
// whole reference.
type Layout struct {
	regions []Region
}

// NewLayout validates and copies the given regions. It fails with a wrapped
// ErrValidation if the list is empty or any seat id repeats or is blank.
// Bounds ordering is not revalidated here; loaders and the editor enforce it
// before construction, and programmatic callers own their geometry.
func NewLayout(regions []Region) (*Layout, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("%w: requires at least one seat", ErrValidation)
	}
	seen := make(map[string]struct{}, len(regions))
	ordered := make([]Region, 0, len(regions))
	for _, r := range regions {
		if r.SeatID == "" {
			return nil, fmt.Errorf("%w: seat with empty id", ErrValidation)
		}
		if _, dup := seen[r.SeatID]; dup {
			return nil, fmt.Errorf("%w: duplicate seat id %q", ErrValidation, r.SeatID)
		}
		seen[r.SeatID] = struct{}{}
		ordered = append(ordered, r)
	}
	return &Layout{regions: ordered}, nil
}

// Regions returns a copy of the seat list in insertion order.
func (l *Layout) Regions() []Region {
	out := make([]Region, len(l.regions))
	copy(out, l.regions)
	return out
}

// Len returns the number of seats.
func (l *Layout) Len() int { return len(l.regions) }

// Resolve scans seats in insertion order and returns the first one containing
// the point, boundaries inclusive. Overlapping seats resolve to the earliest
// registered match; this is the documented policy, not an accident.
func (l *Layout) Resolve(x, y float64) (Region, bool) {
	for _, r := range l.regions {
		if r.Contains(x, y) {
			return r, true
		}
	}
	return Region{}, false
}

// SeatStatus is the per-seat entry of an occupancy report.
type SeatStatus struct {
	ID       string `json:"id"`
	Occupied bool   `json:"occupied"`
	Bounds   Bounds `json:"bounds"`
}

// Report is the per-frame result of matching a tracked root point against a
// layout. It serializes under the frame's "seating" metadata key.
type Report struct {
	ActiveSeatID *string      `json:"activeSeatId"`
	Confidence   float64      `json:"confidence"`
	Seats        []SeatStatus `json:"seats"`
}

// Evaluate extracts the skeleton's normalized root point from the frame
// metadata and builds an occupancy report. It prefers root_center_normalized
// and falls back to root_center_pixel divided by frame_dimensions. A frame
// without either yields no report (nil), so seating metadata is omitted
// downstream rather than sent empty.
func (l *Layout) Evaluate(frame *skeleton.Frame) *Report {
	if frame == nil {
		return nil
	}
	x, y, ok := normalizedRoot(frame.Meta)
	if !ok {
		return nil
	}

	report := &Report{Seats: make([]SeatStatus, 0, len(l.regions))}
	active, found := l.Resolve(x, y)
	if found {
		id := active.SeatID
		report.ActiveSeatID = &id
		report.Confidence = confidence(active, x, y)
	}
	for _, r := range l.regions {
		report.Seats = append(report.Seats, SeatStatus{
			ID:       r.SeatID,
			Occupied: found && r.SeatID == active.SeatID,
			Bounds:   r.Bounds,
		})
	}
	return report
}

func normalizedRoot(meta map[string]any) (x, y float64, ok bool) {
	if meta == nil {
		return 0, 0, false
	}
	nx, okX := skeleton.FloatField(meta, "root_center_normalized", "x")
	ny, okY := skeleton.FloatField(meta, "root_center_normalized", "y")
	if okX && okY {
		return nx, ny, true
	}
	px, okX := skeleton.FloatField(meta, "root_center_pixel", "x")
	py, okY := skeleton.FloatField(meta, "root_center_pixel", "y")
	w, okW := skeleton.FloatField(meta, "frame_dimensions", "width")
	h, okH := skeleton.FloatField(meta, "frame_dimensions", "height")
	if !okX || !okY || !okW || !okH || w == 0 || h == 0 {
		return 0, 0, false
	}
	return px / w, py / h, true
}

// confidence scores how centered a contained point is within a seat: 1.0 at
// the seat center, 0.0 on any boundary, strictly decreasing toward the edges
// along each axis. Degenerate (zero-area) seats score 0.
func confidence(r Region, x, y float64) float64 {
	width, height := r.Width(), r.Height()
	if width <= 0 || height <= 0 {
		return 0
	}
	marginX := min(x-r.Bounds.XMin, r.Bounds.XMax-x)
	marginY := min(y-r.Bounds.YMin, r.Bounds.YMax-y)
	if marginX < 0 || marginY < 0 {
		return 0
	}
	normalized := min(marginX/(width/2), marginY/(height/2))
	return clamp(normalized, 0, 1)
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
