package seating

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/posecast/posecast/internal/skeleton"
)

func mustLayout(t *testing.T, regions ...Region) *Layout {
	t.Helper()
	layout, err := NewLayout(regions)
	require.NoError(t, err)
	return layout
}

func seat(id string, xMin, yMin, xMax, yMax float64) Region {
	return Region{SeatID: id, Bounds: Bounds{XMin: xMin, YMin: yMin, XMax: xMax, YMax: yMax}}
}

func frameWithNormalizedRoot(x, y float64) *skeleton.Frame {
	f := skeleton.NewFrame(0)
	f.Meta["root_center_normalized"] = map[string]any{"x": x, "y": y}
	f.Meta["frame_dimensions"] = map[string]any{"width": 1920.0, "height": 1080.0}
	return f
}

func TestNewLayoutValidation(t *testing.T) {
	_, err := NewLayout(nil)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLayout([]Region{
		seat("a", 0, 0, 0.5, 0.5),
		seat("a", 0.5, 0, 1, 0.5),
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewLayout([]Region{seat("", 0, 0, 1, 1)})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestResolveInsertionOrder(t *testing.T) {
	t.Run("point in exactly one seat", func(t *testing.T) {
		layout := mustLayout(t,
			seat("left", 0, 0, 0.5, 1),
			seat("right", 0.5, 0, 1, 1),
		)
		r, ok := layout.Resolve(0.75, 0.5)
		require.True(t, ok)
		assert.Equal(t, "right", r.SeatID)
	})

	t.Run("overlapping seats resolve to earliest registered", func(t *testing.T) {
		layout := mustLayout(t,
			seat("first", 0.2, 0.2, 0.8, 0.8),
			seat("second", 0.1, 0.1, 0.9, 0.9),
		)
		r, ok := layout.Resolve(0.5, 0.5)
		require.True(t, ok)
		assert.Equal(t, "first", r.SeatID)
	})

	t.Run("boundary points are inclusive", func(t *testing.T) {
		layout := mustLayout(t, seat("only", 0.25, 0.25, 0.75, 0.75))
		_, ok := layout.Resolve(0.25, 0.75)
		assert.True(t, ok)
	})

	t.Run("no seat contains point", func(t *testing.T) {
		layout := mustLayout(t, seat("only", 0, 0, 0.25, 0.25))
		_, ok := layout.Resolve(0.9, 0.9)
		assert.False(t, ok)
	})
}

func TestConfidenceShape(t *testing.T) {
	s := seat("s", 0.2, 0.2, 0.8, 0.8)

	assert.InDelta(t, 1.0, confidence(s, 0.5, 0.5), 1e-9, "center scores 1")
	assert.InDelta(t, 0.0, confidence(s, 0.2, 0.5), 1e-9, "left edge scores 0")
	assert.InDelta(t, 0.0, confidence(s, 0.5, 0.8), 1e-9, "bottom edge scores 0")
	assert.InDelta(t, 0.0, confidence(s, 0.2, 0.2), 1e-9, "corner scores 0")

	// Non-increasing from center toward an edge along each axis.
	prev := math.Inf(1)
	for x := 0.5; x <= 0.8+1e-9; x += 0.05 {
		c := confidence(s, x, 0.5)
		assert.LessOrEqual(t, c, prev, "confidence rose moving toward edge at x=%v", x)
		prev = c
	}

	degenerate := seat("line", 0.3, 0.3, 0.3, 0.6)
	assert.Zero(t, confidence(degenerate, 0.3, 0.4), "zero-area seat scores 0")
}

func TestEvaluateReport(t *testing.T) {
	layout := mustLayout(t,
		seat("seat-a", 0, 0, 0.3, 0.8),
		seat("seat-b", 0.3, 0, 0.6, 0.8),
		seat("seat-c", 0.6, 0, 1, 0.8),
	)

	report := layout.Evaluate(frameWithNormalizedRoot(0.35, 0.5))
	require.NotNil(t, report)
	require.NotNil(t, report.ActiveSeatID)
	assert.Equal(t, "seat-b", *report.ActiveSeatID)
	assert.InDelta(t, 1.0/3.0, report.Confidence, 1e-6)

	require.Len(t, report.Seats, 3)
	occupied := map[string]bool{}
	for _, s := range report.Seats {
		occupied[s.ID] = s.Occupied
	}
	assert.False(t, occupied["seat-a"])
	assert.True(t, occupied["seat-b"])
	assert.False(t, occupied["seat-c"])
}

func TestEvaluatePixelFallback(t *testing.T) {
	layout := mustLayout(t,
		seat("seat-a", 0, 0, 0.5, 0.5),
		seat("seat-b", 0.5, 0, 1, 0.5),
	)
	f := skeleton.NewFrame(0)
	f.Meta["root_center_pixel"] = map[string]any{"x": 1200.0, "y": 200.0}
	f.Meta["frame_dimensions"] = map[string]any{"width": 1600.0, "height": 400.0}

	report := layout.Evaluate(f)
	require.NotNil(t, report)
	require.NotNil(t, report.ActiveSeatID)
	assert.Equal(t, "seat-b", *report.ActiveSeatID)
}

func TestEvaluateNoRootPoint(t *testing.T) {
	layout := mustLayout(t, seat("seat-a", 0, 0, 1, 1))

	assert.Nil(t, layout.Evaluate(skeleton.NewFrame(0)), "frame without root metadata yields no report")

	f := skeleton.NewFrame(0)
	f.Meta["root_center_pixel"] = map[string]any{"x": 10.0, "y": 10.0}
	// frame_dimensions missing: pixel fallback cannot normalize
	assert.Nil(t, layout.Evaluate(f))

	f = skeleton.NewFrame(0)
	f.Meta["root_center_pixel"] = map[string]any{"x": 10.0, "y": 10.0}
	f.Meta["frame_dimensions"] = map[string]any{"width": 0.0, "height": 480.0}
	assert.Nil(t, layout.Evaluate(f), "zero frame width must not divide")
}

func TestEvaluateNoMatch(t *testing.T) {
	layout := mustLayout(t, seat("seat-a", 0, 0, 0.3, 0.3))
	report := layout.Evaluate(frameWithNormalizedRoot(0.9, 0.9))
	require.NotNil(t, report)
	assert.Nil(t, report.ActiveSeatID)
	assert.Zero(t, report.Confidence)
	require.Len(t, report.Seats, 1)
	assert.False(t, report.Seats[0].Occupied, "unmatched seats still listed, occupied=false")
}

func TestRegionsReturnsCopy(t *testing.T) {
	layout := mustLayout(t, seat("a", 0, 0, 0.5, 0.5))
	regions := layout.Regions()
	regions[0].SeatID = "mutated"
	assert.Equal(t, "a", layout.Regions()[0].SeatID, "layout must be immutable")
}

func TestErrValidationIsDistinctFromErrConfig(t *testing.T) {
	_, err := NewLayout(nil)
	assert.False(t, errors.Is(err, ErrConfig))
}
