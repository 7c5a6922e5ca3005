package capture

import (
	"context"
	"sync"

	"github.com/posecast/posecast/internal/skeleton"
)

// Provider yields already-computed skeleton frames. Implementations wrap an
// external pose-estimation engine (serial-attached tracker, network feed,
// recorded capture) — posecast never runs inference itself.
type Provider interface {
	// Start activates the provider. Resource failures (device open, file
	// open) are fatal and abort the capture loop's Start.
	Start(ctx context.Context) error
	// Stop halts the provider and releases its resources.
	Stop()
	// GetLatest returns the newest unconsumed frame, or nil when no new
	// frame arrived since the last call. It never blocks.
	GetLatest() *skeleton.Frame
}

// LatestBuffer is a capacity-one frame handoff with overwrite semantics: a
// frame not yet consumed when a newer one arrives is superseded and lost.
// There is no queueing and no backpressure. Providers publish into one of
// these from their read goroutine; the loop drains it once per tick.
type LatestBuffer struct {
	mu    sync.Mutex
	frame *skeleton.Frame
}

// Put stores a frame, replacing any unconsumed one.
func (b *LatestBuffer) Put(f *skeleton.Frame) {
	b.mu.Lock()
	b.frame = f
	b.mu.Unlock()
}

// Take removes and returns the stored frame, or nil if none is pending.
func (b *LatestBuffer) Take() *skeleton.Frame {
	b.mu.Lock()
	f := b.frame
	b.frame = nil
	b.mu.Unlock()
	return f
}
