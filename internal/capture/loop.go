// Package capture owns the fixed-rate capture → enrich → transmit loop.
//
// One goroutine owns the loop; it suspends only at the fixed-interval sleep
// point and inside transport I/O. Cross-thread control operations — Stop and
// UpdateLayout — are marshaled onto the loop goroutine through a command/ack
// channel and block the caller, with a bounded timeout, until the operation
// completes.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/posecast/posecast/internal/monitoring"
	"github.com/posecast/posecast/internal/seating"
	"github.com/posecast/posecast/internal/skeleton"
	"github.com/posecast/posecast/internal/transport"
)

// ErrCommandTimeout reports that a control operation could not be delivered
// to (or acknowledged by) the loop within the configured timeout. The loop
// itself is unaffected; the operation is a best-effort failure.
var ErrCommandTimeout = errors.New("capture loop command timed out")

// DefaultInterval is the frame interval used when the config leaves it zero.
const DefaultInterval = time.Second / 30

// DefaultCommandTimeout bounds Stop and UpdateLayout waits.
const DefaultCommandTimeout = time.Second

// State names the loop lifecycle phase.
type State string

const (
	StateIdle    State = "idle"
	StateStarted State = "started"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Observer is notified after each successful transmit. A nil report means
// seating enrichment was disabled or the frame carried no root point.
type Observer interface {
	ObserveFrame(frame *skeleton.Frame, report *seating.Report)
}

// Config wires a Loop.
type Config struct {
	Provider  Provider
	Transport transport.Transport
	// Interval is the fixed tick period. The loop sleeps exactly this long
	// after each tick regardless of how long pull+enrich+send took, so the
	// effective rate degrades under slow downstream I/O but frames are
	// never reordered or duplicated.
	Interval time.Duration
	// CalibrationFile is merged into every frame's metadata. Best-effort:
	// a missing file logs a warning and contributes nothing.
	CalibrationFile string
	// Metadata is a static map merged over the calibration layer.
	Metadata map[string]any
	// Layout is the initial seating layout; nil disables seating metadata.
	Layout *seating.Layout
	// Observer, if set, sees every transmitted frame.
	Observer Observer
	// CommandTimeout bounds Stop/UpdateLayout; zero means the default.
	CommandTimeout time.Duration
}

type commandOp int

const (
	opStop commandOp = iota
	opUpdateLayout
)

type command struct {
	op     commandOp
	layout *seating.Layout
	reply  chan error
}

// Loop pulls the latest available frame each tick, enriches it and hands it
// to the transport.
type Loop struct {
	cfg         config
	calibration map[string]any

	// layout is replaced by whole-reference atomic swap, so enrichment
	// always observes a complete layout. Stored by the loop goroutine
	// (or pre-start by UpdateLayout); read anywhere.
	layout atomic.Pointer[seating.Layout]

	commands   chan command
	framesSent atomic.Uint64

	mu       sync.Mutex
	state    State
	stopOnce sync.Once
}

// config is Config after defaulting.
type config struct {
	provider       Provider
	transport      transport.Transport
	interval       time.Duration
	calibrationOpt string
	metadata       map[string]any
	observer       Observer
	commandTimeout time.Duration
}

// NewLoop validates the configuration and returns an idle loop.
func NewLoop(cfg Config) (*Loop, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("capture loop requires a provider")
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("capture loop requires a transport")
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := cfg.CommandTimeout
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	l := &Loop{
		cfg: config{
			provider:       cfg.Provider,
			transport:      cfg.Transport,
			interval:       interval,
			calibrationOpt: cfg.CalibrationFile,
			metadata:       cfg.Metadata,
			observer:       cfg.Observer,
			commandTimeout: timeout,
		},
		commands: make(chan command),
		state:    StateIdle,
	}
	l.layout.Store(cfg.Layout)
	return l, nil
}

// State returns the loop lifecycle phase.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// FramesSent returns the number of frames handed to the transport.
func (l *Loop) FramesSent() uint64 { return l.framesSent.Load() }

// Layout returns the active seating layout reference, which may be nil.
func (l *Loop) Layout() *seating.Layout { return l.layout.Load() }

// Start activates the provider, connects the transport and loads the
// optional calibration file. Provider and transport failures are fatal and
// returned to the caller; a missing calibration file is not.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return fmt.Errorf("capture loop already started (state %s)", l.state)
	}
	l.mu.Unlock()

	if err := l.cfg.provider.Start(ctx); err != nil {
		return fmt.Errorf("failed to start provider: %w", err)
	}
	if err := l.cfg.transport.Connect(ctx); err != nil {
		l.cfg.provider.Stop()
		return fmt.Errorf("failed to connect transport: %w", err)
	}
	if l.cfg.calibrationOpt != "" {
		l.calibration = LoadMetadataFile(l.cfg.calibrationOpt)
	}

	l.mu.Lock()
	l.state = StateStarted
	l.mu.Unlock()
	monitoring.Logf("capture loop started (interval %s)", l.cfg.interval)
	return nil
}

// Run executes the tick loop until Stop is called or the context is
// cancelled. It must be called exactly once, after Start.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateStarted {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("capture loop not started (state %s)", state)
	}
	l.state = StateRunning
	l.mu.Unlock()

	running := true
	for running {
		if frame := l.cfg.provider.GetLatest(); frame != nil {
			l.transmit(ctx, frame)
		}

		// Sleep exactly one interval, servicing control commands while
		// asleep. Cancellation is cooperative: an in-flight send above
		// always finishes before the flag is observed here.
		timer := time.NewTimer(l.cfg.interval)
	sleep:
		for {
			select {
			case <-timer.C:
				break sleep
			case cmd := <-l.commands:
				if stop := l.handleCommand(cmd); stop {
					running = false
					break sleep
				}
			case <-ctx.Done():
				running = false
				break sleep
			}
		}
		timer.Stop()
	}

	l.teardown()
	return nil
}

// handleCommand runs on the loop goroutine. It reports whether the loop
// should exit.
func (l *Loop) handleCommand(cmd command) bool {
	switch cmd.op {
	case opStop:
		l.teardown()
		cmd.reply <- nil
		return true
	case opUpdateLayout:
		l.layout.Store(cmd.layout)
		if cmd.layout == nil {
			monitoring.Logf("seating enrichment disabled")
		} else {
			monitoring.Logf("seating layout updated (%d seats)", cmd.layout.Len())
		}
		cmd.reply <- nil
	}
	return false
}

// transmit enriches one frame and hands it to the transport. Steady-state
// I/O failures are absorbed by the transport; the loop never sees them.
func (l *Loop) transmit(ctx context.Context, frame *skeleton.Frame) {
	report := l.enrich(frame)
	if err := l.cfg.transport.Send(ctx, frame); err != nil {
		monitoring.Logf("transport send failed, frame dropped: %v", err)
		return
	}
	l.framesSent.Add(1)
	if l.cfg.observer != nil {
		l.cfg.observer.ObserveFrame(frame, report)
	}
}

// enrich layers calibration, static metadata and the seating report over the
// frame's own metadata. Later layers overwrite identically-named keys. The
// seating report is computed from the provider's metadata before merging,
// then stored under the "seating" key; with no active layout the key is
// omitted entirely.
func (l *Loop) enrich(frame *skeleton.Frame) *seating.Report {
	merged := make(map[string]any, len(frame.Meta)+len(l.calibration)+len(l.cfg.metadata)+1)
	for k, v := range frame.Meta {
		merged[k] = v
	}
	for k, v := range l.calibration {
		merged[k] = v
	}
	for k, v := range l.cfg.metadata {
		merged[k] = v
	}

	var report *seating.Report
	if layout := l.layout.Load(); layout != nil {
		if report = layout.Evaluate(frame); report != nil {
			merged["seating"] = report
		}
	}
	frame.Meta = merged
	return report
}

// Stop shuts the loop down: the transport is closed, then the provider
// stopped. Idempotent; calling Stop on an already-stopped loop is a no-op.
// When the loop goroutine is running the request is marshaled onto it and
// the call blocks until acknowledged or the command timeout elapses.
func (l *Loop) Stop() error {
	l.mu.Lock()
	state := l.state
	l.mu.Unlock()

	switch state {
	case StateStopped:
		return nil
	case StateRunning:
		err := l.submit(command{op: opStop, reply: make(chan error, 1)})
		if errors.Is(err, ErrCommandTimeout) {
			// Loop may have exited between the state check and the send.
			if l.State() == StateStopped {
				return nil
			}
		}
		return err
	default:
		// Started but not running, or never started: release resources
		// directly.
		l.teardown()
		return nil
	}
}

// UpdateLayout atomically replaces the layout used by the next enrichment.
// A nil layout disables seating enrichment. When the loop is running the
// swap happens on the loop goroutine; the call blocks until acknowledged or
// the command timeout elapses.
func (l *Loop) UpdateLayout(layout *seating.Layout) error {
	l.mu.Lock()
	state := l.state
	l.mu.Unlock()

	if state != StateRunning {
		l.layout.Store(layout)
		return nil
	}
	return l.submit(command{op: opUpdateLayout, layout: layout, reply: make(chan error, 1)})
}

// submit delivers a command to the loop goroutine and waits for the ack,
// bounding both phases by the command timeout.
func (l *Loop) submit(cmd command) error {
	deadline := time.NewTimer(l.cfg.commandTimeout)
	defer deadline.Stop()

	select {
	case l.commands <- cmd:
	case <-deadline.C:
		return ErrCommandTimeout
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-deadline.C:
		return ErrCommandTimeout
	}
}

// teardown closes the transport and stops the provider exactly once.
func (l *Loop) teardown() {
	l.stopOnce.Do(func() {
		if err := l.cfg.transport.Close(); err != nil {
			monitoring.Logf("transport close failed: %v", err)
		}
		l.cfg.provider.Stop()
		l.mu.Lock()
		l.state = StateStopped
		l.mu.Unlock()
		monitoring.Logf("capture loop stopped after %d frames", l.framesSent.Load())
	})
}
