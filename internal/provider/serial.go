// Package provider contains skeleton providers: sources of already-computed
// pose frames that the capture loop polls once per tick. Each provider reads
// on its own goroutine and publishes through a capacity-one latest-wins
// buffer, so the loop never blocks on a slow source and stale frames are
// superseded rather than queued.
package provider

import (
	"bufio"
	"context"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/posecast/posecast/internal/capture"
	"github.com/posecast/posecast/internal/monitoring"
	"github.com/posecast/posecast/internal/skeleton"
)

// maxFrameLine caps one newline-delimited frame record from the tracker.
const maxFrameLine = 1 << 20

// PortOpener opens a serial port. Injectable so tests can substitute an
// in-memory pipe for real hardware.
type PortOpener func(path string, mode *serial.Mode) (serial.Port, error)

// SerialConfig configures a SerialProvider.
type SerialConfig struct {
	// Path is the serial device, e.g. /dev/ttyUSB0.
	Path string
	// BaudRate defaults to 115200.
	BaudRate int
	// Open defaults to serial.Open.
	Open PortOpener
}

// SerialProvider reads newline-delimited frame JSON from a serial-attached
// pose tracker. Malformed lines are logged and dropped; the stream carries
// on. Frame timestamps are clamped to be monotonically non-decreasing.
type SerialProvider struct {
	path string
	mode *serial.Mode
	open PortOpener

	buf    capture.LatestBuffer
	lastTS int64

	mu     sync.Mutex
	port   serial.Port
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSerialProvider builds a provider for the given device.
func NewSerialProvider(cfg SerialConfig) *SerialProvider {
	baud := cfg.BaudRate
	if baud <= 0 {
		baud = 115200
	}
	open := cfg.Open
	if open == nil {
		open = serial.Open
	}
	return &SerialProvider{
		path: cfg.Path,
		mode: &serial.Mode{BaudRate: baud},
		open: open,
	}
}

// Start opens the port and begins the read goroutine. An open failure is a
// fatal resource error.
func (p *SerialProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port != nil {
		return nil
	}
	port, err := p.open(p.path, p.mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", p.path, err)
	}
	p.port = port

	readCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.readLoop(readCtx, port)
	}()
	monitoring.Logf("serial provider reading from %s at %d baud", p.path, p.mode.BaudRate)
	return nil
}

func (p *SerialProvider) readLoop(ctx context.Context, port serial.Port) {
	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 64*1024), maxFrameLine)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		frame, err := skeleton.Decode(line)
		if err != nil {
			monitoring.Logf("serial provider: dropping malformed frame line: %v", err)
			continue
		}
		if frame.TimestampMS < p.lastTS {
			frame.TimestampMS = p.lastTS
		}
		p.lastTS = frame.TimestampMS
		p.buf.Put(frame)
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		monitoring.Logf("serial provider: read loop terminated: %v", err)
	}
}

// GetLatest returns the newest unconsumed frame, if any.
func (p *SerialProvider) GetLatest() *skeleton.Frame {
	return p.buf.Take()
}

// Stop closes the port and waits for the read goroutine to exit. Idempotent.
func (p *SerialProvider) Stop() {
	p.mu.Lock()
	port := p.port
	cancel := p.cancel
	p.port = nil
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if port != nil {
		// Closing the port unblocks the scanner's pending read.
		if err := port.Close(); err != nil {
			monitoring.Logf("serial provider: close failed: %v", err)
		}
	}
	p.wg.Wait()
}
