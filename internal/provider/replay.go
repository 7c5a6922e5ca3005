package provider

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/posecast/posecast/internal/capture"
	"github.com/posecast/posecast/internal/monitoring"
	"github.com/posecast/posecast/internal/skeleton"
)

// ReplayConfig configures a ReplayProvider.
type ReplayConfig struct {
	// Path is a pcap capture of pose frame datagrams.
	Path string
	// UDPPort filters the capture to datagrams addressed to this port.
	UDPPort int
	// Loop restarts playback from the beginning at end of file.
	Loop bool
}

// ReplayProvider replays recorded UDP pose datagrams from a pcap file,
// pacing playback by the original capture timestamps. Useful for developing
// against the streamer without a tracker attached.
type ReplayProvider struct {
	cfg ReplayConfig

	buf    capture.LatestBuffer
	lastTS int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewReplayProvider builds a provider replaying the given capture file.
func NewReplayProvider(cfg ReplayConfig) *ReplayProvider {
	return &ReplayProvider{cfg: cfg}
}

// Start validates the capture file and begins playback. Idempotent.
func (p *ReplayProvider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	// Open once up front so a bad path fails Start instead of the first
	// playback pass.
	f, err := os.Open(p.cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to open capture file %s: %w", p.cfg.Path, err)
	}
	if _, err := pcapgo.NewReader(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to read capture file %s: %w", p.cfg.Path, err)
	}
	f.Close()

	playCtx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.started = true
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			if err := p.playOnce(playCtx); err != nil {
				if playCtx.Err() == nil {
					monitoring.Logf("replay provider: playback stopped: %v", err)
				}
				return
			}
			if !p.cfg.Loop || playCtx.Err() != nil {
				return
			}
			monitoring.Logf("replay provider: looping %s", p.cfg.Path)
		}
	}()
	monitoring.Logf("replay provider playing %s (udp port %d, loop=%v)", p.cfg.Path, p.cfg.UDPPort, p.cfg.Loop)
	return nil
}

// playOnce streams through the capture a single time, sleeping the recorded
// inter-packet gaps.
func (p *ReplayProvider) playOnce(ctx context.Context) error {
	f, err := os.Open(p.cfg.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return err
	}

	var prevCapture time.Time
	for {
		data, ci, err := reader.ReadPacketData()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		payload, ok := p.udpPayload(data, reader.LinkType())
		if !ok {
			continue
		}

		if !prevCapture.IsZero() {
			if gap := ci.Timestamp.Sub(prevCapture); gap > 0 {
				select {
				case <-time.After(gap):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		prevCapture = ci.Timestamp

		frame, err := skeleton.Decode(payload)
		if err != nil {
			monitoring.Logf("replay provider: dropping malformed datagram: %v", err)
			continue
		}
		if frame.TimestampMS < p.lastTS {
			frame.TimestampMS = p.lastTS
		}
		p.lastTS = frame.TimestampMS
		p.buf.Put(frame)
	}
}

// udpPayload extracts the UDP payload from a raw link-layer packet,
// filtering by destination port when one is configured.
func (p *ReplayProvider) udpPayload(data []byte, linkType layers.LinkType) ([]byte, bool) {
	packet := gopacket.NewPacket(data, linkType, gopacket.Default)
	udpLayer := packet.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil, false
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil, false
	}
	if p.cfg.UDPPort != 0 && int(udp.DstPort) != p.cfg.UDPPort {
		return nil, false
	}
	if len(udp.Payload) == 0 {
		return nil, false
	}
	return udp.Payload, true
}

// GetLatest returns the newest unconsumed frame, if any.
func (p *ReplayProvider) GetLatest() *skeleton.Frame {
	return p.buf.Take()
}

// Stop halts playback. Idempotent.
func (p *ReplayProvider) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.started = false
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
}
