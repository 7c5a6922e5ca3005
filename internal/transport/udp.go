package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/posecast/posecast/internal/monitoring"
	"github.com/posecast/posecast/internal/skeleton"
)

// UDPTransport sends one datagram per frame to a fixed host:port. There is
// no acknowledgment, no retry, and no ordering guarantee beyond the
// network's own.
type UDPTransport struct {
	host string
	port int

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPTransport builds a UDP sender for the given "host:port" endpoint.
// Endpoint validation failures are fatal configuration errors.
func NewUDPTransport(endpoint string) (*UDPTransport, error) {
	host, port, err := SplitEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("udp transport: %w", err)
	}
	return &UDPTransport{host: host, port: port}, nil
}

// Connect opens the datagram socket. Idempotent.
func (t *UDPTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return nil
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(t.host, fmt.Sprint(t.port)))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %v", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("failed to open UDP socket: %v", err)
	}
	t.conn = conn
	monitoring.Logf("udp transport ready, sending to %s", addr)
	return nil
}

// Send transmits the frame as a single datagram. A send failure is logged
// and the frame dropped; the loop is never disturbed.
func (t *UDPTransport) Send(ctx context.Context, frame *skeleton.Frame) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return nil // not connected: silent drop per contract
	}

	payload, err := frame.Encode()
	if err != nil {
		monitoring.Logf("udp transport: failed to encode frame: %v", err)
		return nil
	}
	if _, err := conn.Write(payload); err != nil {
		monitoring.Logf("udp transport: send failed, frame dropped: %v", err)
	}
	return nil
}

// Close releases the socket. Idempotent.
func (t *UDPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
