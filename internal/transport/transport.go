// Package transport sends encoded skeleton frames to a downstream consumer,
// typically a game engine. Two variants are provided: a single-subscriber
// WebSocket server and a fire-and-forget UDP sender.
//
// The shared contract: Connect is idempotent; Send is best-effort and never
// surfaces a disconnect as an error (the frame is silently dropped and the
// capture loop stays live); Close is idempotent and releases all resources.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/posecast/posecast/internal/skeleton"
)

// Transport delivers frames to a consumer.
type Transport interface {
	// Connect prepares the transport. Calling it again after a successful
	// connect is a no-op.
	Connect(ctx context.Context) error
	// Send transmits one frame. Steady-state I/O failures are absorbed:
	// the frame is dropped, the failure logged, and nil returned.
	Send(ctx context.Context, frame *skeleton.Frame) error
	// Close releases the transport's resources. Safe to call repeatedly.
	Close() error
}

// SplitEndpoint parses a "host:port" endpoint, defaulting an empty host to
// 127.0.0.1. A missing or non-numeric port is a configuration error.
func SplitEndpoint(endpoint string) (host string, port int, err error) {
	h, p, err := net.SplitHostPort(endpoint)
	if err != nil {
		return "", 0, fmt.Errorf("endpoint must be host:port, got %q: %v", endpoint, err)
	}
	port, err = strconv.Atoi(p)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in endpoint %q", endpoint)
	}
	if h == "" {
		h = "127.0.0.1"
	}
	return h, port, nil
}
