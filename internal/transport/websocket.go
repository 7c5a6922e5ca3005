package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/posecast/posecast/internal/monitoring"
	"github.com/posecast/posecast/internal/skeleton"
)

// writeTimeout bounds a single frame write so one stalled client cannot
// wedge the capture loop for more than a tick or two.
const writeTimeout = 5 * time.Second

// WSServerTransport is a WebSocket server that streams frames to at most one
// subscriber. A new connection replaces the previous handle
// (last-connection-wins); the prior socket is left to its own disconnect
// handling rather than being forcibly terminated. Sends with no subscriber,
// or onto a broken subscriber, are silent drops.
type WSServerTransport struct {
	host string
	port int
	path string // normalized match path; empty accepts any path

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	current  *wsClient
}

type wsClient struct {
	id   string
	conn *websocket.Conn
}

// NewWSServerTransport builds a WebSocket server transport for an endpoint
// of the form "host:port" or "host:port/path". Endpoint validation failures
// are fatal configuration errors.
func NewWSServerTransport(endpoint string) (*WSServerTransport, error) {
	hostport := endpoint
	matchPath := ""
	if i := strings.Index(endpoint, "/"); i >= 0 {
		hostport, matchPath = endpoint[:i], endpoint[i:]
	}
	host, port, err := SplitEndpoint(hostport)
	if err != nil {
		return nil, fmt.Errorf("websocket transport: %w", err)
	}
	if matchPath != "" {
		matchPath = normalizePath(matchPath)
	}
	return &WSServerTransport{host: host, port: port, path: matchPath}, nil
}

// normalizePath cleans a URL path so that "/pose", "pose" and "/pose/"
// all compare equal.
func normalizePath(p string) string {
	p = path.Clean("/" + p)
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// Connect binds the listen socket and starts serving upgrade requests.
// Idempotent; a bind failure is a fatal resource error.
func (t *WSServerTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(t.host, fmt.Sprint(t.port)))
	if err != nil {
		return fmt.Errorf("websocket transport: failed to bind %s:%d: %w", t.host, t.port, err)
	}
	t.listener = ln
	t.server = &http.Server{Handler: http.HandlerFunc(t.handleUpgrade)}
	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("websocket transport: server stopped: %v", err)
		}
	}(t.server)
	monitoring.Logf("websocket transport listening on %s (path %q)", ln.Addr(), t.path)
	return nil
}

// Addr returns the bound listen address, or nil before Connect. Useful when
// the configured port is 0.
func (t *WSServerTransport) Addr() net.Addr {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *WSServerTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Consumers are game engines on arbitrary hosts; the subscriber
		// socket is not a browser security boundary.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		monitoring.Logf("websocket transport: upgrade failed: %v", err)
		return
	}

	if t.path != "" && normalizePath(r.URL.Path) != t.path {
		monitoring.Logf("websocket transport: rejecting subscriber on unexpected path %q", r.URL.Path)
		c.Close(websocket.StatusPolicyViolation, fmt.Sprintf("unexpected path %q", r.URL.Path))
		return
	}

	client := &wsClient{id: uuid.NewString(), conn: c}
	t.adopt(client)

	// The server never reads application data; CloseRead yields a context
	// that ends when the subscriber disconnects.
	readCtx := c.CloseRead(context.Background())
	<-readCtx.Done()
	t.release(client)
	c.Close(websocket.StatusNormalClosure, "")
	monitoring.Logf("websocket transport: subscriber %s disconnected", client.id)
}

// adopt installs a new subscriber, replacing any previous handle.
// Last-connection-wins: the replaced socket keeps running until its own
// disconnect handling fires.
func (t *WSServerTransport) adopt(client *wsClient) {
	t.mu.Lock()
	prev := t.current
	t.current = client
	t.mu.Unlock()
	if prev != nil {
		monitoring.Logf("websocket transport: subscriber %s replaces %s", client.id, prev.id)
	} else {
		monitoring.Logf("websocket transport: subscriber %s connected", client.id)
	}
}

// release clears the tracked subscriber if it is still the given one.
func (t *WSServerTransport) release(client *wsClient) {
	t.mu.Lock()
	if t.current == client {
		t.current = nil
	}
	t.mu.Unlock()
}

// Send writes one frame to the current subscriber, if any. A write failure
// clears the tracked handle so subsequent sends keep dropping until a new
// client attaches.
func (t *WSServerTransport) Send(ctx context.Context, frame *skeleton.Frame) error {
	t.mu.Lock()
	client := t.current
	t.mu.Unlock()
	if client == nil {
		return nil // no subscriber: silent drop per contract
	}

	payload, err := frame.Encode()
	if err != nil {
		monitoring.Logf("websocket transport: failed to encode frame: %v", err)
		return nil
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := client.conn.Write(writeCtx, websocket.MessageText, payload); err != nil {
		monitoring.Logf("websocket transport: send to %s failed, dropping subscriber: %v", client.id, err)
		t.release(client)
		client.conn.Close(websocket.StatusNormalClosure, "send failed")
	}
	return nil
}

// Close shuts the server down and disconnects the current subscriber.
// Idempotent.
func (t *WSServerTransport) Close() error {
	t.mu.Lock()
	server := t.server
	current := t.current
	t.server = nil
	t.listener = nil
	t.current = nil
	t.mu.Unlock()

	if current != nil {
		current.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	if server == nil {
		return nil
	}
	return server.Close()
}
