// Package collab maintains the persistent synchronization channel between
// one open draft and the room server. One goroutine owns the socket, reads
// frames in a loop, and pushes decoded protocol messages onto a channel;
// the state machine stays explicit and testable without a live socket on
// the other side of anything but the transport.
package collab

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"draftroom/internal/protocol"
)

// State of the channel. Transitions: Disconnected -> Connecting -> Open ->
// Disconnected.
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "disconnected"
	}
}

// Options tune a channel.
type Options struct {
	// Reconnect enables bounded exponential-backoff redial after a drop,
	// with a full room_state resync on each rejoin. Off by default: a
	// dropped channel otherwise stays down until the draft is reopened.
	Reconnect bool
	// MaxElapsed bounds the total time spent redialing before giving up.
	// Zero means 2 minutes.
	MaxElapsed time.Duration
	// PingInterval between protocol-level heartbeats. Zero means 30s.
	PingInterval time.Duration
}

// Channel is one (draft, user) synchronization connection.
type Channel struct {
	url  string
	opts Options

	mu    sync.Mutex
	state State
	conn  *websocket.Conn

	events chan protocol.Message
	done   chan struct{}
	once   sync.Once
}

// URL builds the channel endpoint from the API base URL, selecting ws or
// wss to match the base scheme.
func URL(base string, draftID int64, token string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch parsed.Scheme {
	case "https", "wss":
		parsed.Scheme = "wss"
	case "http", "ws":
		parsed.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	parsed.Path = strings.TrimRight(parsed.Path, "/") + fmt.Sprintf("/collab/ws/draft/%d", draftID)
	query := parsed.Query()
	query.Set("token", token)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// Dial opens the channel. The handshake happens synchronously so a bad
// credential or unreachable server fails here; after that the reader
// goroutine owns the socket until Close or a transport error.
func Dial(ctx context.Context, wsURL string, opts Options) (*Channel, error) {
	if opts.PingInterval == 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.MaxElapsed == 0 {
		opts.MaxElapsed = 2 * time.Minute
	}

	c := &Channel{
		url:    wsURL,
		opts:   opts,
		state:  Connecting,
		events: make(chan protocol.Message, 32),
		done:   make(chan struct{}),
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.setState(Disconnected)
		return nil, fmt.Errorf("dial sync channel: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.state = Open
	c.mu.Unlock()

	go c.run(ctx)
	return c, nil
}

// Events delivers inbound protocol messages in transport order. The
// channel is closed once the connection is gone for good.
func (c *Channel) Events() <-chan protocol.Message {
	return c.events
}

// State reports the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SendCursor reports the local cursor position. Silently dropped unless
// the channel is Open; there is no queuing.
func (c *Channel) SendCursor(position int) {
	c.send(protocol.Cursor(position))
}

// SendContent pushes the full canonical content after a local edit.
// Silently dropped unless the channel is Open.
func (c *Channel) SendContent(content string, cursorPosition int) {
	c.send(protocol.Content(content, cursorPosition))
}

// Close tears the channel down. Safe to call more than once.
func (c *Channel) Close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.state = Disconnected
		c.mu.Unlock()
	})
}

func (c *Channel) send(msg protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Open || c.conn == nil {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		return
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("collab: write %s: %v", msg.Type, err)
	}
}

// run reads frames until the connection drops, then either redials or
// shuts the events channel.
func (c *Channel) run(ctx context.Context) {
	defer close(c.events)

	for {
		c.readLoop(ctx)

		c.mu.Lock()
		c.conn = nil
		c.state = Disconnected
		c.mu.Unlock()

		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		if !c.opts.Reconnect {
			log.Printf("collab: sync channel closed")
			return
		}
		if !c.redial(ctx) {
			return
		}
	}
}

func (c *Channel) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	stopPing := make(chan struct{})
	defer close(stopPing)
	go c.pingLoop(stopPing)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case <-ctx.Done():
				// Shutdown, not a transport failure.
			default:
				log.Printf("collab: read: %v", err)
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			// One garbled message never kills the channel.
			continue
		}
		select {
		case c.events <- msg:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (c *Channel) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.send(protocol.Message{Type: protocol.TypePing})
		}
	}
}

// redial attempts to reestablish the connection with exponential backoff.
// Returns false once the budget is exhausted or the channel is closing.
func (c *Channel) redial(ctx context.Context) bool {
	c.setState(Connecting)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 15 * time.Second
	policy.MaxElapsedTime = c.opts.MaxElapsed

	for {
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			log.Printf("collab: reconnect budget exhausted")
			c.setState(Disconnected)
			return false
		}
		select {
		case <-c.done:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
		if err != nil {
			log.Printf("collab: redial: %v", err)
			continue
		}
		c.mu.Lock()
		c.conn = conn
		c.state = Open
		c.mu.Unlock()
		log.Printf("collab: reconnected")
		return true
	}
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
