package twin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pagi-labs/operator-console/internal/platform/httpx"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

type EventKind int

const (
	// EventStateChanged fires on every binary connected/not-connected
	// transition, never on intermediate states.
	EventStateChanged EventKind = iota
	// EventMessage carries a complete turn or a chunk-progress update.
	EventMessage
	// EventStatus carries a session-level status_update frame.
	EventStatus
)

type Event struct {
	Kind      EventKind
	Connected bool
	Message   *Message
	Status    string
	Details   string
}

// chunkBuffer accumulates one streamed turn. Sealed buffers are immutable;
// a chunk arriving after the seal is an invariant violation.
type chunkBuffer struct {
	content strings.Builder
	sealed  bool
}

// Client owns one duplex websocket to the digital-twin chat backend. It
// reconnects silently forever after transport errors; Close is terminal and
// a fresh conversation requires a fresh instance.
type Client struct {
	baseURL          string
	userID           string
	sessionID        string
	retryDelay       time.Duration
	handshakeTimeout time.Duration
	log              *logger.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	state   State
	closed  bool
	buffers map[string]*chunkBuffer

	events chan Event
	done   chan struct{}
}

type Options struct {
	// RetryDelay is the base reconnect delay; jittered per attempt.
	RetryDelay time.Duration
	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration
}

func NewClient(baseURL, userID, sessionID string, opts Options, logg *logger.Logger) *Client {
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		userID:           userID,
		sessionID:        sessionID,
		retryDelay:       opts.RetryDelay,
		handshakeTimeout: opts.HandshakeTimeout,
		log:              logg.With("service", "TwinClient", "session_id", sessionID),
		state:            StateDisconnected,
		buffers:          make(map[string]*chunkBuffer),
		events:           make(chan Event, 128),
		done:             make(chan struct{}),
	}
}

// SessionID reports the session this client was bound to at construction.
func (c *Client) SessionID() string { return c.sessionID }

// Events is the outbound channel of typed protocol events. It is closed
// when the client is closed; inbound events are delivered strictly in
// arrival order per connection.
func (c *Client) Events() <-chan Event { return c.events }

// Run supervises the connection until Close or ctx cancellation. Dial
// failures and dropped connections are retried forever with a jittered
// delay; they are surfaced only through EventStateChanged.
func (c *Client) Run(ctx context.Context) {
	defer close(c.events)
	url := fmt.Sprintf("%s/ws/chat/%s", c.baseURL, c.userID)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		c.setState(StateConnecting)
		dialer := websocket.Dialer{HandshakeTimeout: c.handshakeTimeout}
		conn, _, err := dialer.DialContext(ctx, url, nil)
		if err != nil {
			c.setState(StateDisconnected)
			c.log.Debug("Twin dial failed, will retry", "url", url, "error", err)
			if !c.sleepRetry(ctx) {
				return
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			conn.Close()
			return
		}
		c.conn = conn
		c.state = StateConnected
		c.mu.Unlock()

		c.log.Info("Twin connected", "url", url)
		c.emit(Event{Kind: EventStateChanged, Connected: true})

		c.readLoop(conn)

		c.mu.Lock()
		c.conn = nil
		wasClosed := c.closed
		c.state = StateDisconnected
		c.mu.Unlock()

		c.emit(Event{Kind: EventStateChanged, Connected: false})
		if wasClosed {
			return
		}
		c.log.Warn("Twin connection lost, reconnecting")
		if !c.sleepRetry(ctx) {
			return
		}
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) sleepRetry(ctx context.Context) bool {
	select {
	case <-time.After(httpx.JitterSleep(c.retryDelay)):
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Twin read error", "error", err)
			}
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame dispatches one inbound frame. Malformed or unrecognized
// frames are logged and dropped; later frames are unaffected.
func (c *Client) handleFrame(data []byte) {
	frame, err := parseFrame(data)
	if err != nil {
		c.log.Warn("Dropping protocol frame", "error", err)
		return
	}

	switch frame.Type {
	case frameStatusUpdate:
		c.emit(Event{Kind: EventStatus, Status: frame.Status, Details: frame.Details})

	case frameCompleteMessage:
		c.emit(Event{Kind: EventMessage, Message: &Message{
			ID:             frame.ID,
			Content:        frame.Content,
			Final:          frame.IsFinal,
			LatencyMs:      frame.LatencyMs,
			SourceMemories: frame.SourceMemories,
			IssuedCommand:  frame.IssuedCommand,
			Attribution:    frame.Attribution,
		}})

	case frameMessageChunk:
		c.mu.Lock()
		buf, ok := c.buffers[frame.ID]
		if !ok {
			buf = &chunkBuffer{}
			c.buffers[frame.ID] = buf
		}
		if buf.sealed {
			c.mu.Unlock()
			c.log.Warn("Chunk for sealed message ignored", "message_id", frame.ID)
			return
		}
		buf.content.WriteString(frame.ContentChunk)
		if frame.IsFinal {
			buf.sealed = true
		}
		content := buf.content.String()
		c.mu.Unlock()

		c.emit(Event{Kind: EventMessage, Message: &Message{
			ID:       frame.ID,
			Content:  content,
			Final:    frame.IsFinal,
			Streamed: true,
		}})
	}
}

// emit delivers in order; it blocks rather than reorders, but never past
// client teardown.
func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Send transmits one chat request. It reports failure instead of returning
// an error: not connected, serialization trouble and write failures all
// come back as false and never panic or block.
func (c *Client) Send(req ChatRequest) bool {
	c.mu.Lock()
	conn := c.conn
	ok := c.state == StateConnected && conn != nil && !c.closed
	c.mu.Unlock()
	if !ok {
		return false
	}

	data, err := json.Marshal(req)
	if err != nil {
		c.log.Error("Chat request serialization failed", "error", err)
		return false
	}
	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Warn("Chat request write failed", "error", err)
		// Force the read loop to notice so reconnection kicks in.
		conn.Close()
		return false
	}
	return true
}

// State reports the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected is the binary online flag observers render.
func (c *Client) Connected() bool { return c.State() == StateConnected }

// Close requests a manual disconnect. It is terminal for this instance:
// no reconnect attempt will follow and the events channel drains closed.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		conn.Close()
	}
}
