package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pagi-labs/operator-console/internal/attribution"
	"github.com/pagi-labs/operator-console/internal/identity"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
	"github.com/pagi-labs/operator-console/internal/twin"
)

// ProtocolClient is what the controller needs from a live twin connection.
// Satisfied by *twin.Client; tests substitute fakes.
type ProtocolClient interface {
	Run(ctx context.Context)
	Events() <-chan twin.Event
	Send(req twin.ChatRequest) bool
	Connected() bool
	Close()
}

// ClientFactory builds a protocol client bound to one session id.
type ClientFactory func(sessionID string) ProtocolClient

type EntryKind string

const (
	EntryMessage EntryKind = "message"
	EntryStatus  EntryKind = "status"
)

// Entry is one transcript line: an agent turn or a status update.
type Entry struct {
	Kind    EntryKind     `json:"kind"`
	Message *twin.Message `json:"message,omitempty"`
	Status  string        `json:"status,omitempty"`
	Details string        `json:"details,omitempty"`
	At      time.Time     `json:"at"`
}

// ChatOptions are the optional generation knobs forwarded on a request.
type ChatOptions struct {
	MediaActive *bool
	UserName    string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	MaxMemory   *int
}

// Controller binds the identity store to exactly one live protocol client
// and owns the transcript and attribution state for the active session.
// All mutation happens inside its event handling under one mutex; a stale
// client generation can never resurrect discarded session state.
type Controller struct {
	ids     *identity.Store
	agg     *attribution.Aggregator
	factory ClientFactory
	log     *logger.Logger

	mu        sync.Mutex
	sessionID string
	client    ProtocolClient
	gen       int
	connected bool
	entries   []Entry
	history   map[string]*twin.Message

	runCtx    context.Context
	runCancel context.CancelFunc
}

func NewController(ids *identity.Store, agg *attribution.Aggregator, factory ClientFactory, logg *logger.Logger) *Controller {
	return &Controller{
		ids:     ids,
		agg:     agg,
		factory: factory,
		log:     logg.With("service", "SessionController"),
		history: make(map[string]*twin.Message),
	}
}

// Start binds the baseline identity pair and brings up the first client.
// The first observed session id is a baseline, not a change: no teardown
// or state clearing happens here.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return
	}
	c.runCtx, c.runCancel = context.WithCancel(ctx)
	c.sessionID = c.ids.SessionID()
	_ = c.ids.UserID()
	c.spawnClientLocked(c.sessionID)
}

// Stop tears down the live client and stops event delivery.
func (c *Controller) Stop() {
	c.mu.Lock()
	cli := c.client
	c.client = nil
	c.gen++
	cancel := c.runCancel
	c.mu.Unlock()
	if cli != nil {
		cli.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// spawnClientLocked constructs the one live client for sessionID and starts
// its run and pump goroutines. Caller holds c.mu.
func (c *Controller) spawnClientLocked(sessionID string) {
	cli := c.factory(sessionID)
	c.client = cli
	gen := c.gen
	go cli.Run(c.runCtx)
	go c.pump(cli, gen)
}

func (c *Controller) pump(cli ProtocolClient, gen int) {
	for ev := range cli.Events() {
		c.handleEvent(ev, gen)
	}
}

func (c *Controller) handleEvent(ev twin.Event, gen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		// Late delivery from a torn-down client instance.
		c.log.Debug("Dropping event from stale client generation", "gen", gen, "current", c.gen)
		return
	}

	switch ev.Kind {
	case twin.EventStateChanged:
		c.connected = ev.Connected

	case twin.EventStatus:
		if isReadyStatus(ev.Status) {
			c.purgeErrorEntriesLocked()
		}
		c.entries = append(c.entries, Entry{
			Kind:    EntryStatus,
			Status:  ev.Status,
			Details: ev.Details,
			At:      time.Now().UTC(),
		})

	case twin.EventMessage:
		msg := ev.Message
		if msg == nil || msg.ID == "" {
			return
		}
		// Attribution lands in the aggregator before the message is
		// visible in history.
		if msg.Attribution != nil {
			c.agg.Record(msg.ID, *msg.Attribution)
		}
		if prev, ok := c.history[msg.ID]; ok {
			*prev = *msg
			return
		}
		stored := *msg
		c.history[msg.ID] = &stored
		c.entries = append(c.entries, Entry{
			Kind:    EntryMessage,
			Message: &stored,
			At:      time.Now().UTC(),
		})
	}
}

// purgeErrorEntriesLocked drops stale error banners once the connection
// reports itself ready again; normal transcript lines survive.
func (c *Controller) purgeErrorEntriesLocked() {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.Kind == EntryStatus && isErrorStatus(e.Status) {
			continue
		}
		kept = append(kept, e)
	}
	c.entries = kept
}

func isErrorStatus(status string) bool {
	s := strings.ToLower(status)
	return s == "error" || strings.Contains(s, "error") || strings.HasSuffix(s, "_failed")
}

func isReadyStatus(status string) bool {
	switch strings.ToLower(status) {
	case "connected", "ready", "session_ready":
		return true
	}
	return false
}

// SendChat builds and transmits one operator turn. A failed send appends
// exactly one locally synthesized error status entry and is not retried.
func (c *Controller) SendChat(text string, opts ChatOptions) bool {
	c.mu.Lock()
	cli := c.client
	sessionID := c.sessionID
	gen := c.gen
	c.mu.Unlock()

	req := twin.ChatRequest{
		SessionID:   sessionID,
		UserID:      c.ids.UserID(),
		Timestamp:   time.Now().UTC(),
		Message:     text,
		MediaActive: opts.MediaActive,
		UserName:    opts.UserName,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
		MaxMemory:   opts.MaxMemory,
	}

	if cli == nil || !cli.Send(req) {
		c.mu.Lock()
		// The session may have been switched while Send was in flight;
		// the failure banner belongs to the old transcript, not the new one.
		if gen == c.gen {
			c.entries = append(c.entries, Entry{
				Kind:    EntryStatus,
				Status:  "error",
				Details: "message could not be sent: twin connection offline; resend when online",
				At:      time.Now().UTC(),
			})
		}
		c.mu.Unlock()
		return false
	}
	return true
}

// NewSession starts a fresh conversation context and returns its id.
func (c *Controller) NewSession() string {
	id := c.ids.NewSession()
	c.switchTo(id, false)
	return id
}

// SwitchSession adopts an existing session id. Switching to the current id
// is a no-op.
func (c *Controller) SwitchSession(id string) {
	if id == "" {
		return
	}
	c.switchTo(id, true)
}

// switchTo discards session-scoped state, tears down the old client and
// binds a fresh one. State is cleared before the new client exists, so no
// message from the old session can ever land in the new one.
func (c *Controller) switchTo(id string, persist bool) {
	c.mu.Lock()
	if id == c.sessionID || c.runCtx == nil {
		c.mu.Unlock()
		return
	}
	if persist {
		c.ids.SetSession(id)
	}

	c.entries = nil
	c.history = make(map[string]*twin.Message)
	c.agg.Reset()
	c.connected = false

	old := c.client
	c.gen++
	c.sessionID = id
	c.spawnClientLocked(id)
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	c.log.Info("Switched session", "session_id", id)
}

// SessionID reports the active session id.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Connected reports the binary twin connection flag.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// History returns a copy of the message-id lookup for the active session.
func (c *Controller) History() map[string]twin.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]twin.Message, len(c.history))
	for id, m := range c.history {
		out[id] = *m
	}
	return out
}

// Transcript returns a copy of the ordered transcript. Message structs are
// copied under the lock: the stored ones keep mutating as chunk progress
// arrives, and callers marshal outside the lock.
func (c *Controller) Transcript() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e
		if e.Message != nil {
			m := *e.Message
			out[i].Message = &m
		}
	}
	return out
}

// Attribution exposes the aggregator for read-side consumers.
func (c *Controller) Attribution() *attribution.Aggregator {
	return c.agg
}
