package session

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pagi-labs/operator-console/internal/attribution"
	"github.com/pagi-labs/operator-console/internal/identity"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
	"github.com/pagi-labs/operator-console/internal/twin"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

// fakeClient stands in for a live twin connection. Events are injected by
// the test; the channel is closed explicitly via finish.
type fakeClient struct {
	sessionID string
	events    chan twin.Event

	mu        sync.Mutex
	sendOK    bool
	sent      []twin.ChatRequest
	sendCalls int
	sendGate  chan struct{}
	closed    bool
}

func newFakeClient(sessionID string) *fakeClient {
	return &fakeClient{sessionID: sessionID, events: make(chan twin.Event, 16), sendOK: true}
}

func (f *fakeClient) Run(ctx context.Context)   { <-ctx.Done() }
func (f *fakeClient) Events() <-chan twin.Event { return f.events }
func (f *fakeClient) emit(ev twin.Event)        { f.events <- ev }
func (f *fakeClient) finish()                   { close(f.events) }

func (f *fakeClient) Send(req twin.ChatRequest) bool {
	f.mu.Lock()
	f.sendCalls++
	gate := f.sendGate
	ok := f.sendOK && !f.closed
	if ok {
		f.sent = append(f.sent, req)
	}
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return ok
}

func (f *fakeClient) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sendOK && !f.closed
}

func (f *fakeClient) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeFactory records every client it hands out.
type fakeFactory struct {
	mu      sync.Mutex
	clients []*fakeClient
}

func (ff *fakeFactory) build(sessionID string) ProtocolClient {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	cli := newFakeClient(sessionID)
	ff.clients = append(ff.clients, cli)
	return cli
}

func (ff *fakeFactory) latest(t *testing.T) *fakeClient {
	t.Helper()
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.clients) == 0 {
		t.Fatal("no client was built")
	}
	return ff.clients[len(ff.clients)-1]
}

func (ff *fakeFactory) count() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.clients)
}

func newTestController(t *testing.T) (*Controller, *fakeFactory) {
	t.Helper()
	ids := identity.NewStore(identity.NewMemoryKV(), mustTestLogger(t))
	agg := attribution.NewAggregator()
	ff := &fakeFactory{}
	c := NewController(ids, agg, ff.build, mustTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c.Start(ctx)
	t.Cleanup(c.Stop)
	return c, ff
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartBindsBaselineSessionWithoutClearing(t *testing.T) {
	c, ff := newTestController(t)
	if c.SessionID() == "" {
		t.Fatal("controller must bind a baseline session id")
	}
	if ff.count() != 1 {
		t.Fatalf("expected exactly one client, got %d", ff.count())
	}
	if ff.latest(t).sessionID != c.SessionID() {
		t.Fatal("client must be bound to the baseline session id")
	}
}

func TestMessageUpdatesInPlace(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()

	cli.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "m1", Content: "par", Streamed: true}})
	waitFor(t, func() bool { return len(c.Transcript()) == 1 }, "first progress entry")

	cli.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "m1", Content: "partial done", Final: true, Streamed: true}})
	waitFor(t, func() bool {
		h := c.History()
		return h["m1"].Final
	}, "sealed message in history")

	entries := c.Transcript()
	if len(entries) != 1 {
		t.Fatalf("progress updates must not duplicate entries, got %d", len(entries))
	}
	if entries[0].Message.Content != "partial done" || !entries[0].Message.Final {
		t.Fatalf("entry must reflect the latest revision: %+v", entries[0].Message)
	}
}

func TestAttributionVisibleWithMessage(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()

	vec := attribution.Vector{Mind: 60, Body: 20, Heart: 10, Soul: 10}
	cli.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "m1", Content: "done", Final: true, Attribution: &vec}})

	waitFor(t, func() bool { _, ok := c.History()["m1"]; return ok }, "message in history")
	avg := c.Attribution().SessionAverage()
	if avg == nil {
		t.Fatal("attribution must be aggregated no later than message exposure")
	}
	if avg.Mind != 60 || avg.Count != 1 {
		t.Fatalf("unexpected session average: %+v", avg)
	}
}

func TestFailedSendAppendsOneErrorEntry(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()
	cli.mu.Lock()
	cli.sendOK = false
	cli.mu.Unlock()

	if c.SendChat("hello", ChatOptions{}) {
		t.Fatal("send must report failure when the client refuses")
	}
	entries := c.Transcript()
	if len(entries) != 1 {
		t.Fatalf("exactly one error entry per failed attempt, got %d", len(entries))
	}
	if entries[0].Kind != EntryStatus || entries[0].Status != "error" {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}

	// No retry happens behind the operator's back.
	cli.mu.Lock()
	attempts := len(cli.sent)
	cli.mu.Unlock()
	if attempts != 0 {
		t.Fatalf("refused send must not be retried, got %d deliveries", attempts)
	}
}

func TestSendChatCarriesSessionIdentity(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()

	if !c.SendChat("status report", ChatOptions{UserName: "operator"}) {
		t.Fatal("send must succeed")
	}
	cli.mu.Lock()
	defer cli.mu.Unlock()
	if len(cli.sent) != 1 {
		t.Fatalf("expected one delivery, got %d", len(cli.sent))
	}
	req := cli.sent[0]
	if req.SessionID != c.SessionID() || req.UserID == "" || req.Message != "status report" {
		t.Fatalf("request missing identity fields: %+v", req)
	}
	if req.Timestamp.IsZero() || req.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp must be set in UTC: %v", req.Timestamp)
	}
}

func TestReadyStatusPurgesErrorEntries(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()
	cli.mu.Lock()
	cli.sendOK = false
	cli.mu.Unlock()

	c.SendChat("lost", ChatOptions{})
	cli.emit(twin.Event{Kind: twin.EventStatus, Status: "thinking"})
	waitFor(t, func() bool { return len(c.Transcript()) == 2 }, "error and status entries")

	cli.emit(twin.Event{Kind: twin.EventStatus, Status: "session_ready"})
	waitFor(t, func() bool {
		for _, e := range c.Transcript() {
			if e.Status == "session_ready" {
				return true
			}
		}
		return false
	}, "ready status entry")

	for _, e := range c.Transcript() {
		if e.Kind == EntryStatus && e.Status == "error" {
			t.Fatal("ready status must purge stale error entries")
		}
	}
	var foundThinking bool
	for _, e := range c.Transcript() {
		if e.Status == "thinking" {
			foundThinking = true
		}
	}
	if !foundThinking {
		t.Fatal("purge must keep non-error entries")
	}
}

func TestStateEventsDriveConnectedFlag(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()

	cli.emit(twin.Event{Kind: twin.EventStateChanged, Connected: true})
	waitFor(t, c.Connected, "connected flag")

	cli.emit(twin.Event{Kind: twin.EventStateChanged, Connected: false})
	waitFor(t, func() bool { return !c.Connected() }, "disconnected flag")
}

func TestSwitchSessionClearsStateAndDropsStaleEvents(t *testing.T) {
	c, ff := newTestController(t)
	old := ff.latest(t)

	vec := attribution.Vector{Mind: 100}
	old.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "m1", Content: "old world", Final: true, Attribution: &vec}})
	old.emit(twin.Event{Kind: twin.EventStateChanged, Connected: true})
	waitFor(t, c.Connected, "old client connected")

	c.SwitchSession("sess-next")

	if got := c.SessionID(); got != "sess-next" {
		t.Fatalf("session id: want=%q got=%q", "sess-next", got)
	}
	if !old.isClosed() {
		t.Fatal("old client must be closed on switch")
	}
	if len(c.Transcript()) != 0 || len(c.History()) != 0 {
		t.Fatal("switch must discard the old transcript")
	}
	if c.Attribution().SessionAverage() != nil {
		t.Fatal("switch must reset session attribution")
	}
	if c.Connected() {
		t.Fatal("connected flag must drop until the new client reports in")
	}
	if ff.count() != 2 || ff.latest(t).sessionID != "sess-next" {
		t.Fatal("a fresh client must be bound to the new session id")
	}

	// A message the torn-down client delivers late must be ignored.
	old.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "ghost", Content: "from the past", Final: true}})
	old.finish()
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.History()["ghost"]; ok {
		t.Fatal("stale client events must not leak into the new session")
	}

	ff.latest(t).finish()
}

func TestTranscriptIsolatedFromLaterUpdates(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()

	cli.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "m1", Content: "first", Streamed: true}})
	waitFor(t, func() bool { return len(c.Transcript()) == 1 }, "first entry")

	snapshot := c.Transcript()
	cli.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "m1", Content: "first and second", Final: true, Streamed: true}})
	waitFor(t, func() bool { return c.History()["m1"].Final }, "updated message")

	if snapshot[0].Message.Content != "first" {
		t.Fatalf("returned transcript must not alias live state: %q", snapshot[0].Message.Content)
	}

	// Mutating the returned copy must not reach the controller either.
	snapshot = c.Transcript()
	snapshot[0].Message.Content = "tampered"
	if got := c.Transcript()[0].Message.Content; got != "first and second" {
		t.Fatalf("controller state leaked through a returned copy: %q", got)
	}
}

func TestTranscriptReadableDuringStreaming(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			cli.emit(twin.Event{Kind: twin.EventMessage, Message: &twin.Message{ID: "m1", Content: strings.Repeat("x", i+1), Streamed: true}})
		}
	}()

	for readerDone := false; !readerDone; {
		select {
		case <-done:
			readerDone = true
		default:
		}
		for _, e := range c.Transcript() {
			if e.Message != nil && len(e.Message.Content) == 0 {
				t.Fatal("observed an empty streamed message")
			}
		}
	}
}

func TestFailedSendAfterSwitchLeavesNewTranscriptClean(t *testing.T) {
	c, ff := newTestController(t)
	old := ff.latest(t)
	old.mu.Lock()
	old.sendOK = false
	old.sendGate = make(chan struct{})
	old.mu.Unlock()

	sendDone := make(chan bool, 1)
	go func() { sendDone <- c.SendChat("into the void", ChatOptions{}) }()
	waitFor(t, func() bool {
		old.mu.Lock()
		defer old.mu.Unlock()
		return old.sendCalls == 1
	}, "send in flight")

	c.SwitchSession("sess-next")
	close(old.sendGate)

	if sent := <-sendDone; sent {
		t.Fatal("send against the old session must report failure")
	}
	for _, e := range c.Transcript() {
		if e.Kind == EntryStatus && e.Status == "error" {
			t.Fatal("old session's failure banner must not land in the new transcript")
		}
	}

	old.finish()
	ff.latest(t).finish()
}

func TestSwitchToCurrentSessionIsNoop(t *testing.T) {
	c, ff := newTestController(t)
	cli := ff.latest(t)
	defer cli.finish()

	cli.emit(twin.Event{Kind: twin.EventStatus, Status: "thinking"})
	waitFor(t, func() bool { return len(c.Transcript()) == 1 }, "status entry")

	c.SwitchSession(c.SessionID())
	if ff.count() != 1 {
		t.Fatal("switching to the current session must not rebuild the client")
	}
	if len(c.Transcript()) != 1 {
		t.Fatal("switching to the current session must keep the transcript")
	}
}

func TestNewSessionRotatesAndPersists(t *testing.T) {
	c, ff := newTestController(t)
	first := c.SessionID()

	id := c.NewSession()
	if id == "" || id == first {
		t.Fatalf("new session must mint a fresh id, got %q", id)
	}
	if c.SessionID() != id {
		t.Fatal("controller must adopt the new session id")
	}
	if ff.count() != 2 || ff.latest(t).sessionID != id {
		t.Fatal("a fresh client must be bound to the new session")
	}

	ff.mu.Lock()
	for _, cli := range ff.clients {
		cli.finish()
	}
	ff.mu.Unlock()
}
