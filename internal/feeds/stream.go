package feeds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pagi-labs/operator-console/internal/platform/httpx"
	"github.com/pagi-labs/operator-console/internal/platform/logger"
)

// Item is one retained feed event. Unnamed SSE events surface with the
// generic kind "message".
type Item struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    time.Time       `json:"at"`
}

// Handler observes each well-formed event as it arrives, after the item has
// been appended to the window.
type Handler func(event string, data json.RawMessage)

// Stream is a one-way server-push client with the same reconnection
// contract as the chat client minus the outbound path: retry forever with a
// jittered delay unless closed, expose a binary connected flag, and parse
// every payload defensively. Retained history is a fixed-size sliding
// window so a long-lived console does not grow without bound.
type Stream struct {
	name       string
	url        string
	window     int
	retryDelay time.Duration
	client     *http.Client
	handler    Handler
	log        *logger.Logger

	mu        sync.Mutex
	connected bool
	closed    bool
	items     []Item

	done chan struct{}
}

type StreamOptions struct {
	Window     int
	RetryDelay time.Duration
	Handler    Handler
	HTTPClient *http.Client
}

func NewStream(name, url string, opts StreamOptions, logg *logger.Logger) *Stream {
	if opts.Window <= 0 {
		opts.Window = 256
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	return &Stream{
		name:       name,
		url:        url,
		window:     opts.Window,
		retryDelay: opts.RetryDelay,
		client:     opts.HTTPClient,
		handler:    opts.Handler,
		log:        logg.With("service", "FeedStream", "feed", name),
		done:       make(chan struct{}),
	}
}

// Run connects and consumes events until ctx is cancelled or Close is
// called. Any transport or protocol error flips the feed offline and
// schedules a retry; nothing propagates to the caller.
func (s *Stream) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := s.consume(ctx)
		s.setConnected(false)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, io.EOF) {
			s.log.Debug("Feed stream interrupted, will retry", "error", err)
		}
		select {
		case <-time.After(httpx.JitterSleep(s.retryDelay)):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed endpoint returned %d", resp.StatusCode)
	}

	s.setConnected(true)
	s.log.Info("Feed connected", "url", s.url)

	return streamSSE(resp.Body, func(event, data string) error {
		s.ingest(event, data)
		return nil
	})
}

// ingest validates and retains one event. Malformed payloads are logged and
// dropped; they never interrupt the stream.
func (s *Stream) ingest(event, data string) {
	if event == "" {
		event = "message"
	}
	raw := json.RawMessage(data)
	if !json.Valid(raw) {
		s.log.Warn("Dropping malformed feed payload", "event", event)
		return
	}

	item := Item{Event: event, Data: raw, At: time.Now().UTC()}
	s.mu.Lock()
	s.items = append(s.items, item)
	if len(s.items) > s.window {
		s.items = s.items[len(s.items)-s.window:]
	}
	handler := s.handler
	s.mu.Unlock()

	if handler != nil {
		handler(event, raw)
	}
}

func (s *Stream) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

// Connected is the binary online flag for this feed.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Recent returns a copy of the retained window, oldest first.
func (s *Stream) Recent() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Close stops the feed permanently; Run returns and no further events are
// delivered.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}

// streamSSE reads text/event-stream lines from r and invokes onEvent per
// complete event. Comment lines are skipped; a blank line terminates the
// pending event.
func streamSSE(r io.Reader, onEvent func(event string, data string) error) error {
	br := bufio.NewReader(r)
	var (
		eventName string
		dataLines []string
	)

	flush := func() error {
		if len(dataLines) == 0 {
			eventName = ""
			return nil
		}
		data := strings.Join(dataLines, "\n")
		dataLines = nil
		ev := eventName
		eventName = ""
		if onEvent == nil {
			return nil
		}
		return onEvent(ev, data)
	}

	for {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				_ = flush()
				return nil
			}
			return err
		}
		line = strings.TrimRight(line, "\r\n")

		// Blank line ends event.
		if line == "" {
			if err := flush(); err != nil {
				return err
			}
			continue
		}

		// Comment.
		if strings.HasPrefix(line, ":") {
			continue
		}

		if strings.HasPrefix(line, "event:") {
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}

		if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			continue
		}
	}
}
