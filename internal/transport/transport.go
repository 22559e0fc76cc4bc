// Package transport carries a terminal session over a WebSocket: one
// connection attempt per Transport, text frames out, text chunks in, and
// every lifecycle change reported as an Event on a single channel.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/Partho99/devops-learner/internal/logging"
	"github.com/Partho99/devops-learner/internal/logutil"
)

var (
	// ErrNotConnected is returned by Send when the transport is not open.
	ErrNotConnected = errors.New("terminal not connected")
	// ErrAlreadyStarted is returned by a second call to Connect.
	ErrAlreadyStarted = errors.New("transport already started")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("transport closed")
)

const (
	// DefaultReadLimit is the largest inbound frame accepted (1 MB).
	DefaultReadLimit = 1 << 20
	// DefaultEventBuffer is the capacity of the event channel.
	DefaultEventBuffer = 64
)

// EventType identifies what happened on the connection.
type EventType int

const (
	EventOpen EventType = iota + 1
	EventMessage
	EventClose
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventClose:
		return "close"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered on the channel returned by Events. Data is set for
// EventMessage, Err for EventError.
type Event struct {
	Type EventType
	Data string
	Err  error
}

// Options tune a Transport. The zero value is usable.
type Options struct {
	// HandshakeTimeout bounds the dial. Zero waits as long as the context allows.
	HandshakeTimeout time.Duration
	// ReadLimit caps inbound frame size. Zero means DefaultReadLimit.
	ReadLimit int64
	// HTTPClient is used for the handshake when set.
	HTTPClient *http.Client
	// Header is sent with the handshake request.
	Header http.Header
	// EventBuffer is the event channel capacity. Zero means DefaultEventBuffer.
	EventBuffer int
}

// Transport is a single WebSocket connection to a terminal server.
//
// Events are produced by one background goroutine and must be consumed by one
// reader. The channel is closed after the terminal event (EventClose or
// EventError), which is delivered at most once.
type Transport struct {
	opts   Options
	logger zerolog.Logger
	events chan Event

	mu          sync.Mutex
	state       State
	transitions transitionLog
	conn        *websocket.Conn
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}

	closing   chan struct{}
	closeOnce sync.Once
}

// New creates an idle transport.
func New(opts Options) *Transport {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	return &Transport{
		opts:    opts,
		logger:  logging.For("transport"),
		events:  make(chan Event, opts.EventBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
}

// Connect starts the handshake with url in the background and returns
// immediately. The outcome arrives as EventOpen or EventError. Cancelling
// ctx tears the connection down.
func (t *Transport) Connect(ctx context.Context, url string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrAlreadyStarted
	}
	select {
	case <-t.closing:
		return ErrClosed
	default:
	}

	t.started = true
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.setStateLocked(StateConnecting, "dialing "+url)

	go t.run(runCtx, url)
	return nil
}

// Send writes text followed by a newline as one text frame.
func (t *Transport) Send(ctx context.Context, text string) error {
	t.mu.Lock()
	conn, state := t.conn, t.state
	t.mu.Unlock()

	if state != StateOpen || conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(text+"\n")); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Events returns the channel on which lifecycle events are delivered.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// State returns the current state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Transitions returns the recent state changes, oldest first.
func (t *Transport) Transitions() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitions.history()
}

// Close releases the connection and waits for the background goroutine to
// exit. It is safe to call more than once and from any goroutine.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		close(t.closing)

		t.mu.Lock()
		if !t.state.Terminal() {
			t.setStateLocked(StateClosed, "closed locally")
		}
		conn, cancel, started := t.conn, t.cancel, t.started
		t.mu.Unlock()

		if conn != nil {
			conn.Close(websocket.StatusNormalClosure, "")
		}
		if cancel != nil {
			cancel()
		}
		if started {
			<-t.done
		} else {
			close(t.events)
		}
	})
}

func (t *Transport) run(ctx context.Context, url string) {
	defer close(t.done)
	defer close(t.events)

	dialCtx := ctx
	if t.opts.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.opts.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, url, &websocket.DialOptions{
		HTTPClient: t.opts.HTTPClient,
		HTTPHeader: t.opts.Header,
	})
	if err != nil {
		if ctx.Err() != nil {
			t.finish(StateClosed, Event{Type: EventClose})
			return
		}
		t.finish(StateErrored, Event{Type: EventError, Err: fmt.Errorf("dial %s: %w", url, err)})
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(t.opts.ReadLimit)

	t.mu.Lock()
	if t.state != StateConnecting {
		// Closed while the handshake was in flight.
		t.mu.Unlock()
		t.finish(StateClosed, Event{Type: EventClose})
		return
	}
	t.conn = conn
	t.setStateLocked(StateOpen, "handshake complete")
	t.mu.Unlock()
	t.emit(Event{Type: EventOpen})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.readFailed(ctx, err)
			return
		}
		t.emit(Event{Type: EventMessage, Data: string(data)})
	}
}

// readFailed classifies the error that ended the read loop. A close
// handshake with a normal or going-away status, a local Close and a
// cancelled context end the session cleanly; anything else is an error.
func (t *Transport) readFailed(ctx context.Context, err error) {
	status := websocket.CloseStatus(err)
	switch {
	case t.isClosing(), ctx.Err() != nil,
		status == websocket.StatusNormalClosure, status == websocket.StatusGoingAway:
		t.finish(StateClosed, Event{Type: EventClose})
	default:
		t.finish(StateErrored, Event{Type: EventError, Err: fmt.Errorf("read frame: %w", err)})
	}
}

// finish moves to a terminal state and delivers the terminal event. When
// Close already moved the transport to Closed, the event is EventClose
// whatever went wrong underneath.
func (t *Transport) finish(state State, ev Event) {
	t.mu.Lock()
	if t.state.Terminal() {
		ev = Event{Type: EventClose}
	} else {
		reason := ev.Type.String()
		if ev.Err != nil {
			reason = ev.Err.Error()
		}
		t.setStateLocked(state, reason)
	}
	t.conn = nil
	t.mu.Unlock()

	if ev.Err != nil {
		t.logger.Warn().Str("error", logutil.SanitizeForLog(ev.Err.Error())).Msg("connection failed")
	}

	select {
	case t.events <- ev:
	case <-t.closing:
		// Nobody may be reading any more; deliver only if there is room.
		select {
		case t.events <- ev:
		default:
		}
	}
}

func (t *Transport) emit(ev Event) {
	select {
	case t.events <- ev:
	case <-t.closing:
	}
}

func (t *Transport) isClosing() bool {
	select {
	case <-t.closing:
		return true
	default:
		return false
	}
}

// setStateLocked records a transition. Caller must hold t.mu.
func (t *Transport) setStateLocked(state State, reason string) {
	from := t.state
	if from == state {
		return
	}
	t.state = state
	t.transitions.record(from, state, reason)
	t.logger.Debug().Str("from", from.String()).Str("to", state.String()).Msg("state change")
}
