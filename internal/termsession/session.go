package termsession

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Partho99/devops-learner/internal/ansi"
	"github.com/Partho99/devops-learner/internal/logging"
	"github.com/Partho99/devops-learner/internal/logutil"
	"github.com/Partho99/devops-learner/internal/recall"
	"github.com/Partho99/devops-learner/internal/scrollback"
	"github.com/Partho99/devops-learner/internal/transport"
)

var (
	// ErrClosed is returned by operations on a session that has been torn down.
	ErrClosed = errors.New("terminal session closed")
	// ErrSessionNotFound is returned by Manager lookups for unknown IDs.
	ErrSessionNotFound = errors.New("terminal session not found")
)

// Status lines appended to the history.
const (
	MsgConnected       = "Connected."
	MsgDisconnected    = "Disconnected."
	MsgConnectionError = "Connection error."
	MsgConnectFailed   = "Could not connect to terminal server."
	MsgNotConnected    = "Terminal not connected."
)

// InputPrompt prefixes the echo of a submitted command.
const InputPrompt = "$ "

// sendTimeout bounds a single outbound frame write.
const sendTimeout = 10 * time.Second

// Conn is the transport a Session drives. *transport.Transport implements it.
type Conn interface {
	Connect(ctx context.Context, url string) error
	Send(ctx context.Context, text string) error
	Events() <-chan transport.Event
	Close()
}

// Config describes how sessions are built.
type Config struct {
	// Endpoint is the WebSocket URL of the terminal server.
	Endpoint string
	// Banner lines are added as info entries when a session starts.
	Banner []string
	// HistoryLimit caps retained history entries. Zero keeps everything.
	HistoryLimit int
	// Reconnect decides whether a failed connection is replaced. Nil means
	// transport.NoReconnect.
	Reconnect transport.ReconnectPolicy
	// Record enables I/O capture; RecordingDir, when set, receives an
	// asciinema file per session on Close.
	Record       bool
	RecordingDir string
	// Transport options for the default connection factory.
	Transport transport.Options
	// NewConn overrides the connection factory.
	NewConn func() Conn
}

func (c Config) newConn() Conn {
	if c.NewConn != nil {
		return c.NewConn()
	}
	return transport.New(c.Transport)
}

type requestKind int

const (
	reqSubmit requestKind = iota
	reqPrevious
	reqNext
)

type request struct {
	kind  requestKind
	text  string
	reply chan string
}

// Session binds one terminal connection to its history and command recall.
//
// Transport events and caller requests are handled one at a time by a single
// goroutine, so inbound chunks are appended in delivery order and a submission
// never interleaves with the processing of a chunk.
type Session struct {
	ID        string
	Endpoint  string
	CreatedAt time.Time

	cfg       Config
	logger    zerolog.Logger
	history   *scrollback.Buffer
	recording *Recording

	// Owned by the run goroutine.
	recall    *recall.Stack
	sanitizer ansi.Sanitizer
	converter *ansi.Converter

	requests  chan request
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error

	mu           sync.Mutex
	state        transport.State
	everOpened   bool
	lastActivity time.Time
	closedAt     *time.Time
}

// Start creates a session and begins connecting to cfg.Endpoint. The
// session lives until Close is called or ctx is cancelled.
func Start(ctx context.Context, cfg Config) *Session {
	if cfg.Reconnect == nil {
		cfg.Reconnect = transport.NoReconnect
	}
	id := uuid.New().String()
	runCtx, cancel := context.WithCancel(ctx)
	now := time.Now()

	s := &Session{
		ID:           id,
		Endpoint:     cfg.Endpoint,
		CreatedAt:    now,
		cfg:          cfg,
		logger:       logging.For("termsession").With().Str("session", id).Logger(),
		history:      scrollback.New(cfg.HistoryLimit),
		recall:       recall.New(),
		converter:    ansi.NewConverter(),
		requests:     make(chan request),
		done:         make(chan struct{}),
		cancel:       cancel,
		state:        transport.StateConnecting,
		lastActivity: now,
	}
	if cfg.Record {
		s.recording = NewRecording(0)
	}
	for _, line := range cfg.Banner {
		s.history.Append(scrollback.NewEntry(scrollback.StatusInfo, line))
	}

	go s.run(runCtx)
	return s
}

// History returns a snapshot of the session history.
func (s *Session) History() []scrollback.Entry {
	return s.history.Snapshot()
}

// Since returns history entries newer than seq.
func (s *Session) Since(seq uint64) []scrollback.Entry {
	return s.history.Since(seq)
}

// Updates is signaled whenever history entries are appended.
func (s *Session) Updates() <-chan struct{} {
	return s.history.Notify()
}

// Done is closed once the session has stopped processing events.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// State returns the connection state.
func (s *Session) State() transport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActivity returns the time of the last command or inbound chunk.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Recording returns the I/O capture, or nil when recording is disabled.
func (s *Session) Recording() *Recording {
	return s.recording
}

// Submit processes a command line typed by the user. Whitespace-only input
// is ignored. Delivery problems are reported in the history, not as errors.
func (s *Session) Submit(cmd string) error {
	_, err := s.do(request{kind: reqSubmit, text: cmd})
	return err
}

// RecallPrevious returns the text that should replace current after
// stepping back through submitted commands.
func (s *Session) RecallPrevious(current string) (string, error) {
	return s.do(request{kind: reqPrevious, text: current})
}

// RecallNext returns the text that should replace current after stepping
// forward through submitted commands.
func (s *Session) RecallNext(current string) (string, error) {
	return s.do(request{kind: reqNext, text: current})
}

// Close tears the session down and releases its connection. When recording
// to a directory, the recording is written out; its error is returned.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.done

		now := time.Now()
		s.mu.Lock()
		if !s.state.Terminal() {
			s.state = transport.StateClosed
		}
		s.closedAt = &now
		s.mu.Unlock()

		if s.recording != nil && s.cfg.RecordingDir != "" {
			path, err := s.recording.Save(s.cfg.RecordingDir, s.ID)
			if err != nil {
				s.closeErr = err
				s.logger.Error().Err(err).Msg("save recording")
			} else {
				s.logger.Info().Str("path", path).Msg("recording saved")
			}
		}
		s.logger.Info().Msg("session closed")
	})
	return s.closeErr
}

func (s *Session) do(req request) (string, error) {
	req.reply = make(chan string, 1)
	select {
	case s.requests <- req:
	case <-s.done:
		return "", ErrClosed
	}
	select {
	case r := <-req.reply:
		return r, nil
	case <-s.done:
		return "", ErrClosed
	}
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.recall.Clear()

	var (
		conn    Conn
		events  <-chan transport.Event
		retry   <-chan time.Time
		opened  bool // the current connection reached Open
		attempt int
	)
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	connect := func() {
		conn = s.cfg.newConn()
		events = conn.Events()
		opened = false
		s.setState(transport.StateConnecting)
		if err := conn.Connect(ctx, s.Endpoint); err != nil {
			events = nil
			s.onError(err, false)
		}
	}
	connect()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			switch ev.Type {
			case transport.EventOpen:
				opened = true
				attempt = 0
				s.onOpen()
			case transport.EventMessage:
				s.onMessage(ev.Data)
			case transport.EventClose:
				s.onClose()
			case transport.EventError:
				s.onError(ev.Err, opened)
				attempt++
				if d, ok := s.cfg.Reconnect.Delay(attempt); ok {
					s.logger.Info().Int("attempt", attempt).Dur("delay", d).Msg("scheduling reconnect")
					retry = time.After(d)
				}
			}

		case <-retry:
			retry = nil
			conn.Close()
			s.sanitizer = ansi.Sanitizer{}
			s.converter.Reset()
			connect()

		case req := <-s.requests:
			req.reply <- s.handle(ctx, conn, req)
		}
	}
}

func (s *Session) handle(ctx context.Context, conn Conn, req request) string {
	s.touch()
	switch req.kind {
	case reqPrevious:
		return s.recall.Previous(req.text)
	case reqNext:
		return s.recall.Next(req.text)
	default:
		s.submit(ctx, conn, req.text)
		return ""
	}
}

func (s *Session) submit(ctx context.Context, conn Conn, cmd string) {
	if strings.TrimSpace(cmd) == "" {
		return
	}
	s.history.Append(scrollback.NewEntry(scrollback.Input, InputPrompt+cmd))
	s.recall.Record(cmd)

	if s.State() != transport.StateOpen || conn == nil {
		s.history.Append(scrollback.NewEntry(scrollback.StatusError, MsgNotConnected))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	err := conn.Send(sendCtx, cmd)
	switch {
	case errors.Is(err, transport.ErrNotConnected):
		s.history.Append(scrollback.NewEntry(scrollback.StatusError, MsgNotConnected))
	case err != nil:
		// The read side reports the broken connection.
		s.logger.Warn().Str("error", logutil.SanitizeForLog(err.Error())).Msg("send failed")
	default:
		if s.recording != nil {
			s.recording.RecordInput(cmd + "\n")
		}
		s.logger.Debug().Str("command", logutil.SanitizeForLog(cmd)).Msg("command sent")
	}
}

func (s *Session) onOpen() {
	s.mu.Lock()
	s.everOpened = true
	s.mu.Unlock()
	s.setState(transport.StateOpen)
	s.history.Append(scrollback.NewEntry(scrollback.StatusInfo, MsgConnected))
	s.logger.Info().Str("endpoint", s.Endpoint).Msg("connected")
}

func (s *Session) onMessage(chunk string) {
	s.touch()
	if s.recording != nil {
		s.recording.RecordOutput(chunk)
	}
	s.appendOutput(s.sanitizer.Feed(chunk))
}

func (s *Session) onClose() {
	s.appendOutput(s.sanitizer.Flush())
	s.mu.Lock()
	opened := s.everOpened
	s.mu.Unlock()
	if opened {
		s.history.Append(scrollback.NewEntry(scrollback.StatusError, MsgDisconnected))
	}
	s.setState(transport.StateClosed)
	s.logger.Info().Msg("disconnected")
}

// onError reports a failed connection with exactly one history entry.
func (s *Session) onError(err error, opened bool) {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	s.logger.Warn().Str("error", logutil.SanitizeForLog(detail)).Bool("opened", opened).Msg("transport error")

	s.appendOutput(s.sanitizer.Flush())
	msg := MsgConnectFailed
	if opened {
		msg = MsgConnectionError
	}
	s.history.Append(scrollback.NewEntry(scrollback.StatusError, msg))
	s.setState(transport.StateErrored)
}

// appendOutput converts sanitized text and appends it unless nothing
// renderable remains.
func (s *Session) appendOutput(clean string) {
	if clean == "" {
		return
	}
	markup := s.converter.Convert(clean)
	if markup == "" {
		return
	}
	s.history.Append(scrollback.Entry{
		Kind:    scrollback.Output,
		Content: markup,
		Text:    xansi.Strip(clean),
	})
}

func (s *Session) setState(state transport.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Info is a summary of a session for listings.
type Info struct {
	ID           string          `json:"id"`
	Endpoint     string          `json:"endpoint"`
	State        transport.State `json:"state"`
	CreatedAt    time.Time       `json:"created_at"`
	ClosedAt     *time.Time      `json:"closed_at,omitempty"`
	LastActivity time.Time       `json:"last_activity"`
	Entries      int             `json:"entries"`
	Recording    bool            `json:"recording"`
}

// Info summarizes the session.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:           s.ID,
		Endpoint:     s.Endpoint,
		State:        s.state,
		CreatedAt:    s.CreatedAt,
		ClosedAt:     s.closedAt,
		LastActivity: s.lastActivity,
		Entries:      s.history.Len(),
		Recording:    s.recording != nil,
	}
}
