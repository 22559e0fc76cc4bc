package termsession

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Partho99/devops-learner/internal/scrollback"
	"github.com/Partho99/devops-learner/internal/transport"
)

// --- Fake connection ---

type fakeConn struct {
	events     chan transport.Event
	connectErr error
	sendErr    error

	mu     sync.Mutex
	url    string
	sent   []string
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan transport.Event, 16)}
}

func (f *fakeConn) Connect(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.url = url
	return f.connectErr
}

func (f *fakeConn) Send(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConn) Events() <-chan transport.Event { return f.events }

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeConn) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func startWithConn(t *testing.T, fc *fakeConn, cfg Config) *Session {
	t.Helper()
	cfg.Endpoint = "ws://shell.test/terminal"
	cfg.NewConn = func() Conn { return fc }
	s := Start(context.Background(), cfg)
	t.Cleanup(func() { s.Close() })
	return s
}

// waitEntries waits until the session history has at least n entries.
func waitEntries(t *testing.T, s *Session, n int) []scrollback.Entry {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		h := s.History()
		if len(h) >= n {
			return h
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d entries, have %d: %+v", n, len(h), h)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitState(t *testing.T, s *Session, want transport.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v", s.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func countKind(entries []scrollback.Entry, kind scrollback.Kind) int {
	n := 0
	for _, e := range entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// --- Tests ---

func TestSession_GreenOutput(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventOpen}
	fc.events <- transport.Event{Type: transport.EventMessage, Data: "\x1b[32mOK\x1b[0m\r\n"}

	h := waitEntries(t, s, 2)
	if h[0].Kind != scrollback.StatusInfo || h[0].Text != MsgConnected {
		t.Errorf("first entry = %+v, want %q info", h[0], MsgConnected)
	}
	if countKind(h, scrollback.Output) != 1 {
		t.Fatalf("got %d output entries, want 1", countKind(h, scrollback.Output))
	}
	out := h[1]
	if out.Content != `<span style="color:#0A0">OK</span>`+"\n" {
		t.Errorf("content = %q", out.Content)
	}
	if strings.ContainsAny(out.Content, "\r\x1b") {
		t.Errorf("content has raw control bytes: %q", out.Content)
	}
	if out.Text != "OK\n" {
		t.Errorf("text = %q, want %q", out.Text, "OK\n")
	}
	if s.State() != transport.StateOpen {
		t.Errorf("state = %v, want open", s.State())
	}
}

func TestSession_StyleSurvivesFragmentation(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventOpen}
	fc.events <- transport.Event{Type: transport.EventMessage, Data: "\x1b[3"}
	fc.events <- transport.Event{Type: transport.EventMessage, Data: "1m"}
	fc.events <- transport.Event{Type: transport.EventMessage, Data: "fail"}

	h := waitEntries(t, s, 2)
	if len(h) != 2 {
		t.Fatalf("entries = %+v", h)
	}
	if h[1].Content != `<span style="color:#A00">fail</span>` {
		t.Errorf("content = %q", h[1].Content)
	}
}

func TestSession_EscapesMarkup(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventOpen}
	fc.events <- transport.Event{Type: transport.EventMessage, Data: "<img src=x onerror=alert(1)>"}

	h := waitEntries(t, s, 2)
	if strings.Contains(h[1].Content, "<img") {
		t.Errorf("markup leaked: %q", h[1].Content)
	}
}

func TestSession_SubmitWhenNotConnected(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	if err := s.Submit("ls"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	h := s.History()
	if len(h) != 2 {
		t.Fatalf("entries = %+v, want echo and status", h)
	}
	if h[0].Kind != scrollback.Input || h[0].Text != "$ ls" {
		t.Errorf("echo = %+v", h[0])
	}
	if h[1].Kind != scrollback.StatusError || h[1].Text != MsgNotConnected {
		t.Errorf("status = %+v", h[1])
	}
	if countKind(h, scrollback.StatusError) != 1 {
		t.Errorf("want exactly one status error")
	}
	if sent := fc.Sent(); len(sent) != 0 {
		t.Errorf("transport write attempted: %q", sent)
	}
}

func TestSession_SubmitWhitespaceIsNoop(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventOpen}
	waitEntries(t, s, 1)

	if err := s.Submit("  \t"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if h := s.History(); len(h) != 1 {
		t.Errorf("entries = %+v, want only the connect line", h)
	}
	if sent := fc.Sent(); len(sent) != 0 {
		t.Errorf("sent %q", sent)
	}
	if got, _ := s.RecallPrevious("draft"); got != "draft" {
		t.Errorf("recall after blank submit = %q, want unchanged input", got)
	}
}

func TestSession_SubmitWhenOpen(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{Record: true})

	fc.events <- transport.Event{Type: transport.EventOpen}
	waitState(t, s, transport.StateOpen)

	if err := s.Submit("echo <hi>"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sent := fc.Sent(); len(sent) != 1 || sent[0] != "echo <hi>" {
		t.Errorf("sent = %q", sent)
	}
	h := s.History()
	last := h[len(h)-1]
	if last.Kind != scrollback.Input || last.Content != "$ echo &lt;hi&gt;" {
		t.Errorf("echo = %+v", last)
	}

	rec := s.Recording().Entries()
	if len(rec) != 1 || rec[0].Type != "i" || rec[0].Data != "echo <hi>\n" {
		t.Errorf("recording = %+v", rec)
	}
}

func TestSession_SendReportsNotConnected(t *testing.T) {
	fc := newFakeConn()
	fc.sendErr = transport.ErrNotConnected
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventOpen}
	waitState(t, s, transport.StateOpen)

	s.Submit("pwd")
	h := s.History()
	if h[len(h)-1].Text != MsgNotConnected {
		t.Errorf("last entry = %+v", h[len(h)-1])
	}
}

func TestSession_CloseNeverOpened(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventClose}
	waitState(t, s, transport.StateClosed)

	for _, e := range s.History() {
		if e.Text == MsgDisconnected {
			t.Errorf("never-opened session got a disconnect entry")
		}
	}
}

func TestSession_CloseAfterOpen(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventOpen}
	fc.events <- transport.Event{Type: transport.EventClose}
	waitState(t, s, transport.StateClosed)

	h := waitEntries(t, s, 2)
	if h[1].Kind != scrollback.StatusError || h[1].Text != MsgDisconnected {
		t.Errorf("entries = %+v", h)
	}
}

func TestSession_ErrorBeforeOpen(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventError, Err: errors.New("dial: connection refused")}
	waitState(t, s, transport.StateErrored)

	h := s.History()
	if len(h) != 1 {
		t.Fatalf("entries = %+v, want exactly one", h)
	}
	if h[0].Kind != scrollback.StatusError || h[0].Text != MsgConnectFailed {
		t.Errorf("entry = %+v", h[0])
	}
}

func TestSession_ErrorAfterOpen(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	fc.events <- transport.Event{Type: transport.EventOpen}
	fc.events <- transport.Event{Type: transport.EventError, Err: errors.New("read: EOF")}
	waitState(t, s, transport.StateErrored)

	h := waitEntries(t, s, 2)
	if len(h) != 2 || h[1].Text != MsgConnectionError {
		t.Errorf("entries = %+v", h)
	}
}

func TestSession_ConnectFailsSynchronously(t *testing.T) {
	fc := newFakeConn()
	fc.connectErr = errors.New("bad url")
	s := startWithConn(t, fc, Config{})

	waitState(t, s, transport.StateErrored)
	h := s.History()
	if len(h) != 1 || h[0].Text != MsgConnectFailed {
		t.Errorf("entries = %+v", h)
	}
}

func TestSession_Recall(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})

	for _, c := range []string{"c1", "c2", "c3"} {
		s.Submit(c)
	}
	want := []string{"c3", "c2", "c1", "c1"}
	for i, w := range want {
		got, err := s.RecallPrevious("")
		if err != nil {
			t.Fatalf("RecallPrevious: %v", err)
		}
		if got != w {
			t.Errorf("RecallPrevious #%d = %q, want %q", i+1, got, w)
		}
	}
	if got, _ := s.RecallNext(""); got != "c2" {
		t.Errorf("RecallNext = %q, want c2", got)
	}
}

func TestSession_Banner(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{Banner: []string{"Welcome to DevOps Learner Terminal!", "Type your commands below."}})

	h := s.History()
	if len(h) != 2 {
		t.Fatalf("entries = %+v", h)
	}
	for _, e := range h {
		if e.Kind != scrollback.StatusInfo {
			t.Errorf("banner entry kind = %v", e.Kind)
		}
	}
}

func TestSession_CloseReleasesConnection(t *testing.T) {
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{})
	fc.events <- transport.Event{Type: transport.EventOpen}
	waitState(t, s, transport.StateOpen)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !fc.Closed() {
		t.Error("connection not released")
	}
	if err := s.Submit("ls"); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close = %v, want ErrClosed", err)
	}
	if _, err := s.RecallPrevious(""); !errors.Is(err, ErrClosed) {
		t.Errorf("RecallPrevious after Close = %v, want ErrClosed", err)
	}
	if s.State() != transport.StateClosed {
		t.Errorf("state = %v, want closed", s.State())
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestSession_Reconnect(t *testing.T) {
	created := make(chan *fakeConn, 4)
	cfg := Config{
		Endpoint:  "ws://shell.test/terminal",
		Reconnect: transport.Backoff{Initial: 10 * time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 1},
		NewConn: func() Conn {
			fc := newFakeConn()
			created <- fc
			return fc
		},
	}
	s := Start(context.Background(), cfg)
	defer s.Close()

	first := <-created
	first.events <- transport.Event{Type: transport.EventOpen}
	first.events <- transport.Event{Type: transport.EventError, Err: errors.New("reset")}

	var second *fakeConn
	select {
	case second = <-created:
	case <-time.After(5 * time.Second):
		t.Fatal("no reconnect attempted")
	}
	if !first.Closed() {
		t.Error("failed connection not released before reconnect")
	}

	// The replacement never opens; the policy allows no second attempt.
	second.events <- transport.Event{Type: transport.EventError, Err: errors.New("refused")}
	waitState(t, s, transport.StateErrored)

	h := waitEntries(t, s, 3)
	want := []string{MsgConnected, MsgConnectionError, MsgConnectFailed}
	if len(h) != len(want) {
		t.Fatalf("entries = %+v", h)
	}
	for i := range want {
		if h[i].Text != want[i] {
			t.Errorf("entry %d = %q, want %q", i, h[i].Text, want[i])
		}
	}
	select {
	case <-created:
		t.Error("reconnected beyond MaxAttempts")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSession_NoReconnectByDefault(t *testing.T) {
	dials := 0
	var mu sync.Mutex
	fc := newFakeConn()
	cfg := Config{
		NewConn: func() Conn {
			mu.Lock()
			dials++
			mu.Unlock()
			return fc
		},
	}
	s := Start(context.Background(), cfg)
	defer s.Close()

	fc.events <- transport.Event{Type: transport.EventError, Err: errors.New("refused")}
	waitState(t, s, transport.StateErrored)
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if dials != 1 {
		t.Errorf("dials = %d, want 1", dials)
	}
}

func TestSession_SavesRecording(t *testing.T) {
	dir := t.TempDir()
	fc := newFakeConn()
	s := startWithConn(t, fc, Config{Record: true, RecordingDir: dir})

	fc.events <- transport.Event{Type: transport.EventOpen}
	fc.events <- transport.Event{Type: transport.EventMessage, Data: "hello\r\n"}
	waitEntries(t, s, 2)

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, s.ID+".cast"))
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("recording lines = %q", lines)
	}
	if !strings.Contains(lines[0], `"version":2`) {
		t.Errorf("header = %s", lines[0])
	}
	if !strings.Contains(lines[1], `"o","hello\r\n"`) {
		t.Errorf("event = %s", lines[1])
	}
}

// --- End to end over a real WebSocket ---

// startShellServer answers every command line with a coloured listing and a
// prompt.
func startShellServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		c.Write(r.Context(), websocket.MessageText, []byte("\x1b]0;learner@box\x07\x1b[?2004h$ "))
		for {
			_, data, err := c.Read(r.Context())
			if err != nil {
				return
			}
			if string(data) == "exit\n" {
				c.Close(websocket.StatusNormalClosure, "bye")
				return
			}
			reply := "\x1b[?2004l\r\n\x1b[01;34mdocs\x1b[0m  notes.txt\r\n\x1b[?2004h$ "
			if err := c.Write(r.Context(), websocket.MessageText, []byte(reply)); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSession_EndToEnd(t *testing.T) {
	srv := startShellServer(t)
	s := Start(context.Background(), Config{Endpoint: "ws" + strings.TrimPrefix(srv.URL, "http")})
	defer s.Close()

	waitState(t, s, transport.StateOpen)
	waitEntries(t, s, 2) // connected + prompt

	if err := s.Submit("ls"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	h := waitEntries(t, s, 4)
	var listing *scrollback.Entry
	for i := range h {
		if h[i].Kind == scrollback.Output && strings.Contains(h[i].Text, "docs") {
			listing = &h[i]
		}
	}
	if listing == nil {
		t.Fatalf("no listing in %+v", h)
	}
	if !strings.Contains(listing.Content, `<span style="color:#00A;font-weight:bold">docs</span>`) {
		t.Errorf("listing content = %q", listing.Content)
	}
	if strings.ContainsAny(listing.Content, "\r\x1b") {
		t.Errorf("raw control bytes in %q", listing.Content)
	}

	s.Submit("exit")
	waitState(t, s, transport.StateClosed)
	h = s.History()
	if h[len(h)-1].Text != MsgDisconnected {
		t.Errorf("last entry = %+v, want disconnect", h[len(h)-1])
	}
}
