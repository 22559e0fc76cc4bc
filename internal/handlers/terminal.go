package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/hlog"

	"github.com/Partho99/devops-learner/internal/ansi"
	"github.com/Partho99/devops-learner/internal/logutil"
	"github.com/Partho99/devops-learner/internal/scrollback"
	"github.com/Partho99/devops-learner/internal/termsession"
	"github.com/Partho99/devops-learner/internal/transport"
)

// SessionMgr is set from the serve command during init.
var SessionMgr *termsession.Manager

// markupPolicy vets converter output before it is sent to a browser.
var markupPolicy = ansi.MarkupPolicy()

// terminalWriteTimeout bounds a single frame write to the browser.
const terminalWriteTimeout = 10 * time.Second

// Client → server frames.
type termClientMsg struct {
	Type      string `json:"type"`
	Command   string `json:"command,omitempty"`
	Direction string `json:"direction,omitempty"`
	Input     string `json:"input,omitempty"`
}

// Server → client frames.
type termSessionMsg struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type termEntriesMsg struct {
	Type    string             `json:"type"`
	State   transport.State    `json:"state"`
	Entries []scrollback.Entry `json:"entries"`
}

type termRecallMsg struct {
	Type  string `json:"type"`
	Input string `json:"input"`
}

type termErrorMsg struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
}

// TerminalWS bridges a browser to a new terminal session.
//
// The server first sends {"type":"session"} with the session ID, then
// {"type":"entries"} frames carrying every history entry not yet sent. The
// browser submits commands and walks command recall with JSON frames. The
// session is closed when the browser disconnects.
func TerminalWS(w http.ResponseWriter, r *http.Request) {
	if SessionMgr == nil {
		writeError(w, http.StatusServiceUnavailable, "Terminal sessions not available")
		return
	}

	reqLog := hlog.FromRequest(r)
	clientConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		reqLog.Warn().Err(err).Msg("accept terminal websocket")
		return
	}
	defer clientConn.CloseNow()

	// Oversized frames are read in full and rejected with an error frame.
	clientConn.SetReadLimit(4 * termsession.MaxInputMessageSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sess := SessionMgr.Create(context.Background())
	defer func() {
		if err := SessionMgr.CloseSession(sess.ID); err != nil {
			reqLog.Warn().Err(err).Str("session", sess.ID).Msg("close terminal session")
		}
	}()
	logger := reqLog.With().Str("session", sess.ID).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("terminal attached")

	if err := writeFrame(ctx, clientConn, termSessionMsg{Type: "session", SessionID: sess.ID}); err != nil {
		return
	}

	// Session history → browser
	go func() {
		defer cancel()
		var sent uint64
		flush := func() error {
			entries := sess.Since(sent)
			if len(entries) == 0 {
				return nil
			}
			sent = entries[len(entries)-1].Seq
			return writeFrame(ctx, clientConn, termEntriesMsg{
				Type:    "entries",
				State:   sess.State(),
				Entries: sanitizeEntries(entries),
			})
		}
		for {
			if err := flush(); err != nil {
				return
			}
			select {
			case <-sess.Updates():
			case <-sess.Done():
				flush()
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	limiter := termsession.NewRateLimiter(termsession.MessageRateLimit, termsession.MessageRateBurst)

	// Browser → session
	for {
		_, data, err := clientConn.Read(ctx)
		if err != nil {
			break
		}

		if !limiter.Allow() {
			writeFrame(ctx, clientConn, termErrorMsg{Type: "error", Detail: "Rate limit exceeded"})
			continue
		}
		if len(data) > termsession.MaxInputMessageSize {
			logger.Warn().Int("size", len(data)).Int("limit", termsession.MaxInputMessageSize).Msg("terminal input message too large")
			writeFrame(ctx, clientConn, termErrorMsg{Type: "error", Detail: "Message too large"})
			continue
		}

		var msg termClientMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			writeFrame(ctx, clientConn, termErrorMsg{Type: "error", Detail: "Invalid message"})
			continue
		}

		switch msg.Type {
		case "submit":
			if len(msg.Command) > termsession.MaxCommandLength {
				writeFrame(ctx, clientConn, termErrorMsg{Type: "error", Detail: "Command too long"})
				continue
			}
			logger.Debug().Str("command", logutil.SanitizeForLog(msg.Command)).Msg("submit")
			if err := sess.Submit(msg.Command); err != nil {
				logger.Info().Err(err).Msg("submit after session end")
			}
		case "recall":
			var (
				input string
				err   error
			)
			switch strings.ToLower(msg.Direction) {
			case "previous", "prev", "up":
				input, err = sess.RecallPrevious(msg.Input)
			case "next", "down":
				input, err = sess.RecallNext(msg.Input)
			default:
				writeFrame(ctx, clientConn, termErrorMsg{Type: "error", Detail: "Invalid recall direction"})
				continue
			}
			if err != nil {
				continue
			}
			writeFrame(ctx, clientConn, termRecallMsg{Type: "recall", Input: input})
		default:
			writeFrame(ctx, clientConn, termErrorMsg{Type: "error", Detail: "Unknown message type"})
		}
	}

	logger.Info().Msg("terminal detached")
	clientConn.Close(websocket.StatusNormalClosure, "")
}

// sanitizeEntries passes output markup through the markup policy.
func sanitizeEntries(entries []scrollback.Entry) []scrollback.Entry {
	for i := range entries {
		if entries[i].Kind == scrollback.Output {
			entries[i].Content = markupPolicy.Sanitize(entries[i].Content)
		}
	}
	return entries
}

func writeFrame(ctx context.Context, conn *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, terminalWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
