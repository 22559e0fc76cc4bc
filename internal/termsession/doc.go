// Package termsession implements the terminal session controller of the
// learning portal: one Session per mounted terminal view, binding a
// WebSocket connection to the remote shell, a history of rendered lines and
// a command-recall stack.
//
// # Pipeline
//
// Every inbound chunk passes through two stages before it is stored:
//
//	raw chunk → ansi.Sanitizer (drop cursor/erase/OSC/CR, keep SGR)
//	          → ansi.Converter (SGR → <span style>, escape text)
//	          → scrollback.Buffer (Output entry)
//
// The sanitizer carries partial escape sequences over to the next chunk and
// the converter carries the active style, so a colour opened in one frame
// still applies to text in the next.
//
// # History entries
//
// Besides output, the history records input echoes ("$ cmd") and status
// lines. Status lines follow fixed rules:
//
//   - "Connected." when the connection opens.
//   - "Disconnected." when it closes, but only if the session ever opened.
//   - "Connection error." when an open connection fails.
//   - "Could not connect to terminal server." when the handshake fails.
//   - "Terminal not connected." when a command is submitted while not open.
//
// Each connection failure produces exactly one entry.
//
// # Concurrency
//
// A Session runs a single goroutine that consumes transport events and
// caller requests (Submit, RecallPrevious, RecallNext) one at a time. Reads
// of the history and state are safe from any goroutine. Close cancels the
// goroutine and releases the connection on every path.
//
// # Reconnection
//
// By default a failed connection is final. A transport.ReconnectPolicy such
// as transport.Backoff makes the session dial a fresh connection after the
// policy's delay; the failure is still reported once in the history.
//
// # Management
//
// Manager keeps sessions by UUID for the HTTP API, closes idle ones from a
// periodic job and, when configured, writes asciinema recordings of each
// session on close.
package termsession
