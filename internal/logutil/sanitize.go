package logutil

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// MaxLogValueLen caps how much of a remote-supplied string is logged.
const MaxLogValueLen = 512

// SanitizeForLog prepares a remote-supplied string (a shell command, an
// error detail from the terminal server) for a single log field. Escape
// sequences are stripped, newlines and other control characters are
// replaced or removed so a value cannot forge extra log lines, and the
// result is truncated to MaxLogValueLen bytes.
func SanitizeForLog(s string) string {
	s = xansi.Strip(s)
	var result strings.Builder
	result.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			result.WriteByte(' ')
		case r < 32 || r == 0x7f:
		default:
			result.WriteRune(r)
		}
	}
	out := result.String()
	if len(out) > MaxLogValueLen {
		out = strings.ToValidUTF8(out[:MaxLogValueLen], "") + "..."
	}
	return out
}
