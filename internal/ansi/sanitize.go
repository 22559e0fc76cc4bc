package ansi

import (
	"strings"
	"unicode/utf8"
)

// MaxPendingSequence bounds how many bytes of an unterminated escape sequence
// a Sanitizer holds back between chunks. A longer tail is released as-is and
// left to the Converter, which drops what it cannot parse.
const MaxPendingSequence = 4096

// Sanitize removes cursor-control and erase sequences, OS commands,
// bracketed-paste toggles and carriage returns from chunk. SGR sequences are
// preserved byte for byte. An escape sequence cut off by the end of chunk is
// left in place.
func Sanitize(chunk string) string {
	out, _ := sanitize(chunk, false)
	return out
}

// Sanitizer is the streaming form of Sanitize. It carries an escape sequence
// (or UTF-8 character) split across chunk boundaries over to the next call.
// The zero value is ready to use. A Sanitizer is not safe for concurrent use.
type Sanitizer struct {
	pending string
}

// Feed sanitizes chunk, prefixed by whatever the previous call held back.
func (z *Sanitizer) Feed(chunk string) string {
	data := z.pending + chunk
	z.pending = ""

	out, rest := sanitize(data, true)
	if rest == "" {
		rest = incompleteRuneTail(out)
		out = out[:len(out)-len(rest)]
	}
	if len(rest) > MaxPendingSequence {
		out += rest
		rest = ""
	}
	z.pending = rest
	return out
}

// Flush returns and clears anything held back by Feed.
func (z *Sanitizer) Flush() string {
	p := z.pending
	z.pending = ""
	return p
}

// Pending reports how many bytes are currently held back.
func (z *Sanitizer) Pending() int {
	return len(z.pending)
}

// sanitize does the work for Sanitize and Sanitizer. With hold set, an
// incomplete trailing escape sequence is returned as rest instead of being
// copied to out.
func sanitize(s string, hold bool) (out, rest string) {
	if strings.IndexByte(s, esc) < 0 && strings.IndexByte(s, '\r') < 0 {
		return s, ""
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		switch s[i] {
		case '\r':
			i++
		case esc:
			n, kind := scanEscape(s[i:])
			switch kind {
			case seqIncomplete:
				if hold {
					return b.String(), s[i:]
				}
				b.WriteString(s[i:])
			case seqSGR, seqEscape:
				b.WriteString(s[i : i+n])
			}
			i += n
		default:
			j := i + 1
			for j < len(s) && s[j] != esc && s[j] != '\r' {
				j++
			}
			b.WriteString(s[i:j])
			i = j
		}
	}
	return b.String(), ""
}

// incompleteRuneTail returns the trailing bytes of s that start a UTF-8
// character without finishing it.
func incompleteRuneTail(s string) string {
	for n := 1; n < utf8.UTFMax && n <= len(s); n++ {
		tail := s[len(s)-n:]
		if !utf8.RuneStart(tail[0]) {
			continue
		}
		if utf8.FullRuneInString(tail) {
			return ""
		}
		return tail
	}
	return ""
}
