package ansi

import xansi "github.com/charmbracelet/x/ansi"

const esc = 0x1b

// seqKind classifies an escape sequence found at the start of a string.
type seqKind int

const (
	// seqIncomplete means the string ends before the sequence does.
	seqIncomplete seqKind = iota
	// seqSGR is a Select Graphic Rendition sequence (ESC [ params m).
	seqSGR
	// seqCSI is any other control sequence (ESC [ ... final).
	seqCSI
	// seqString is an OSC, DCS, SOS, PM or APC string, terminated or cancelled.
	seqString
	// seqEscape is a short escape (ESC [intermediates] final), e.g. ESC 7 or ESC ( B.
	seqEscape
	// seqMalformed is a sequence interrupted by a byte that cannot appear in it.
	seqMalformed
)

// scanEscape inspects s, which must start with ESC, and returns the length
// of the escape sequence at its start together with its kind. For
// seqIncomplete the length is len(s). For seqMalformed the length covers the
// bytes up to, but not including, the offending byte.
func scanEscape(s string) (int, seqKind) {
	seq, _, n, state := xansi.DecodeSequence(s, xansi.NormalState, nil)
	if state != xansi.NormalState {
		return len(s), seqIncomplete
	}
	if n == 0 {
		return 1, seqMalformed
	}
	last := seq[len(seq)-1]

	switch {
	case xansi.HasCsiPrefix(seq):
		if len(seq) < 3 || last < 0x40 || last > 0x7e {
			return n, seqMalformed
		}
		if last == 'm' && isSGRParams(seq[2:len(seq)-1]) {
			return n, seqSGR
		}
		return n, seqCSI
	case xansi.HasOscPrefix(seq), xansi.HasDcsPrefix(seq), xansi.HasSosPrefix(seq),
		xansi.HasPmPrefix(seq), xansi.HasApcPrefix(seq):
		return n, seqString
	}
	if len(seq) < 2 || last < 0x30 || last > 0x7e {
		return n, seqMalformed
	}
	return n, seqEscape
}

// isSGRParams reports whether the bytes between "ESC [" and "m" are plain
// SGR parameters, with no private prefix or intermediate bytes.
func isSGRParams(params string) bool {
	for i := 0; i < len(params); i++ {
		c := params[i]
		if (c < '0' || c > '9') && c != ';' && c != ':' {
			return false
		}
	}
	return true
}
