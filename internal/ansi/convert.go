package ansi

import (
	"html"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// maxSGRParams is the parameter buffer of a Converter's parser. SGR
// sequences with more parameters are dropped.
const maxSGRParams = 64

// Converter translates sanitized terminal text into HTML. Every call returns
// balanced markup consisting only of escaped text and <span style="...">
// elements. The active Style carries over between calls.
//
// A Converter is not safe for concurrent use; each session owns one.
type Converter struct {
	style  Style
	parser *xansi.Parser
}

// NewConverter returns a Converter in the default style.
func NewConverter() *Converter {
	p := new(xansi.Parser)
	p.SetParamsSize(maxSGRParams)
	p.SetDataSize(1)
	return &Converter{parser: p}
}

// Style returns the style that will apply to the next converted text.
func (c *Converter) Style() Style {
	return c.style
}

// Reset returns the converter to the default style.
func (c *Converter) Reset() {
	c.style = Style{}
}

// Convert renders chunk as HTML. SGR sequences update the style; every other
// escape sequence, a truncated trailing sequence, and C0 control characters
// except newline and tab are dropped.
func (c *Converter) Convert(chunk string) string {
	var (
		out strings.Builder
		run strings.Builder
	)
	flush := func() {
		if run.Len() == 0 {
			return
		}
		writeRun(&out, c.style, run.String())
		run.Reset()
	}

	for i := 0; i < len(chunk); {
		ch := chunk[i]
		switch {
		case ch == esc:
			n, kind := scanEscape(chunk[i:])
			if kind == seqSGR {
				if next, ok := c.applySGR(chunk[i : i+n]); ok && next != c.style {
					flush()
					c.style = next
				}
			}
			i += n
		case isDroppedControl(ch):
			i++
		default:
			j := i + 1
			for j < len(chunk) && chunk[j] != esc && !isDroppedControl(chunk[j]) {
				j++
			}
			run.WriteString(chunk[i:j])
			i = j
		}
	}
	flush()
	return out.String()
}

// applySGR decodes the parameters of a complete SGR sequence and returns the
// resulting style.
func (c *Converter) applySGR(seq string) (Style, bool) {
	if strings.Count(seq, ";")+strings.Count(seq, ":") >= maxSGRParams-1 {
		return c.style, false
	}
	if c.parser == nil {
		c.parser = NewConverter().parser
	}
	xansi.DecodeSequence(seq, xansi.NormalState, c.parser)
	return c.style.Apply(c.parser.Params()), true
}

func writeRun(out *strings.Builder, style Style, text string) {
	text = html.EscapeString(strings.ToValidUTF8(text, "�"))
	css := style.CSS()
	if css == "" {
		out.WriteString(text)
		return
	}
	out.WriteString(`<span style="`)
	out.WriteString(css)
	out.WriteString(`">`)
	out.WriteString(text)
	out.WriteString(`</span>`)
}

func isDroppedControl(c byte) bool {
	return (c < 0x20 && c != '\n' && c != '\t') || c == 0x7f
}
