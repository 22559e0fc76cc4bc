package ansi

import (
	"fmt"
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

// Default colours used when inverse video swaps an unset colour.
const (
	defaultForeground = "#FFF"
	defaultBackground = "#000"
)

// basePalette holds the 16 standard and bright colours.
var basePalette = [16]string{
	"#000", "#A00", "#0A0", "#A50", "#00A", "#A0A", "#0AA", "#AAA",
	"#555", "#F55", "#5F5", "#FF5", "#55F", "#F5F", "#5FF", "#FFF",
}

// cubeLevels are the channel intensities of the 6x6x6 colour cube (16-231).
var cubeLevels = [6]int{0, 95, 135, 175, 215, 255}

// Style is the SGR state that applies to text. The zero value is the
// terminal default. Colours are CSS colour values; "" means default.
type Style struct {
	Foreground    string
	Background    string
	Bold          bool
	Dim           bool
	Italic        bool
	Underline     bool
	Blink         bool
	Inverse       bool
	Hidden        bool
	Strikethrough bool
}

// IsZero reports whether s is the default style.
func (s Style) IsZero() bool {
	return s == Style{}
}

// CSS renders s as the value of a style attribute. It only ever contains
// property names and values built by this package, all of which MarkupPolicy
// admits. Blink has no rendering.
func (s Style) CSS() string {
	fg, bg := s.Foreground, s.Background
	if s.Inverse {
		fg, bg = bg, fg
		if fg == "" {
			fg = defaultBackground
		}
		if bg == "" {
			bg = defaultForeground
		}
	}

	var decls []string
	if fg != "" {
		decls = append(decls, "color:"+fg)
	}
	if bg != "" {
		decls = append(decls, "background-color:"+bg)
	}
	if s.Bold {
		decls = append(decls, "font-weight:bold")
	}
	if s.Dim {
		decls = append(decls, "opacity:0.5")
	}
	if s.Italic {
		decls = append(decls, "font-style:italic")
	}
	var deco []string
	if s.Underline {
		deco = append(deco, "underline")
	}
	if s.Strikethrough {
		deco = append(deco, "line-through")
	}
	if len(deco) > 0 {
		decls = append(decls, "text-decoration:"+strings.Join(deco, " "))
	}
	if s.Hidden {
		decls = append(decls, "visibility:hidden")
	}
	return strings.Join(decls, ";")
}

// Apply returns s updated by the parameters of an SGR sequence. Missing
// parameters count as 0 and no parameters at all means reset. Unknown
// parameters are ignored; a truncated extended colour ends processing of the
// sequence.
func (s Style) Apply(params xansi.Params) Style {
	codes := []int{0}
	if len(params) > 0 {
		codes = make([]int, len(params))
		params.ForEach(0, func(i, param int, _ bool) {
			codes[i] = param
		})
	}
	for i := 0; i < len(codes); i++ {
		code := codes[i]
		switch {
		case code == 0:
			s = Style{}
		case code == 1:
			s.Bold = true
		case code == 2:
			s.Dim = true
		case code == 3:
			s.Italic = true
		case code == 4:
			s.Underline = true
		case code == 5 || code == 6:
			s.Blink = true
		case code == 7:
			s.Inverse = true
		case code == 8:
			s.Hidden = true
		case code == 9:
			s.Strikethrough = true
		case code == 21:
			s.Bold = false
		case code == 22:
			s.Bold = false
			s.Dim = false
		case code == 23:
			s.Italic = false
		case code == 24:
			s.Underline = false
		case code == 25:
			s.Blink = false
		case code == 27:
			s.Inverse = false
		case code == 28:
			s.Hidden = false
		case code == 29:
			s.Strikethrough = false
		case code >= 30 && code <= 37:
			s.Foreground = basePalette[code-30]
		case code == 39:
			s.Foreground = ""
		case code >= 40 && code <= 47:
			s.Background = basePalette[code-40]
		case code == 49:
			s.Background = ""
		case code >= 90 && code <= 97:
			s.Foreground = basePalette[code-90+8]
		case code >= 100 && code <= 107:
			s.Background = basePalette[code-100+8]
		case code == 38 || code == 48:
			color, used, ok := extendedColor(codes[i+1:])
			if !ok {
				return s
			}
			if code == 38 {
				s.Foreground = color
			} else {
				s.Background = color
			}
			i += used
		}
	}
	return s
}

// extendedColor decodes the arguments following 38 or 48: "5;n" for the
// 256-colour palette or "2;r;g;b" for truecolour. It reports how many codes
// it consumed.
func extendedColor(args []int) (string, int, bool) {
	if len(args) == 0 {
		return "", 0, false
	}
	switch args[0] {
	case 5:
		if len(args) < 2 || args[1] < 0 || args[1] > 255 {
			return "", 0, false
		}
		return paletteColor(args[1]), 2, true
	case 2:
		if len(args) < 4 {
			return "", 0, false
		}
		for _, v := range args[1:4] {
			if v < 0 || v > 255 {
				return "", 0, false
			}
		}
		return rgb(args[1], args[2], args[3]), 4, true
	}
	return "", 0, false
}

// paletteColor maps an index of the 256-colour palette to a CSS colour.
func paletteColor(n int) string {
	switch {
	case n < 16:
		return basePalette[n]
	case n < 232:
		n -= 16
		return rgb(cubeLevels[n/36], cubeLevels[(n/6)%6], cubeLevels[n%6])
	default:
		v := 8 + (n-232)*10
		return rgb(v, v, v)
	}
}

func rgb(r, g, b int) string {
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}
