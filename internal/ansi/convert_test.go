package ansi

import (
	"strings"
	"testing"

	xansi "github.com/charmbracelet/x/ansi"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "hello\n", "hello\n"},
		{"green ok", "\x1b[32mOK\x1b[0m\n", `<span style="color:#0A0">OK</span>` + "\n"},
		{"escapes markup", "<script>alert('x')</script>", "&lt;script&gt;alert(&#39;x&#39;)&lt;/script&gt;"},
		{"escapes inside span", "\x1b[31m<b>&\x1b[0m", `<span style="color:#A00">&lt;b&gt;&amp;</span>`},
		{"bold bright", "\x1b[1;94mdir\x1b[0m", `<span style="color:#55F;font-weight:bold">dir</span>`},
		{"background", "\x1b[43mwarn\x1b[49m!", `<span style="background-color:#A50">warn</span>!`},
		{"256 colour", "\x1b[38;5;196mred", `<span style="color:#ff0000">red</span>`},
		{"grey ramp", "\x1b[48;5;232mx", `<span style="background-color:#080808">x</span>`},
		{"truecolour", "\x1b[38;2;1;2;3mx", `<span style="color:#010203">x</span>`},
		{"truecolour colons", "\x1b[38:2:1:2:3mx", `<span style="color:#010203">x</span>`},
		{"missing param is zero", "\x1b[31m\x1b[;1mx", `<span style="font-weight:bold">x</span>`},
		{"blink not rendered", "\x1b[4;5mx", `<span style="text-decoration:underline">x</span>`},
		{"private sgr dropped", "\x1b[?31mx", "x"},
		{"too many params dropped", "\x1b[" + strings.Repeat("1;", maxSGRParams) + "31mx", "x"},
		{"underline strike", "\x1b[4;9mx", `<span style="text-decoration:underline line-through">x</span>`},
		{"inverse default", "\x1b[7mx", `<span style="color:#000;background-color:#FFF">x</span>`},
		{"empty sgr resets", "\x1b[31ma\x1b[mb", `<span style="color:#A00">a</span>b`},
		{"cursor sequence dropped", "a\x1b[2Kb", "ab"},
		{"osc dropped", "\x1b]0;t\x07x", "x"},
		{"truncated dropped", "x\x1b[3", "x"},
		{"controls dropped", "a\x00b\x07c\x08d\te", "abcd\te"},
		{"redundant sgr merges runs", "\x1b[32ma\x1b[32mb", `<span style="color:#0A0">ab</span>`},
		{"unknown code ignored", "\x1b[32;999mx", `<span style="color:#0A0">x</span>`},
		{"empty", "", ""},
		{"only escapes", "\x1b[32m\x1b[0m", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NewConverter().Convert(tc.in)
			if got != tc.want {
				t.Errorf("Convert(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestConvert_StylePersistsAcrossChunks(t *testing.T) {
	c := NewConverter()

	first := c.Convert("\x1b[1;33mbuild")
	if first != `<span style="color:#A50;font-weight:bold">build</span>` {
		t.Errorf("first = %q", first)
	}
	second := c.Convert("ing...\n")
	if second != `<span style="color:#A50;font-weight:bold">ing...`+"\n</span>" {
		t.Errorf("second = %q", second)
	}
	third := c.Convert("\x1b[0mdone")
	if third != "done" {
		t.Errorf("third = %q", third)
	}
	if !c.Style().IsZero() {
		t.Errorf("style after reset = %+v, want zero", c.Style())
	}
}

func TestConvert_Reset(t *testing.T) {
	c := NewConverter()
	c.Convert("\x1b[31m")
	if c.Style().Foreground != "#A00" {
		t.Fatalf("foreground = %q, want #A00", c.Style().Foreground)
	}
	c.Reset()
	if got := c.Convert("x"); got != "x" {
		t.Errorf("after Reset got %q, want %q", got, "x")
	}
}

func TestConvert_BalancedMarkup(t *testing.T) {
	inputs := []string{
		"\x1b[31m",
		"\x1b[31mred\x1b[1mbold\x1b[22mnormal",
		"\x1b[4m<u>\x1b[24m\x1b[7m&\x1b[27m",
		"\x1b[38;5mtruncated",
		"\x1b[38;2;1;2mshort",
		"\xff\xfe<\x1b[35m>",
		"\x1b[" + strings.Repeat(";", 200) + "31mx",
		"\x1b[" + strings.Repeat("9", 40) + "m<",
	}
	for _, in := range inputs {
		got := NewConverter().Convert(in)
		opens := strings.Count(got, "<span")
		closes := strings.Count(got, "</span>")
		if opens != closes {
			t.Errorf("Convert(%q) = %q has %d opening and %d closing tags", in, got, opens, closes)
		}
		stripped := strings.ReplaceAll(got, "</span>", "")
		for strings.Contains(stripped, "<span") {
			start := strings.Index(stripped, "<span")
			end := strings.Index(stripped[start:], ">")
			stripped = stripped[:start] + stripped[start+end+1:]
		}
		if strings.ContainsAny(stripped, "<>") {
			t.Errorf("Convert(%q) = %q leaks a raw angle bracket", in, got)
		}
	}
}

func TestConvert_PipelineWithSanitizer(t *testing.T) {
	var z Sanitizer
	c := NewConverter()

	chunks := []string{"\x1b]0;box\x07\x1b[?2004h\x1b[01;3", "2muser\x1b[0m$ \r\n"}
	var got strings.Builder
	for _, ch := range chunks {
		got.WriteString(c.Convert(z.Feed(ch)))
	}
	want := `<span style="color:#0A0;font-weight:bold">user</span>$ ` + "\n"
	if got.String() != want {
		t.Errorf("got %q, want %q", got.String(), want)
	}
}

func TestApply(t *testing.T) {
	s := Style{}.Apply(xansi.ToParams([]int{1, 2, 3, 4, 5, 7, 8, 9}))
	want := Style{Bold: true, Dim: true, Italic: true, Underline: true, Blink: true, Inverse: true, Hidden: true, Strikethrough: true}
	if s != want {
		t.Fatalf("Apply set = %+v, want %+v", s, want)
	}
	s = s.Apply(xansi.ToParams([]int{22, 23, 24, 25, 27, 28, 29}))
	if !s.IsZero() {
		t.Errorf("Apply unset = %+v, want zero", s)
	}
	if s = (Style{Bold: true}).Apply(nil); !s.IsZero() {
		t.Errorf("Apply with no params = %+v, want reset", s)
	}
}

func TestMarkupPolicy(t *testing.T) {
	p := MarkupPolicy()

	converted := NewConverter().Convert("\x1b[1;32;44mok\x1b[0m <x>")
	kept := p.Sanitize(converted)
	for _, want := range []string{"<span style=", "color", "background-color", "font-weight", ">ok</span>", "&lt;x&gt;"} {
		if !strings.Contains(kept, want) {
			t.Errorf("policy output %q is missing %q", kept, want)
		}
	}

	hostile := `<span style="color:red" onclick="x()">a</span><script>b</script><img src=x>`
	got := p.Sanitize(hostile)
	if strings.Contains(got, "onclick") || strings.Contains(got, "<script") || strings.Contains(got, "<img") {
		t.Errorf("policy let through %q", got)
	}
}

func TestMarkupPolicy_KeepsEveryStyle(t *testing.T) {
	p := MarkupPolicy()
	styles := []Style{
		{Foreground: "#A00"},
		{Background: "#ff00ff"},
		{Bold: true},
		{Dim: true},
		{Italic: true},
		{Underline: true},
		{Strikethrough: true},
		{Hidden: true},
		{Inverse: true},
		{Blink: true, Underline: true},
		{Foreground: "#0A0", Background: "#000", Bold: true, Dim: true, Italic: true,
			Underline: true, Blink: true, Strikethrough: true, Hidden: true},
	}
	for _, st := range styles {
		var b strings.Builder
		writeRun(&b, st, "x")
		in := b.String()
		got := p.Sanitize(in)
		if got == "<span>x</span>" || got == "x" {
			t.Errorf("policy dropped style of %q: %q", in, got)
			continue
		}
		for _, decl := range strings.Split(st.CSS(), ";") {
			prop := decl[:strings.Index(decl, ":")]
			if !strings.Contains(got, prop+":") {
				t.Errorf("policy dropped %q from %q: %q", prop, in, got)
			}
		}
	}
}
