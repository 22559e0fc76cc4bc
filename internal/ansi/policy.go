package ansi

import "github.com/microcosm-cc/bluemonday"

// MarkupPolicy returns an HTML policy that admits exactly what a Converter
// produces: text and <span> elements carrying the CSS properties of Style.
// It is applied to converted output before it leaves the process.
func MarkupPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("span")
	p.AllowStyles(
		"color",
		"background-color",
		"font-weight",
		"font-style",
		"opacity",
		"text-decoration",
		"visibility",
	).OnElements("span")
	return p
}
