// Package ansi turns the raw text stream produced by a remote shell into
// markup that a browser can render without further processing.
//
// The pipeline has two stages:
//
//   - [Sanitize] / [Sanitizer] remove control sequences that would corrupt a
//     line-oriented scrollback: cursor movement and erase sequences,
//     operating-system commands (window titles, hyperlinks), bracketed-paste
//     toggles and carriage returns. SGR (colour/style) sequences are left
//     untouched for the next stage.
//   - [Converter] translates SGR sequences into <span style="..."> runs and
//     HTML-escapes every byte of literal text. It never emits any other
//     element, so inbound data cannot inject structural markup.
//
// Both stages accept arbitrary input and never panic. Sequences they do not
// understand are dropped. Sequence boundaries and SGR parameters come from
// the github.com/charmbracelet/x/ansi decoder.
//
// Style state lives in a [Converter] value, not in package state: a style
// opened in one network frame applies to text that arrives in the next one,
// so each terminal session owns its own Converter.
//
// # Fragmented sequences
//
// Chunk boundaries are decided by the transport, so an escape sequence can
// be split between two chunks. [Sanitize] handles each chunk on its own and
// leaves a truncated sequence in place. [Sanitizer.Feed] holds the truncated
// tail back and prepends it to the next chunk; sessions use that form.
//
// # Usage
//
//	var s ansi.Sanitizer
//	conv := ansi.NewConverter()
//	markup := conv.Convert(s.Feed(chunk))
package ansi
