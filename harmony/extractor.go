// Package harmony extracts best-effort channel text from Harmony output while
// it is still being generated.
//
// Unlike the strict parser in package parser, nothing here ever fails: the
// Extractor accepts arbitrary chunk boundaries, cut-off markers and
// unexpected channel names, and always produces a snapshot.
package harmony

import (
	"strings"

	"harmony-kit/parser"
)

// Streaming channel names with a dedicated snapshot field.
const (
	ChannelAnalysis   = "analysis"
	ChannelFinal      = "final"
	ChannelCommentary = "commentary"
)

// KnownChannels lists the streaming channels reported in a Snapshot.
var KnownChannels = []string{ChannelAnalysis, ChannelFinal, ChannelCommentary}

// extraMarkers are Harmony markers outside the configurable set that are
// still scrubbed from extracted text.
var extraMarkers = []string{"<|return|>", "<|call|>", "<|constrain|>"}

// Snapshot is the extractor output after one Add.
type Snapshot struct {
	Analysis   string `json:"analysis"`
	Final      string `json:"final"`
	Commentary string `json:"commentary"`
	// Channel is the last channel name declared anywhere in the buffer,
	// empty when none has been seen.
	Channel  string `json:"channel,omitempty"`
	Complete bool   `json:"complete"`
	Raw      string `json:"raw"`
}

// Text returns the snapshot text for a known channel name
func (s Snapshot) Text(channel string) string {
	switch channel {
	case ChannelAnalysis:
		return s.Analysis
	case ChannelFinal:
		return s.Final
	case ChannelCommentary:
		return s.Commentary
	default:
		return ""
	}
}

func (s *Snapshot) set(channel, text string) {
	switch channel {
	case ChannelAnalysis:
		s.Analysis = text
	case ChannelFinal:
		s.Final = text
	case ChannelCommentary:
		s.Commentary = text
	}
}

// Extractor accumulates raw output and recomputes a Snapshot from the whole
// buffer on every Add. The buffer only grows until Reset; callers bound it by
// resetting between turns.
//
// An Extractor is not safe for concurrent use.
type Extractor struct {
	delims  parser.Delimiters
	buffer  strings.Builder
	channel string
	last    Snapshot
}

// NewExtractor creates an Extractor using the given delimiters. Zero-valued
// delimiter fields fall back to the defaults.
func NewExtractor(delims parser.Delimiters) *Extractor {
	return &Extractor{delims: delims.OrDefault()}
}

// Add appends content to the buffer and returns the recomputed snapshot.
func (e *Extractor) Add(content string) Snapshot {
	e.buffer.WriteString(content)
	buf := e.buffer.String()

	if name := lastChannelName(buf); name != "" {
		e.channel = name
	}
	e.last = e.compute(buf)
	return e.last
}

// Buffer returns every chunk added since the last Reset, verbatim.
func (e *Extractor) Buffer() string {
	return e.buffer.String()
}

// Channel returns the last declared channel name, or "" if none.
func (e *Extractor) Channel() string {
	return e.channel
}

// Snapshot returns the snapshot computed by the most recent Add.
func (e *Extractor) Snapshot() Snapshot {
	return e.last
}

// Reset empties the buffer and forgets the detected channel.
func (e *Extractor) Reset() {
	e.buffer.Reset()
	e.channel = ""
	e.last = Snapshot{}
}

func (e *Extractor) compute(buf string) Snapshot {
	d := e.delims
	snap := Snapshot{Channel: e.channel, Raw: buf}

	if !strings.Contains(buf, d.Start) && !strings.Contains(buf, parser.ChannelMarker) && !strings.Contains(buf, d.Message) {
		snap.Final = buf
		return snap
	}

	window, terminated := messageWindow(buf, d)
	sections := e.sections(window)

	for _, name := range KnownChannels {
		var bodies []string
		for _, sec := range sections {
			if sec.name == name && sec.body != "" {
				bodies = append(bodies, sec.body)
			}
		}
		snap.set(name, strings.Join(bodies, "\n"))
	}

	if isKnownChannel(e.channel) {
		if !terminated {
			if trailing := e.trailingBody(window); trailing != "" {
				text := snap.Text(e.channel)
				if text != "" {
					text += "\n"
				}
				snap.set(e.channel, text+trailing)
			}
		}

		// The active channel shows only its latest section in the window.
		for i := len(sections) - 1; i >= 0; i-- {
			if sections[i].name != e.channel {
				continue
			}
			if sections[i].body != "" {
				snap.set(e.channel, sections[i].body)
			}
			break
		}
	}

	starts := strings.Count(buf, d.Start)
	snap.Complete = starts > 0 && starts == strings.Count(buf, d.End)
	return snap
}

// messageWindow returns the buffer from the last start marker up to and
// including the first end marker after it. terminated is false when no such
// end marker exists yet.
func messageWindow(buf string, d parser.Delimiters) (window string, terminated bool) {
	if i := strings.LastIndex(buf, d.Start); i >= 0 {
		buf = buf[i:]
	}
	if j := strings.Index(buf, d.End); j >= 0 {
		return buf[:j+len(d.End)], true
	}
	return buf, false
}

type section struct {
	name string
	body string
}

// sections finds every <|channel|>name ... <|message|>body run in the window.
// A body stops at the next channel marker, the next end marker, or the end of
// the window.
func (e *Extractor) sections(window string) []section {
	d := e.delims
	var out []section

	pos := 0
	for {
		i := strings.Index(window[pos:], parser.ChannelMarker)
		if i < 0 {
			break
		}
		nameStart := pos + i + len(parser.ChannelMarker)
		nameEnd := scanChannelName(window, nameStart)
		pos = nameEnd

		m := strings.Index(window[nameEnd:], d.Message)
		if m < 0 {
			break
		}
		header := window[nameEnd : nameEnd+m]
		if strings.Contains(header, parser.ChannelMarker) || strings.Contains(header, d.End) {
			continue
		}

		bodyStart := nameEnd + m + len(d.Message)
		bodyEnd := len(window)
		if j := strings.Index(window[bodyStart:], parser.ChannelMarker); j >= 0 {
			bodyEnd = bodyStart + j
		}
		if j := strings.Index(window[bodyStart:], d.End); j >= 0 && bodyStart+j < bodyEnd {
			bodyEnd = bodyStart + j
		}

		out = append(out, section{
			name: window[nameStart:nameEnd],
			body: e.clean(window[bodyStart:bodyEnd]),
		})
		pos = bodyEnd
	}
	return out
}

// trailingBody is the cleaned text after the last message marker in an
// unterminated window.
func (e *Extractor) trailingBody(window string) string {
	i := strings.LastIndex(window, e.delims.Message)
	if i < 0 {
		return ""
	}
	return e.clean(window[i+len(e.delims.Message):])
}

// clean strips embedded markers and a cut-off marker at the end, then trims.
func (e *Extractor) clean(text string) string {
	markers := append(e.delims.Markers(), extraMarkers...)
	for _, m := range markers {
		text = strings.ReplaceAll(text, m, "")
	}
	text = strings.TrimSpace(text)

	if i := strings.LastIndex(text, "<|"); i >= 0 && !strings.Contains(text[i:], "|>") {
		text = text[:i]
	}
	for _, m := range markers {
		for k := len(m) - 1; k > 0; k-- {
			if strings.HasSuffix(text, m[:k]) {
				text = text[:len(text)-k]
				break
			}
		}
	}
	return strings.TrimSpace(text)
}

// lastChannelName returns the name after the last channel marker that has a
// non-empty name, or "".
func lastChannelName(buf string) string {
	end := len(buf)
	for end > 0 {
		i := strings.LastIndex(buf[:end], parser.ChannelMarker)
		if i < 0 {
			return ""
		}
		start := i + len(parser.ChannelMarker)
		if name := buf[start:scanChannelName(buf, start)]; name != "" {
			return name
		}
		end = i
	}
	return ""
}

// scanChannelName returns the end offset of the channel name starting at
// start. Names run until whitespace or the next '<'.
func scanChannelName(s string, start int) int {
	j := start
	for j < len(s) {
		c := s[j]
		if c == '<' || c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			break
		}
		j++
	}
	return j
}

func isKnownChannel(name string) bool {
	for _, known := range KnownChannels {
		if name == known {
			return true
		}
	}
	return false
}
