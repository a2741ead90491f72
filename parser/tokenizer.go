package parser

import "strings"

// Tokenize splits a raw completion string into tokens. A start marker is
// emitted together with the lowercase role name that follows it, message and
// end markers are emitted alone, and everything in between becomes a payload
// token. Tokenize never fails: malformed framing ends up inside payloads.
func Tokenize(text string, delims Delimiters) []string {
	d := delims.OrDefault()
	tokens := make([]string, 0, 8)

	i := 0
	for i < len(text) {
		rest := text[i:]
		switch {
		case strings.HasPrefix(rest, d.Start):
			j := i + len(d.Start)
			for j < len(text) && text[j] >= 'a' && text[j] <= 'z' {
				j++
			}
			tokens = append(tokens, text[i:j])
			i = j
		case strings.HasPrefix(rest, d.Message):
			tokens = append(tokens, d.Message)
			i += len(d.Message)
		case strings.HasPrefix(rest, d.End):
			tokens = append(tokens, d.End)
			i += len(d.End)
		default:
			next := nextMarker(rest, d)
			if next < 0 {
				next = len(rest)
			}
			if next > 0 {
				tokens = append(tokens, rest[:next])
			}
			i += next
		}
	}
	return tokens
}

// nextMarker returns the offset of the leftmost start, message or end marker
// in s, or -1 when none occurs.
func nextMarker(s string, d Delimiters) int {
	best := -1
	for _, marker := range []string{d.Start, d.Message, d.End} {
		if idx := strings.Index(s, marker); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	return best
}
