package parser

import "strings"

// IsHarmonyFormat reports whether value looks like Harmony framed text.
//
// It accepts any value so callers can pass decoded JSON straight through;
// nil, non-strings and empty strings are never Harmony. A string qualifies
// when it carries a start or channel marker, a channel marker, and a message
// or end marker. That admits headerless fragments cut from the middle of a
// stream while rejecting bare role announcements with no channel.
func IsHarmonyFormat(value any, delims Delimiters) bool {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case *string:
		if v == nil {
			return false
		}
		s = *v
	default:
		return false
	}
	if s == "" {
		return false
	}

	d := delims.OrDefault()
	hasChannel := strings.Contains(s, ChannelMarker)
	hasHeader := strings.Contains(s, d.Start) || hasChannel
	hasBody := strings.Contains(s, d.Message) || strings.Contains(s, d.End)
	return hasHeader && hasChannel && hasBody
}
