// Package parser provides OpenAI Harmony text framing support: a tokenizer for
// delimited completion strings, a cheap format detector, and a strict
// token-stream parser that rebuilds structured conversations.
//
// A rendered message looks like
//
//	<|start|>assistant<|message|>text:message:Hello<|end|>
//
// and the payload between <|message|> and <|end|> is either
// "text:<channel>:<text>" or "tool:<namespace>:<name>:<json arguments>".
package parser

import "fmt"

// Default delimiter literals.
const (
	DefaultStart   = "<|start|>"
	DefaultMessage = "<|message|>"
	DefaultEnd     = "<|end|>"
)

// ChannelMarker announces a channel name. It is not configurable.
const ChannelMarker = "<|channel|>"

// Payload prefixes and the separator used inside payload tokens.
const (
	TextPrefix = "text:"
	ToolPrefix = "tool:"
	PayloadSep = ":"
)

// Delimiters is the set of literal markers that frame a message.
type Delimiters struct {
	Start   string `json:"start" yaml:"start"`
	Message string `json:"message" yaml:"message"`
	End     string `json:"end" yaml:"end"`
}

// DefaultDelimiters returns the standard Harmony markers.
func DefaultDelimiters() Delimiters {
	return Delimiters{
		Start:   DefaultStart,
		Message: DefaultMessage,
		End:     DefaultEnd,
	}
}

// OrDefault fills any empty marker with its default.
func (d Delimiters) OrDefault() Delimiters {
	if d.Start == "" {
		d.Start = DefaultStart
	}
	if d.Message == "" {
		d.Message = DefaultMessage
	}
	if d.End == "" {
		d.End = DefaultEnd
	}
	return d
}

// Validate checks that the three markers are non-empty, mutually distinct,
// and distinct from the channel marker.
func (d Delimiters) Validate() error {
	named := []struct {
		name  string
		value string
	}{
		{"start", d.Start},
		{"message", d.Message},
		{"end", d.End},
	}
	for _, n := range named {
		if n.value == "" {
			return fmt.Errorf("%s delimiter is empty", n.name)
		}
		if n.value == ChannelMarker {
			return fmt.Errorf("%s delimiter collides with channel marker %q", n.name, ChannelMarker)
		}
	}
	if d.Start == d.Message || d.Start == d.End || d.Message == d.End {
		return fmt.Errorf("delimiters must be distinct: start=%q message=%q end=%q", d.Start, d.Message, d.End)
	}
	return nil
}

// Markers returns the three configurable markers followed by the channel marker.
func (d Delimiters) Markers() []string {
	return []string{d.Start, d.Message, d.End, ChannelMarker}
}
