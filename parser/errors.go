package parser

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable class of a strict parse failure.
type ErrorKind string

const (
	KindInvalidRole           ErrorKind = "invalid_role"
	KindInvalidChannel        ErrorKind = "invalid_channel"
	KindMissingChannel        ErrorKind = "missing_channel"
	KindMalformedTool         ErrorKind = "malformed_tool"
	KindInvalidToolArgs       ErrorKind = "invalid_tool_args"
	KindContentOutsideMessage ErrorKind = "content_outside_message"
	KindUnknownTokenPrefix    ErrorKind = "unknown_token_prefix"
)

// ParseError represents a strict parse failure at a single token
type ParseError struct {
	Kind     ErrorKind
	Token    string
	Position int // index of the offending token, -1 if unknown
	Role     string
	Channel  string
	Detail   string
	Err      error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	msg := string(e.Kind)
	switch e.Kind {
	case KindInvalidRole:
		msg = fmt.Sprintf("invalid role %q", e.Role)
	case KindInvalidChannel:
		msg = fmt.Sprintf("invalid channel %q", e.Channel)
	case KindMissingChannel:
		msg = "text payload has no channel separator"
	case KindMalformedTool:
		msg = "tool payload needs namespace, name and arguments"
	case KindInvalidToolArgs:
		msg = "tool arguments are not valid JSON"
	case KindContentOutsideMessage:
		msg = "content outside of a message"
	case KindUnknownTokenPrefix:
		msg = "unrecognized payload"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Position >= 0 {
		return fmt.Sprintf("harmony parse error at token %d: %s (token: %q)", e.Position, msg, e.Token)
	}
	return fmt.Sprintf("harmony parse error: %s (token: %q)", msg, e.Token)
}

// Unwrap returns the underlying cause, if any
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a ParseError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}
