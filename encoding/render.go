// Package encoding renders structured conversations into Harmony text and
// maps encoding profile names to render/parse implementations.
package encoding

import (
	"encoding/json"
	"fmt"
	"strings"

	"harmony-kit/parser"
	"harmony-kit/types"
)

// RenderError reports a value that cannot be expressed in the payload grammar.
type RenderError struct {
	Message int // message index
	Chunk   int // chunk index, -1 for message-level problems
	Reason  string
	Err     error
}

// Error implements the error interface
func (e *RenderError) Error() string {
	where := fmt.Sprintf("message %d", e.Message)
	if e.Chunk >= 0 {
		where += fmt.Sprintf(" chunk %d", e.Chunk)
	}
	if e.Err != nil {
		return fmt.Sprintf("harmony render error at %s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("harmony render error at %s: %s", where, e.Reason)
}

// Unwrap returns the underlying cause, if any
func (e *RenderError) Unwrap() error {
	return e.Err
}

// RenderTokens renders conv as the token sequence the strict parser accepts:
// START+role, then MESSAGE and one payload per chunk, then END. A message
// with no chunks renders as START+role, MESSAGE, END.
func RenderTokens(conv types.Conversation, delims parser.Delimiters) ([]string, error) {
	d := delims.OrDefault()
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("invalid delimiters: %w", err)
	}

	tokens := make([]string, 0, len(conv.Messages)*4)
	for mi, msg := range conv.Messages {
		if !msg.Role.Valid() {
			return nil, &RenderError{Message: mi, Chunk: -1, Reason: fmt.Sprintf("invalid role %q", msg.Role)}
		}
		tokens = append(tokens, d.Start+msg.Role.String())
		if len(msg.Content) == 0 {
			tokens = append(tokens, d.Message)
		}
		// Payloads carry no terminator, so each needs its own message marker
		// to survive Tokenize.
		for ci, chunk := range msg.Content {
			payload, err := renderPayload(chunk, d)
			if err != nil {
				return nil, &RenderError{Message: mi, Chunk: ci, Reason: "cannot render chunk", Err: err}
			}
			tokens = append(tokens, d.Message, payload)
		}
		tokens = append(tokens, d.End)
	}
	return tokens, nil
}

// RenderString renders conv and concatenates the tokens.
func RenderString(conv types.Conversation, delims parser.Delimiters) (string, error) {
	tokens, err := RenderTokens(conv, delims)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens, ""), nil
}

func renderPayload(chunk types.ContentChunk, d parser.Delimiters) (string, error) {
	if err := chunk.Validate(); err != nil {
		return "", err
	}

	var payload string
	switch chunk.Type {
	case types.ChunkText:
		payload = parser.TextPrefix + chunk.Channel.String() + parser.PayloadSep + chunk.Text
	case types.ChunkToolCall:
		call := chunk.ToolCall
		for field, value := range map[string]string{"namespace": call.Namespace, "name": call.Name} {
			if strings.Contains(value, parser.PayloadSep) {
				return "", fmt.Errorf("tool %s %q contains %q", field, value, parser.PayloadSep)
			}
		}
		args, err := encodeArguments(call.Arguments)
		if err != nil {
			return "", fmt.Errorf("encode arguments for %s.%s: %w", call.Namespace, call.Name, err)
		}
		payload = parser.ToolPrefix + call.Namespace + parser.PayloadSep + call.Name + parser.PayloadSep + args
	}

	for _, marker := range []string{d.Start, d.Message, d.End} {
		if strings.Contains(payload, marker) {
			return "", fmt.Errorf("payload contains delimiter %q", marker)
		}
	}
	return payload, nil
}

// encodeArguments marshals tool arguments. json.Marshal escapes '<' and '>',
// so default markers inside string values cannot leak into the payload.
func encodeArguments(args any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
