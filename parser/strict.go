package parser

import (
	"encoding/json"
	"strings"

	"harmony-kit/types"
)

// State is the coarse state of a Parser.
type State int

const (
	StateIdle State = iota
	StateInMessage
)

// String returns the string representation of the State
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInMessage:
		return "in_message"
	default:
		return "unknown"
	}
}

// Parser is a strict, single-pass state machine over tokens produced by
// Tokenize (or any tokenizer that emits the same shapes). The first grammar
// violation is returned and sticks: later pushes return the same error.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	delims       Delimiters
	conversation types.Conversation
	current      *types.Message
	position     int
	err          error

	// Channel bookkeeping only exists so that plain payloads following a
	// <|channel|>name<|message|> header (as emitted by a permissive
	// tokenizer) can be skipped. It never reaches the output.
	lastChannel      string
	sawChannel       bool
	expectingPayload bool
}

// NewParser creates a Parser for the given delimiters.
func NewParser(delims Delimiters) *Parser {
	p := &Parser{delims: delims.OrDefault()}
	p.Reset()
	return p
}

// Reset discards all parsed state, including a stored error.
func (p *Parser) Reset() {
	p.conversation = types.NewConversation()
	p.current = nil
	p.position = 0
	p.err = nil
	p.clearChannel()
}

// State reports whether a message is currently open
func (p *Parser) State() State {
	if p.current != nil {
		return StateInMessage
	}
	return StateIdle
}

// Err returns the error that stopped the parser, if any
func (p *Parser) Err() error {
	return p.err
}

// Push consumes one token.
func (p *Parser) Push(token string) error {
	if p.err != nil {
		return p.err
	}
	if err := p.push(token); err != nil {
		p.err = err
		return err
	}
	p.position++
	return nil
}

func (p *Parser) push(token string) error {
	d := p.delims

	if strings.HasPrefix(token, d.Start) {
		name := token[len(d.Start):]
		role, ok := types.ParseRole(name)
		if !ok {
			return p.fail(KindInvalidRole, token, func(e *ParseError) { e.Role = name })
		}
		p.closeMessage()
		p.current = &types.Message{Role: role, Content: []types.ContentChunk{}}
		p.clearChannel()
		return nil
	}

	if token == d.End {
		p.closeMessage()
		p.clearChannel()
		return nil
	}

	if p.current == nil {
		return p.fail(KindContentOutsideMessage, token, nil)
	}

	switch {
	case strings.HasPrefix(token, ChannelMarker):
		p.lastChannel = token[len(ChannelMarker):]
		p.sawChannel = true
		p.expectingPayload = false
		return nil
	case token == d.Message:
		p.expectingPayload = true
		return nil
	case strings.HasPrefix(token, TextPrefix):
		return p.pushText(token)
	case strings.HasPrefix(token, ToolPrefix):
		return p.pushTool(token)
	case p.sawChannel && p.expectingPayload:
		p.sawChannel = false
		p.expectingPayload = false
		return nil
	default:
		return p.fail(KindUnknownTokenPrefix, token, nil)
	}
}

func (p *Parser) pushText(token string) error {
	rest := token[len(TextPrefix):]
	sep := strings.Index(rest, PayloadSep)
	if sep < 0 {
		return p.fail(KindMissingChannel, token, nil)
	}
	name := rest[:sep]
	channel, ok := types.ParseChannel(name)
	if !ok {
		return p.fail(KindInvalidChannel, token, func(e *ParseError) { e.Channel = name })
	}
	p.current.Content = append(p.current.Content, types.NewTextChunk(channel, rest[sep+len(PayloadSep):]))
	p.sawChannel = false
	p.expectingPayload = false
	return nil
}

func (p *Parser) pushTool(token string) error {
	rest := token[len(ToolPrefix):]
	first := strings.Index(rest, PayloadSep)
	if first < 0 {
		return p.fail(KindMalformedTool, token, func(e *ParseError) { e.Detail = "missing namespace separator" })
	}
	namespace := rest[:first]
	rest = rest[first+len(PayloadSep):]
	second := strings.Index(rest, PayloadSep)
	if second < 0 {
		return p.fail(KindMalformedTool, token, func(e *ParseError) { e.Detail = "missing name separator" })
	}
	name := rest[:second]
	raw := rest[second+len(PayloadSep):]

	var args any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return p.fail(KindInvalidToolArgs, token, func(e *ParseError) {
			e.Detail = namespace + "." + name
			e.Err = err
		})
	}
	p.current.Content = append(p.current.Content, types.NewToolCallChunk(namespace, name, args))
	p.sawChannel = false
	p.expectingPayload = false
	return nil
}

// Finish closes any open message and returns the conversation parsed so far.
// If a push failed, the stored error is returned instead.
func (p *Parser) Finish() (types.Conversation, error) {
	if p.err != nil {
		return types.Conversation{}, p.err
	}
	p.closeMessage()
	p.clearChannel()
	return p.conversation, nil
}

func (p *Parser) closeMessage() {
	if p.current == nil {
		return
	}
	p.conversation.Append(*p.current)
	p.current = nil
}

func (p *Parser) clearChannel() {
	p.lastChannel = ""
	p.sawChannel = false
	p.expectingPayload = false
}

func (p *Parser) fail(kind ErrorKind, token string, fill func(*ParseError)) error {
	e := &ParseError{Kind: kind, Token: token, Position: p.position}
	if fill != nil {
		fill(e)
	}
	return e
}

// Parse runs a fresh Parser over tokens and returns the conversation, or the
// first error encountered as a *ParseError.
func Parse(tokens []string, delims Delimiters) (types.Conversation, error) {
	conv, perr := parseTokens(tokens, delims)
	if perr != nil {
		return types.Conversation{}, perr
	}
	return conv, nil
}

func parseTokens(tokens []string, delims Delimiters) (types.Conversation, *ParseError) {
	p := NewParser(delims)
	for _, token := range tokens {
		if err := p.Push(token); err != nil {
			return types.Conversation{}, err.(*ParseError)
		}
	}
	p.closeMessage()
	p.clearChannel()
	return p.conversation, nil
}

// ParseOutcome is the tagged result of TryParse.
type ParseOutcome struct {
	Conversation types.Conversation
	Err          *ParseError
}

// OK returns true if the parse succeeded
func (o ParseOutcome) OK() bool {
	return o.Err == nil
}

// TryParse performs the same parse as Parse but reports failure inside the
// outcome instead of as an error return.
func TryParse(tokens []string, delims Delimiters) ParseOutcome {
	conv, perr := parseTokens(tokens, delims)
	if perr != nil {
		return ParseOutcome{Err: perr}
	}
	return ParseOutcome{Conversation: conv}
}
