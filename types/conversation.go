// Package types holds the structured conversation values shared by the
// Harmony parser, renderer and pipeline.
package types

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Role identifies the author of a message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Roles lists every supported role in declaration order.
var Roles = []Role{RoleSystem, RoleDeveloper, RoleUser, RoleAssistant, RoleTool}

// String returns the wire name of the role
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the supported roles
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleDeveloper, RoleUser, RoleAssistant, RoleTool:
		return true
	default:
		return false
	}
}

// ParseRole converts a wire name to a Role. Unlike a lenient lookup it does
// not fall back to assistant: unknown names report ok=false.
func ParseRole(name string) (Role, bool) {
	r := Role(name)
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Channel is the content routing name used by structured content chunks.
type Channel string

const (
	ChannelMessage   Channel = "message"
	ChannelReasoning Channel = "reasoning"
	ChannelTool      Channel = "tool"
	ChannelFunction  Channel = "function"
	ChannelError     Channel = "error"
)

// Channels lists every structured channel in declaration order.
var Channels = []Channel{ChannelMessage, ChannelReasoning, ChannelTool, ChannelFunction, ChannelError}

// String returns the wire name of the channel
func (c Channel) String() string {
	return string(c)
}

// Valid reports whether c is one of the structured channels
func (c Channel) Valid() bool {
	switch c {
	case ChannelMessage, ChannelReasoning, ChannelTool, ChannelFunction, ChannelError:
		return true
	default:
		return false
	}
}

// ParseChannel converts a wire name to a Channel, reporting ok=false for
// names outside the structured set.
func ParseChannel(name string) (Channel, bool) {
	c := Channel(name)
	if !c.Valid() {
		return "", false
	}
	return c, true
}

// ChunkType tags the variant held by a ContentChunk.
type ChunkType string

const (
	ChunkText     ChunkType = "text"
	ChunkToolCall ChunkType = "tool_call"
)

// ToolCall is a structured tool invocation. Arguments is an opaque value whose
// shape is defined by the tool; it holds whatever encoding/json decodes.
type ToolCall struct {
	Namespace string `json:"namespace" yaml:"namespace"`
	Name      string `json:"name" yaml:"name"`
	Arguments any    `json:"arguments" yaml:"arguments"`
}

// Argument looks up a value inside the arguments using a gjson path
// such as "query" or "filters.0.field".
func (t ToolCall) Argument(path string) gjson.Result {
	raw, err := json.Marshal(t.Arguments)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(raw, path)
}

// ContentChunk is one piece of message content: either text on a
// structured channel or a tool call (whose channel is always tool).
type ContentChunk struct {
	Type     ChunkType `json:"type" yaml:"type"`
	Channel  Channel   `json:"channel" yaml:"channel"`
	Text     string    `json:"text,omitempty" yaml:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty" yaml:"tool_call,omitempty"`
}

// IsText returns true if the chunk carries text
func (c ContentChunk) IsText() bool {
	return c.Type == ChunkText
}

// IsToolCall returns true if the chunk carries a tool call
func (c ContentChunk) IsToolCall() bool {
	return c.Type == ChunkToolCall
}

// Validate checks the chunk invariants: a known channel, and the tool
// channel with a non-nil call for tool_call chunks.
func (c ContentChunk) Validate() error {
	switch c.Type {
	case ChunkText:
		if !c.Channel.Valid() {
			return fmt.Errorf("invalid channel %q", c.Channel)
		}
	case ChunkToolCall:
		if c.Channel != ChannelTool {
			return fmt.Errorf("tool_call chunk must use channel %q, got %q", ChannelTool, c.Channel)
		}
		if c.ToolCall == nil {
			return fmt.Errorf("tool_call chunk has no tool call")
		}
	default:
		return fmt.Errorf("unknown chunk type %q", c.Type)
	}
	return nil
}

// NewTextChunk builds a text chunk on the given channel.
func NewTextChunk(channel Channel, text string) ContentChunk {
	return ContentChunk{Type: ChunkText, Channel: channel, Text: text}
}

// NewToolCallChunk builds a tool_call chunk. The channel is fixed to tool.
func NewToolCallChunk(namespace, name string, arguments any) ContentChunk {
	return ContentChunk{
		Type:    ChunkToolCall,
		Channel: ChannelTool,
		ToolCall: &ToolCall{
			Namespace: namespace,
			Name:      name,
			Arguments: arguments,
		},
	}
}

// Message is a role plus its ordered content chunks.
type Message struct {
	Role    Role           `json:"role" yaml:"role"`
	Content []ContentChunk `json:"content" yaml:"content"`
}

// NewMessage builds a message from the given chunks.
func NewMessage(role Role, chunks ...ContentChunk) Message {
	content := make([]ContentChunk, 0, len(chunks))
	content = append(content, chunks...)
	return Message{Role: role, Content: content}
}

// Text joins the text of every chunk on the given channel with newlines
func (m Message) Text(channel Channel) string {
	var out string
	for _, chunk := range m.Content {
		if !chunk.IsText() || chunk.Channel != channel {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += chunk.Text
	}
	return out
}

// ToolCalls returns the tool calls carried by the message, in order
func (m Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, chunk := range m.Content {
		if chunk.IsToolCall() && chunk.ToolCall != nil {
			calls = append(calls, *chunk.ToolCall)
		}
	}
	return calls
}

// Conversation is an ordered list of messages.
type Conversation struct {
	Messages []Message `json:"messages" yaml:"messages"`
}

// NewConversation builds a conversation from messages.
func NewConversation(messages ...Message) Conversation {
	msgs := make([]Message, 0, len(messages))
	msgs = append(msgs, messages...)
	return Conversation{Messages: msgs}
}

// Append adds messages to the end of the conversation.
func (c *Conversation) Append(messages ...Message) {
	c.Messages = append(c.Messages, messages...)
}

// Len returns the number of messages
func (c Conversation) Len() int {
	return len(c.Messages)
}
