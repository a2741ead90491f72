package encoding

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"harmony-kit/parser"
	"harmony-kit/types"
)

// Name identifies an encoding profile.
type Name string

// HarmonyTextV1 is the delimiter/payload grammar implemented by this module.
const HarmonyTextV1 Name = "harmony-text-v1"

// UnknownEncodingError is returned when a profile name has no registration.
type UnknownEncodingError struct {
	Name Name
}

// Error implements the error interface
func (e *UnknownEncodingError) Error() string {
	return fmt.Sprintf("unknown encoding: %s", e.Name)
}

// RenderFunc turns a conversation into tokens.
type RenderFunc func(conv types.Conversation, delims parser.Delimiters) ([]string, error)

// ParseFunc turns tokens back into a conversation.
type ParseFunc func(tokens []string, delims parser.Delimiters) (types.Conversation, error)

// Profile is the render/parse pair behind an encoding name.
type Profile struct {
	Render RenderFunc
	Parse  ParseFunc
}

var (
	registryMu sync.RWMutex
	registry   = map[Name]Profile{
		HarmonyTextV1: {Render: RenderTokens, Parse: parser.Parse},
	}
)

// Register adds or replaces a profile.
func Register(name Name, profile Profile) error {
	if name == "" {
		return fmt.Errorf("encoding name is empty")
	}
	if profile.Render == nil || profile.Parse == nil {
		return fmt.Errorf("encoding %s: render and parse are required", name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = profile
	return nil
}

// Names lists registered profiles in sorted order.
func Names() []Name {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]Name, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// Encoding binds a profile to a delimiter set.
type Encoding struct {
	name    Name
	delims  parser.Delimiters
	profile Profile
}

// LoadEncoding returns the encoding registered under name, using delims
// (zero fields take the defaults).
func LoadEncoding(name Name, delims parser.Delimiters) (*Encoding, error) {
	registryMu.RLock()
	profile, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownEncodingError{Name: name}
	}

	d := delims.OrDefault()
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}
	return &Encoding{name: name, delims: d, profile: profile}, nil
}

// Name returns the profile name
func (e *Encoding) Name() Name { return e.name }

// Delimiters returns the bound delimiter set
func (e *Encoding) Delimiters() parser.Delimiters { return e.delims }

// Render renders conv into tokens.
func (e *Encoding) Render(conv types.Conversation) ([]string, error) {
	return e.profile.Render(conv, e.delims)
}

// RenderString renders conv into a single string.
func (e *Encoding) RenderString(conv types.Conversation) (string, error) {
	tokens, err := e.Render(conv)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens, ""), nil
}

// Parse strictly parses tokens.
func (e *Encoding) Parse(tokens []string) (types.Conversation, error) {
	return e.profile.Parse(tokens, e.delims)
}

// ParseCompletion tokenizes raw text and strictly parses the tokens.
func (e *Encoding) ParseCompletion(raw string) (types.Conversation, error) {
	return e.Parse(parser.Tokenize(raw, e.delims))
}
