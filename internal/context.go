package internal

import "context"

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	TurnIDKey contextKey = "turn_id"
)

// GetTurnID retrieves the turn ID from context, or "" if none is set
func GetTurnID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(TurnIDKey).(string); ok {
		return id
	}
	return ""
}

// WithTurnID adds a turn ID to the context
func WithTurnID(ctx context.Context, turnID string) context.Context {
	return context.WithValue(ctx, TurnIDKey, turnID)
}
