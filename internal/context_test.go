package internal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTurnID(ctx))

	ctx = WithTurnID(ctx, "turn-1")
	assert.Equal(t, "turn-1", GetTurnID(ctx))
}
