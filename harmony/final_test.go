package harmony

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"harmony-kit/parser"
)

func TestExtractFinalContent(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "plain text is returned verbatim",
			input: "  Just an answer.\n",
			want:  "  Just an answer.\n",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
		{
			name:  "final channel",
			input: "<|start|>assistant<|channel|>final<|message|>The answer is 4.<|end|>",
			want:  "The answer is 4.",
		},
		{
			name:  "commentary only",
			input: "<|start|>assistant<|channel|>commentary<|message|>Calling the search tool<|end|>",
			want:  "Calling the search tool",
		},
		{
			name:  "final preferred over commentary",
			input: "<|start|>assistant<|channel|>commentary<|message|>note<|channel|>final<|message|>done<|end|>",
			want:  "done",
		},
		{
			name:  "analysis only yields nothing",
			input: "<|start|>assistant<|channel|>analysis<|message|>private thoughts<|end|>",
			want:  "",
		},
		{
			name:  "partial final",
			input: "<|start|>assistant<|channel|>final<|message|>Stream",
			want:  "Stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractFinalContent(tt.input, parser.DefaultDelimiters()))
		})
	}
}
