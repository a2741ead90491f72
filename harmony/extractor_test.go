package harmony

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmony-kit/parser"
)

func newTestExtractor() *Extractor {
	return NewExtractor(parser.DefaultDelimiters())
}

func TestExtractorAnalysisAcrossChunks(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("<|start|>assistant<|channel|>analysis<|message|>Thinking")
	assert.Equal(t, "Thinking", snap.Analysis)
	assert.Equal(t, ChannelAnalysis, snap.Channel)
	assert.False(t, snap.Complete)

	snap = e.Add(" more<|end|>")
	assert.Equal(t, "Thinking more", snap.Analysis)
	assert.Empty(t, snap.Final)
	assert.Empty(t, snap.Commentary)
	assert.True(t, snap.Complete)
}

func TestExtractorBufferIsConcatenation(t *testing.T) {
	chunks := []string{"<|sta", "rt|>assistant", "<|channel|>fi", "nal<|message|>", "Hi ", "there", "<|end|>", "  trailing"}
	e := newTestExtractor()

	for i, chunk := range chunks {
		snap := e.Add(chunk)
		want := strings.Join(chunks[:i+1], "")
		assert.Equal(t, want, e.Buffer())
		assert.Equal(t, want, snap.Raw)
	}
}

func TestExtractorMarkersSplitMidToken(t *testing.T) {
	e := newTestExtractor()

	steps := []struct {
		chunk     string
		wantFinal string
		complete  bool
	}{
		{"<|start|>assistant<|chan", "", false},
		{"nel|>final<|mess", "", false},
		{"age|>Hel", "Hel", false},
		{"lo<|e", "Hello", false},
		{"nd|>", "Hello", true},
	}

	for _, step := range steps {
		snap := e.Add(step.chunk)
		assert.Equal(t, step.wantFinal, snap.Final, "after %q", e.Buffer())
		assert.Equal(t, step.complete, snap.Complete, "after %q", e.Buffer())
	}
	assert.Equal(t, ChannelFinal, e.Channel())
}

func TestExtractorCompletenessIsNotMonotonic(t *testing.T) {
	e := newTestExtractor()

	assert.False(t, e.Add("<|start|>one<|start|>two<|message|>content").Complete)
	assert.False(t, e.Add("<|end|>").Complete)
	assert.True(t, e.Add("<|end|>").Complete)
	assert.False(t, e.Add("<|start|>three").Complete)
}

func TestExtractorUnframedTextIsFinal(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("  plain words ")
	assert.Equal(t, "  plain words ", snap.Final)
	assert.Empty(t, snap.Channel)
	assert.False(t, snap.Complete)

	snap = e.Add("<|end|>")
	assert.Equal(t, "  plain words <|end|>", snap.Final)
}

func TestExtractorMultipleChannelsInOneMessage(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("<|start|>assistant" +
		"<|channel|>commentary<|message|>c1" +
		"<|channel|>commentary<|message|>c2" +
		"<|channel|>analysis<|message|>a1" +
		"<|channel|>final<|message|>f")

	assert.Equal(t, "c1\nc2", snap.Commentary)
	assert.Equal(t, "a1", snap.Analysis)
	assert.Equal(t, "f", snap.Final)
	assert.Equal(t, ChannelFinal, snap.Channel)
}

func TestExtractorActiveChannelKeepsOnlyLastSection(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("<|start|>assistant<|channel|>analysis<|message|>one<|channel|>analysis<|message|>two")
	assert.Equal(t, "two", snap.Analysis)

	snap = e.Add("<|end|>")
	assert.Equal(t, "two", snap.Analysis)
}

func TestExtractorWindowIsLastMessage(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("<|start|>assistant<|channel|>analysis<|message|>think<|end|>" +
		"<|start|>assistant<|channel|>final<|message|>answer<|end|>")

	assert.Empty(t, snap.Analysis)
	assert.Equal(t, "answer", snap.Final)
	assert.True(t, snap.Complete)
}

func TestExtractorTrailingTextGoesToDetectedChannel(t *testing.T) {
	e := newTestExtractor()

	// The new message has no channel header yet, so its partial body is
	// attributed to the last declared channel.
	snap := e.Add("<|start|>assistant<|channel|>analysis<|message|>A<|end|><|start|>assistant<|message|>partial")

	assert.Equal(t, ChannelAnalysis, snap.Channel)
	assert.Equal(t, "partial", snap.Analysis)
}

func TestExtractorUnknownChannel(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("<|start|>assistant<|channel|>scratchpad<|message|>notes")

	assert.Equal(t, "scratchpad", snap.Channel)
	assert.Empty(t, snap.Analysis)
	assert.Empty(t, snap.Final)
	assert.Empty(t, snap.Commentary)
}

func TestExtractorChannelWithRecipient(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add(`<|start|>assistant<|channel|>commentary to=functions.search <|constrain|>json<|message|>{"q":"go"}<|call|>`)

	assert.Equal(t, ChannelCommentary, snap.Channel)
	assert.Equal(t, `{"q":"go"}`, snap.Commentary)
}

func TestExtractorCleansMarkersAndFragments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"cut off end marker", "<|start|>assistant<|channel|>final<|message|>Done<|en", "Done"},
		{"lone angle bracket", "<|start|>assistant<|channel|>final<|message|>Done <", "Done"},
		{"embedded return marker", "<|start|>assistant<|channel|>final<|message|>Done<|return|>", "Done"},
		{"surrounding whitespace", "<|start|>assistant<|channel|>final<|message|>\n  Done \n", "Done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newTestExtractor().Add(tt.input).Final)
		})
	}
}

func TestExtractorConstrainAndCallMarkers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"constrain json", `<|start|>assistant<|channel|>commentary<|constrain|>json<|message|>{"location": "SF"}<|end|>`, `{"location": "SF"}`},
		{"constrain after recipient", `<|start|>assistant<|channel|>commentary to=functions.get_weather<|constrain|>json<|message|>{"city": "Tokyo"}<|end|>`, `{"city": "Tokyo"}`},
		{"call stop marker", `<|start|>assistant<|channel|>commentary<|message|>tool action<|call|>`, "tool action"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := newTestExtractor().Add(tt.input)
			assert.Equal(t, ChannelCommentary, snap.Channel)
			assert.Equal(t, tt.want, snap.Commentary)
		})
	}
}

// A channel declared without its message marker yet inherits the trailing
// body of the previous section until the marker arrives.
func TestExtractorChannelSwitchMidStream(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("<|start|>assistant<|channel|>analysis<|message|>A<|channel|>final")
	assert.Equal(t, ChannelFinal, snap.Channel)
	assert.Equal(t, "A", snap.Analysis)
	assert.Equal(t, "Afinal", snap.Final)

	snap = e.Add("<|message|>")
	assert.Equal(t, "A", snap.Analysis)
	assert.Equal(t, "", snap.Final)

	snap = e.Add("Done")
	assert.Equal(t, "A", snap.Analysis)
	assert.Equal(t, "Done", snap.Final)
}

func TestExtractorHeaderlessFragment(t *testing.T) {
	e := newTestExtractor()

	snap := e.Add("<|channel|>final<|message|>mid-stream text")

	assert.Equal(t, "mid-stream text", snap.Final)
	assert.False(t, snap.Complete)
}

func TestExtractorNeverPanicsOnGarbage(t *testing.T) {
	inputs := []string{
		"<|channel|>",
		"<|message|><|message|><|end|>",
		"<|start|><|channel|><|message|><|channel|>",
		"<|channel|>final<|end|><|message|>",
		strings.Repeat("<|", 50),
	}
	for _, input := range inputs {
		e := newTestExtractor()
		require.NotPanics(t, func() { e.Add(input) }, "input %q", input)
		assert.Equal(t, input, e.Buffer())
	}
}

func TestExtractorReset(t *testing.T) {
	e := newTestExtractor()
	e.Add("<|start|>assistant<|channel|>final<|message|>x<|end|>")
	require.Equal(t, ChannelFinal, e.Channel())

	e.Reset()
	assert.Empty(t, e.Buffer())
	assert.Empty(t, e.Channel())
	assert.Equal(t, Snapshot{}, e.Snapshot())

	e.Reset()
	assert.Empty(t, e.Buffer())

	snap := e.Add("fresh")
	assert.Equal(t, "fresh", snap.Final)
	assert.Empty(t, snap.Channel)
}

func TestExtractorSnapshotReturnsLast(t *testing.T) {
	e := newTestExtractor()
	snap := e.Add("<|start|>assistant<|channel|>analysis<|message|>hmm")

	assert.Equal(t, snap, e.Snapshot())
}

func TestExtractorCustomDelimiters(t *testing.T) {
	e := NewExtractor(parser.Delimiters{Start: "<s>", Message: "<m>", End: "<e>"})

	snap := e.Add("<s>assistant<|channel|>final<m>custom<e>")

	assert.Equal(t, "custom", snap.Final)
	assert.True(t, snap.Complete)
}

func TestSnapshotText(t *testing.T) {
	snap := Snapshot{Analysis: "a", Final: "f", Commentary: "c"}

	assert.Equal(t, "a", snap.Text(ChannelAnalysis))
	assert.Equal(t, "f", snap.Text(ChannelFinal))
	assert.Equal(t, "c", snap.Text(ChannelCommentary))
	assert.Empty(t, snap.Text("other"))
}
