package harmony

import "harmony-kit/parser"

// ExtractFinalContent returns the user-facing text of a complete or partial
// Harmony output: the final channel, or the commentary channel when there is
// no final text. Text with no Harmony markers comes back unchanged.
func ExtractFinalContent(text string, delims parser.Delimiters) string {
	snap := NewExtractor(delims).Add(text)
	if snap.Final != "" {
		return snap.Final
	}
	return snap.Commentary
}
