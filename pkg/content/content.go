// Package content holds the value types that flow between method handlers,
// the upstream relay and the response emitter.
package content

import "strings"

// TypeText is the only chunk type produced today.
const TypeText = "text"

// Chunk is a single normalized unit of output content.
type Chunk struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewText returns a text chunk.
func NewText(text string) Chunk {
	return Chunk{Type: TypeText, Text: text}
}

// Result is a fully materialized, ordered sequence of chunks.
type Result struct {
	Content []Chunk `json:"content"`
}

// TextResult returns a Result holding a single text chunk.
func TextResult(text string) Result {
	return Result{Content: []Chunk{NewText(text)}}
}

// Text returns the concatenated text of all text chunks in the result.
func (r Result) Text() string {
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == TypeText {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}
