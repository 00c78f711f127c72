package sse

import (
	"encoding/json"

	"github.com/papercomputeco/mcprelay/pkg/content"
)

// Normalize converts an event into content chunks.
//
// Structured data is a JSON object carrying a "content" array of chunks,
// either at the top level or inside a JSON-RPC "result", or a single chunk
// object such as the frames this service emits itself. Any other data,
// including malformed JSON, becomes one text chunk holding the raw data so
// nothing from the upstream is dropped. The second return value reports
// whether the data was structured. Events without data yield no chunks.
func Normalize(ev Event) ([]content.Chunk, bool) {
	if ev.Data == "" {
		return nil, true
	}

	if chunks, ok := decodeStructured([]byte(ev.Data)); ok {
		return chunks, true
	}

	return []content.Chunk{content.NewText(ev.Data)}, false
}

// structuredPayload covers every accepted shape in a single decode pass.
type structuredPayload struct {
	Content json.RawMessage `json:"content"`
	Result  *struct {
		Content json.RawMessage `json:"content"`
	} `json:"result"`
	Type *string `json:"type"`
	Text *string `json:"text"`
}

type chunkPayload struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

func decodeStructured(data []byte) ([]content.Chunk, bool) {
	var p structuredPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, false
	}

	switch {
	case p.Content != nil:
		return decodeChunks(p.Content)
	case p.Result != nil && p.Result.Content != nil:
		return decodeChunks(p.Result.Content)
	case p.Text != nil && p.Type != nil:
		return []content.Chunk{{Type: *p.Type, Text: *p.Text}}, true
	default:
		return nil, false
	}
}

// decodeChunks decodes a JSON array of chunk objects. Every element must carry
// a string "text"; a missing "type" defaults to text.
func decodeChunks(raw json.RawMessage) ([]content.Chunk, bool) {
	var elems []chunkPayload
	if err := json.Unmarshal(raw, &elems); err != nil || elems == nil {
		return nil, false
	}

	chunks := make([]content.Chunk, 0, len(elems))
	for _, e := range elems {
		if e.Text == nil {
			return nil, false
		}

		typ := e.Type
		if typ == "" {
			typ = content.TypeText
		}
		chunks = append(chunks, content.Chunk{Type: typ, Text: *e.Text})
	}

	return chunks, true
}
