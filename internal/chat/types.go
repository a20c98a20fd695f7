package chat

import "encoding/json"

// Inquiry is one user chat turn. Tools optionally restricts which
// capabilities the model may invoke for this turn; empty means all.
type Inquiry struct {
	Question string   `json:"question"`
	Tools    []string `json:"tools,omitempty"`
}

// Metadata reports token counts, timing, and model identity for a
// completed turn.
type Metadata struct {
	Model            string  `json:"model"`
	ResponseTime     string  `json:"responseTime"`
	TokensPerSecond  float64 `json:"tokensPerSecond"`
	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	TotalTokens      int64   `json:"totalTokens"`
}

// Chunk is one unit of a streamed response: either a content fragment
// or the single terminal metadata record.
type Chunk struct {
	Content  string
	Metadata *Metadata
}

// IsMetadata reports whether this chunk is the terminal metadata record.
func (c Chunk) IsMetadata() bool {
	return c.Metadata != nil
}

// metadataFrame is the wire form of the terminal record.
type metadataFrame struct {
	Content    *string   `json:"content"`
	Metadata   *Metadata `json:"metadata"`
	IsMetadata bool      `json:"isMetadata"`
}

// Frame serializes the terminal metadata record. When full serialization
// fails a minimal marker frame is returned instead; when even that
// fails, ok is false and the stream should end without a metadata chunk.
func (m *Metadata) Frame() (data []byte, ok bool) {
	data, err := json.Marshal(metadataFrame{Metadata: m, IsMetadata: true})
	if err == nil {
		return data, true
	}

	data, err = json.Marshal(metadataFrame{IsMetadata: true})
	if err == nil {
		return data, true
	}
	return nil, false
}
