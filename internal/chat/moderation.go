package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

// DefaultModerationURL is the public profanity predicate service.
const DefaultModerationURL = "https://vector.profanity.dev"

// ProfanityFilter gates chat turns on an external moderation predicate.
// The gate fails open: if the service is unreachable or misbehaves, the
// turn proceeds.
type ProfanityFilter struct {
	url        string
	httpClient *http.Client
}

// NewProfanityFilter creates a filter against the given moderation URL.
func NewProfanityFilter(url string) *ProfanityFilter {
	if url == "" {
		url = DefaultModerationURL
	}
	return &ProfanityFilter{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type moderationRequest struct {
	Message string `json:"message"`
}

type moderationResponse struct {
	IsProfanity bool `json:"isProfanity"`
}

// Check reports whether text is flagged by the moderation service.
func (f *ProfanityFilter) Check(ctx context.Context, text string) bool {
	payload, err := json.Marshal(moderationRequest{Message: text})
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(payload))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		log.Printf("moderation: service unavailable, allowing turn: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("moderation: service returned %d, allowing turn", resp.StatusCode)
		return false
	}

	var result moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("moderation: undecodable response, allowing turn: %v", err)
		return false
	}
	return result.IsProfanity
}
