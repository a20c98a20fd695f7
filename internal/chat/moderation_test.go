package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moderationBackend(t *testing.T, flagged map[string]bool) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req moderationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode(moderationResponse{IsProfanity: flagged[req.Message]})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestProfanityFilterCleanText(t *testing.T) {
	ts := moderationBackend(t, nil)
	filter := NewProfanityFilter(ts.URL)

	assert.False(t, filter.Check(context.Background(), "innocuous question"))
}

func TestProfanityFilterFlaggedText(t *testing.T) {
	ts := moderationBackend(t, map[string]bool{"bad words": true})
	filter := NewProfanityFilter(ts.URL)

	assert.True(t, filter.Check(context.Background(), "bad words"))
	assert.False(t, filter.Check(context.Background(), "fine words"))
}

func TestProfanityFilterFailsOpenOnConnectionError(t *testing.T) {
	filter := NewProfanityFilter("http://127.0.0.1:1")

	assert.False(t, filter.Check(context.Background(), "anything"))
}

func TestProfanityFilterFailsOpenOnServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "degraded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	filter := NewProfanityFilter(ts.URL)
	assert.False(t, filter.Check(context.Background(), "anything"))
}

func TestProfanityFilterFailsOpenOnGarbageResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	filter := NewProfanityFilter(ts.URL)
	assert.False(t, filter.Check(context.Background(), "anything"))
}
