package genai

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naphat-c/nacc-digitizer/internal/models"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.Endpoint = srv.URL
	cfg.APIKey = "test-key"
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func TestGenerateFromText_Success(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "gemini-2.5-flash")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"assets\":[]}"}]}}]}`))
	})

	text, err := client.GenerateFromText(context.Background(), "extract the declaration", "## Page 1")
	require.NoError(t, err)
	assert.Equal(t, `{"assets":[]}`, text)
}

func TestGenerateFromImages_MultiPartResponse(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"ass"},{"text":"ets\":[]}"}]}}]}`))
	})

	text, err := client.GenerateFromImages(context.Background(), "extract", [][]byte{{0xFF, 0xD8}})
	require.NoError(t, err)
	// parts concatenate in order
	assert.Equal(t, `{"assets":[]}`, text)
}

func TestGenerate_RateLimitIsTransient(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GenerateFromText(context.Background(), "p", "t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTransientService))
}

func TestGenerate_ServerErrorIsTransient(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GenerateFromText(context.Background(), "p", "t")
	assert.True(t, errors.Is(err, models.ErrTransientService))
}

func TestGenerate_ClientErrorIsBlocked(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"invalid argument"}}`))
	})

	_, err := client.GenerateFromText(context.Background(), "p", "t")
	assert.True(t, errors.Is(err, models.ErrServiceBlocked))
}

func TestGenerate_PromptBlockedIsBlocked(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	})

	_, err := client.GenerateFromText(context.Background(), "p", "t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrServiceBlocked))
	assert.Contains(t, err.Error(), "SAFETY")
}

func TestGenerate_EmptyCandidatesIsBlocked(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	})

	_, err := client.GenerateFromText(context.Background(), "p", "t")
	assert.True(t, errors.Is(err, models.ErrServiceBlocked))
}

func TestGenerate_EmbeddedErrorCode(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":429,"message":"quota exceeded"}}`))
	})

	_, err := client.GenerateFromText(context.Background(), "p", "t")
	assert.True(t, errors.Is(err, models.ErrTransientService))
}

func TestGenerate_NetworkErrorIsTransient(t *testing.T) {
	cfg := DefaultConfig()
	// nothing listens here
	cfg.Endpoint = "http://127.0.0.1:1"
	cfg.Timeout = time.Second
	client := NewClient(cfg)

	_, err := client.GenerateFromText(context.Background(), "p", "t")
	assert.True(t, errors.Is(err, models.ErrTransientService))
}

func TestGenerate_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := client.GenerateFromText(context.Background(), "p", "t")
		require.Error(t, err)
	}

	// breaker is now open: the failure is still classified transient
	_, err := client.GenerateFromText(context.Background(), "p", "t")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrTransientService))
	assert.Contains(t, err.Error(), "circuit breaker")
}
