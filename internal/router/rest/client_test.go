package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPostJSONSendsHeadersAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/swap", r.URL.Path)
		assert.Equal(t, "0xabc", r.Header.Get("X-Request-Digest"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "ack-" + body["correlation_id"]})
	}))
	defer server.Close()

	client := New(server.URL+"/", time.Second, zap.NewNop())
	var out struct {
		ID string `json:"id"`
	}
	err := client.PostJSON(context.Background(), "/swap", map[string]string{"X-Request-Digest": "0xabc"}, map[string]string{"correlation_id": "dca/1/0"}, &out)
	require.NoError(t, err)
	require.Equal(t, "ack-dca/1/0", out.ID)
}

func TestPostJSONStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(server.URL, time.Second, nil)
	err := client.PostJSON(context.Background(), "/swap", nil, struct{}{}, nil)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	require.True(t, statusErr.Retryable())
}
