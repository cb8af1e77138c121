package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

func TestClientSendsPing(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	msgCh := make(chan map[string]any, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if !assert.NoError(t, err, "accept ws") {
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg map[string]any
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			select {
			case msgCh <- msg:
			default:
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 20*time.Millisecond, zap.NewNop())

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, nil)
	}()

	for {
		select {
		case msg := <-msgCh:
			if msg["method"] == "ping" {
				return
			}
		case <-ctx.Done():
			require.FailNow(t, "timed out waiting for ping")
		}
	}
}

func TestClientResubscribesAfterReconnect(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var conns atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if !assert.NoError(t, err, "accept ws") {
			return
		}
		n := conns.Add(1)
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		assert.Contains(t, string(data), "subscribe", "expected subscription first")
		if n == 1 {
			_ = conn.Close(websocket.StatusGoingAway, "restart")
			return
		}
		payload := `{"channel":"swapOutcome","data":{"correlation_id":"dca/1/0"}}`
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"channel":"pong"}`))
		_ = conn.Write(ctx, websocket.MessageText, []byte(payload))
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	client := New(wsURL, 10*time.Millisecond, 0, zap.NewNop())
	require.NoError(t, client.Subscribe(ctx, map[string]any{"method": "subscribe", "channel": "swapOutcome"}))

	got := make(chan Envelope, 1)
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()
	go func() {
		_ = client.Run(runCtx, func(env Envelope) {
			select {
			case got <- env:
			default:
			}
		})
	}()

	select {
	case env := <-got:
		require.Equal(t, "swapOutcome", env.Channel)
		require.GreaterOrEqual(t, conns.Load(), int32(2), "expected reconnect")
	case <-ctx.Done():
		require.FailNow(t, "timed out waiting for outcome")
	}
}
