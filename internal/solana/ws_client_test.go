package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// fakeNode serves one script per accepted connection; n counts
// connections from 1.
func fakeNode(t *testing.T, script func(c *websocket.Conn, n int)) string {
	t.Helper()
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		script(c, int(conns.Add(1)))
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// drain reads until the client goes away.
func drain(c *websocket.Conn) {
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func readSubscribe(c *websocket.Conn) (wsRequest, bool) {
	var req wsRequest
	_, frame, err := c.ReadMessage()
	if err != nil || json.Unmarshal(frame, &req) != nil {
		return req, false
	}
	return req, true
}

func ackWith(c *websocket.Conn, reqID uint64, subID int64) {
	_ = c.WriteJSON(map[string]interface{}{"jsonrpc": "2.0", "id": reqID, "result": subID})
}

func notifyWith(c *websocket.Conn, subID int64, slot uint64, txErr interface{}) {
	_ = c.WriteJSON(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "signatureNotification",
		"params": map[string]interface{}{
			"subscription": subID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": slot},
				"value":   map[string]interface{}{"err": txErr},
			},
		},
	})
}

func fastOptions() *WSOptions {
	return &WSOptions{Backoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond, AckTimeout: 2 * time.Second}
}

func receive(t *testing.T, ch <-chan SignatureNotification) (SignatureNotification, bool) {
	t.Helper()
	select {
	case n, ok := <-ch:
		return n, ok
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting on subscription channel")
		return SignatureNotification{}, false
	}
}

func TestSubscriber_DeliversOneNotification(t *testing.T) {
	var got atomic.Value
	url := fakeNode(t, func(c *websocket.Conn, _ int) {
		req, ok := readSubscribe(c)
		if !ok {
			return
		}
		got.Store(req)
		ackWith(c, req.ID, 77)
		notifyWith(c, 77, 4242, nil)
		drain(c)
	})

	s, err := NewWSClient(context.Background(), url, fastOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	ch, err := s.SubscribeSignature(context.Background(), "5sig", rpc.CommitmentConfirmed)
	require.NoError(t, err)

	n, ok := receive(t, ch)
	require.True(t, ok)
	assert.Equal(t, "5sig", n.Signature)
	assert.Equal(t, uint64(4242), n.Slot)
	assert.Nil(t, n.Err)

	_, ok = receive(t, ch)
	assert.False(t, ok, "channel stays closed after the notification")

	req := got.Load().(wsRequest)
	assert.Equal(t, "signatureSubscribe", req.Method)
	require.Len(t, req.Params, 2)
	assert.Equal(t, "5sig", req.Params[0])
	assert.Equal(t, map[string]interface{}{"commitment": "confirmed"}, req.Params[1])
}

func TestSubscriber_FailedTransaction(t *testing.T) {
	url := fakeNode(t, func(c *websocket.Conn, _ int) {
		req, ok := readSubscribe(c)
		if !ok {
			return
		}
		ackWith(c, req.ID, 1)
		notifyWith(c, 1, 9, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}})
		drain(c)
	})

	s, err := NewWSClient(context.Background(), url, fastOptions(), nil)
	require.NoError(t, err)
	defer s.Close()

	ch, err := s.SubscribeSignature(context.Background(), "sig", "")
	require.NoError(t, err)
	n, ok := receive(t, ch)
	require.True(t, ok)
	assert.NotNil(t, n.Err)
}

func TestSubscriber_NodeRejectsSubscription(t *testing.T) {
	url := fakeNode(t, func(c *websocket.Conn, _ int) {
		req, ok := readSubscribe(c)
		if !ok {
			return
		}
		_ = c.WriteJSON(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error":   map[string]interface{}{"code": -32602, "message": "Invalid signature"},
		})
		drain(c)
	})

	s, err := NewWSClient(context.Background(), url, fastOptions(), nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SubscribeSignature(context.Background(), "bad", rpc.CommitmentConfirmed)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32602, rpcErr.Code)
}

func TestSubscriber_ResubscribesAfterDrop(t *testing.T) {
	url := fakeNode(t, func(c *websocket.Conn, n int) {
		req, ok := readSubscribe(c)
		if !ok {
			return
		}
		if n == 1 {
			ackWith(c, req.ID, 10)
			return // drop the connection before notifying
		}
		ackWith(c, req.ID, 20)
		notifyWith(c, 20, 500, nil)
		drain(c)
	})

	s, err := NewWSClient(context.Background(), url, fastOptions(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	ch, err := s.SubscribeSignature(context.Background(), "sig", rpc.CommitmentConfirmed)
	require.NoError(t, err)

	n, ok := receive(t, ch)
	require.True(t, ok, "watch should survive the reconnect")
	assert.Equal(t, uint64(500), n.Slot)
}

func TestSubscriber_CancelClosesChannel(t *testing.T) {
	url := fakeNode(t, func(c *websocket.Conn, _ int) {
		if req, ok := readSubscribe(c); ok {
			ackWith(c, req.ID, 3)
		}
		drain(c)
	})

	s, err := NewWSClient(context.Background(), url, fastOptions(), nil)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.SubscribeSignature(ctx, "sig", rpc.CommitmentConfirmed)
	require.NoError(t, err)
	cancel()

	_, ok := receive(t, ch)
	assert.False(t, ok)
}

func TestSubscriber_Close(t *testing.T) {
	url := fakeNode(t, func(c *websocket.Conn, _ int) {
		if req, ok := readSubscribe(c); ok {
			ackWith(c, req.ID, 5)
		}
		drain(c)
	})

	s, err := NewWSClient(context.Background(), url, fastOptions(), nil)
	require.NoError(t, err)

	ch, err := s.SubscribeSignature(context.Background(), "sig", rpc.CommitmentConfirmed)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, ok := receive(t, ch)
	assert.False(t, ok, "close ends open watches")

	_, err = s.SubscribeSignature(context.Background(), "sig", rpc.CommitmentConfirmed)
	assert.ErrorIs(t, err, ErrSubscriberClosed)
}

func TestNewWSClient_DialError(t *testing.T) {
	_, err := NewWSClient(context.Background(), "ws://127.0.0.1:1", &WSOptions{DialTimeout: 200 * time.Millisecond}, nil)
	require.Error(t, err)
}

func TestWSOptions_Defaults(t *testing.T) {
	o := WSOptions{Keepalive: 5 * time.Second}.withDefaults()
	assert.Equal(t, 5*time.Second, o.Keepalive)
	assert.Equal(t, DefaultWSOptions().AckTimeout, o.AckTimeout)
	assert.Equal(t, DefaultWSOptions().MaxBackoff, o.MaxBackoff)
}
