package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalpanel/internal/config"
	"evalpanel/internal/operations"
	"evalpanel/internal/shared/testutil"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingPeriod:      time.Second,
		PongWait:        2 * time.Second,
	}
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	srv := httptest.NewServer(NewHandler(hub, testConfig(), nil))
	t.Cleanup(func() {
		srv.Close()
		hub.Stop()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *gorilla.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, srv := startHub(t)
	first := dial(t, srv)
	second := dial(t, srv)

	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	shard := 1
	hub.Broadcast(operations.EventTypeStage, operations.StageEvent{
		RunID: "run-1",
		StageSnapshot: operations.StageSnapshot{
			Stage:  operations.StageSelect,
			Shard:  &shard,
			Status: operations.StageStatusCompleted,
		},
	})

	for _, conn := range []*gorilla.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var msg struct {
			Type      string                 `json:"type"`
			Data      map[string]interface{} `json:"data"`
			Timestamp time.Time              `json:"timestamp"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "stage", msg.Type)
		assert.Equal(t, "run-1", msg.Data["run_id"])
		assert.Equal(t, "select", msg.Data["stage"])
		assert.Equal(t, float64(1), msg.Data["shard"])
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestHub_ClientDisconnect(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Stop()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_BroadcastAfterStopDoesNotBlock(t *testing.T) {
	hub := NewHub(nil)
	hub.Start()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Broadcast(operations.EventTypeRun, map[string]string{"status": "completed"})
		hub.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked after stop")
	}
}

func TestHandler_RejectsPlainRequests(t *testing.T) {
	hub := NewHub(nil)

	t.Run("default response", func(t *testing.T) {
		rec := httptest.NewRecorder()
		NewHandler(hub, testConfig(), nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("custom error renderer", func(t *testing.T) {
		var got error
		h := NewHandler(hub, testConfig(), func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusUpgradeRequired)
		})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
		assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
		assert.ErrorIs(t, got, errNotUpgrade)
	})
}

func TestHub_AcceptsBroadcastRightAfterStart(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	hub := NewHub(logger)
	hub.Start()
	t.Cleanup(hub.Stop)

	assert.True(t, hub.running.Load())
	hub.Broadcast(operations.EventTypeRun, operations.RunEvent{RunID: "r1"})
	require.Eventually(t, func() bool { return len(hub.broadcast) == 0 }, 2*time.Second, 10*time.Millisecond)
	_, dropped := logs.Find("broadcast queue full, dropping event")
	assert.False(t, dropped)
}
