package bridge

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-agent/internal/model"
	"github.com/stretchr/testify/require"
)

// wsConn returns the server side of a live WebSocket connection so hub
// behavior can be tested without the bridge router.
func wsConn(t *testing.T) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	conn := <-conns
	t.Cleanup(func() { conn.Close() })
	return conn
}

// Pushes race surface disconnects and reconnects: the monitor ticks at 1 Hz
// no matter what the connection does, so a mid-exam reconnect must never land
// a push on a torn-down queue.
func TestPushSafeAcrossReattach(t *testing.T) {
	h := NewSurfaceHub(zerolog.Nop())
	conn := wsConn(t)

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
					h.Tick(1)
				}
			}
		}()
	}

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		h.attach(conn)
		h.detach(conn)
	}

	close(done)
	wg.Wait()

	// Detached: pushes are dropped, not queued.
	h.Tick(2)
}

func TestPushDroppedAfterDetach(t *testing.T) {
	h := NewSurfaceHub(zerolog.Nop())
	conn := wsConn(t)

	h.attach(conn)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.WaitConnected(ctx))
	h.detach(conn)

	h.Tick(3)
	h.NotifyWarning(model.WarningAck{Reason: "left full-screen mode", WarningCount: 1})
}
