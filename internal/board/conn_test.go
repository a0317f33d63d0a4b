package board

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/whiteboard/internal/collab"
	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/store"
)

func startRelay(t *testing.T, snapshots store.Store) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := collab.NewHub()
	go h.Run(ctx)

	r := mux.NewRouter()
	r.HandleFunc("/ws/room/{roomId}", h.ServeWS(nil))
	r.HandleFunc("/api/rooms/{roomId}/snapshot", func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomId"]
		if r.Method == http.MethodPut {
			data, _ := io.ReadAll(r.Body)
			snapshots.Save(r.Context(), roomID, data)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		data, err := snapshots.Load(r.Context(), roomID)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func connect(t *testing.T, srv *httptest.Server, opts ...ConnOption) (*Board, *Conn) {
	t.Helper()
	b := New("room-1", WithCursorInterval(time.Hour))
	opts = append([]ConnOption{WithBackoff(10*time.Millisecond, 50*time.Millisecond)}, opts...)
	c := NewConn(WebSocketURL(srv.URL, "room-1"), b, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		b.Close(context.Background())
	})
	require.Eventually(t, c.Connected, 2*time.Second, 10*time.Millisecond)
	return b, c
}

func TestConnRelaysBetweenBoards(t *testing.T) {
	srv := startRelay(t, store.NewMemory())
	a, _ := connect(t, srv, WithDisplayName("alice"))
	b, _ := connect(t, srv, WithDisplayName("bob"))

	stroke(a, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 30, Y: 30})
	id := a.Objects()[0].Header().ID

	assert.Eventually(t, func() bool {
		objs := b.Objects()
		return len(objs) == 1 && objs[0].Header().ID == id
	}, 2*time.Second, 10*time.Millisecond)

	// A late joiner catches up from the relay's replay buffer.
	c, _ := connect(t, srv)
	assert.Eventually(t, func() bool { return len(c.Objects()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestConnReloadsSnapshotOnConnect(t *testing.T) {
	snapshots := store.NewMemory()
	src := scene.New()
	saved := scene.NewShape(scene.TypeRectangle, 0, 0, 40, 40, "#000", 2)
	saved.ID = "obj_saved"
	src.Append(saved)
	data, err := src.EncodeSnapshot()
	require.NoError(t, err)
	require.NoError(t, snapshots.Save(context.Background(), "room-1", data))

	srv := startRelay(t, snapshots)
	b, _ := connect(t, srv, WithSnapshotLoader(NewHTTPStore(srv.URL)))

	assert.Eventually(t, func() bool {
		objs := b.Objects()
		return len(objs) == 1 && objs[0].Header().ID == "obj_saved"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEmitWhileDisconnectedIsDropped(t *testing.T) {
	b := New("room-1", WithCursorInterval(time.Hour))
	defer b.Close(context.Background())
	c := NewConn("ws://127.0.0.1:1/ws/room/room-1", b)

	assert.False(t, c.Connected())
	stroke(b, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 30, Y: 30})
	assert.Len(t, b.Objects(), 1, "local edits still apply")
}

func TestHTTPStore(t *testing.T) {
	srv := startRelay(t, store.NewMemory())
	hs := NewHTTPStore(srv.URL + "/")
	ctx := context.Background()

	_, err := hs.Load(ctx, "room-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, hs.Save(ctx, "room-1", []byte(`{"version":1,"objects":[]}`)))
	data, err := hs.Load(ctx, "room-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"objects":[]}`, string(data))
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		base, want string
	}{
		{"http://localhost:8080", "ws://localhost:8080/ws/room/r1"},
		{"https://board.example.com/", "wss://board.example.com/ws/room/r1"},
		{"ws://host", "ws://host/ws/room/r1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WebSocketURL(tt.base, "r1"))
	}
}
