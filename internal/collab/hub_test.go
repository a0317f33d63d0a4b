package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/store"
)

const readTimeout = 2 * time.Second

func startHub(t *testing.T, opts ...Option) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(opts...)
	go h.Run(ctx)

	r := mux.NewRouter()
	r.HandleFunc("/ws", h.ServeWS(nil))
	r.HandleFunc("/ws/room/{roomId}", h.ServeWS(nil))
	r.HandleFunc("/api/rooms/{roomId}/presence", h.ServePresence)
	srv := httptest.NewServer(r)

	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	require.NoError(t, err)
	conn.SetReadLimit(maxMsgSize)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func read(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var msg protocol.Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

// readType skips messages until one of type typ arrives.
func readType(t *testing.T, conn *websocket.Conn, typ string) protocol.Message {
	t.Helper()
	for {
		msg := read(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
}

func join(t *testing.T, conn *websocket.Conn, roomID, name string) protocol.InitPayload {
	t.Helper()
	msg, err := protocol.New(protocol.TypeJoinRoom, protocol.JoinRoomPayload{RoomID: roomID, DisplayName: name})
	require.NoError(t, err)
	send(t, conn, msg)

	init := read(t, conn)
	require.Equal(t, protocol.TypeInit, init.Type)
	payload, err := protocol.Decode[protocol.InitPayload](init)
	require.NoError(t, err)
	return payload
}

func strokeMessage(t *testing.T, x float64) protocol.Message {
	t.Helper()
	msg, err := protocol.NewObject(scene.NewStroke([]geometry.Point{{X: x, Y: 0}, {X: x + 10, Y: 10}}, "#000", 2, scene.ToolPen))
	require.NoError(t, err)
	return msg
}

func roomByID(h *Hub, roomID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[roomID]
}

func replayLen(h *Hub, roomID string) int {
	room := roomByID(h, roomID)
	if room == nil {
		return 0
	}
	return len(room.replaySnapshot())
}

func TestLateJoinerReceivesInit(t *testing.T) {
	h, srv := startHub(t)

	a := dial(t, srv, "/ws")
	init := join(t, a, "room_1", "alice")
	assert.Empty(t, init.Objects)

	send(t, a, strokeMessage(t, 0))
	send(t, a, strokeMessage(t, 50))
	require.Eventually(t, func() bool { return replayLen(h, "room_1") == 2 }, readTimeout, 5*time.Millisecond)

	b := dial(t, srv, "/ws")
	init = join(t, b, "room_1", "bob")
	require.Len(t, init.Objects, 2)
	assert.Equal(t, 50.0, init.Objects[1].(*scene.Stroke).Points[0].X)

	joined := readType(t, b, protocol.TypePresenceJoin)
	p, err := protocol.Decode[protocol.PresencePayload](joined)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.DisplayName)

	joined = readType(t, a, protocol.TypePresenceJoin)
	p, err = protocol.Decode[protocol.PresencePayload](joined)
	require.NoError(t, err)
	assert.Equal(t, "bob", p.DisplayName)
	assert.True(t, h.Members("room_1").Contains(p.ClientID))
}

func TestFanOutExcludesSenderAndStampsClientID(t *testing.T) {
	_, srv := startHub(t)

	a := dial(t, srv, "/ws/room/room_2")
	join(t, a, "", "alice")
	b := dial(t, srv, "/ws/room/room_2")
	join(t, b, "", "bob")

	aliceJoin := readType(t, b, protocol.TypePresenceJoin)
	readType(t, a, protocol.TypePresenceJoin)

	move, err := protocol.New(protocol.TypeMove, protocol.MovePayload{Ref: protocol.Ref{Index: 0}, DeltaX: 5})
	require.NoError(t, err)
	move.ClientID = "spoofed"
	send(t, a, move)

	got := readType(t, b, protocol.TypeMove)
	assert.Equal(t, aliceJoin.ClientID, got.ClientID)
	assert.Equal(t, "room_2", got.RoomID)
	payload, err := protocol.Decode[protocol.MovePayload](got)
	require.NoError(t, err)
	assert.Equal(t, 5.0, payload.DeltaX)

	// The sender never hears its own event; a read would only time out.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err = a.Read(ctx)
	assert.Error(t, err)
}

func TestDisconnectSynthesizesLeave(t *testing.T) {
	h, srv := startHub(t)

	a := dial(t, srv, "/ws")
	join(t, a, "room_3", "alice")
	b := dial(t, srv, "/ws")
	join(t, b, "room_3", "bob")
	aliceID := readType(t, b, protocol.TypePresenceJoin).ClientID

	require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))

	leave := readType(t, b, protocol.TypeCursorLeave)
	assert.Equal(t, aliceID, leave.ClientID)
	gone := readType(t, b, protocol.TypePresenceLeave)
	assert.Equal(t, aliceID, gone.ClientID)

	require.Eventually(t, func() bool { return h.Members("room_3").Cardinality() == 1 }, readTimeout, 5*time.Millisecond)
}

func TestLastCursorIsSentToNewcomers(t *testing.T) {
	_, srv := startHub(t)

	a := dial(t, srv, "/ws")
	join(t, a, "room_4", "alice")
	cursor, err := protocol.New(protocol.TypeCursorMove, protocol.CursorPayload{X: 12, Y: 34})
	require.NoError(t, err)
	send(t, a, cursor)
	// A round trip through an error reply proves the cursor was handled.
	send(t, a, protocol.Message{Type: "bogus"})
	readType(t, a, protocol.TypeError)

	b := dial(t, srv, "/ws")
	join(t, b, "room_4", "bob")
	got := readType(t, b, protocol.TypeCursorMove)
	payload, err := protocol.Decode[protocol.CursorPayload](got)
	require.NoError(t, err)
	assert.Equal(t, protocol.CursorPayload{X: 12, Y: 34}, payload)
}

func TestProtocolErrors(t *testing.T) {
	_, srv := startHub(t)

	tests := []struct {
		name string
		msgs []protocol.Message
		want string
	}{
		{"event before join", []protocol.Message{strokeMessage(t, 0)}, errJoinFirst},
		{"join without room", []protocol.Message{{Type: protocol.TypeJoinRoom}}, errMissingRoom},
		{"unknown event", []protocol.Message{
			{Type: protocol.TypeJoinRoom, RoomID: "room_5"},
			{Type: protocol.TypeInit},
		}, errNotRelayed},
		{"mismatched object", []protocol.Message{
			{Type: protocol.TypeJoinRoom, RoomID: "room_5"},
			{Type: protocol.TypeStroke, Payload: json.RawMessage(`{"type":"rectangle","x":0,"y":0,"width":1,"height":1}`)},
		}, errBadObject},
		{"double join", []protocol.Message{
			{Type: protocol.TypeJoinRoom, RoomID: "room_5"},
			{Type: protocol.TypeJoinRoom, RoomID: "room_6"},
		}, errAlreadyJoined},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dial(t, srv, "/ws")
			for _, msg := range tt.msgs {
				send(t, conn, msg)
			}
			got := readType(t, conn, protocol.TypeError)
			payload, err := protocol.Decode[protocol.ErrorPayload](got)
			require.NoError(t, err)
			assert.Equal(t, tt.want, payload.Message)
		})
	}
}

func TestReplayLimitKeepsNewest(t *testing.T) {
	h, srv := startHub(t, WithReplayLimit(2))

	a := dial(t, srv, "/ws")
	join(t, a, "room_7", "alice")
	for i := 0; i < 3; i++ {
		send(t, a, strokeMessage(t, float64(i)))
	}
	require.Eventually(t, func() bool {
		room := roomByID(h, "room_7")
		return room != nil && len(room.replaySnapshot()) == 2 && firstX(room) == 1
	}, readTimeout, 5*time.Millisecond)

	b := dial(t, srv, "/ws")
	init := join(t, b, "room_7", "bob")
	require.Len(t, init.Objects, 2)
	assert.Equal(t, 1.0, init.Objects[0].(*scene.Stroke).Points[0].X)
}

func firstX(room *Room) float64 {
	events := room.replaySnapshot()
	var msg protocol.Message
	if len(events) == 0 || json.Unmarshal(events[0], &msg) != nil {
		return -1
	}
	obj, err := protocol.DecodeObject(msg)
	if err != nil {
		return -1
	}
	return obj.(*scene.Stroke).Points[0].X
}

func TestRoomSessionLifecycle(t *testing.T) {
	t.Run("expires after grace", func(t *testing.T) {
		h, srv := startHub(t, WithGrace(10*time.Millisecond))
		a := dial(t, srv, "/ws")
		join(t, a, "room_8", "alice")
		assert.Contains(t, h.Rooms(), "room_8")

		require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))
		require.Eventually(t, func() bool { return len(h.Rooms()) == 0 }, readTimeout, 5*time.Millisecond)
	})

	t.Run("rejoin within grace keeps replay", func(t *testing.T) {
		h, srv := startHub(t, WithGrace(time.Hour))
		a := dial(t, srv, "/ws")
		join(t, a, "room_9", "alice")
		send(t, a, strokeMessage(t, 0))
		require.Eventually(t, func() bool { return replayLen(h, "room_9") == 1 }, readTimeout, 5*time.Millisecond)
		require.NoError(t, a.Close(websocket.StatusNormalClosure, ""))
		require.Eventually(t, func() bool { return h.Members("room_9").Cardinality() == 0 }, readTimeout, 5*time.Millisecond)

		b := dial(t, srv, "/ws")
		init := join(t, b, "room_9", "bob")
		assert.Len(t, init.Objects, 1)
	})
}

func TestReplayCacheSurvivesRestart(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cache := store.NewReplayCache(rdb, 100, time.Hour)

	h1, srv1 := startHub(t, WithReplayCache(cache))
	a := dial(t, srv1, "/ws")
	join(t, a, "room_10", "alice")
	send(t, a, strokeMessage(t, 7))
	require.Eventually(t, func() bool { return replayLen(h1, "room_10") == 1 }, readTimeout, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		events, err := cache.Load(context.Background(), "room_10")
		return err == nil && len(events) == 1
	}, readTimeout, 5*time.Millisecond)

	_, srv2 := startHub(t, WithReplayCache(cache))
	b := dial(t, srv2, "/ws")
	init := join(t, b, "room_10", "bob")
	require.Len(t, init.Objects, 1)
	assert.Equal(t, 7.0, init.Objects[0].(*scene.Stroke).Points[0].X)
}

func TestInitFoldsTombstones(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	cache := store.NewReplayCache(rdb, 100, time.Hour)

	h, srv := startHub(t, WithReplayCache(cache))
	a := dial(t, srv, "/ws")
	join(t, a, "room_12", "alice")

	for _, id := range []string{"obj_a", "obj_b"} {
		shape := scene.NewShape(scene.TypeRectangle, 0, 0, 10, 10, "#000", 2)
		shape.ID = id
		msg, err := protocol.NewObject(shape)
		require.NoError(t, err)
		send(t, a, msg)
	}
	del, err := protocol.New(protocol.TypeDelete, protocol.Ref{Index: 1, ID: "obj_b"})
	require.NoError(t, err)
	send(t, a, del)
	restore, err := protocol.New(protocol.TypeRestore, protocol.Ref{Index: 1, ID: "obj_b"})
	require.NoError(t, err)
	undo, err := protocol.New(protocol.TypeUndo, protocol.HistoryPayload{Patches: []protocol.Message{restore}})
	require.NoError(t, err)
	send(t, a, undo)
	redo, err := protocol.New(protocol.TypeRedo, protocol.HistoryPayload{Patches: []protocol.Message{del}})
	require.NoError(t, err)
	send(t, a, redo)
	// A raster-only history event carries nothing to fold.
	raster, err := protocol.New(protocol.TypeUndo, protocol.HistoryPayload{ImageData: "data:image/png;base64,AA=="})
	require.NoError(t, err)
	send(t, a, raster)
	send(t, a, protocol.Message{Type: "bogus"})
	readType(t, a, protocol.TypeError)
	require.Equal(t, 5, replayLen(h, "room_12"))

	check := func(init protocol.InitPayload) {
		t.Helper()
		require.Len(t, init.Objects, 2)
		assert.Equal(t, "obj_a", init.Objects[0].Header().ID)
		assert.False(t, init.Objects[0].Header().Deleted)
		assert.Equal(t, "obj_b", init.Objects[1].Header().ID)
		assert.True(t, init.Objects[1].Header().Deleted)
	}

	b := dial(t, srv, "/ws")
	check(join(t, b, "room_12", "bob"))

	// The mirrored events fold the same way on a fresh relay.
	_, srv2 := startHub(t, WithReplayCache(cache))
	c := dial(t, srv2, "/ws")
	check(join(t, c, "room_12", "carol"))
}

func TestServePresence(t *testing.T) {
	_, srv := startHub(t)
	a := dial(t, srv, "/ws")
	join(t, a, "room_11", "alice")

	resp, err := http.Get(srv.URL + "/api/rooms/room_11/presence")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		RoomID  string                     `json:"roomId"`
		Members []protocol.PresencePayload `json:"members"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "room_11", body.RoomID)
	require.Len(t, body.Members, 1)
	assert.Equal(t, "alice", body.Members[0].DisplayName)

	resp, err = http.Get(srv.URL + "/api/rooms/room_none/presence")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body.Members)
}
