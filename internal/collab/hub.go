// Package collab is the room relay: it fans events out to the other
// members of a room and keeps a best-effort replay buffer of committed
// objects and their tombstone changes for late joiners. It performs no
// reconciliation beyond folding that buffer.
package collab

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/inamate/whiteboard/internal/protocol"
)

const (
	DefaultReplayLimit = 5000
	DefaultGrace       = 30 * time.Second
	cacheTimeout       = 2 * time.Second
)

// ReplayCache mirrors replay buffers outside the process.
type ReplayCache interface {
	Append(ctx context.Context, roomID string, event []byte) error
	Load(ctx context.Context, roomID string) ([][]byte, error)
}

// Room is a room session. It is created on first join and removed once it
// has been empty for the hub's grace period.
type Room struct {
	id       string
	clients  map[string]*Client // clientID -> client, guarded by Hub.mu
	presence *PresenceManager
	gc       *time.Timer // guarded by Hub.mu

	mu     sync.Mutex
	replay [][]byte
}

func NewRoom(id string) *Room {
	return &Room{
		id:       id,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
	}
}

func (r *Room) remember(event []byte, limit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replay = append(r.replay, event)
	if limit > 0 && len(r.replay) > limit {
		r.replay = append([][]byte(nil), r.replay[len(r.replay)-limit:]...)
	}
}

func (r *Room) replaySnapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.replay...)
}

type joinRequest struct {
	client *Client
	roomID string
	done   chan struct{}
}

type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*Room  // roomID -> room
	joined map[*Client]*Room // clients that completed join-room

	replayLimit int
	grace       time.Duration
	cache       ReplayCache

	register   chan joinRequest
	unregister chan *Client
	expire     chan string
	done       chan struct{}
}

type Option func(*Hub)

func WithReplayLimit(n int) Option {
	return func(h *Hub) { h.replayLimit = n }
}

func WithGrace(d time.Duration) Option {
	return func(h *Hub) { h.grace = d }
}

// WithReplayCache mirrors every buffered event into c and seeds new rooms
// from it.
func WithReplayCache(c ReplayCache) Option {
	return func(h *Hub) { h.cache = c }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:       make(map[string]*Room),
		joined:      make(map[*Client]*Room),
		replayLimit: DefaultReplayLimit,
		grace:       DefaultGrace,
		register:    make(chan joinRequest),
		unregister:  make(chan *Client),
		expire:      make(chan string),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run serves membership changes until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case req := <-h.register:
			h.addClient(req)
			close(req.done)
		case client := <-h.unregister:
			h.removeClient(client)
		case roomID := <-h.expire:
			h.expireRoom(roomID)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.closeSend()
	}
}

// Rooms returns the ids of the live room sessions.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Members returns the connection ids currently joined to roomID.
func (h *Hub) Members(roomID string) mapset.Set[string] {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members := mapset.NewThreadUnsafeSet[string]()
	if room, ok := h.rooms[roomID]; ok {
		for id := range room.clients {
			members.Add(id)
		}
	}
	return members
}

// Presence returns the members of roomID with their display names.
func (h *Hub) Presence(roomID string) []protocol.PresencePayload {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return room.presence.GetAll()
}

func (h *Hub) roomOf(c *Client) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.joined[c]
}

func (h *Hub) addClient(req joinRequest) {
	client := req.client

	h.mu.RLock()
	_, exists := h.rooms[req.roomID]
	h.mu.RUnlock()

	var seed [][]byte
	if !exists && h.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), cacheTimeout)
		events, err := h.cache.Load(ctx, req.roomID)
		cancel()
		if err != nil {
			slog.Warn("load replay cache", "room", req.roomID, "error", err)
		}
		seed = events
	}

	h.mu.Lock()
	room, ok := h.rooms[req.roomID]
	if !ok {
		room = NewRoom(req.roomID)
		for _, ev := range seed {
			room.remember(ev, h.replayLimit)
		}
		h.rooms[req.roomID] = room
	}
	if room.gc != nil {
		room.gc.Stop()
		room.gc = nil
	}
	room.clients[client.ClientID] = client
	h.joined[client] = room
	h.mu.Unlock()

	room.presence.Add(client.ClientID, client.DisplayName)

	client.Send(initMessage(room.id, room.replaySnapshot()))
	for _, msg := range room.presence.StateMessages(room.id, client.ClientID) {
		client.Send(msg)
	}

	h.broadcast(room, presenceMessage(protocol.TypePresenceJoin, room.id, protocol.PresencePayload{
		ClientID:    client.ClientID,
		DisplayName: client.DisplayName,
	}), client.ClientID)

	slog.Info("client joined", "client", client.ClientID, "room", room.id)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	client.closeSend()
	room, ok := h.joined[client]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.joined, client)
	delete(room.clients, client.ClientID)
	if len(room.clients) == 0 {
		h.scheduleExpiry(room)
	}
	h.mu.Unlock()

	room.presence.Remove(client.ClientID)

	gone := protocol.PresencePayload{ClientID: client.ClientID}
	h.broadcast(room, protocol.Message{Type: protocol.TypeCursorLeave, RoomID: room.id, ClientID: client.ClientID}, "")
	h.broadcast(room, presenceMessage(protocol.TypePresenceLeave, room.id, gone), "")

	slog.Info("client left", "client", client.ClientID, "room", room.id)
}

// scheduleExpiry must be called with h.mu held.
func (h *Hub) scheduleExpiry(room *Room) {
	id := room.id
	room.gc = time.AfterFunc(h.grace, func() {
		select {
		case h.expire <- id:
		case <-h.done:
		}
	})
}

func (h *Hub) expireRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[roomID]
	if !ok || len(room.clients) > 0 {
		return
	}
	delete(h.rooms, roomID)
	slog.Info("room closed", "room", roomID)
}

func (h *Hub) handleMessage(ctx context.Context, sender *Client, msg protocol.Message) {
	if msg.Type == protocol.TypeJoinRoom {
		h.join(sender, msg)
		return
	}

	room := h.roomOf(sender)
	if room == nil {
		sender.Send(errorMessage("", errJoinFirst))
		return
	}
	msg.RoomID = room.id

	if !protocol.IsRelayed(msg.Type) {
		slog.Warn("unknown message type", "type", msg.Type, "client", sender.ClientID)
		sender.Send(errorMessage(room.id, errNotRelayed))
		return
	}

	switch msg.Type {
	case protocol.TypeStroke, protocol.TypeShape, protocol.TypeText:
		if _, err := protocol.DecodeObject(msg); err != nil {
			slog.Warn("invalid object", "type", msg.Type, "client", sender.ClientID, "error", err)
			sender.Send(errorMessage(room.id, errBadObject))
			return
		}
	case protocol.TypeCursorMove:
		if cursor, err := protocol.Decode[protocol.CursorPayload](msg); err == nil {
			room.presence.UpdateCursor(sender.ClientID, cursor)
		}
	case protocol.TypeCursorLeave:
		room.presence.ClearCursor(sender.ClientID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}
	if buffered(msg) {
		h.remember(ctx, room, data)
	}
	h.broadcastRaw(room, data, sender.ClientID)
}

func (h *Hub) join(c *Client, msg protocol.Message) {
	var p protocol.JoinRoomPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			slog.Warn("invalid join payload", "error", err, "client", c.ClientID)
		}
	}
	roomID := p.RoomID
	if roomID == "" {
		roomID = msg.RoomID
	}
	if roomID == "" {
		roomID = c.RoomID
	}
	if roomID == "" {
		c.Send(errorMessage("", errMissingRoom))
		return
	}
	if room := h.roomOf(c); room != nil {
		c.Send(errorMessage(room.id, errAlreadyJoined))
		return
	}

	c.DisplayName = p.DisplayName
	req := joinRequest{client: c, roomID: roomID, done: make(chan struct{})}
	select {
	case h.register <- req:
		<-req.done
	case <-h.done:
	}
}

func (h *Hub) remember(ctx context.Context, room *Room, event []byte) {
	room.remember(event, h.replayLimit)
	if h.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	if err := h.cache.Append(ctx, room.id, event); err != nil {
		slog.Warn("mirror replay event", "room", room.id, "error", err)
	}
}

func (h *Hub) broadcast(room *Room, msg protocol.Message, excludeClientID string) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal message", "error", err)
		return
	}
	h.broadcastRaw(room, data, excludeClientID)
}

// broadcastRaw holds the read lock while queueing so that no client's send
// channel is closed underneath it.
func (h *Hub) broadcastRaw(room *Room, data []byte, excludeClientID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range room.clients {
		if id != excludeClientID {
			c.sendRaw(data)
		}
	}
}
