package collab

import (
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/inamate/whiteboard/internal/protocol"
)

type member struct {
	displayName string
	joinSeq     int
	cursor      *protocol.CursorPayload
}

// PresenceManager tracks who is in a room and where their cursor was last
// seen. It is never persisted or buffered for replay.
type PresenceManager struct {
	mu      sync.RWMutex
	members map[string]*member // clientID -> member
	seq     int
}

func NewPresenceManager() *PresenceManager {
	return &PresenceManager{
		members: make(map[string]*member),
	}
}

func (pm *PresenceManager) Add(clientID, displayName string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.seq++
	pm.members[clientID] = &member{displayName: displayName, joinSeq: pm.seq}
}

func (pm *PresenceManager) UpdateCursor(clientID string, c protocol.CursorPayload) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.members[clientID]; ok {
		m.cursor = &c
	}
}

func (pm *PresenceManager) ClearCursor(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if m, ok := pm.members[clientID]; ok {
		m.cursor = nil
	}
}

func (pm *PresenceManager) Remove(clientID string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	delete(pm.members, clientID)
}

// GetAll returns the members in join order.
func (pm *PresenceManager) GetAll() []protocol.PresencePayload {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	ids := make([]string, 0, len(pm.members))
	for id := range pm.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return pm.members[ids[i]].joinSeq < pm.members[ids[j]].joinSeq
	})

	out := make([]protocol.PresencePayload, 0, len(ids))
	for _, id := range ids {
		out = append(out, protocol.PresencePayload{ClientID: id, DisplayName: pm.members[id].displayName})
	}
	return out
}

// StateMessages describes the room to a newcomer: a presence.join for each
// member other than exclude, followed by its last cursor position.
func (pm *PresenceManager) StateMessages(roomID, exclude string) []protocol.Message {
	var out []protocol.Message
	for _, p := range pm.GetAll() {
		if p.ClientID == exclude {
			continue
		}
		out = append(out, presenceMessage(protocol.TypePresenceJoin, roomID, p))

		pm.mu.RLock()
		var cursor *protocol.CursorPayload
		if m, ok := pm.members[p.ClientID]; ok && m.cursor != nil {
			c := *m.cursor
			cursor = &c
		}
		pm.mu.RUnlock()
		if cursor == nil {
			continue
		}

		payload, err := json.Marshal(cursor)
		if err != nil {
			slog.Error("marshal cursor", "error", err)
			continue
		}
		out = append(out, protocol.Message{
			Type:     protocol.TypeCursorMove,
			RoomID:   roomID,
			ClientID: p.ClientID,
			Payload:  payload,
		})
	}
	return out
}
