package collab

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/inamate/whiteboard/internal/protocol"
)

// ServeWS upgrades /ws/room/{roomId} (or /ws, with the room named by
// join-room) and runs the client's pumps until the connection closes.
func (h *Hub) ServeWS(originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["roomId"]

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			slog.Error("websocket accept", "error", err)
			return
		}

		client := NewClient(h, conn, uuid.New().String(), roomID)

		ctx := r.Context()
		go client.WritePump(ctx)
		client.ReadPump(ctx)
	}
}

// ServePresence lists the members of /api/rooms/{roomId}/presence.
func (h *Hub) ServePresence(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	members := h.Presence(roomID)
	if members == nil {
		members = []protocol.PresencePayload{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"roomId": roomID, "members": members})
}
