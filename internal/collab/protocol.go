package collab

import (
	"encoding/json"
	"log/slog"

	"github.com/inamate/whiteboard/internal/protocol"
)

const (
	errJoinFirst     = "join-room first"
	errAlreadyJoined = "already joined a room"
	errMissingRoom   = "roomId is required"
	errNotRelayed    = "event is not relayed"
	errBadObject     = "malformed object"
)

func errorMessage(roomID, text string) protocol.Message {
	payload, _ := json.Marshal(protocol.ErrorPayload{Message: text})
	return protocol.Message{Type: protocol.TypeError, RoomID: roomID, Payload: payload}
}

func presenceMessage(t, roomID string, p protocol.PresencePayload) protocol.Message {
	payload, _ := json.Marshal(p)
	return protocol.Message{Type: t, RoomID: roomID, ClientID: p.ClientID, Payload: payload}
}

// buffered reports whether msg belongs in the replay buffer: commits, and
// the events that tombstone or restore a committed object.
func buffered(msg protocol.Message) bool {
	switch msg.Type {
	case protocol.TypeDelete, protocol.TypeRestore:
		return true
	case protocol.TypeUndo, protocol.TypeRedo:
		hp, err := protocol.Decode[protocol.HistoryPayload](msg)
		return err == nil && len(hp.Patches) > 0
	}
	return protocol.IsCommit(msg.Type)
}

// replayFold rebuilds the object list from buffered events.
type replayFold struct {
	roomID  string
	objects protocol.ObjectList
	byID    map[string]int
}

func (f *replayFold) apply(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeDelete:
		f.tombstone(msg, true)
	case protocol.TypeRestore:
		f.tombstone(msg, false)
	case protocol.TypeUndo, protocol.TypeRedo:
		hp, err := protocol.Decode[protocol.HistoryPayload](msg)
		if err != nil {
			slog.Warn("skip unreadable replay event", "room", f.roomID, "error", err)
			return
		}
		for _, p := range hp.Patches {
			if p.Type != protocol.TypeUndo && p.Type != protocol.TypeRedo {
				f.apply(p)
			}
		}
	default:
		if !protocol.IsCommit(msg.Type) {
			return
		}
		obj, err := protocol.DecodeObject(msg)
		if err != nil {
			slog.Warn("skip unreadable replay event", "room", f.roomID, "error", err)
			return
		}
		id := obj.Header().ID
		if _, ok := f.byID[id]; ok && id != "" {
			return
		}
		if id != "" {
			f.byID[id] = len(f.objects)
		}
		f.objects = append(f.objects, obj)
	}
}

// tombstone resolves ref the way peers do: a known ID wins, an unknown ID
// is ignored, and a bare index addresses the folded list.
func (f *replayFold) tombstone(msg protocol.Message, deleted bool) {
	ref, err := protocol.Decode[protocol.Ref](msg)
	if err != nil {
		return
	}
	i := ref.Index
	if ref.ID != "" {
		var ok bool
		if i, ok = f.byID[ref.ID]; !ok {
			return
		}
	}
	if i < 0 || i >= len(f.objects) {
		return
	}
	f.objects[i].Header().Deleted = deleted
}

// initMessage folds the buffered events into an init payload. Tombstoned
// objects are sent with their deleted flag so that indices stay aligned.
// Events that no longer decode are skipped.
func initMessage(roomID string, replay [][]byte) protocol.Message {
	fold := replayFold{
		roomID:  roomID,
		objects: make(protocol.ObjectList, 0, len(replay)),
		byID:    make(map[string]int),
	}
	for _, raw := range replay {
		var msg protocol.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			slog.Warn("skip unreadable replay event", "room", roomID, "error", err)
			continue
		}
		fold.apply(msg)
	}

	msg, err := protocol.New(protocol.TypeInit, protocol.InitPayload{Objects: fold.objects})
	if err != nil {
		slog.Error("encode init", "room", roomID, "error", err)
		msg, _ = protocol.New(protocol.TypeInit, protocol.InitPayload{})
	}
	msg.RoomID = roomID
	return msg
}
