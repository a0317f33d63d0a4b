package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/store"
)

var (
	ErrNotFound        = errors.New("room not found")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// PresenceSource reports who is connected to a room right now.
type PresenceSource interface {
	Presence(roomID string) []protocol.PresencePayload
}

type Service struct {
	store    store.Store
	presence PresenceSource
}

func NewService(s store.Store, presence PresenceSource) *Service {
	return &Service{store: s, presence: presence}
}

type Room struct {
	ID          string                     `json:"id"`
	Members     []protocol.PresencePayload `json:"members"`
	Objects     int                        `json:"objects"`
	StickyNotes int                        `json:"stickyNotes"`
	Saved       bool                       `json:"saved"`
}

// Get summarizes a room. A room exists while it has a saved snapshot or at
// least one connected member.
func (s *Service) Get(ctx context.Context, roomID string) (*Room, error) {
	room := &Room{ID: roomID, Members: []protocol.PresencePayload{}}
	if s.presence != nil {
		if members := s.presence.Presence(roomID); members != nil {
			room.Members = members
		}
	}

	data, err := s.store.Load(ctx, roomID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if len(room.Members) == 0 {
			return nil, ErrNotFound
		}
		return room, nil
	case err != nil:
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	snap, err := scene.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	room.Saved = true
	room.Objects = len(snap.Objects)
	room.StickyNotes = len(snap.StickyNotes)
	return room, nil
}

func (s *Service) GetSnapshot(ctx context.Context, roomID string) (json.RawMessage, error) {
	data, err := s.store.Load(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return data, nil
}

// SaveSnapshot validates data as a snapshot and stores it in canonical form.
func (s *Service) SaveSnapshot(ctx context.Context, roomID string, data []byte) error {
	snap, err := scene.DecodeSnapshot(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	canonical, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.store.Save(ctx, roomID, canonical); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
