package scene

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inamate/whiteboard/internal/geometry"
)

// SnapshotVersion is the persisted format version written by this package.
const SnapshotVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// Snapshot is the persisted form of a scene. Tombstoned objects are
// filtered out before persistence, so indices are renumbered on reload.
type Snapshot struct {
	Version     int
	Objects     []Object
	StickyNotes []StickyNote
}

type snapshotJSON struct {
	Version     int               `json:"version"`
	Objects     []json.RawMessage `json:"objects"`
	StickyNotes []StickyNote      `json:"stickyNotes"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Version:     s.Version,
		Objects:     make([]json.RawMessage, 0, len(s.Objects)),
		StickyNotes: s.StickyNotes,
	}
	if out.Version == 0 {
		out.Version = SnapshotVersion
	}
	if out.StickyNotes == nil {
		out.StickyNotes = []StickyNote{}
	}
	for i, obj := range s.Objects {
		raw, err := MarshalObject(obj)
		if err != nil {
			return nil, fmt.Errorf("encode object %d: %w", i, err)
		}
		out.Objects = append(out.Objects, raw)
	}
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Version == 0 {
		in.Version = SnapshotVersion
	}
	if in.Version > SnapshotVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, in.Version)
	}

	objects := make([]Object, 0, len(in.Objects))
	for i, raw := range in.Objects {
		obj, err := UnmarshalObject(raw)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		objects = append(objects, obj)
	}

	*s = Snapshot{Version: in.Version, Objects: objects, StickyNotes: in.StickyNotes}
	return nil
}

// ToSnapshot copies the live objects and every sticky note.
func (s *Scene) ToSnapshot() Snapshot {
	snap := Snapshot{Version: SnapshotVersion, StickyNotes: s.Notes()}
	for _, obj := range s.objects {
		if obj.Header().Deleted {
			continue
		}
		snap.Objects = append(snap.Objects, obj.Clone())
	}
	return snap
}

// FromSnapshot builds a scene from a persisted snapshot.
func FromSnapshot(snap Snapshot) *Scene {
	s := New()
	s.Load(snap)
	return s
}

// Load replaces the scene's contents with snap.
func (s *Scene) Load(snap Snapshot) {
	s.objects = nil
	s.byID = make(map[string]int)
	s.notes = make(map[string]*StickyNote)
	s.noteSeq = 0

	for _, obj := range snap.Objects {
		if obj.Header().Deleted {
			continue
		}
		s.Append(obj.Clone())
	}
	for _, n := range snap.StickyNotes {
		s.AddNote(n)
	}
	s.touch()
}

// EncodeSnapshot serializes the scene's current snapshot.
func (s *Scene) EncodeSnapshot() ([]byte, error) {
	return json.Marshal(s.ToSnapshot())
}

// DecodeSnapshot parses persisted snapshot bytes.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// ContentBounds returns the union of the raw bounds of every live object
// and sticky note. ok is false when the snapshot draws nothing.
func (s Snapshot) ContentBounds() (area geometry.Rect, ok bool) {
	add := func(r geometry.Rect) {
		if !ok {
			area, ok = r, true
			return
		}
		minX, minY := min(area.X, r.X), min(area.Y, r.Y)
		maxX, maxY := max(area.Right(), r.Right()), max(area.Bottom(), r.Bottom())
		area = geometry.NewRect(minX, minY, maxX-minX, maxY-minY)
	}
	for _, obj := range s.Objects {
		if !obj.Header().Deleted {
			add(RawBounds(obj))
		}
	}
	for _, n := range s.StickyNotes {
		add(n.Bounds())
	}
	return area, ok
}
