package scene

import (
	"cmp"
	"slices"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/typeid"
)

// Scene is the ordered collection of drawable objects plus sticky notes.
//
// Objects live in an append-only sequence and their position is their
// identity for index-addressed patches: nothing is ever reordered or
// removed during a session, deletion only sets a tombstone. Each object
// also carries a creation-time ID so patches can address it independently
// of insertion order.
//
// A Scene is owned by a single goroutine and is not safe for concurrent use.
type Scene struct {
	objects []Object
	byID    map[string]int

	notes    map[string]*StickyNote
	noteSeq  int
	revision uint64
}

// New creates an empty scene.
func New() *Scene {
	return &Scene{
		byID:  make(map[string]int),
		notes: make(map[string]*StickyNote),
	}
}

// Revision increases on every successful mutation.
func (s *Scene) Revision() uint64 { return s.revision }

func (s *Scene) touch() { s.revision++ }

// Len returns the length of the object sequence, tombstones included.
func (s *Scene) Len() int { return len(s.objects) }

// At returns the object at index, tombstoned or not.
func (s *Scene) At(index int) (Object, bool) {
	if index < 0 || index >= len(s.objects) {
		return nil, false
	}
	return s.objects[index], true
}

// Live returns the object at index if it exists and is not tombstoned.
func (s *Scene) Live(index int) (Object, bool) {
	obj, ok := s.At(index)
	if !ok || obj.Header().Deleted {
		return nil, false
	}
	return obj, true
}

// IndexOf returns the position of the object with the given ID.
func (s *Scene) IndexOf(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	i, ok := s.byID[id]
	return i, ok
}

// Objects returns the object sequence in creation order. The slice is a
// copy; the objects are not.
func (s *Scene) Objects() []Object {
	return slices.Clone(s.objects)
}

// Append adds obj at the tail and returns its stable index. An object
// without an ID is given one. Appending an ID that is already present is a
// replay and returns the existing index without growing the sequence.
func (s *Scene) Append(obj Object) int {
	h := obj.Header()
	if h.ID == "" {
		h.ID = typeid.NewObjectID()
	} else if i, ok := s.byID[h.ID]; ok {
		return i
	}
	s.objects = append(s.objects, obj)
	index := len(s.objects) - 1
	s.byID[h.ID] = index
	s.touch()
	return index
}

// Transform translates the object at index by (dx, dy). Tombstoned and
// missing objects are left alone and false is returned.
func (s *Scene) Transform(index int, dx, dy float64) bool {
	obj, ok := s.Live(index)
	if !ok {
		return false
	}
	translate(obj, dx, dy)
	s.touch()
	return true
}

// Resize replaces the object at index with original resized by dragging
// handle by (dx, dy). original must be the pre-gesture snapshot of the same
// variant.
func (s *Scene) Resize(index int, handle geometry.Handle, dx, dy float64, original Object) bool {
	if !handle.Valid() || original == nil {
		return false
	}
	return s.Replace(index, ResizeObject(original, handle, dx, dy))
}

// Replace overwrites the geometry of the object at index with obj, keeping
// the slot's ID and tombstone state. Variants must match.
func (s *Scene) Replace(index int, obj Object) bool {
	cur, ok := s.Live(index)
	if !ok || !SameVariant(cur, obj) {
		return false
	}
	next := obj.Clone()
	*next.Header() = *cur.Header()
	s.objects[index] = next
	s.touch()
	return true
}

// MarkDeleted tombstones the object at index. The slot is never reused.
func (s *Scene) MarkDeleted(index int) bool {
	obj, ok := s.Live(index)
	if !ok {
		return false
	}
	obj.Header().Deleted = true
	s.touch()
	return true
}

// Restore clears the tombstone of the object at index.
func (s *Scene) Restore(index int) bool {
	obj, ok := s.At(index)
	if !ok || !obj.Header().Deleted {
		return false
	}
	obj.Header().Deleted = false
	s.touch()
	return true
}

// TopmostAt returns the index of the most recently created live object hit
// by p, so the newest drawing wins ties.
func (s *Scene) TopmostAt(p geometry.Point, kind geometry.PointerKind) (int, bool) {
	for i := len(s.objects) - 1; i >= 0; i-- {
		obj := s.objects[i]
		if obj.Header().Deleted {
			continue
		}
		if HitTest(p, obj, kind) {
			return i, true
		}
	}
	return 0, false
}

// --- Sticky notes ---

// AddNote inserts a sticky note above every existing note and returns the
// stored copy. A note without an ID is given one; an existing ID is
// overwritten in place.
func (s *Scene) AddNote(n StickyNote) StickyNote {
	if n.ID == "" {
		n.ID = typeid.NewNoteID()
	}
	if cur, ok := s.notes[n.ID]; ok {
		n.ZIndex = cur.ZIndex
	} else if n.ZIndex == 0 {
		s.noteSeq++
		n.ZIndex = s.noteSeq
	} else {
		s.noteSeq = max(s.noteSeq, n.ZIndex)
	}
	n.Width = max(n.Width, MinNoteWidth)
	n.Height = max(n.Height, MinNoteHeight)
	stored := n
	s.notes[n.ID] = &stored
	s.touch()
	return stored
}

// Note returns the sticky note with the given ID.
func (s *Scene) Note(id string) (StickyNote, bool) {
	n, ok := s.notes[id]
	if !ok {
		return StickyNote{}, false
	}
	return *n, true
}

// UpdateNote sets the text and, when non-empty, the color of a note.
func (s *Scene) UpdateNote(id, text, color string) bool {
	n, ok := s.notes[id]
	if !ok {
		return false
	}
	n.Text = text
	if color != "" {
		n.Color = color
	}
	s.touch()
	return true
}

// MoveNote places a note at an absolute position.
func (s *Scene) MoveNote(id string, x, y float64) bool {
	n, ok := s.notes[id]
	if !ok {
		return false
	}
	n.X, n.Y = x, y
	s.touch()
	return true
}

// ResizeNote sets a note's size, enforcing the 100×100 minimum.
func (s *Scene) ResizeNote(id string, w, h float64) bool {
	n, ok := s.notes[id]
	if !ok {
		return false
	}
	n.Width = max(w, MinNoteWidth)
	n.Height = max(h, MinNoteHeight)
	s.touch()
	return true
}

// DeleteNote removes a note. Notes are ID-addressed, so no tombstone is kept.
func (s *Scene) DeleteNote(id string) bool {
	if _, ok := s.notes[id]; !ok {
		return false
	}
	delete(s.notes, id)
	s.touch()
	return true
}

// Notes returns every sticky note ordered bottom to top.
func (s *Scene) Notes() []StickyNote {
	out := make([]StickyNote, 0, len(s.notes))
	for _, n := range s.notes {
		out = append(out, *n)
	}
	slices.SortFunc(out, func(a, b StickyNote) int {
		if c := cmp.Compare(a.ZIndex, b.ZIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// NoteAt returns the topmost note containing p.
func (s *Scene) NoteAt(p geometry.Point) (StickyNote, bool) {
	notes := s.Notes()
	for i := len(notes) - 1; i >= 0; i-- {
		if notes[i].Bounds().Contains(p) {
			return notes[i], true
		}
	}
	return StickyNote{}, false
}
