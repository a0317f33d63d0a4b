// Package history keeps a bounded undo/redo log of local scene edits.
//
// Each entry records enough to apply the edit or its inverse, addressed by
// object ID, so undo composes with edits other peers made in the meantime
// instead of restoring a stale picture of the whole canvas.
package history

import (
	"fmt"

	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/scene"
)

// DefaultDepth is the number of undoable changes kept.
const DefaultDepth = 100

type Kind string

const (
	KindCreate  Kind = "create"
	KindDelete  Kind = "delete"
	KindMove    Kind = "move"
	KindReplace Kind = "replace"
	KindNote    Kind = "note"
)

// Change is one committed local edit.
type Change struct {
	Kind Kind

	// Object edits. Index is used only when ID is unknown to the scene.
	ID    string
	Index int

	DeltaX, DeltaY float64      // KindMove
	Before, After  scene.Object // KindReplace

	// KindNote: nil Before is a creation, nil After a deletion.
	NoteBefore, NoteAfter *scene.StickyNote
}

func Created(index int, obj scene.Object) Change {
	return Change{Kind: KindCreate, ID: obj.Header().ID, Index: index}
}

func Deleted(index int, obj scene.Object) Change {
	return Change{Kind: KindDelete, ID: obj.Header().ID, Index: index}
}

func Moved(index int, obj scene.Object, dx, dy float64) Change {
	return Change{Kind: KindMove, ID: obj.Header().ID, Index: index, DeltaX: dx, DeltaY: dy}
}

// Replaced records a resize: before and after are full copies of the object.
func Replaced(index int, before, after scene.Object) Change {
	return Change{Kind: KindReplace, ID: before.Header().ID, Index: index, Before: before.Clone(), After: after.Clone()}
}

// NoteChanged records a sticky-note edit. Pass nil before for a creation and
// nil after for a deletion.
func NoteChanged(before, after *scene.StickyNote) Change {
	c := Change{Kind: KindNote}
	if before != nil {
		b := *before
		c.NoteBefore = &b
	}
	if after != nil {
		a := *after
		c.NoteAfter = &a
	}
	return c
}

// Inverse returns the change that undoes c.
func (c Change) Inverse() Change {
	inv := c
	switch c.Kind {
	case KindCreate:
		inv.Kind = KindDelete
	case KindDelete:
		inv.Kind = KindCreate
	case KindMove:
		inv.DeltaX, inv.DeltaY = -c.DeltaX, -c.DeltaY
	case KindReplace:
		inv.Before, inv.After = c.After, c.Before
	case KindNote:
		inv.NoteBefore, inv.NoteAfter = c.NoteAfter, c.NoteBefore
	}
	return inv
}

// Apply performs c on s and returns the patches that tell peers about it.
// For KindCreate the object must already exist in s (tombstoned or live);
// applying it restores the object. It returns false if s no longer holds
// what c refers to.
func (c Change) Apply(s *scene.Scene) ([]protocol.Message, bool) {
	if c.Kind == KindNote {
		return c.applyNote(s)
	}

	index, ok := s.IndexOf(c.ID)
	if !ok {
		if c.ID != "" {
			return nil, false
		}
		index = c.Index
	}
	ref := protocol.Ref{Index: index, ID: c.ID}

	switch c.Kind {
	case KindCreate:
		if !s.Restore(index) {
			return nil, false
		}
		return single(protocol.New(protocol.TypeRestore, ref))
	case KindDelete:
		if !s.MarkDeleted(index) {
			return nil, false
		}
		return single(protocol.New(protocol.TypeDelete, ref))
	case KindMove:
		if !s.Transform(index, c.DeltaX, c.DeltaY) {
			return nil, false
		}
		return single(protocol.New(protocol.TypeMove, protocol.MovePayload{Ref: ref, DeltaX: c.DeltaX, DeltaY: c.DeltaY}))
	case KindReplace:
		if c.After == nil || !s.Replace(index, c.After) {
			return nil, false
		}
		return single(protocol.NewResize(ref, c.After))
	}
	return nil, false
}

func (c Change) applyNote(s *scene.Scene) ([]protocol.Message, bool) {
	switch {
	case c.NoteBefore == nil && c.NoteAfter != nil:
		if _, exists := s.Note(c.NoteAfter.ID); exists {
			return nil, false
		}
		stored := s.AddNote(*c.NoteAfter)
		return single(protocol.New(protocol.TypeNoteCreate, stored))

	case c.NoteBefore != nil && c.NoteAfter == nil:
		if !s.DeleteNote(c.NoteBefore.ID) {
			return nil, false
		}
		return single(protocol.New(protocol.TypeNoteDelete, protocol.NotePayload{ID: c.NoteBefore.ID}))

	case c.NoteBefore != nil && c.NoteAfter != nil:
		if _, exists := s.Note(c.NoteAfter.ID); !exists {
			return nil, false
		}
		stored := s.AddNote(*c.NoteAfter)
		var out []protocol.Message
		for _, t := range []string{protocol.TypeNoteUpdate, protocol.TypeNoteMove, protocol.TypeNoteResize} {
			msg, err := protocol.New(t, stored)
			if err != nil {
				return nil, false
			}
			out = append(out, msg)
		}
		return out, true
	}
	return nil, false
}

func single(msg protocol.Message, err error) ([]protocol.Message, bool) {
	if err != nil {
		return nil, false
	}
	return []protocol.Message{msg}, true
}

// History is a bounded undo stack with a redo stack that is cleared by every
// new record.
type History struct {
	depth int
	undo  []Change
	redo  []Change
}

func New(depth int) *History {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &History{depth: depth}
}

// Record pushes an edit that has already been applied to the scene.
func (h *History) Record(c Change) {
	h.undo = append(h.undo, c)
	if len(h.undo) > h.depth {
		h.undo = h.undo[len(h.undo)-h.depth:]
	}
	h.redo = h.redo[:0]
}

func (h *History) CanUndo() bool { return len(h.undo) > 0 }
func (h *History) CanRedo() bool { return len(h.redo) > 0 }

// Undo reverts the most recent edit that still applies. Edits whose target
// a peer has since deleted are discarded along the way.
func (h *History) Undo(s *scene.Scene) ([]protocol.Message, bool) {
	for len(h.undo) > 0 {
		c := h.undo[len(h.undo)-1]
		h.undo = h.undo[:len(h.undo)-1]
		if patches, ok := c.Inverse().Apply(s); ok {
			h.redo = append(h.redo, c)
			return patches, true
		}
	}
	return nil, false
}

// Redo re-applies the most recently undone edit that still applies.
func (h *History) Redo(s *scene.Scene) ([]protocol.Message, bool) {
	for len(h.redo) > 0 {
		c := h.redo[len(h.redo)-1]
		h.redo = h.redo[:len(h.redo)-1]
		if patches, ok := c.Apply(s); ok {
			h.undo = append(h.undo, c)
			return patches, true
		}
	}
	return nil, false
}

// Clear drops both stacks, e.g. after loading a snapshot.
func (h *History) Clear() {
	h.undo = nil
	h.redo = nil
}

func (c Change) String() string {
	if c.Kind == KindNote {
		switch {
		case c.NoteBefore == nil && c.NoteAfter != nil:
			return "note create " + c.NoteAfter.ID
		case c.NoteAfter == nil && c.NoteBefore != nil:
			return "note delete " + c.NoteBefore.ID
		case c.NoteAfter != nil:
			return "note edit " + c.NoteAfter.ID
		}
		return "note"
	}
	return fmt.Sprintf("%s %s", c.Kind, c.ID)
}
