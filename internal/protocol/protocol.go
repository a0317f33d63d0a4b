// Package protocol defines the room relay wire contract: the message
// envelope, event names and payload shapes exchanged between peers.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/scene"
)

// Message is the envelope for every event. ClientID is the sender's
// transient connection identity, stamped by the relay; it is never a user
// identity and is never persisted.
type Message struct {
	Type     string          `json:"type"`
	RoomID   string          `json:"roomId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

const (
	// Connection
	TypeJoinRoom = "join-room"
	TypeInit     = "init"
	TypeError    = "error"

	// Provisional and committed objects
	TypeDraw   = "draw"
	TypeStroke = "stroke"
	TypeShape  = "shape"
	TypeText   = "text"

	// Index- or id-addressed edits
	TypeMove         = "move"
	TypeResize       = "resize"
	TypeResizeStroke = "resizeStroke"
	TypeResizeShape  = "resizeShape"
	TypeResizeLine   = "resizeLine"
	TypeDelete       = "delete"
	TypeRestore      = "restore"

	// Sticky notes
	TypeNoteCreate = "stickyNote:create"
	TypeNoteUpdate = "stickyNote:update"
	TypeNoteMove   = "stickyNote:move"
	TypeNoteResize = "stickyNote:resize"
	TypeNoteDelete = "stickyNote:delete"

	TypeUndo = "undo"
	TypeRedo = "redo"

	// Presence
	TypeCursorMove    = "cursor:move"
	TypeCursorLeave   = "cursor:leave"
	TypePresenceJoin  = "presence.join"
	TypePresenceLeave = "presence.leave"
)

// IsCommit reports whether t creates a scene object.
func IsCommit(t string) bool {
	return t == TypeStroke || t == TypeShape || t == TypeText
}

// IsPresence reports whether t is an ephemeral presence event that is
// relayed but never buffered or persisted.
func IsPresence(t string) bool {
	switch t {
	case TypeCursorMove, TypeCursorLeave, TypePresenceJoin, TypePresenceLeave:
		return true
	}
	return false
}

// IsRelayed reports whether a client may send t for fan-out to its room.
func IsRelayed(t string) bool {
	switch t {
	case TypeDraw, TypeStroke, TypeShape, TypeText,
		TypeMove, TypeResize, TypeResizeStroke, TypeResizeShape, TypeResizeLine,
		TypeDelete, TypeRestore,
		TypeNoteCreate, TypeNoteUpdate, TypeNoteMove, TypeNoteResize, TypeNoteDelete,
		TypeUndo, TypeRedo,
		TypeCursorMove, TypeCursorLeave:
		return true
	}
	return false
}

// --- Payloads ---

type JoinRoomPayload struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName,omitempty"`
}

// InitPayload is the relay's answer to join-room: the ordered list of
// committed objects it has buffered, tombstones flagged deleted. It may be
// empty or stale.
type InitPayload struct {
	Objects     ObjectList         `json:"objects"`
	StickyNotes []scene.StickyNote `json:"stickyNotes,omitempty"`
}

type DrawPayload struct {
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Color   string     `json:"color"`
	Size    float64    `json:"size"`
	Tool    scene.Tool `json:"tool"`
	IsStart bool       `json:"isStart,omitempty"`
}

// Ref addresses an existing object. A non-empty ID that the receiver knows
// takes precedence over Index.
type Ref struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
}

type MovePayload struct {
	Ref
	DeltaX float64 `json:"deltaX"`
	DeltaY float64 `json:"deltaY"`
}

// ResizePayload carries the full post-resize object of any variant. Text
// resizes travel this way.
type ResizePayload struct {
	Ref
	Object json.RawMessage `json:"object"`
}

type ResizeStrokePayload struct {
	Ref
	Points []geometry.Point `json:"points"`
}

type ResizeShapePayload struct {
	Ref
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type ResizeLinePayload struct {
	Ref
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// NotePayload is used by every stickyNote event; delete only needs ID.
type NotePayload = scene.StickyNote

// HistoryPayload accompanies undo and redo. Patches are the scene edits the
// undo or redo performed, in order; ImageData is a PNG data URL of the
// sender's canvas afterwards, for peers that only blit rasters.
type HistoryPayload struct {
	Patches   []Message `json:"patches,omitempty"`
	ImageData string    `json:"imageData,omitempty"`
}

type CursorPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type PresencePayload struct {
	ClientID    string `json:"clientId"`
	DisplayName string `json:"displayName,omitempty"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// --- Encoding helpers ---

// New builds a message of type t with payload marshalled as JSON. A nil
// payload leaves Payload empty.
func New(t string, payload any) (Message, error) {
	msg := Message{Type: t}
	if payload == nil {
		return msg, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	msg.Payload = data
	return msg, nil
}

// Decode unmarshals the payload of msg into a T.
func Decode[T any](msg Message) (T, error) {
	var out T
	if len(msg.Payload) == 0 {
		return out, fmt.Errorf("%s: empty payload", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}
	return out, nil
}

// NewObject builds the commit event for obj: stroke, text, or shape for the
// box and line variants.
func NewObject(obj scene.Object) (Message, error) {
	data, err := scene.MarshalObject(obj)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: CommitType(obj), Payload: data}, nil
}

// CommitType returns the event name used to commit obj.
func CommitType(obj scene.Object) string {
	switch obj.(type) {
	case *scene.Stroke:
		return TypeStroke
	case *scene.Text:
		return TypeText
	}
	return TypeShape
}

// DecodeObject reads the object carried by a stroke, shape or text event.
// Stroke and text payloads may omit the type tag since the event implies it.
func DecodeObject(msg Message) (scene.Object, error) {
	var head struct {
		Type scene.ObjectType `json:"type"`
	}
	if err := json.Unmarshal(msg.Payload, &head); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", msg.Type, err)
	}

	if head.Type == "" {
		switch msg.Type {
		case TypeStroke:
			var st scene.Stroke
			if err := json.Unmarshal(msg.Payload, &st); err != nil {
				return nil, fmt.Errorf("decode stroke payload: %w", err)
			}
			st.Type = scene.TypeStroke
			if st.Tool == "" {
				st.Tool = scene.ToolPen
			}
			return &st, nil
		case TypeText:
			var tx scene.Text
			if err := json.Unmarshal(msg.Payload, &tx); err != nil {
				return nil, fmt.Errorf("decode text payload: %w", err)
			}
			tx.Type = scene.TypeText
			return &tx, nil
		}
	}

	obj, err := scene.UnmarshalObject(msg.Payload)
	if err != nil {
		return nil, err
	}
	if want := commitTypeOf(head.Type); want != msg.Type {
		return nil, fmt.Errorf("%s event carries %s object", msg.Type, head.Type)
	}
	return obj, nil
}

func commitTypeOf(t scene.ObjectType) string {
	switch {
	case t == scene.TypeStroke:
		return TypeStroke
	case t == scene.TypeText:
		return TypeText
	}
	return TypeShape
}

// ObjectList is an ordered list of scene objects in their flat wire form.
type ObjectList []scene.Object

func (l ObjectList) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(l))
	for i, obj := range l {
		raw, err := scene.MarshalObject(obj)
		if err != nil {
			return nil, fmt.Errorf("encode object %d: %w", i, err)
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

func (l *ObjectList) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(ObjectList, 0, len(raws))
	for i, raw := range raws {
		obj, err := scene.UnmarshalObject(raw)
		if err != nil {
			return fmt.Errorf("object %d: %w", i, err)
		}
		out = append(out, obj)
	}
	*l = out
	return nil
}

// NewResize builds the absolute resize event for obj's current geometry,
// choosing the variant-specific event where one exists.
func NewResize(ref Ref, obj scene.Object) (Message, error) {
	switch o := obj.(type) {
	case *scene.Stroke:
		return New(TypeResizeStroke, ResizeStrokePayload{Ref: ref, Points: o.Points})
	case *scene.Shape:
		return New(TypeResizeShape, ResizeShapePayload{Ref: ref, X: o.X, Y: o.Y, Width: o.Width, Height: o.Height})
	case *scene.Line:
		return New(TypeResizeLine, ResizeLinePayload{Ref: ref, X1: o.X1, Y1: o.Y1, X2: o.X2, Y2: o.Y2})
	}
	raw, err := scene.MarshalObject(obj)
	if err != nil {
		return Message{}, err
	}
	return New(TypeResize, ResizePayload{Ref: ref, Object: raw})
}
