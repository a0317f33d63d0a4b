//go:build js && wasm

package main

import (
	"encoding/json"
	"syscall/js"

	"github.com/inamate/whiteboard/internal/board"
	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/interaction"
	"github.com/inamate/whiteboard/internal/protocol"
)

var (
	brd    *board.Board
	onSend js.Value
)

// jsEmitter hands outbound patches to the page, which owns the socket.
type jsEmitter struct{}

func (jsEmitter) Emit(msg protocol.Message) {
	if onSend.IsUndefined() || onSend.IsNull() {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	onSend.Invoke(string(data))
}

func main() {
	whiteboard := js.Global().Get("Object").New()

	// --- Commands (frontend → backend) ---
	whiteboard.Set("open", js.FuncOf(open))
	whiteboard.Set("setSender", js.FuncOf(setSender))
	whiteboard.Set("loadSnapshot", js.FuncOf(loadSnapshot))
	whiteboard.Set("handleRemote", js.FuncOf(handleRemote))
	whiteboard.Set("pointerDown", js.FuncOf(pointer(func(ev interaction.PointerEvent) { brd.PointerDown(ev) })))
	whiteboard.Set("pointerMove", js.FuncOf(pointer(func(ev interaction.PointerEvent) { brd.PointerMove(ev) })))
	whiteboard.Set("pointerUp", js.FuncOf(pointer(func(ev interaction.PointerEvent) { brd.PointerUp(ev) })))
	whiteboard.Set("pointerLeave", js.FuncOf(pointer(func(ev interaction.PointerEvent) { brd.PointerLeave(ev) })))
	whiteboard.Set("touchStart", js.FuncOf(touch(func(t []interaction.Touch) { brd.TouchStart(t) })))
	whiteboard.Set("touchMove", js.FuncOf(touch(func(t []interaction.Touch) { brd.TouchMove(t) })))
	whiteboard.Set("touchEnd", js.FuncOf(touch(func(t []interaction.Touch) { brd.TouchEnd(t) })))
	whiteboard.Set("setTool", js.FuncOf(setTool))
	whiteboard.Set("setStyle", js.FuncOf(setStyle))
	whiteboard.Set("commitText", js.FuncOf(commitText))
	whiteboard.Set("commitSticky", js.FuncOf(commitSticky))
	whiteboard.Set("editSticky", js.FuncOf(editSticky))
	whiteboard.Set("deleteSelected", js.FuncOf(deleteSelected))
	whiteboard.Set("zoomAt", js.FuncOf(zoomAt))
	whiteboard.Set("undo", js.FuncOf(undo))
	whiteboard.Set("redo", js.FuncOf(redo))

	// --- Queries (frontend ← backend) ---
	whiteboard.Set("drawCommands", js.FuncOf(drawCommands))
	whiteboard.Set("hitTest", js.FuncOf(hitTest))
	whiteboard.Set("getSelectionBounds", js.FuncOf(getSelectionBounds))
	whiteboard.Set("getSnapshot", js.FuncOf(getSnapshot))
	whiteboard.Set("getViewport", js.FuncOf(getViewport))
	whiteboard.Set("getState", js.FuncOf(getState))

	js.Global().Set("whiteboard", whiteboard)
	js.Global().Set("whiteboardWasmReady", js.ValueOf(true))

	select {}
}

func fail(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{"error": msg})
}

func ok() interface{} {
	return js.ValueOf(map[string]interface{}{"ok": true})
}

// --- Command Handlers ---

func open(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return fail("missing room id")
	}
	brd = board.New(args[0].String(), board.WithEmitter(jsEmitter{}))
	return ok()
}

func setSender(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		onSend = js.Undefined()
		return nil
	}
	onSend = args[0]
	return nil
}

func loadSnapshot(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return fail("no board open")
	}
	if len(args) < 1 {
		return fail("missing snapshot JSON")
	}
	if err := brd.LoadBytes([]byte(args[0].String())); err != nil {
		return fail(err.Error())
	}
	return ok()
}

func handleRemote(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 1 {
		return js.ValueOf(false)
	}
	changed, err := brd.HandleRemote([]byte(args[0].String()))
	if err != nil {
		return fail(err.Error())
	}
	return js.ValueOf(changed)
}

// pointer adapts (x, y, kind, button, space, pointerId) to a PointerEvent.
func pointer(fn func(interaction.PointerEvent)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if brd == nil || len(args) < 2 {
			return nil
		}
		ev := interaction.PointerEvent{
			X:    args[0].Float(),
			Y:    args[1].Float(),
			Kind: geometry.PointerMouse,
		}
		if len(args) > 2 && args[2].Type() == js.TypeString {
			ev.Kind = geometry.PointerKind(args[2].String())
		}
		if len(args) > 3 && args[3].Type() == js.TypeNumber {
			ev.Button = args[3].Int()
		}
		if len(args) > 4 {
			ev.Space = args[4].Truthy()
		}
		if len(args) > 5 && args[5].Type() == js.TypeNumber {
			ev.ID = args[5].Int()
		}
		fn(ev)
		return nil
	}
}

// touch adapts an array of {id, x, y} contacts.
func touch(fn func([]interaction.Touch)) func(js.Value, []js.Value) interface{} {
	return func(this js.Value, args []js.Value) interface{} {
		if brd == nil || len(args) < 1 || args[0].Type() != js.TypeObject {
			return nil
		}
		arr := args[0]
		touches := make([]interaction.Touch, arr.Length())
		for i := range touches {
			t := arr.Index(i)
			touches[i] = interaction.Touch{
				ID: t.Get("id").Int(),
				X:  t.Get("x").Float(),
				Y:  t.Get("y").Float(),
			}
		}
		fn(touches)
		return nil
	}
}

func setTool(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 1 {
		return js.ValueOf(false)
	}
	return js.ValueOf(brd.SetTool(interaction.Tool(args[0].String())))
}

func setStyle(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 1 {
		return nil
	}
	var patch struct {
		Color     *string  `json:"color"`
		Size      *float64 `json:"size"`
		Fill      *string  `json:"fill"`
		FontSize  *float64 `json:"fontSize"`
		NoteColor *string  `json:"noteColor"`
	}
	if err := json.Unmarshal([]byte(args[0].String()), &patch); err != nil {
		return fail(err.Error())
	}

	s := brd.Style()
	if patch.Color != nil {
		s.Color = *patch.Color
	}
	if patch.Size != nil {
		s.Size = *patch.Size
	}
	if patch.Fill != nil {
		s.Fill = *patch.Fill
	}
	if patch.FontSize != nil {
		s.FontSize = *patch.FontSize
	}
	if patch.NoteColor != nil {
		s.NoteColor = *patch.NoteColor
	}
	brd.SetStyle(s)
	return nil
}

func commitText(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 3 {
		return js.ValueOf(false)
	}
	return js.ValueOf(brd.CommitText(args[0].Float(), args[1].Float(), args[2].String()))
}

func commitSticky(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 2 {
		return nil
	}
	text := ""
	if len(args) > 2 {
		text = args[2].String()
	}
	n := brd.CommitSticky(args[0].Float(), args[1].Float(), text)
	return js.ValueOf(n.ID)
}

func editSticky(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 2 {
		return js.ValueOf(false)
	}
	color := ""
	if len(args) > 2 && args[2].Type() == js.TypeString {
		color = args[2].String()
	}
	return js.ValueOf(brd.EditSticky(args[0].String(), args[1].String(), color))
}

func deleteSelected(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.ValueOf(false)
	}
	return js.ValueOf(brd.DeleteSelected())
}

func zoomAt(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 3 {
		return nil
	}
	brd.ZoomAt(args[0].Float(), args[1].Float(), args[2].Float())
	return nil
}

func undo(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.ValueOf(false)
	}
	return js.ValueOf(brd.Undo())
}

func redo(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.ValueOf(false)
	}
	return js.ValueOf(brd.Redo())
}

// --- Query Handlers ---

func drawCommands(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.ValueOf("[]")
	}
	out, err := board.DrawCommandsToJSON(brd.DrawCommands())
	if err != nil {
		return js.ValueOf("[]")
	}
	return js.ValueOf(out)
}

func hitTest(this js.Value, args []js.Value) interface{} {
	if brd == nil || len(args) < 2 {
		return js.Null()
	}
	kind := geometry.PointerMouse
	if len(args) > 2 && args[2].Type() == js.TypeString {
		kind = geometry.PointerKind(args[2].String())
	}
	id := brd.HitTest(args[0].Float(), args[1].Float(), kind)
	if id == "" {
		return js.Null()
	}
	return js.ValueOf(id)
}

func getSelectionBounds(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.Null()
	}
	r, ok := brd.SelectionBounds()
	if !ok {
		return js.Null()
	}
	return js.ValueOf(map[string]interface{}{
		"minX": r.X,
		"minY": r.Y,
		"maxX": r.Right(),
		"maxY": r.Bottom(),
	})
}

func getSnapshot(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.Null()
	}
	data, err := json.Marshal(brd.Snapshot())
	if err != nil {
		return fail(err.Error())
	}
	return js.ValueOf(string(data))
}

func getViewport(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.Null()
	}
	v := brd.Viewport()
	return js.ValueOf(map[string]interface{}{
		"scale":      v.Scale,
		"translateX": v.TranslateX,
		"translateY": v.TranslateY,
	})
}

func getState(this js.Value, args []js.Value) interface{} {
	if brd == nil {
		return js.Null()
	}
	return js.ValueOf(string(brd.State()))
}
