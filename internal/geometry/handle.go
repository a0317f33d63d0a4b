package geometry

import "strings"

// Handle names one of the eight resize grips around a bounding box.
type Handle string

const (
	HandleN  Handle = "n"
	HandleNE Handle = "ne"
	HandleE  Handle = "e"
	HandleSE Handle = "se"
	HandleS  Handle = "s"
	HandleSW Handle = "sw"
	HandleW  Handle = "w"
	HandleNW Handle = "nw"
)

// Handles lists every handle in the order they are tested for hits.
var Handles = []Handle{HandleNW, HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW}

// Valid reports whether h is one of the eight known handles.
func (h Handle) Valid() bool {
	switch h {
	case HandleN, HandleNE, HandleE, HandleSE, HandleS, HandleSW, HandleW, HandleNW:
		return true
	}
	return false
}

// East reports whether dragging h moves the right edge.
func (h Handle) East() bool { return strings.Contains(string(h), "e") }

// West reports whether dragging h moves the left edge.
func (h Handle) West() bool { return strings.Contains(string(h), "w") }

// North reports whether dragging h moves the top edge.
func (h Handle) North() bool { return strings.Contains(string(h), "n") }

// South reports whether dragging h moves the bottom edge.
func (h Handle) South() bool { return strings.Contains(string(h), "s") }

// HandlePositions maps each handle to its position on r.
func HandlePositions(r Rect) map[Handle]Point {
	right, bottom := r.Right(), r.Bottom()
	return map[Handle]Point{
		HandleNW: {r.X, r.Y},
		HandleN:  {r.CenterX, r.Y},
		HandleNE: {right, r.Y},
		HandleE:  {right, r.CenterY},
		HandleSE: {right, bottom},
		HandleS:  {r.CenterX, bottom},
		HandleSW: {r.X, bottom},
		HandleW:  {r.X, r.CenterY},
	}
}
