package interaction

import (
	"slices"

	"github.com/inamate/whiteboard/internal/geometry"
)

// Touch input drives navigation only. A single touch that is not part of a
// pinch reaches the machine through the pointer methods; the touch methods
// track contacts so a second finger can take over.

// TouchStart registers new contacts. Two or more contacts enter
// pinchZooming whatever the tool, finishing any gesture in progress.
func (m *Machine) TouchStart(touches []Touch) {
	for _, t := range touches {
		m.touches[t.ID] = geometry.Point{X: t.X, Y: t.Y}
		m.contacts.Add(t.ID)
	}
	if m.contacts.Cardinality() < 2 || m.state == StatePinchZooming {
		return
	}

	// A stroke started by the first finger is discarded rather than committed.
	if m.state == StateDrawingStroke || m.state == StateDrawingShape {
		m.reset()
	} else {
		m.finish()
	}
	m.panTouch = -1
	m.state = StatePinchZooming
	m.pinchCenter, m.pinchDist = m.pinch()
}

// TouchMove updates contact positions. While pinching, the change in
// distance between the two contacts zooms around their centroid and the
// centroid's movement pans.
func (m *Machine) TouchMove(touches []Touch) {
	for _, t := range touches {
		if m.contacts.Contains(t.ID) {
			m.touches[t.ID] = geometry.Point{X: t.X, Y: t.Y}
		}
	}

	switch m.state {
	case StatePinchZooming:
		center, dist := m.pinch()
		m.view.PanBy(center.X-m.pinchCenter.X, center.Y-m.pinchCenter.Y)
		if m.pinchDist > 0 && dist > 0 {
			m.view.ZoomAt(center, dist/m.pinchDist)
		}
		m.pinchCenter, m.pinchDist = center, dist

	case StatePanning:
		if m.panTouch < 0 {
			return
		}
		p, ok := m.touches[m.panTouch]
		if !ok {
			return
		}
		m.view.PanBy(p.X-m.last.X, p.Y-m.last.Y)
		m.last = p
	}
}

// TouchEnd removes contacts. Lifting one finger of a pinch continues as a
// pan with the remaining contact.
func (m *Machine) TouchEnd(touches []Touch) {
	for _, t := range touches {
		m.contacts.Remove(t.ID)
		delete(m.touches, t.ID)
	}

	switch m.state {
	case StatePinchZooming:
		switch m.contacts.Cardinality() {
		case 0:
			m.reset()
		case 1:
			id := m.contactIDs()[0]
			m.panTouch = id
			m.last = m.touches[id]
			m.state = StatePanning
		default:
			m.pinchCenter, m.pinchDist = m.pinch()
		}
	case StatePanning:
		if m.panTouch >= 0 && !m.contacts.Contains(m.panTouch) {
			m.panTouch = -1
			m.reset()
		}
	}
}

func (m *Machine) contactIDs() []int {
	ids := m.contacts.ToSlice()
	slices.Sort(ids)
	return ids
}

// pinch returns the centroid and distance of the two oldest-numbered contacts.
func (m *Machine) pinch() (geometry.Point, float64) {
	ids := m.contactIDs()
	if len(ids) < 2 {
		return geometry.Point{}, 0
	}
	a, b := m.touches[ids[0]], m.touches[ids[1]]
	return geometry.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}, a.Distance(b)
}
