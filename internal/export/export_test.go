package export

import (
	"bytes"
	"context"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inamate/whiteboard/internal/geometry"
	"github.com/inamate/whiteboard/internal/render"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/store"
)

func sampleScene() *scene.Scene {
	s := scene.New()
	s.Append(scene.NewStroke([]geometry.Point{{X: 10, Y: 10}, {X: 80, Y: 40}}, "#ff0000", 3, scene.ToolPen))
	s.Append(scene.NewText("hello\nworld", 20, 60, "#000000", 18))
	tri := scene.NewShape(scene.TypeTriangle, 100, 0, 60, 60, "#0000ff", 2)
	tri.Fill = "#eeeeee"
	s.Append(tri)
	s.Append(scene.NewShape(scene.TypeEllipse, 0, 100, 40, 20, "#00ff00", 1))
	s.Append(scene.NewLine(scene.TypeArrow, 0, 0, 120, 120, "#333333", 2))
	s.AddNote(scene.StickyNote{X: 200, Y: 200, Width: 120, Height: 120, Text: "todo"})
	return s
}

func TestPDF(t *testing.T) {
	tests := []struct {
		name string
		snap scene.Snapshot
	}{
		{"empty", scene.Snapshot{}},
		{"sample", sampleScene().ToSnapshot()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, PDF(&buf, tt.snap))
			assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
		})
	}
}

func TestContentBoundsDefault(t *testing.T) {
	assert.Equal(t, geometry.NewRect(0, 0, 100, 100), contentBounds(scene.Snapshot{}))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "room_01h-x-", fileName("room_01h/x?"))
}

func newRouter(t *testing.T) (*mux.Router, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	h := NewHandler(mem, render.New(200, 100))

	r := mux.NewRouter()
	r.HandleFunc("/api/rooms/{roomId}/snapshot.png", h.ExportPNG).Methods("GET")
	r.HandleFunc("/api/rooms/{roomId}/snapshot.pdf", h.ExportPDF).Methods("GET")
	return r, mem
}

func TestHandler(t *testing.T) {
	r, mem := newRouter(t)
	data, err := sampleScene().EncodeSnapshot()
	require.NoError(t, err)
	require.NoError(t, mem.Save(context.Background(), "room_a", data))
	require.NoError(t, mem.Save(context.Background(), "room_bad", []byte("not json")))

	t.Run("png", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/rooms/room_a/snapshot.png?width=64&height=32", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="room_a.png"`)

		img, err := png.Decode(rec.Body)
		require.NoError(t, err)
		assert.Equal(t, 64, img.Bounds().Dx())
		assert.Equal(t, 32, img.Bounds().Dy())
	})

	t.Run("pdf", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/rooms/room_a/snapshot.pdf", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
	})

	t.Run("missing room", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/rooms/room_none/snapshot.pdf", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unreadable snapshot", func(t *testing.T) {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/rooms/room_bad/snapshot.png", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
