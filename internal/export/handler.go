package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/inamate/whiteboard/internal/render"
	"github.com/inamate/whiteboard/internal/scene"
	"github.com/inamate/whiteboard/internal/store"
	"github.com/inamate/whiteboard/internal/viewport"
)

const maxImageSide = 8192

// SnapshotLoader returns the persisted snapshot bytes of a room.
type SnapshotLoader interface {
	Load(ctx context.Context, roomID string) ([]byte, error)
}

type Handler struct {
	loader   SnapshotLoader
	renderer *render.Renderer
}

func NewHandler(loader SnapshotLoader, renderer *render.Renderer) *Handler {
	if renderer == nil {
		renderer = render.New(0, 0)
	}
	return &Handler{loader: loader, renderer: renderer}
}

// ExportPNG serves GET /api/rooms/{roomId}/snapshot.png. The drawing is
// fitted into the image; width and height query parameters override the
// renderer's size.
func (h *Handler) ExportPNG(w http.ResponseWriter, r *http.Request) {
	roomID, snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	width := dimension(r, "width", h.renderer.Width)
	height := dimension(r, "height", h.renderer.Height)

	data, err := PNG(h.renderer, snap, width, height)
	if err != nil {
		slog.Error("render png", "room", roomID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.png"`, fileName(roomID)))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)

	slog.Info("export complete", "room", roomID, "format", "png", "size", len(data))
}

// ExportPDF serves GET /api/rooms/{roomId}/snapshot.pdf.
func (h *Handler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	roomID, snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := PDF(&buf, snap); err != nil {
		slog.Error("render pdf", "room", roomID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, fileName(roomID)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)

	slog.Info("export complete", "room", roomID, "format", "pdf", "size", buf.Len())
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (string, scene.Snapshot, bool) {
	roomID := mux.Vars(r)["roomId"]
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return "", scene.Snapshot{}, false
	}

	data, err := h.loader.Load(r.Context(), roomID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "room not found", http.StatusNotFound)
		return "", scene.Snapshot{}, false
	}
	if err != nil {
		slog.Error("load snapshot", "room", roomID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return "", scene.Snapshot{}, false
	}

	snap, err := scene.DecodeSnapshot(data)
	if err != nil {
		slog.Error("decode snapshot", "room", roomID, "error", err)
		http.Error(w, "stored snapshot is unreadable", http.StatusInternalServerError)
		return "", scene.Snapshot{}, false
	}
	return roomID, snap, true
}

// PNG renders snap fitted into a width×height image.
func PNG(renderer *render.Renderer, snap scene.Snapshot, width, height int) ([]byte, error) {
	rd := *renderer
	if width > 0 {
		rd.Width = width
	}
	if height > 0 {
		rd.Height = height
	}

	frame := render.Frame{View: viewport.New()}
	if area, ok := snap.ContentBounds(); ok {
		frame.View = viewport.Fit(area, float64(rd.Width), float64(rd.Height), Margin)
	}
	return rd.PNG(scene.FromSnapshot(snap), frame)
}

func dimension(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 || v > maxImageSide {
		return fallback
	}
	return v
}

// fileName sanitizes a room id for use in Content-Disposition.
func fileName(roomID string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, roomID)
}
