// Package autosave persists a board snapshot after a quiet period.
package autosave

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultDelay = time.Second
	saveTimeout  = 10 * time.Second
)

type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSaving  Status = "saving"
	StatusSaved   Status = "saved"
	StatusError   Status = "error"
)

// Writer is the persistence side of a store.
type Writer interface {
	Save(ctx context.Context, roomID string, data []byte) error
}

// SnapshotFunc serializes the current board.
type SnapshotFunc func() ([]byte, error)

// Saver debounces mutations into snapshot saves. A save whose bytes equal
// the last successful save is skipped. A failed save sets StatusError and
// is retried on the next debounce window; it never blocks the caller.
type Saver struct {
	roomID   string
	writer   Writer
	snapshot SnapshotFunc
	delay    time.Duration
	logger   *slog.Logger
	onStatus func(Status)

	mu     sync.Mutex
	timer  *time.Timer
	status Status
	dirty  bool
	last   []byte
	err    error

	saveMu sync.Mutex
}

type Option func(*Saver)

func WithDelay(d time.Duration) Option {
	return func(s *Saver) { s.delay = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Saver) { s.logger = l }
}

// OnStatus registers a callback for every status transition. It runs on
// the saving goroutine and must not call back into the Saver.
func OnStatus(fn func(Status)) Option {
	return func(s *Saver) { s.onStatus = fn }
}

func New(roomID string, writer Writer, snapshot SnapshotFunc, opts ...Option) *Saver {
	s := &Saver{
		roomID:   roomID,
		writer:   writer,
		snapshot: snapshot,
		delay:    DefaultDelay,
		logger:   slog.Default(),
		status:   StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Touch records a mutation and restarts the quiet-period timer.
func (s *Saver) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dirty = true
	s.setStatusLocked(StatusPending)
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.fire)
}

// MarkSaved records data as already persisted, e.g. right after loading a
// snapshot, so an unchanged board is not written back.
func (s *Saver) MarkSaved(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = append([]byte(nil), data...)
}

func (s *Saver) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the error of the last failed save, or nil.
func (s *Saver) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Flush cancels the pending timer and saves now if anything changed.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	dirty := s.dirty
	s.mu.Unlock()

	if !dirty {
		return nil
	}
	return s.save(ctx)
}

// Stop cancels a pending save without running it.
func (s *Saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Saver) fire() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	s.save(ctx)
}

func (s *Saver) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	data, err := s.snapshot()
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.dirty = false
	if bytes.Equal(data, s.last) {
		s.err = nil
		s.setStatusLocked(StatusSaved)
		s.mu.Unlock()
		return nil
	}
	s.setStatusLocked(StatusSaving)
	s.mu.Unlock()

	if err := s.writer.Save(ctx, s.roomID, data); err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.last = data
	s.err = nil
	if !s.dirty {
		s.setStatusLocked(StatusSaved)
	}
	s.mu.Unlock()

	s.logger.Debug("board saved", "room", s.roomID, "bytes", len(data))
	return nil
}

// fail keeps the board dirty so Flush still writes it once storage recovers.
func (s *Saver) fail(err error) {
	s.mu.Lock()
	s.dirty = true
	s.err = err
	s.setStatusLocked(StatusError)
	s.mu.Unlock()
	s.logger.Warn("autosave failed", "room", s.roomID, "error", err)
}

func (s *Saver) setStatusLocked(st Status) {
	if s.status == st {
		return
	}
	s.status = st
	if s.onStatus != nil {
		s.onStatus(st)
	}
}
