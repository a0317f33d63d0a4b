package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/inamate/whiteboard/internal/protocol"
	"github.com/inamate/whiteboard/internal/store"
)

const (
	writeWait  = 10 * time.Second
	maxMsgSize = 256 * 1024
	sendBuffer = 256

	DefaultMinBackoff = 500 * time.Millisecond
	DefaultMaxBackoff = 10 * time.Second
)

// SnapshotLoader returns the persisted snapshot bytes of a room.
type SnapshotLoader interface {
	Load(ctx context.Context, roomID string) ([]byte, error)
}

// Conn keeps a board joined to its room on a relay. Outbound patches are
// fire-and-forget: they are dropped while disconnected and never queued for
// a later connection. Every (re)connect reloads the persisted snapshot when
// a loader is configured, then joins and applies the relay's init.
type Conn struct {
	url         string
	board       *Board
	displayName string
	loader      SnapshotLoader
	observer    func(protocol.Message)
	logger      *slog.Logger
	minBackoff  time.Duration
	maxBackoff  time.Duration

	mu    sync.RWMutex
	queue chan []byte
}

type ConnOption func(*Conn)

func WithDisplayName(name string) ConnOption {
	return func(c *Conn) { c.displayName = name }
}

func WithSnapshotLoader(l SnapshotLoader) ConnOption {
	return func(c *Conn) { c.loader = l }
}

// WithObserver is called with every inbound message after it is applied.
func WithObserver(fn func(protocol.Message)) ConnOption {
	return func(c *Conn) { c.observer = fn }
}

func WithBackoff(minWait, maxWait time.Duration) ConnOption {
	return func(c *Conn) { c.minBackoff, c.maxBackoff = minWait, maxWait }
}

// NewConn attaches a connection to b; b's outbound patches now go to it.
func NewConn(url string, b *Board, opts ...ConnOption) *Conn {
	c := &Conn{
		url:        url,
		board:      b,
		logger:     b.logger,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	b.SetEmitter(c)
	return c
}

// Emit queues msg on the live connection, or drops it.
func (c *Conn) Emit(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal message", "error", err)
		return
	}

	c.mu.RLock()
	queue := c.queue
	c.mu.RUnlock()
	if queue == nil {
		c.logger.Debug("disconnected, dropping message", "type", msg.Type)
		return
	}
	select {
	case queue <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", "type", msg.Type)
	}
}

func (c *Conn) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue != nil
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (c *Conn) Run(ctx context.Context) error {
	backoff := c.minBackoff
	for {
		joined, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if joined {
			backoff = c.minBackoff
		}
		c.logger.Warn("relay connection lost", "error", err, "retry", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func (c *Conn) session(ctx context.Context) (joined bool, err error) {
	ws, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return false, fmt.Errorf("dial relay: %w", err)
	}
	defer ws.CloseNow()
	ws.SetReadLimit(maxMsgSize)

	if c.loader != nil {
		c.reload(ctx)
	}

	join, err := protocol.New(protocol.TypeJoinRoom, protocol.JoinRoomPayload{
		RoomID:      c.board.RoomID(),
		DisplayName: c.displayName,
	})
	if err != nil {
		return false, err
	}
	data, err := json.Marshal(join)
	if err != nil {
		return false, err
	}
	if err := write(ctx, ws, data); err != nil {
		return false, fmt.Errorf("join room: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan []byte, sendBuffer)
	go func() {
		defer cancel()
		for {
			select {
			case data := <-queue:
				if err := write(sessCtx, ws, data); err != nil {
					c.logger.Debug("write error", "error", err)
					return
				}
			case <-sessCtx.Done():
				return
			}
		}
	}()

	c.mu.Lock()
	c.queue = queue
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.queue = nil
		c.mu.Unlock()
	}()

	c.logger.Info("joined room", "room", c.board.RoomID(), "url", c.url)
	for {
		_, data, err := ws.Read(sessCtx)
		if err != nil {
			return true, err
		}
		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("invalid message", "error", err)
			continue
		}
		c.board.Apply(msg)
		if c.observer != nil {
			c.observer(msg)
		}
	}
}

func (c *Conn) reload(ctx context.Context) {
	data, err := c.loader.Load(ctx, c.board.RoomID())
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("reload snapshot", "room", c.board.RoomID(), "error", err)
		return
	}
	if err := c.board.LoadBytes(data); err != nil {
		c.logger.Warn("reload snapshot", "room", c.board.RoomID(), "error", err)
	}
}

func write(ctx context.Context, ws *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
