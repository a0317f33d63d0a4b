package store

import (
	"context"
	"errors"
	"log/slog"
)

// Cached reads through a cache in front of a primary store and writes
// through to both. Cache failures are logged and never fail the call.
type Cached struct {
	primary Store
	cache   Store
	logger  *slog.Logger
}

func NewCached(primary, cache Store, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{primary: primary, cache: cache, logger: logger}
}

func (c *Cached) Load(ctx context.Context, roomID string) ([]byte, error) {
	data, err := c.cache.Load(ctx, roomID)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, ErrNotFound) {
		c.logger.Warn("snapshot cache read failed", "room", roomID, "error", err)
	}

	data, err = c.primary.Load(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Save(ctx, roomID, data); err != nil {
		c.logger.Warn("snapshot cache fill failed", "room", roomID, "error", err)
	}
	return data, nil
}

func (c *Cached) Save(ctx context.Context, roomID string, data []byte) error {
	if err := c.primary.Save(ctx, roomID, data); err != nil {
		return err
	}
	if err := c.cache.Save(ctx, roomID, data); err != nil {
		c.logger.Warn("snapshot cache write failed", "room", roomID, "error", err)
	}
	return nil
}
