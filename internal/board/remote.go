package board

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inamate/whiteboard/internal/store"
)

// HTTPStore loads and saves snapshots through a relay's REST API.
type HTTPStore struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPStore(baseURL string) *HTTPStore {
	return &HTTPStore{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *HTTPStore) snapshotURL(roomID, suffix string) string {
	return fmt.Sprintf("%s/api/rooms/%s/snapshot%s", s.BaseURL, url.PathEscape(roomID), suffix)
}

func (s *HTTPStore) Load(ctx context.Context, roomID string) ([]byte, error) {
	return s.get(ctx, s.snapshotURL(roomID, ""))
}

// Export fetches the server-rendered snapshot in format "png" or "pdf".
func (s *HTTPStore) Export(ctx context.Context, roomID, format string) ([]byte, error) {
	return s.get(ctx, s.snapshotURL(roomID, "."+format))
}

func (s *HTTPStore) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, store.ErrNotFound
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: %s: %s", u, resp.Status, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (s *HTTPStore) Save(ctx context.Context, roomID string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.snapshotURL(roomID, ""), bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("save snapshot: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

// WebSocketURL returns the relay endpoint for roomID given the relay's
// HTTP base URL.
func WebSocketURL(baseURL, roomID string) string {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/room/" + url.PathEscape(roomID)
}
