// Package apiclient talks to the board REST API. The realtime session only
// relays deltas between peers; durable writes go through here, in parallel
// with the broadcast. Failures are reported to the caller as-is, there is
// no retry layer.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"whiteboard-backend/internal/protocol"
)

// BoardSnapshot is the GET /boards/:id response body.
type BoardSnapshot struct {
	ID        int64                   `json:"id"`
	Title     string                  `json:"title"`
	DeletedAt *time.Time              `json:"deleted_at,omitempty"`
	Elements  []protocol.ElementEntry `json:"elements"`
	Members   []BoardMember           `json:"members"`
}

// BoardMember is a member entry inside a BoardSnapshot.
type BoardMember struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
	Online   bool   `json:"online"`
}

// Client is an HTTP client for the board API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New builds a Client against baseURL (no trailing slash) authenticating
// with the given bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// GetBoard loads the full board snapshot: metadata, elements ordered by
// z-index, and the member list with presence flags.
func (c *Client) GetBoard(ctx context.Context, boardID int64) (*BoardSnapshot, error) {
	var snap BoardSnapshot
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/boards/%d", boardID), nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CreateElements persists new or updated elements.
func (c *Client) CreateElements(ctx context.Context, boardID int64, entries []protocol.ElementEntry) error {
	body := map[string]any{"elements": entries}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/boards/%d/elements", boardID), body, nil)
}

// UpdateElementOrder persists a stacking-order change.
func (c *Client) UpdateElementOrder(ctx context.Context, boardID int64, direction protocol.OrderDirection, uuids []string) error {
	body := map[string]any{"direction": direction, "uuids": uuids}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/api/boards/%d/elements/order", boardID), body, nil)
}

// DeleteElement removes one element by uuid. Deleting an element that is
// already gone is not an error server-side.
func (c *Client) DeleteElement(ctx context.Context, boardID int64, uuid string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/boards/%d/elements/%s", boardID, uuid), nil, nil)
}
