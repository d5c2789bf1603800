package protocol

import (
	"encoding/json"
	"time"

	"whiteboard-backend/internal/element"
)

// Event names on the board websocket. These are the canonical names; older
// client builds used diverging variants which are intentionally unsupported.
const (
	EventJoin   = "join"
	EventLeave  = "leave"
	EventOnline = "online"

	EventUpsertElements = "upsert_whiteboard_elements"
	EventDeleteElements = "delete_whiteboard_elements"
	EventOrderElements  = "order_whiteboard_elements"
	EventUpdateBoard    = "update_whiteboard"
)

// OrderDirection is the reorder verb carried by order messages.
type OrderDirection string

const (
	BringToFront OrderDirection = "bringToFront"
	SendToBack   OrderDirection = "sendToBack"
)

// Valid reports whether the direction is one of the two known verbs.
func (d OrderDirection) Valid() bool {
	return d == BringToFront || d == SendToBack
}

// Envelope frames every message on the board socket.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals a payload into a framed message.
func NewEnvelope(event string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{Event: event, Payload: raw}, nil
}

// JoinPayload announces a client entering a board.
type JoinPayload struct {
	WhiteboardID int64 `json:"whiteboardId"`
}

// LeavePayload announces a client navigating away.
type LeavePayload struct {
	UserID       int64 `json:"userId"`
	WhiteboardID int64 `json:"whiteboardId"`
}

// ElementEntry pairs a wire element with its identity.
type ElementEntry struct {
	AssetID *int64                     `json:"assetId,omitempty"`
	UUID    string                     `json:"uuid"`
	Element *element.WhiteboardElement `json:"element"`
}

// UpsertPayload carries inserted or updated elements.
type UpsertPayload struct {
	SocketID           string         `json:"socketId"`
	WhiteboardElements []ElementEntry `json:"whiteboardElements"`
	WhiteboardID       int64          `json:"whiteboardId"`
}

// DeletePayload names removed elements by uuid.
type DeletePayload struct {
	SocketID     string   `json:"socketId"`
	UUIDs        []string `json:"uuids"`
	WhiteboardID int64    `json:"whiteboardId"`
}

// OrderPayload carries a z-order change. Z-order is a scene-wide relational
// property, so it travels separately from upserts.
type OrderPayload struct {
	Direction    OrderDirection `json:"direction"`
	SocketID     string         `json:"socketId"`
	UUIDs        []string       `json:"uuids"`
	WhiteboardID int64          `json:"whiteboardId"`
}

// OnlineUser is one entry of the full currently-connected snapshot.
type OnlineUser struct {
	UserID int64 `json:"user_id"`
}

// BoardUpdatePayload carries board-level metadata changes.
type BoardUpdatePayload struct {
	WhiteboardID int64      `json:"whiteboardId"`
	Title        *string    `json:"title,omitempty"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}
