package handler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"whiteboard-backend/internal/model"
	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/protocol"
)

// BoardWSHandler owns the board websocket read loops. It validates joins,
// keeps presence current, and relays element deltas through the hub.
type BoardWSHandler struct {
	db       *gorm.DB
	hub      *BoardHub
	presence *presence.Manager
}

// NewBoardWSHandler builds a BoardWSHandler.
func NewBoardWSHandler(db *gorm.DB, hub *BoardHub, presenceMgr *presence.Manager) *BoardWSHandler {
	return &BoardWSHandler{db: db, hub: hub, presence: presenceMgr}
}

func wsError(c *websocket.Conn, msg string) {
	c.WriteMessage(websocket.TextMessage, []byte(`{"event":"error","message":"`+msg+`"}`))
	c.Close()
}

// heartbeatLoop refreshes the presence timestamp until the connection's read
// loop exits. Stopping a ticker does not close its channel, so the loop exits
// on done rather than ranging over the ticks.
func (h *BoardWSHandler) heartbeatLoop(done <-chan struct{}, boardID, userID int64) {
	ticker := time.NewTicker(presence.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if h.presence != nil {
				h.presence.Heartbeat(context.Background(), boardID, userID)
			}
		}
	}
}

// HandleWebSocket runs one connection's lifecycle: join, relay loop, leave.
func (h *BoardWSHandler) HandleWebSocket(c *websocket.Conn) {
	boardIDVal := c.Locals("boardID")
	userIDVal := c.Locals("userID")
	nicknameVal := c.Locals("nickname")

	boardID, ok1 := boardIDVal.(int64)
	userID, ok2 := userIDVal.(int64)
	nickname, ok3 := nicknameVal.(string)
	if !ok1 || !ok2 || !ok3 {
		wsError(c, "invalid session")
		return
	}

	// Archived boards never accept socket joins. Clients see the archive
	// flag over REST and render read-only.
	var board model.Board
	if err := h.db.First(&board, boardID).Error; err != nil {
		wsError(c, "board not found")
		return
	}
	if board.Archived() {
		log.Printf("[BoardWS] Rejected join to archived board %d by user %d", boardID, userID)
		wsError(c, "board is archived")
		return
	}

	// The socket id is client-minted so the client can recognize its own
	// echoes. A server-minted fallback keeps ad-hoc clients working.
	socketID := c.Query("socket_id")
	if socketID == "" {
		socketID = uuid.New().String()
	}

	room := h.hub.GetOrCreateRoom(boardID)
	client := &BoardClient{
		SocketID: socketID,
		UserID:   userID,
		Nickname: nickname,
		Conn:     c,
	}
	room.AddClient(client)

	ctx := context.Background()
	if h.presence != nil {
		if err := h.presence.SetOnline(ctx, boardID, userID); err != nil {
			log.Printf("[BoardWS] Failed to set user %d online: %v", userID, err)
		}
	}
	room.BroadcastOnline(ctx)

	defer func() {
		room.RemoveClient(socketID)
		if h.presence != nil {
			if err := h.presence.SetOffline(ctx, boardID, userID); err != nil {
				log.Printf("[BoardWS] Failed to set user %d offline: %v", userID, err)
			}
		}
		room.BroadcastOnline(ctx)
		c.Close()
	}()

	heartbeatDone := make(chan struct{})
	defer close(heartbeatDone)
	go h.heartbeatLoop(heartbeatDone, boardID, userID)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[BoardWS] Read error on board %d socket %s: %v", boardID, socketID, err)
			}
			return
		}

		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("[BoardWS] Dropping malformed frame from socket %s: %v", socketID, err)
			continue
		}

		switch env.Event {
		case protocol.EventJoin:
			// Join is idempotent per connection; the room registration
			// already happened at upgrade time.
			room.BroadcastOnline(ctx)

		case protocol.EventLeave:
			log.Printf("[BoardWS] User %d (%s) leaving board %d", userID, nickname, boardID)
			return

		case protocol.EventUpsertElements, protocol.EventDeleteElements, protocol.EventOrderElements:
			// Element deltas relay verbatim; receivers reconcile.
			room.Relay(socketID, data)

		default:
			log.Printf("[BoardWS] Dropping unknown event %q from socket %s", env.Event, socketID)
		}
	}
}
