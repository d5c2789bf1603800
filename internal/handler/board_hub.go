package handler

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"whiteboard-backend/internal/presence"
	"whiteboard-backend/internal/protocol"
)

// =============================================================================
// Board Hub - board-scoped websocket fan-out
// =============================================================================

// BoardHub manages all board rooms. The hub is a relay: element payloads are
// forwarded verbatim to the other clients in the room, durable writes happen
// over the REST API which clients call in parallel.
type BoardHub struct {
	rooms    map[int64]*BoardRoom
	mu       sync.RWMutex
	presence *presence.Manager
}

// BoardRoom is one board's set of live connections.
type BoardRoom struct {
	BoardID    int64
	Clients    map[string]*BoardClient // socket id -> client
	broadcast  chan *outboundMessage
	ctx        context.Context
	cancel     context.CancelFunc
	mu         sync.RWMutex
	hub        *BoardHub
	isRunning  bool
	lastActive time.Time
}

// BoardClient is one websocket connection inside a room. Clients are keyed
// by socket id, not user id: the same user can hold several tabs open and
// each is an independent sync participant.
type BoardClient struct {
	SocketID string
	UserID   int64
	Nickname string
	Conn     *websocket.Conn
	writeMu  sync.Mutex
}

// outboundMessage is a framed message queued for fan-out. A non-empty
// exclude skips that socket id, so senders never receive their own deltas.
type outboundMessage struct {
	exclude string
	data    []byte
}

// NewBoardHub creates a BoardHub.
func NewBoardHub(presenceMgr *presence.Manager) *BoardHub {
	return &BoardHub{
		rooms:    make(map[int64]*BoardRoom),
		presence: presenceMgr,
	}
}

// GetOrCreateRoom gets an existing room or creates a new one.
func (h *BoardHub) GetOrCreateRoom(boardID int64) *BoardRoom {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[boardID]; exists {
		return room
	}

	ctx, cancel := context.WithCancel(context.Background())
	room := &BoardRoom{
		BoardID:    boardID,
		Clients:    make(map[string]*BoardClient),
		broadcast:  make(chan *outboundMessage, 256),
		ctx:        ctx,
		cancel:     cancel,
		hub:        h,
		lastActive: time.Now(),
	}

	h.rooms[boardID] = room
	log.Printf("[BoardHub] Created room for board %d", boardID)
	return room
}

// RemoveRoom shuts down and removes an empty room.
func (h *BoardHub) RemoveRoom(boardID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if room, exists := h.rooms[boardID]; exists {
		room.Shutdown()
		delete(h.rooms, boardID)
		log.Printf("[BoardHub] Removed room for board %d", boardID)
	}
}

// NotifyBoardUpdate pushes a board metadata change to every client in the
// room, if anyone is connected.
func (h *BoardHub) NotifyBoardUpdate(boardID int64, payload protocol.BoardUpdatePayload) {
	h.mu.RLock()
	room, exists := h.rooms[boardID]
	h.mu.RUnlock()
	if !exists {
		return
	}

	env, err := protocol.NewEnvelope(protocol.EventUpdateBoard, payload)
	if err != nil {
		log.Printf("[BoardHub] Failed to frame board update: %v", err)
		return
	}
	room.BroadcastEnvelope(env, "")
}

// CleanupInactiveRooms removes empty rooms idle for longer than maxAge.
// Intended to run on a ticker from main.
func (h *BoardHub) CleanupInactiveRooms(maxAge time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	for boardID, room := range h.rooms {
		room.mu.RLock()
		empty := len(room.Clients) == 0
		stale := room.lastActive.Before(cutoff)
		room.mu.RUnlock()

		if empty && stale {
			room.Shutdown()
			delete(h.rooms, boardID)
			log.Printf("[BoardHub] Cleaned up idle room for board %d", boardID)
		}
	}
}

// =============================================================================
// Room methods
// =============================================================================

// AddClient registers a connection and starts the room broadcaster on first
// join.
func (r *BoardRoom) AddClient(client *BoardClient) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Clients[client.SocketID] = client
	r.lastActive = time.Now()

	log.Printf("[Board %d] Client joined: socket=%s user=%d, total: %d",
		r.BoardID, client.SocketID, client.UserID, len(r.Clients))

	if !r.isRunning {
		r.isRunning = true
		go r.runBroadcaster()
	}
}

// RemoveClient drops a connection. The last client out tears the room down.
func (r *BoardRoom) RemoveClient(socketID string) {
	r.mu.Lock()
	delete(r.Clients, socketID)
	r.lastActive = time.Now()
	remaining := len(r.Clients)
	r.mu.Unlock()

	log.Printf("[Board %d] Client left: socket=%s, remaining: %d", r.BoardID, socketID, remaining)

	if remaining == 0 {
		go r.hub.RemoveRoom(r.BoardID)
	}
}

// Relay queues a raw framed message for every client except the sender. The
// payload is forwarded untouched; receivers do their own reconciliation.
func (r *BoardRoom) Relay(senderSocketID string, data []byte) {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.mu.Unlock()

	select {
	case r.broadcast <- &outboundMessage{exclude: senderSocketID, data: data}:
	default:
		log.Printf("[Board %d] Broadcast buffer full, dropping message", r.BoardID)
	}
}

// BroadcastEnvelope queues a framed message for the room. An empty exclude
// reaches everyone.
func (r *BoardRoom) BroadcastEnvelope(env *protocol.Envelope, exclude string) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("[Board %d] Failed to marshal envelope: %v", r.BoardID, err)
		return
	}

	select {
	case r.broadcast <- &outboundMessage{exclude: exclude, data: data}:
	default:
		log.Printf("[Board %d] Broadcast buffer full, dropping %s", r.BoardID, env.Event)
	}
}

// BroadcastOnline pushes the full currently-online snapshot to everyone in
// the room. Always the full set, never a diff.
func (r *BoardRoom) BroadcastOnline(ctx context.Context) {
	if r.hub.presence == nil {
		return
	}

	ids, err := r.hub.presence.OnlineUserIDs(ctx, r.BoardID)
	if err != nil {
		log.Printf("[Board %d] Presence lookup failed: %v", r.BoardID, err)
		return
	}

	users := make([]protocol.OnlineUser, 0, len(ids))
	for _, id := range ids {
		users = append(users, protocol.OnlineUser{UserID: id})
	}

	env, err := protocol.NewEnvelope(protocol.EventOnline, users)
	if err != nil {
		log.Printf("[Board %d] Failed to frame online snapshot: %v", r.BoardID, err)
		return
	}
	r.BroadcastEnvelope(env, "")
}

// Shutdown stops the broadcaster.
func (r *BoardRoom) Shutdown() {
	r.cancel()
	close(r.broadcast)
	r.mu.Lock()
	r.isRunning = false
	r.mu.Unlock()
	log.Printf("[Board %d] Room shutdown complete", r.BoardID)
}

// runBroadcaster fans queued messages out to the room's clients.
func (r *BoardRoom) runBroadcaster() {
	log.Printf("[Board %d] Broadcaster started", r.BoardID)
	defer log.Printf("[Board %d] Broadcaster stopped", r.BoardID)

	for {
		select {
		case <-r.ctx.Done():
			return
		case msg, ok := <-r.broadcast:
			if !ok {
				return
			}
			r.broadcastMessage(msg)
		}
	}
}

func (r *BoardRoom) broadcastMessage(msg *outboundMessage) {
	r.mu.RLock()
	clients := make([]*BoardClient, 0, len(r.Clients))
	for _, c := range r.Clients {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	for _, client := range clients {
		if client.SocketID == msg.exclude {
			continue
		}
		r.sendToClient(client, msg.data)
	}
}

func (r *BoardRoom) sendToClient(client *BoardClient, data []byte) {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("[Board %d] Failed to send to socket %s: %v", r.BoardID, client.SocketID, err)
	}
}
