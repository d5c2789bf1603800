package syncsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"whiteboard-backend/internal/protocol"
)

const defaultReconnectDelay = 2 * time.Second

// ErrBoardArchived is returned when a session is requested for a read-only
// board. Archived boards never open transport sessions.
var ErrBoardArchived = errors.New("board is archived")

// ErrNotConnected is returned when an operation fails after its single
// reconnect attempt was exhausted.
var ErrNotConnected = errors.New("session is not connected")

// Handler receives inbound board messages. The remote reconciler implements
// this.
type Handler interface {
	HandleUpsert(p *protocol.UpsertPayload)
	HandleDelete(p *protocol.DeletePayload)
	HandleOrder(p *protocol.OrderPayload)
	HandleOnline(users []protocol.OnlineUser)
	HandleBoardUpdate(p *protocol.BoardUpdatePayload)
}

// Config describes a board session.
type Config struct {
	BoardID  int64
	UserID   int64
	Archived bool

	// SocketID lets the caller mint the socket identity up front, so it
	// can be baked into the transport URL. Empty means the session mints
	// its own.
	SocketID string

	Transport      Transport
	Handler        Handler
	ReconnectDelay time.Duration
}

// Session owns the live transport connection for one board in one client.
// State moves Disconnected -> Connecting -> Connected, drops to Reconnecting
// on transport faults, and ends in Leaving when the client navigates away.
type Session struct {
	boardID  int64
	userID   int64
	socketID string

	transport Transport
	handler   Handler
	delay     time.Duration

	mu    sync.Mutex
	state State
	conn  Conn

	writeMu sync.Mutex

	// reconnectMu serializes reconnect cycles so a write failure racing the
	// read loop's recovery never produces two dials for one dropped conn.
	reconnectMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a session. Archived boards are refused up front: a board that
// cannot be edited generates no join/leave traffic at all.
func New(cfg Config) (*Session, error) {
	if cfg.Archived {
		return nil, ErrBoardArchived
	}
	if cfg.Transport == nil {
		return nil, errors.New("transport is required")
	}
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = defaultReconnectDelay
	}

	socketID := cfg.SocketID
	if socketID == "" {
		socketID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		boardID:   cfg.BoardID,
		userID:    cfg.UserID,
		socketID:  socketID,
		transport: cfg.Transport,
		handler:   cfg.Handler,
		delay:     delay,
		state:     StateDisconnected,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// SocketID returns the client-generated socket identity carried on outbound
// messages.
func (s *Session) SocketID() string {
	return s.socketID
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Join dials the board and emits the join message. On success the read loop
// starts dispatching inbound messages to the handler.
func (s *Session) Join(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateLeaving {
		s.mu.Unlock()
		return errors.New("session already left")
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		s.setState(StateDisconnected)
		return err
	}

	go s.readLoop()
	return nil
}

// connect dials and announces the join. Caller manages state on failure.
func (s *Session) connect(ctx context.Context) error {
	conn, err := s.transport.Dial(ctx)
	if err != nil {
		return err
	}

	env, err := protocol.NewEnvelope(protocol.EventJoin, protocol.JoinPayload{WhiteboardID: s.boardID})
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteJSON(env); err != nil {
		conn.Close()
		return fmt.Errorf("join failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()

	log.Printf("[SyncSession] Connected to board %d (socket %s)", s.boardID, s.socketID)
	return nil
}

// reconnectOnce runs one fixed-delay reconnect cycle. It never loops: bounded
// retry lives here, the unbounded background loop lives in readLoop. stale is
// the connection the caller saw fail; when another caller has already replaced
// it the cycle is a no-op.
func (s *Session) reconnectOnce(ctx context.Context, stale Conn) error {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	s.mu.Lock()
	if s.state == StateConnected && s.conn != nil && s.conn != stale {
		s.mu.Unlock()
		return nil
	}
	s.state = StateReconnecting
	s.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		s.setState(StateDisconnected)
		return ctx.Err()
	case <-s.ctx.Done():
		s.setState(StateDisconnected)
		return s.ctx.Err()
	}

	if err := s.connect(ctx); err != nil {
		s.setState(StateDisconnected)
		return err
	}
	go s.readLoop()
	return nil
}

// InvokeWhenConnected runs the operation against the live connection. If the
// session is disconnected it attempts exactly one reconnect cycle first, then
// runs the operation or surfaces the failure. It never retries indefinitely.
func (s *Session) InvokeWhenConnected(description string, op func(Conn) error) error {
	s.mu.Lock()
	conn, st := s.conn, s.state
	s.mu.Unlock()

	if st == StateConnected && conn != nil {
		s.writeMu.Lock()
		err := op(conn)
		s.writeMu.Unlock()
		if err == nil {
			return nil
		}
		log.Printf("[SyncSession] %s failed on live connection, retrying once: %v", description, err)
	}

	if st == StateLeaving {
		return fmt.Errorf("%s: session left", description)
	}

	if err := s.reconnectOnce(s.ctx, conn); err != nil {
		return fmt.Errorf("%s: %w: %v", description, ErrNotConnected, err)
	}

	s.mu.Lock()
	conn = s.conn
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := op(conn); err != nil {
		return fmt.Errorf("%s: %w", description, err)
	}
	return nil
}

// Leave notifies peers synchronously, then tears the transport down. The
// session cannot be rejoined afterwards.
func (s *Session) Leave() error {
	s.mu.Lock()
	if s.state == StateLeaving {
		s.mu.Unlock()
		return nil
	}
	conn := s.conn
	s.state = StateLeaving
	s.mu.Unlock()

	s.cancel()

	var err error
	if conn != nil {
		env, envErr := protocol.NewEnvelope(protocol.EventLeave, protocol.LeavePayload{
			UserID:       s.userID,
			WhiteboardID: s.boardID,
		})
		if envErr == nil {
			s.writeMu.Lock()
			err = conn.WriteJSON(env)
			s.writeMu.Unlock()
		}
		conn.Close()
	}

	log.Printf("[SyncSession] Left board %d", s.boardID)
	return err
}

// readLoop pumps inbound messages until the connection drops, then keeps
// cycling through Reconnecting until it is back or the session is leaving.
func (s *Session) readLoop() {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			leaving := s.state == StateLeaving
			s.mu.Unlock()
			if leaving || s.ctx.Err() != nil {
				return
			}

			log.Printf("[SyncSession] Connection lost on board %d: %v", s.boardID, err)
			conn.Close()
			// Background recovery loops until connected; only operation
			// retries are bounded.
			for {
				if err := s.reconnectOnce(s.ctx, conn); err == nil {
					return // new readLoop owns the new conn
				} else if s.ctx.Err() != nil {
					return
				}
			}
		}
		s.dispatch(data)
	}
}

// dispatch parses and routes one inbound envelope. Malformed messages are
// dropped and logged; they never crash the loop and are never retried.
func (s *Session) dispatch(data []byte) {
	if s.handler == nil {
		return
	}

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("[SyncSession] Dropping malformed message on board %d: %v", s.boardID, err)
		return
	}

	switch env.Event {
	case protocol.EventUpsertElements:
		var p protocol.UpsertPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("[SyncSession] Dropping malformed upsert: %v", err)
			return
		}
		if p.SocketID == s.socketID {
			return // our own broadcast reflected back
		}
		s.handler.HandleUpsert(&p)

	case protocol.EventDeleteElements:
		var p protocol.DeletePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("[SyncSession] Dropping malformed delete: %v", err)
			return
		}
		if p.SocketID == s.socketID {
			return
		}
		s.handler.HandleDelete(&p)

	case protocol.EventOrderElements:
		var p protocol.OrderPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("[SyncSession] Dropping malformed order: %v", err)
			return
		}
		if p.SocketID == s.socketID {
			return
		}
		s.handler.HandleOrder(&p)

	case protocol.EventOnline:
		var users []protocol.OnlineUser
		if err := json.Unmarshal(env.Payload, &users); err != nil {
			log.Printf("[SyncSession] Dropping malformed online snapshot: %v", err)
			return
		}
		s.handler.HandleOnline(users)

	case protocol.EventUpdateBoard:
		var p protocol.BoardUpdatePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			log.Printf("[SyncSession] Dropping malformed board update: %v", err)
			return
		}
		s.handler.HandleBoardUpdate(&p)

	default:
		log.Printf("[SyncSession] Dropping message with unknown event %q", env.Event)
	}
}

// BroadcastUpsert sends an element upsert, reconnecting at most once.
func (s *Session) BroadcastUpsert(entries []protocol.ElementEntry) error {
	return s.InvokeWhenConnected("upsert elements", func(c Conn) error {
		env, err := protocol.NewEnvelope(protocol.EventUpsertElements, protocol.UpsertPayload{
			SocketID:           s.socketID,
			WhiteboardElements: entries,
			WhiteboardID:       s.boardID,
		})
		if err != nil {
			return err
		}
		return c.WriteJSON(env)
	})
}

// BroadcastDelete sends an element delete, reconnecting at most once.
func (s *Session) BroadcastDelete(uuids []string) error {
	return s.InvokeWhenConnected("delete elements", func(c Conn) error {
		env, err := protocol.NewEnvelope(protocol.EventDeleteElements, protocol.DeletePayload{
			SocketID:     s.socketID,
			UUIDs:        uuids,
			WhiteboardID: s.boardID,
		})
		if err != nil {
			return err
		}
		return c.WriteJSON(env)
	})
}

// BroadcastOrder sends a z-order change, reconnecting at most once.
func (s *Session) BroadcastOrder(direction protocol.OrderDirection, uuids []string) error {
	return s.InvokeWhenConnected("order elements", func(c Conn) error {
		env, err := protocol.NewEnvelope(protocol.EventOrderElements, protocol.OrderPayload{
			Direction:    direction,
			SocketID:     s.socketID,
			UUIDs:        uuids,
			WhiteboardID: s.boardID,
		})
		if err != nil {
			return err
		}
		return c.WriteJSON(env)
	})
}
