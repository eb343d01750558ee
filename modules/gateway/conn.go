package gateway

import (
	"errors"
	"sync"
	"time"

	domain "github.com/example/groupchat-realtime/domain/groupchat"
	"github.com/example/groupchat-realtime/modules/broadcast"
	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure     = errors.New("send buffer full")
	ErrConnectionClosed = errors.New("connection closed")
)

// wsConn is the part of *websocket.Conn a Connection drives.
type wsConn interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Connection is one live WebSocket client bound to one room.
type Connection struct {
	id       string
	identity domain.Identity
	roomID   domain.RoomID
	profile  domain.Member
	limiter  *tokenBucket

	refreshLimiter *tokenBucket

	conn wsConn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

var _ broadcast.Subscriber = (*Connection)(nil)

func newConnection(id string, identity domain.Identity, roomID domain.RoomID, conn wsConn, opts Options) *Connection {
	return &Connection{
		id:       id,
		identity: identity,
		roomID:   roomID,
		profile: domain.Member{
			UserID:         identity.UserID,
			Username:       identity.Username,
			ProfilePicture: domain.DefaultProfilePicture,
		},
		limiter:        newTokenBucket(opts.RateLimitBurst, opts.RateLimitPerSecond),
		refreshLimiter: newTokenBucket(opts.RefreshBurst, opts.RefreshPerSecond),
		conn:           conn,
		send:           make(chan []byte, opts.SendBuffer),
	}
}

func (c *Connection) ID() string {
	return c.id
}

// Identity returns the authenticated user behind the connection.
func (c *Connection) Identity() domain.Identity {
	return c.identity
}

// RoomID returns the room the connection is bound to.
func (c *Connection) RoomID() domain.RoomID {
	return c.roomID
}

// Send queues a frame without blocking. A full buffer is a delivery failure.
func (c *Connection) Send(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close stops the write pump and closes the socket. Safe to call repeatedly.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// readLoop reads frames until the socket fails or the read deadline passes.
// Any frame or pong extends the deadline by window.
func (c *Connection) readLoop(window time.Duration, onFrame func([]byte), onPong func()) {
	_ = c.conn.SetReadDeadline(time.Now().Add(window))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(window))
		onPong()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("read loop ended")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(window))
		onFrame(data)
	}
}

// writePump is the only writer on the socket: queued frames and periodic pings.
func (c *Connection) writePump(pingInterval, writeTimeout time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				log.Debug().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("write pump set deadline")
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("write pump write error")
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				_ = c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Debug().Err(err).Str("module", moduleName).Str("conn", c.id).Msg("ping failed")
				_ = c.Close()
				return
			}
		}
	}
}
