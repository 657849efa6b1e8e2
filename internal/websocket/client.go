package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 256
)

// Client is one live connection in a room. PlayerID stays empty until the
// connection claims a seat with a join message.
type Client struct {
	ID       string
	PlayerID string
	GameCode string

	room    *Room
	conn    *websocket.Conn
	send    chan []byte
	handler *Handler
	log     *zap.Logger
}

func newClient(handler *Handler, room *Room, conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.NewString(),
		GameCode: room.Code(),
		room:     room,
		conn:     conn,
		send:     make(chan []byte, sendBufferSize),
		handler:  handler,
		log:      handler.log,
	}
}

// Enqueue queues a payload without blocking. Returns false when the buffer
// is full; the caller drops the message for this connection only.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close tears the connection down. ReadPump unblocks with an error and runs
// the normal disconnect cleanup.
func (c *Client) Close() {
	c.conn.Close()
}

// ReadPump consumes inbound frames until the connection dies, then runs the
// disconnect cleanup. The cleanup runs on every exit path, including abrupt
// socket termination.
func (c *Client) ReadPump() {
	defer func() {
		c.handler.disconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error",
					zap.String("client_id", c.ID),
					zap.String("code", c.GameCode),
					zap.Error(err),
				)
			}
			return
		}
		c.handler.handleMessage(c, message)
	}
}

// WritePump drains the send buffer and keeps the connection alive with
// pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
