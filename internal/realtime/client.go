package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"campusnotify/internal/model"
)

// Client is one authenticated WebSocket connection.
type Client struct {
	id     string
	userID int64
	role   model.Role

	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	log  logrus.FieldLogger

	// ctx scopes work done on behalf of this connection; cancelled on close.
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *Client) ID() string { return c.id }

func (c *Client) UserID() int64 { return c.userID }

func (c *Client) Role() model.Role { return c.role }

// Send queues a frame. A client whose buffer is full is disconnected rather
// than slowing down publishers.
func (c *Client) Send(frame []byte) bool {
	if c.ctx.Err() != nil {
		return false
	}
	select {
	case c.send <- frame:
		return true
	case <-c.ctx.Done():
		return false
	default:
		c.log.Warn("Send buffer full, dropping slow client")
		c.close()
		return false
	}
}

func (c *Client) emit(event string, data interface{}) {
	frame, err := encode(Event{Event: event, Data: data})
	if err != nil {
		c.log.WithError(err).Error("Encoding reply failed")
		return
	}
	if c.Send(frame) {
		c.hub.countOut(event)
	}
}

func (c *Client) emitError(message string) {
	c.emit(model.EventError, model.ErrorPayload{Message: message})
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

// readPump reads client frames until the connection fails, then unregisters.
// Requests are handled in order, one at a time.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		if err := c.hub.presence.Refresh(c.ctx, c.userID); err != nil {
			c.log.WithError(err).Debug("Presence refresh failed")
		}
		return c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("Connection closed unexpectedly")
			}
			return
		}
		c.hub.handleInbound(c, data)
	}
}

// writePump is the only writer on the connection.
func (c *Client) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(cfg.WriteWait))
			return
		}
	}
}
