package devhub

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/putto11262002/deliverchat/hub"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// conn is one authenticated client connection to the hub.
type conn struct {
	ws     *websocket.Conn
	userID string
	out    chan *hub.Frame
	// done is closed by the hub on disconnect; out itself is never
	// closed so concurrent broadcasts cannot race teardown.
	done   chan struct{}
	hub    *Hub
	logger *slog.Logger
}

func (c *conn) readLoop() {
	defer func() {
		c.hub.disconnect(c)
		c.ws.Close()
		c.logger.Debug("read loop stopped", slog.String("user", c.userID))
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		mt, r, err := c.ws.NextReader()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug(fmt.Sprintf("expected close: %v", err))
				return
			}
			c.logger.Debug(fmt.Sprintf("NextReader: %v", err))
			return
		}

		if mt != websocket.TextMessage {
			c.logger.Error(fmt.Sprintf("unexpected message format: %v", mt))
			continue
		}

		var frame hub.Frame
		if err := hub.DecodeFrame(r, &frame); err != nil {
			c.logger.Error(err.Error())
			continue
		}
		c.hub.handleFrame(c, &frame)
	}
}

func (c *conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.logger.Debug("write loop stopped", slog.String("user", c.userID))
	}()

	for {
		select {
		case <-c.done:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.ws.Close()
			return
		case f := <-c.out:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			w, err := c.ws.NextWriter(websocket.TextMessage)
			if err != nil {
				c.logger.Error(fmt.Sprintf("NextWriter: %v", err))
				return
			}
			if err := hub.EncodeFrame(w, f); err != nil {
				c.logger.Error(err.Error())
			}
			w.Close()
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug(fmt.Sprintf("writing ping: %v", err))
				return
			}
		}
	}
}
