package ws

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"preview-lab/domain/event"
	"preview-lab/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Conn wraps one websocket connection with a buffered write pump. It is
// the connection's contract.EventSink: events are framed here and queued
// for the pump; a client too slow to drain its queue is disconnected
// rather than allowed to block the fan-out.
type Conn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	log       *slog.Logger
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string, ws *websocket.Conn, bufferSize int, log *slog.Logger) *Conn {
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, bufferSize),
		log:  log,
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Consume(_ context.Context, evt event.DomainEvent) error {
	data, err := protocol.Encode(evt)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return fmt.Errorf("connection %s closed", c.id)
	default:
		c.log.Warn("Slow client, disconnecting", "connection", c.id)
		c.Close()
		return fmt.Errorf("connection %s too slow", c.id)
	}
}

// writeDirect frames and writes one event synchronously under a write
// deadline. Only valid before the write pump has started; afterwards
// all writes must go through Consume.
func (c *Conn) writeDirect(evt event.DomainEvent) error {
	data, err := protocol.Encode(evt)
	if err != nil {
		return err
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// readPump reads frames until the connection dies and hands each one to
// the dispatcher. It owns the read side: deadlines and pong handling.
func (c *Conn) readPump(handle func(data []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Read failed", "connection", c.id, "error", err)
			}
			return
		}
		handle(data)
	}
}

// writePump serializes all writes on one goroutine and keeps the
// connection alive with pings. A dead peer fails the ping write and the
// pump exits, which surfaces as a disconnect.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
