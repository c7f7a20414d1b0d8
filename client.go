/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	sendBuffer     = 64
	maxMessageSize = 64 << 10
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one websocket connection. Messages are queued on send and
// written by writePump; nothing else writes to conn.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan any
	log  *zap.Logger

	mu     sync.Mutex
	closed bool
	hub    *Hub
	name   string
}

func newClient(conn *websocket.Conn, logger *zap.Logger) *Client {
	id := uuid.NewString()

	return &Client{
		id:   id,
		conn: conn,
		send: make(chan any, sendBuffer),
		log:  logger.With(zap.String("client_id", id)),
	}
}

// deliver queues msg without blocking. A client that cannot keep up is
// closed; its read pump then notices and leaves the room.
func (c *Client) deliver(msg any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- msg:
		return true
	default:
		c.log.Debug("Client send buffer full")
		c.closed = true
		close(c.send)
		return false
	}
}

func (c *Client) emit(event string, data any) bool {
	return c.deliver(outbound{Event: event, Data: data})
}

// ack answers a command. Commands without an ack id get no answer.
func (c *Client) ack(id *int64, data any) {
	if id == nil {
		return
	}
	c.deliver(outbound{Event: evAck, Ack: id, Data: data})
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// bind records the room and player name of the connection and returns the
// hub it was bound to before, if any.
func (c *Client) bind(h *Hub, name string) *Hub {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.hub
	c.hub = h
	c.name = name
	return prev
}

func (c *Client) binding() (*Hub, string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.hub, c.name
}

// unbind clears the binding if it still points at h.
func (c *Client) unbind(h *Hub) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hub == h {
		c.hub = nil
		c.name = ""
	}
}

func serveWS(m *RoomManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			m.log.Warn("WebSocket upgrade error", zap.Error(err))
			return
		}

		c := newClient(conn, m.log)
		c.log.Info("Client connected", zap.String("remote", realIP(r)))

		go c.writePump()
		c.readPump(m)
	}
}

func (c *Client) readPump(m *RoomManager) {
	defer func() {
		if h, _ := c.binding(); h != nil {
			h.release(c)
		}
		c.close()
		_ = c.conn.Close()
		c.log.Info("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Read error", zap.Error(err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.emit(evError, errorPayload{Message: "malformed message"})
			continue
		}

		c.log.Debug("Message received", zap.String("event", msg.Event))

		c.dispatch(m, msg)
	}
}

// dispatch runs createRoom directly and hands every other command to the
// hub named by its code.
func (c *Client) dispatch(m *RoomManager, msg inbound) {
	if msg.Event == cmdCreateRoom {
		m.createRoom(c, msg)
		return
	}

	if !knownCommand(msg.Event) {
		c.emit(evError, errorPayload{Message: "unknown event: " + msg.Event})
		c.ack(msg.Ack, false)
		return
	}

	var ref roomRef
	if len(msg.Data) > 0 {
		_ = json.Unmarshal(msg.Data, &ref)
	}
	if ref.Code == "" {
		c.emit(evError, errorPayload{Message: "missing room code"})
		c.ack(msg.Ack, failureAck(msg.Event, errBadRequest))
		return
	}

	m.hub(ref.Code).submit(command{
		client: c,
		event:  msg.Event,
		ack:    msg.Ack,
		data:   msg.Data,
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.Debug("Write error", zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
