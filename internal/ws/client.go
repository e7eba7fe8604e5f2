package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256

	// входящие control-сообщения: 5 в секунду, пачкой до 10
	inboundRate  = 5
	inboundBurst = 10
	joinTimeout  = 5 * time.Second
)

// RoomSource отдает текущий снимок комнаты при подписке
type RoomSource interface {
	Snapshot(ctx context.Context, roomID string) (domain.Snapshot, error)
}

// входящее control-сообщение
type controlMessage struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// ответ на control-сообщение
type replyMessage struct {
	Type    string           `json:"type"`
	RoomID  string           `json:"roomId,omitempty"`
	Room    *domain.Snapshot `json:"room,omitempty"`
	Code    string           `json:"code,omitempty"`
	Message string           `json:"message,omitempty"`
}

type Client struct {
	UserID int64

	hub     *Hub
	rooms   RoomSource
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     *slog.Logger

	mu       sync.Mutex
	versions map[string]int64
	closed   bool
	done     chan struct{}
}

func NewClient(userID int64, conn *websocket.Conn, hub *Hub, rooms RoomSource) *Client {
	return &Client{
		UserID:   userID,
		hub:      hub,
		rooms:    rooms,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		limiter:  rate.NewLimiter(inboundRate, inboundBurst),
		log:      logger.Component("ws_client", "user_id", userID),
		versions: make(map[string]int64),
		done:     make(chan struct{}),
	}
}

// Run обслуживает соединение до его закрытия
func (c *Client) Run() {
	c.hub.Register(c)
	go c.writePump()
	c.readPump()
}

// deliver ставит событие в очередь, если его версия новее последней
// доставленной по этой комнате. false - буфер переполнен.
func (c *Client) deliver(roomID string, version int64, data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if version <= c.versions[roomID] {
		return true
	}
	select {
	case c.send <- data:
		c.versions[roomID] = version
		return true
	default:
		return false
	}
}

func (c *Client) forget(roomID string) {
	c.mu.Lock()
	delete(c.versions, roomID)
	c.mu.Unlock()
}

func (c *Client) reply(msg replyMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replyLocked(msg)
}

func (c *Client) replyLocked(msg replyMessage) {
	if c.closed {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Close закрывает очередь отправки; writePump закроет соединение
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
		close(c.done)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read failed", "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			c.reply(replyMessage{Type: "error", Code: "rate_limited", Message: "too many messages"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(raw []byte) {
	var msg controlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply(replyMessage{Type: "error", Code: "bad_message", Message: "malformed message"})
		return
	}
	if _, err := uuid.Parse(msg.RoomID); err != nil {
		c.reply(replyMessage{Type: "error", RoomID: msg.RoomID, Code: domain.ErrInvalidRoomID.Code, Message: domain.ErrInvalidRoomID.Message})
		return
	}

	switch msg.Type {
	case "join":
		c.join(msg.RoomID)
	case "leave":
		c.hub.Unsubscribe(c, msg.RoomID)
		c.reply(replyMessage{Type: "left", RoomID: msg.RoomID})
	default:
		c.reply(replyMessage{Type: "error", RoomID: msg.RoomID, Code: "bad_message", Message: "unknown message type"})
	}
}

// join подписывает клиента до чтения снимка: события между чтением и
// подпиской не теряются, а снимок не новее доставленного не отправляется.
func (c *Client) join(roomID string) {
	c.hub.Subscribe(c, roomID)

	ctx, cancel := context.WithTimeout(context.Background(), joinTimeout)
	defer cancel()
	snap, err := c.rooms.Snapshot(ctx, roomID)
	if err != nil {
		c.hub.Unsubscribe(c, roomID)
		var de *domain.Error
		if errors.As(err, &de) {
			c.reply(replyMessage{Type: "error", RoomID: roomID, Code: de.Code, Message: de.Message})
			return
		}
		c.log.Error("snapshot failed", "room_id", roomID, "error", err)
		c.reply(replyMessage{Type: "error", RoomID: roomID, Code: "internal", Message: "internal error"})
		return
	}

	// снимок и события идут через одну очередь под одним замком
	joined := replyMessage{Type: "joined", RoomID: roomID}
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap.Version > c.versions[roomID] {
		c.versions[roomID] = snap.Version
		joined.Room = &snap
	}
	c.replyLocked(joined)
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
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
