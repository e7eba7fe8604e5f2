package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"battle_rooms/internal/domain"
	"battle_rooms/internal/logger"
	"battle_rooms/internal/metrics"
)

// Forwarder передает уже закодированное событие другим инстансам
type Forwarder interface {
	Forward(h Header, data []byte)
}

// Header - поля события, нужные для маршрутизации без полного декодирования
type Header struct {
	Type    domain.EventType `json:"type"`
	RoomID  string           `json:"roomId"`
	Version int64            `json:"version"`
}

// Hub держит подписчиков по комнатам. Порядок доставки внутри комнаты
// совпадает с порядком Publish; клиент отбрасывает версии не новее последней.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	clients map[*Client]struct{}
	relay   Forwarder
	log     *slog.Logger
}

func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		log:     logger.Component("ws_hub"),
	}
}

// SetRelay включает пересылку событий в другие инстансы
func (h *Hub) SetRelay(f Forwarder) {
	h.mu.Lock()
	h.relay = f
	h.mu.Unlock()
}

// Publish реализует service.Publisher: локальная доставка и пересылка
func (h *Hub) Publish(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("encode event failed", "room_id", ev.RoomID, "type", ev.Type, "error", err)
		return
	}
	hdr := Header{Type: ev.Type, RoomID: ev.RoomID, Version: ev.Version}
	h.Deliver(hdr, data)

	h.mu.RLock()
	relay := h.relay
	h.mu.RUnlock()
	if relay != nil {
		relay.Forward(hdr, data)
	}
}

// Deliver рассылает событие подписчикам комнаты на этом инстансе
func (h *Hub) Deliver(hdr Header, data []byte) {
	h.mu.RLock()
	subs := make([]*Client, 0, len(h.rooms[hdr.RoomID]))
	for c := range h.rooms[hdr.RoomID] {
		subs = append(subs, c)
	}
	h.mu.RUnlock()

	for _, c := range subs {
		if !c.deliver(hdr.RoomID, hdr.Version, data) {
			// медленный клиент: буфер полон, отключаем
			h.log.Warn("dropping slow client", "user_id", c.UserID, "room_id", hdr.RoomID)
			c.Close()
		}
	}

	// канал удаленной комнаты больше не нужен
	if hdr.Type == domain.EventRoomDeleted {
		h.mu.Lock()
		for c := range h.rooms[hdr.RoomID] {
			c.forget(hdr.RoomID)
		}
		delete(h.rooms, hdr.RoomID)
		h.mu.Unlock()
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnections.Inc()
}

// Unregister снимает клиента со всех комнат
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	for roomID, subs := range h.rooms {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	metrics.WSConnections.Dec()
}

func (h *Hub) Subscribe(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[*Client]struct{})
		h.rooms[roomID] = subs
	}
	subs[c] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	c.forget(roomID)
}

// Subscribers - число подписчиков комнаты на этом инстансе
func (h *Hub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Connections - число открытых соединений
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
