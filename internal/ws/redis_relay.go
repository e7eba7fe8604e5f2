package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"battle_rooms/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RelayChannel - канал Redis, через который инстансы обмениваются событиями комнат
const RelayChannel = "pvp:room-events"

const relayBuffer = 1024

// envelope - событие в канале relay; Origin отсекает собственные сообщения
type envelope struct {
	Origin string          `json:"origin"`
	Header Header          `json:"header"`
	Event  json.RawMessage `json:"event"`
}

// RedisRelay пересылает события в другие инстансы и доставляет чужие локально.
// Порядок публикации одного инстанса сохраняется: одна очередь, одна горутина.
type RedisRelay struct {
	rdb     *redis.Client
	hub     *Hub
	origin  string
	channel string
	queue   chan []byte
	log     *slog.Logger
}

func NewRedisRelay(rdb *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{
		rdb:     rdb,
		hub:     hub,
		origin:  uuid.NewString(),
		channel: RelayChannel,
		queue:   make(chan []byte, relayBuffer),
		log:     logger.Component("ws_relay"),
	}
}

func (r *RedisRelay) Origin() string { return r.origin }

// Forward реализует Forwarder; не блокирует публикующего
func (r *RedisRelay) Forward(h Header, data []byte) {
	msg, err := encodeEnvelope(r.origin, h, data)
	if err != nil {
		r.log.Error("encode envelope failed", "room_id", h.RoomID, "error", err)
		return
	}
	select {
	case r.queue <- msg:
	default:
		// клиенты других инстансов догонят по снимку при следующем join
		r.log.Warn("relay queue full, event dropped", "room_id", h.RoomID, "version", h.Version)
	}
}

// Run публикует очередь и слушает канал до отмены ctx
func (r *RedisRelay) Run(ctx context.Context) {
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer sub.Close()

	go r.publishLoop(ctx)

	r.log.Info("relay subscribed", "channel", r.channel, "origin", r.origin)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			r.receive([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-r.queue:
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := r.rdb.Publish(pctx, r.channel, msg).Err(); err != nil {
				r.log.Error("relay publish failed", "error", err)
			}
			cancel()
		}
	}
}

func (r *RedisRelay) receive(payload []byte) {
	env, err := decodeEnvelope(payload)
	if err != nil {
		r.log.Warn("bad relay message", "error", err)
		return
	}
	if env.Origin == r.origin {
		return
	}
	r.hub.Deliver(env.Header, env.Event)
}

func encodeEnvelope(origin string, h Header, data []byte) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, Header: h, Event: data})
}

func decodeEnvelope(payload []byte) (envelope, error) {
	var env envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}
