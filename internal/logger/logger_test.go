package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "WARN", "json")

	log.Info("skipped")
	assert.Zero(t, buf.Len())

	log.Warn("kept", "n", 1)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kept", line["msg"])
	assert.Equal(t, "WARN", line["level"])

	buf.Reset()
	New(&buf, "", "text").Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestComponentAndRoomContext(t *testing.T) {
	prev, prevDefault := defaultLogger, slog.Default()
	defer func() {
		defaultLogger = prev
		slog.SetDefault(prevDefault)
	}()

	var buf bytes.Buffer
	Set(New(&buf, "debug", "json"))

	ctx := WithRoom(context.Background(), "room-1")
	assert.Equal(t, "room-1", RoomID(ctx))
	assert.Empty(t, RoomID(context.Background()))

	WithContext(ctx, Component("sweeper")).Info("resolved")
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sweeper", line["component"])
	assert.Equal(t, "room-1", line["room_id"])

	// без комнаты в контексте атрибут не добавляется
	buf.Reset()
	WithContext(context.Background(), nil).Info("plain")
	line = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "room_id")
}
