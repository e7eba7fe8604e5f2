package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

var (
	defaultLogger *slog.Logger
)

type roomKey struct{}

// New собирает логгер поверх w. format "json" включает JSON, иначе текст
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Init инициализирует глобальный логгер (LOG_LEVEL, LOG_FORMAT)
func Init(level, format string) {
	Set(New(os.Stdout, level, format))
}

// Set подменяет глобальный логгер
func Set(l *slog.Logger) {
	defaultLogger = l
	slog.SetDefault(l)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get возвращает дефолтный логгер
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("info", "text")
	}
	return defaultLogger
}

// Component возвращает логгер подсистемы: pvp, sweeper, ws_hub...
func Component(name string, args ...any) *slog.Logger {
	return Get().With(append([]any{"component", name}, args...)...)
}

// WithRoom помечает контекст id комнаты
func WithRoom(ctx context.Context, roomID string) context.Context {
	return context.WithValue(ctx, roomKey{}, roomID)
}

// RoomID достает id комнаты из контекста
func RoomID(ctx context.Context) string {
	id, _ := ctx.Value(roomKey{}).(string)
	return id
}

// WithContext дополняет log атрибутом room_id из контекста.
// nil - глобальный логгер
func WithContext(ctx context.Context, log *slog.Logger) *slog.Logger {
	if log == nil {
		log = Get()
	}
	if id := RoomID(ctx); id != "" {
		return log.With("room_id", id)
	}
	return log
}

// Info логирует на уровне info
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Debug логирует на уровне debug
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// Warn логирует на уровне warn
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error логирует на уровне error
func Error(msg string, args ...any) {
	Get().Error(msg, args...)
}

// Fatal логирует на уровне error и завершает программу
func Fatal(msg string, args ...any) {
	Get().Error(msg, args...)
	os.Exit(1)
}
