package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"battle_rooms/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	// пустой - комнаты в памяти процесса (один инстанс, без рестартов)
	UseMemoryStore bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret      string
	AdminUserIDs   []int64
	AllowedOrigins []string

	BotToken         string
	AdminBotEnabled  bool
	AdminTelegramIDs []int64

	SweepInterval time.Duration
	SweepBatch    int
	RevealDelay   time.Duration
	AdvanceDelay  time.Duration
	TurnTimeout   time.Duration

	MinBet int64
	MaxBet int64

	LogLevel  string
	LogFormat string
}

// Load читает конфиг из окружения; .env подхватывается, если есть
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to read .env", "error", err)
	}

	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		AdminUserIDs:     parseIDs(os.Getenv("ADMIN_USER_IDS")),
		AllowedOrigins:   parseList(os.Getenv("ALLOWED_ORIGINS")),
		BotToken:         os.Getenv("BOT_TOKEN"),
		AdminBotEnabled:  getEnvBool("ADMIN_BOT_ENABLED", false),
		AdminTelegramIDs: parseIDs(os.Getenv("ADMIN_TELEGRAM_IDS")),
		SweepInterval:    getEnvDuration("PVP_SWEEP_INTERVAL", time.Second),
		SweepBatch:       getEnvInt("PVP_SWEEP_BATCH", 100),
		RevealDelay:      getEnvDuration("PVP_REVEAL_DELAY", 3*time.Second),
		AdvanceDelay:     getEnvDuration("PVP_ADVANCE_DELAY", 2*time.Second),
		TurnTimeout:      getEnvDuration("PVP_TURN_TIMEOUT", 20*time.Second),
		MinBet:           getEnvInt64("MIN_BET", 10),
		MaxBet:           getEnvInt64("MAX_BET", 100000),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "text"),
	}
	cfg.UseMemoryStore = cfg.DatabaseURL == ""
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		logger.Warn("invalid int in env, using default", "key", key, "value", v)
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		logger.Warn("invalid int in env, using default", "key", key, "value", v)
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// принимает "1500ms", "2s" или просто миллисекунды
func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	logger.Warn("invalid duration in env, using default", "key", key, "value", v)
	return def
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) []int64 {
	var ids []int64
	for _, part := range parseList(s) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			logger.Warn("skipping invalid id", "value", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
