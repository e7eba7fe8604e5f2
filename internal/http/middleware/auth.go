package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ключ контекста gin с id пользователя
const userIDKey = "user_id"

var (
	jwtMu     sync.RWMutex
	jwtSecret []byte
)

var (
	ErrTokenInvalid  = errors.New("invalid token")
	ErrJWTNotInitted = errors.New("jwt secret is not configured")
)

// InitJWT задает секрет подписи HS256
func InitJWT(secret string) {
	jwtMu.Lock()
	jwtSecret = []byte(secret)
	jwtMu.Unlock()
}

func secret() []byte {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	return jwtSecret
}

// CreateJWT выпускает токен для пользователя (тесты и служебные клиенты)
func CreateJWT(userID int64, ttl time.Duration) (string, error) {
	key := secret()
	if len(key) == 0 {
		return "", ErrJWTNotInitted
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": strconv.FormatInt(userID, 10),
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ParseJWT проверяет подпись и срок и возвращает id пользователя из sub или user_id
func ParseJWT(token string) (int64, error) {
	key := secret()
	if len(key) == 0 {
		return 0, ErrJWTNotInitted
	}
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return 0, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrTokenInvalid
	}
	if id, err := claimUserID(claims["sub"]); err == nil {
		return id, nil
	}
	return claimUserID(claims["user_id"])
}

func claimUserID(v interface{}) (int64, error) {
	switch id := v.(type) {
	case string:
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil || n <= 0 {
			return 0, ErrTokenInvalid
		}
		return n, nil
	case float64:
		if id <= 0 || id != float64(int64(id)) {
			return 0, ErrTokenInvalid
		}
		return int64(id), nil
	}
	return 0, fmt.Errorf("%w: no user claim", ErrTokenInvalid)
}

// Auth пропускает запросы с валидным bearer-токеном (или ?token= для websocket)
func Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "token required"})
			return
		}
		userID, err := ParseJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid token"})
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// UserID возвращает id пользователя, проставленный Auth
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// AdminOnly - только пользователи из списка ADMIN_USER_IDS
func AdminOnly(adminIDs []int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok || !slices.Contains(adminIDs, userID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "admin only"})
			return
		}
		c.Next()
	}
}
