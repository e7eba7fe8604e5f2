package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var ErrInitDataInvalid = errors.New("invalid telegram init data")

// окно свежести auth_date и допустимый сдвиг часов клиента
const (
	initDataMaxAge    = time.Hour
	initDataClockSkew = 5 * time.Minute
)

// ValidateTelegramInitData проверяет HMAC Telegram WebApp init_data и
// свежесть auth_date (не старше часа) для защиты от replay
func ValidateTelegramInitData(initData, botToken string, now time.Time) (url.Values, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, ErrInitDataInvalid
	}

	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataInvalid
	}
	values.Del("hash")

	provided, err := hex.DecodeString(hash)
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	if !hmac.Equal(initDataSignature(values, botToken), provided) {
		return nil, ErrInitDataInvalid
	}

	authDate, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, ErrInitDataInvalid
	}
	age := now.Sub(time.Unix(authDate, 0))
	if age > initDataMaxAge || age < -initDataClockSkew {
		return nil, ErrInitDataInvalid
	}

	return values, nil
}

// TelegramUserID достает id пользователя из проверенной init_data
func TelegramUserID(initData, botToken string, now time.Time) (int64, error) {
	values, err := ValidateTelegramInitData(initData, botToken, now)
	if err != nil {
		return 0, err
	}
	var user struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(values.Get("user")), &user); err != nil || user.ID <= 0 {
		return 0, ErrInitDataInvalid
	}
	return user.ID, nil
}

// подпись WebApp: ключ = HMAC("WebAppData", botToken), данные - пары k=v по алфавиту
func initDataSignature(values url.Values, botToken string) []byte {
	pairs := make([]string, 0, len(values))
	for k, v := range values {
		pairs = append(pairs, k+"="+strings.Join(v, ""))
	}
	sort.Strings(pairs)

	secretKey := hmac.New(sha256.New, []byte("WebAppData"))
	secretKey.Write([]byte(botToken))
	h := hmac.New(sha256.New, secretKey.Sum(nil))
	h.Write([]byte(strings.Join(pairs, "\n")))
	return h.Sum(nil)
}
