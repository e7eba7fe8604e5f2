// Package fairness implements the commit-reveal protocol behind every PvP
// outcome.
//
// Before any outcome-affecting action the server publishes
// commitment = hex(sha256(secret)). Each decision of the match is derived as
// HMAC-SHA256(secret, roomID:nonce) mapped into the required range, and the
// secret itself is revealed once the room has finished. Anyone holding the
// commitment, the revealed secret and the recorded nonces can recompute
// every outcome.
package fairness

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
)

// SecretBytes - энтропия секрета сервера
const SecretBytes = 32

// Commit генерирует свежий секрет и его обязательство
func Commit() (secret, commitment string, err error) {
	buf := make([]byte, SecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate server seed: %w", err)
	}
	secret = hex.EncodeToString(buf)
	return secret, CommitmentOf(secret), nil
}

// CommitmentOf - одностороннее связывающее обязательство секрета
func CommitmentOf(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// Float maps (secret, roomID, nonce) into [0, 1) using the first four bytes
// of the HMAC, each byte contributing 1/256 of the previous precision.
func Float(secret, roomID string, nonce uint64) float64 {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(roomID))
	mac.Write([]byte{':'})
	mac.Write([]byte(strconv.FormatUint(nonce, 10)))
	sum := mac.Sum(nil)

	f := 0.0
	div := 256.0
	for _, b := range sum[:4] {
		f += float64(b) / div
		div *= 256
	}
	return f
}

// Derive возвращает исход в диапазоне [0, n); чистая функция от своих аргументов
func Derive(secret, roomID string, nonce uint64, n int) int {
	if n <= 1 {
		return 0
	}
	v := int(Float(secret, roomID, nonce) * float64(n))
	if v >= n {
		v = n - 1
	}
	return v
}

// Die - грань кубика 1..sides
func Die(secret, roomID string, nonce uint64, sides int) int {
	return Derive(secret, roomID, nonce, sides) + 1
}

// Coin - бит монетки (0 или 1)
func Coin(secret, roomID string, nonce uint64) int {
	return Derive(secret, roomID, nonce, 2)
}

// Reveal отдает секрет для публикации; вызывается только для finished комнат
func Reveal(secret string) string {
	return secret
}

// Verify пересчитывает обязательство и сравнивает за постоянное время
func Verify(secret, commitment string) bool {
	if secret == "" || commitment == "" {
		return false
	}
	got := CommitmentOf(secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(commitment)) == 1
}
