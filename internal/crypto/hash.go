package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashToken хеширует сырой refresh токен с использованием SHA256.
// В журнале хранится только hex-представление хеша.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// TokenMatches проверяет, соответствует ли сырой токен сохраненному хешу.
// Сравнение выполняется за постоянное время.
func TokenMatches(raw, hashed string) bool {
	if raw == "" || hashed == "" {
		return false
	}
	computed := HashToken(raw)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hashed)) == 1
}
