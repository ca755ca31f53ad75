package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrInvalidHash возвращается, если сохраненный хеш не в PHC формате argon2id
var ErrInvalidHash = errors.New("invalid password hash format")

// Параметры Argon2id по умолчанию
const (
	// Argon2Time - количество итераций (time cost)
	Argon2Time = 3
	// Argon2Memory - объем памяти в KB (64MB = 64*1024 KB)
	Argon2Memory = 64 * 1024
	// Argon2Threads - количество параллельных потоков
	Argon2Threads = 2
	// Argon2KeyLen - длина выходного ключа в байтах
	Argon2KeyLen = 32
	// SaltSize - размер соли в байтах
	SaltSize = 16
)

// PasswordParams задает стоимость argon2id для новых хешей.
// Проверка всегда использует параметры, сохраненные в самом хеше.
type PasswordParams struct {
	Time     uint32
	Memory   uint32
	Threads  uint8
	KeyLen   uint32
	SaltSize int
}

// DefaultPasswordParams returns the production argon2id cost.
func DefaultPasswordParams() PasswordParams {
	return PasswordParams{
		Time:     Argon2Time,
		Memory:   Argon2Memory,
		Threads:  Argon2Threads,
		KeyLen:   Argon2KeyLen,
		SaltSize: SaltSize,
	}
}

// PasswordHasher хеширует и проверяет пароли через argon2id
type PasswordHasher struct {
	params PasswordParams
}

// NewPasswordHasher создает hasher; нулевые поля заменяются значениями по умолчанию
func NewPasswordHasher(params PasswordParams) *PasswordHasher {
	def := DefaultPasswordParams()
	if params.Time == 0 {
		params.Time = def.Time
	}
	if params.Memory == 0 {
		params.Memory = def.Memory
	}
	if params.Threads == 0 {
		params.Threads = def.Threads
	}
	if params.KeyLen == 0 {
		params.KeyLen = def.KeyLen
	}
	if params.SaltSize == 0 {
		params.SaltSize = def.SaltSize
	}
	return &PasswordHasher{params: params}
}

// GenerateSalt генерирует криптографически случайную соль указанного размера
func GenerateSalt(size int) ([]byte, error) {
	salt := make([]byte, size)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// Hash возвращает хеш пароля в PHC формате:
// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
func (h *PasswordHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt, err := GenerateSalt(h.params.SaltSize)
	if err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify сравнивает пароль с сохраненным хешем за постоянное время.
// Возвращает ErrInvalidHash, если хеш поврежден.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	p, salt, key, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, uint32(len(key))) //nolint:gosec // длина ключа всегда помещается в uint32

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

func decodeHash(encoded string) (PasswordParams, []byte, []byte, error) {
	var p PasswordParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return p, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return p, nil, nil, ErrInvalidHash
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return p, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return p, nil, nil, ErrInvalidHash
	}

	p.SaltSize = len(salt)
	p.KeyLen = uint32(len(key)) //nolint:gosec // см. выше

	return p, salt, key, nil
}
