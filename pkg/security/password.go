// Package security hashes and checks account passwords with Argon2id. Hashes
// use the PHC string format so the cost parameters travel with each hash.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/angelmondragon/storefront/pkg/config"
	"golang.org/x/crypto/argon2"
)

const phcPrefix = "$argon2id$v=19$"

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

var (
	ErrInvalidHash  = errors.New("invalid argon2id hash")
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters and not a single repeated character", MinPasswordLength)
)

type argonCost struct {
	memory  uint32
	passes  uint32
	threads uint8
	saltLen uint32
	keyLen  uint32
}

// costFor bounds the configured parameters to values argon2 accepts and that
// keep a login under a second on modest hardware.
func costFor(cfg config.PasswordConfig) argonCost {
	return argonCost{
		memory:  uint32(bound(cfg.ArgonMemoryKB, 8, 512*1024)),
		passes:  uint32(bound(cfg.ArgonTime, 1, 10)),
		threads: uint8(bound(cfg.ArgonParallelism, 1, 255)),
		saltLen: uint32(bound(cfg.ArgonSaltLen, 8, 64)),
		keyLen:  uint32(bound(cfg.ArgonKeyLen, 16, 64)),
	}
}

func (c argonCost) derive(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, c.passes, c.memory, c.threads, c.keyLen)
}

func HashPassword(password string, cfg config.PasswordConfig) (string, error) {
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	cost := costFor(cfg)
	salt := make([]byte, cost.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return fmt.Sprintf("%sm=%d,t=%d,p=%d$%s$%s", phcPrefix, cost.memory, cost.passes, cost.threads,
		b64(salt), b64(cost.derive(password, salt))), nil
}

// VerifyPassword compares in constant time. A malformed hash is an error, a
// wrong password is not.
func VerifyPassword(password, encoded string) (bool, error) {
	cost, salt, want, err := parseHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(want, cost.derive(password, salt)) == 1, nil
}

// NeedsRehash reports whether encoded is unreadable or was produced with a
// lower cost than cfg asks for today.
func NeedsRehash(encoded string, cfg config.PasswordConfig) bool {
	have, _, _, err := parseHash(encoded)
	if err != nil {
		return true
	}
	want := costFor(cfg)
	return have.memory < want.memory || have.passes < want.passes || have.keyLen < want.keyLen
}

// CheckStrength is the registration policy: long enough and not one repeated
// character.
func CheckStrength(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	first, _ := utf8.DecodeRuneInString(password)
	if strings.Trim(password, string(first)) == "" {
		return ErrWeakPassword
	}
	return nil
}

func parseHash(encoded string) (argonCost, []byte, []byte, error) {
	rest, ok := strings.CutPrefix(encoded, phcPrefix)
	if !ok {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 3 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}

	var cost argonCost
	if _, err := fmt.Sscanf(fields[0], "m=%d,t=%d,p=%d", &cost.memory, &cost.passes, &cost.threads); err != nil {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(fields[1])
	if err != nil {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	key, err := base64.RawStdEncoding.DecodeString(fields[2])
	if err != nil || len(key) == 0 {
		return argonCost{}, nil, nil, ErrInvalidHash
	}
	cost.saltLen = uint32(len(salt))
	cost.keyLen = uint32(len(key))
	return cost, salt, key, nil
}

func b64(b []byte) string {
	return base64.RawStdEncoding.EncodeToString(b)
}

func bound(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
