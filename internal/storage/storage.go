package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)

// TokenHash returns the key a refresh token is stored under. Raw tokens
// never reach the database.
func TokenHash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
