package api

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	errRefreshNotFound = errors.New("refresh token not found")
	errRefreshRevoked  = errors.New("refresh token revoked")
	errRefreshExpired  = errors.New("refresh token expired")
)

// Only the hash of a refresh token is persisted.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// sqliteTimeLayouts are the encodings go-sqlite3 may hand back for a
// DATETIME column depending on how the value was written.
var sqliteTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func asTime(v any) (time.Time, bool) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, false
	}
	for _, layout := range sqliteTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case int64:
		return t != 0, true
	case int:
		return t != 0, true
	case []byte:
		return asBool(string(t))
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n != 0, true
		}
	}
	return false, false
}

// StoreRefreshToken records the hash of token. Storing the same token twice
// refreshes its expiry and clears a revocation.
func StoreRefreshToken(db *sql.DB, userID int, token string, expiresAt time.Time, ttlDays int) error {
	_, err := db.Exec(`
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at, ttl_days) VALUES (?, ?, ?, ?)
		ON CONFLICT(token_hash) DO UPDATE SET expires_at = excluded.expires_at, ttl_days = excluded.ttl_days, revoked = 0`,
		userID, hashToken(token), expiresAt.UTC(), ttlDays)
	return err
}

// ValidateRefreshTokenInDB returns the owning user id and TTL of a stored,
// unrevoked and unexpired token.
func ValidateRefreshTokenInDB(db *sql.DB, token string) (userID, ttlDays int, err error) {
	var expiresAt, revoked any
	err = db.QueryRow(
		"SELECT user_id, expires_at, revoked, ttl_days FROM refresh_tokens WHERE token_hash = ?",
		hashToken(token),
	).Scan(&userID, &expiresAt, &revoked, &ttlDays)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, errRefreshNotFound
	}
	if err != nil {
		return 0, 0, err
	}

	r, ok := asBool(revoked)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected revoked value %T", revoked)
	}
	if r {
		return 0, 0, errRefreshRevoked
	}
	if exp, ok := asTime(expiresAt); ok && time.Now().After(exp) {
		return 0, 0, errRefreshExpired
	}
	return userID, ttlDays, nil
}

func RevokeRefreshToken(db *sql.DB, token string) error {
	_, err := db.Exec("UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hashToken(token))
	return err
}

// PurgeRefreshTokens deletes revoked and expired tokens. It is run by the
// background worker.
func PurgeRefreshTokens(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec("DELETE FROM refresh_tokens WHERE revoked = 1 OR expires_at < ?", now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
