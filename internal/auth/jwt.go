package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

var ErrNotConfigured = errors.New("auth: signing secret not configured")

// Settings are the token parameters read from the server configuration.
type Settings struct {
	Secret              string
	RefreshSecret       string
	AccessTokenMinutes  int
	RefreshTokenDays    int
	RememberRefreshDays int
	CookieSecure        bool
}

var (
	mu       sync.RWMutex
	settings = Settings{
		AccessTokenMinutes:  15,
		RefreshTokenDays:    7,
		RememberRefreshDays: 30,
		CookieSecure:        true,
	}
)

// Configure installs the signing secrets and lifetimes. Zero lifetimes keep
// their defaults; an empty refresh secret is derived from the main secret.
func Configure(s Settings) error {
	if len(s.Secret) < 32 {
		return errors.New("auth: JWT secret must be at least 32 characters long")
	}
	if s.RefreshSecret == "" {
		s.RefreshSecret = s.Secret + "-refresh"
	}
	mu.Lock()
	defer mu.Unlock()
	if s.AccessTokenMinutes <= 0 {
		s.AccessTokenMinutes = settings.AccessTokenMinutes
	}
	if s.RefreshTokenDays <= 0 {
		s.RefreshTokenDays = settings.RefreshTokenDays
	}
	if s.RememberRefreshDays <= 0 {
		s.RememberRefreshDays = settings.RememberRefreshDays
	}
	settings = s
	return nil
}

func current() Settings {
	mu.RLock()
	defer mu.RUnlock()
	return settings
}

// CookieSecure reports whether the refresh cookie is marked Secure.
func CookieSecure() bool { return current().CookieSecure }

type Claims struct {
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken creates a short-lived access token.
func GenerateToken(userID int, username, role string) (string, error) {
	s := current()
	if s.Secret == "" {
		return "", ErrNotConfigured
	}
	return sign(userID, username, role, TokenAccess, time.Duration(s.AccessTokenMinutes)*time.Minute, s.Secret)
}

// GenerateRefreshToken creates a refresh token that expires after the given
// number of days.
func GenerateRefreshToken(userID int, username, role string, days int) (string, error) {
	s := current()
	if s.Secret == "" {
		return "", ErrNotConfigured
	}
	if days <= 0 {
		days = s.RefreshTokenDays
	}
	return sign(userID, username, role, TokenRefresh, time.Duration(days)*24*time.Hour, s.RefreshSecret)
}

func sign(userID int, username, role, typ string, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		Username:  username,
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func ValidateToken(tokenString string) (*Claims, error) {
	return parse(tokenString, TokenAccess, current().Secret)
}

func ValidateRefreshToken(tokenString string) (*Claims, error) {
	return parse(tokenString, TokenRefresh, current().RefreshSecret)
}

func parse(tokenString, typ, secret string) (*Claims, error) {
	if secret == "" {
		return nil, ErrNotConfigured
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != typ {
		return nil, errors.New("invalid token type")
	}
	return claims, nil
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

func CheckPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// RefreshDays returns the refresh token lifetime in days for the remember
// flag.
func RefreshDays(remember bool) int {
	s := current()
	if remember {
		return s.RememberRefreshDays
	}
	return s.RefreshTokenDays
}
