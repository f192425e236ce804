package api

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"evently/internal/auth"
	"evently/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const refreshCookie = "refresh_token"

func RegisterHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Username and password are required")
		}
		role := req.Role
		if role == "" {
			role = models.RoleUser
		}
		if role != models.RoleUser && role != models.RoleAdmin {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid role")
		}
		// Only the very first account may claim the admin role on its own.
		if role == models.RoleAdmin {
			var n int
			if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&n); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Database error")
			}
			if n > 0 {
				return fiber.NewError(fiber.StatusForbidden, "Admin accounts are granted by an administrator")
			}
		}
		var email any
		if req.Email != "" {
			if !isValidEmail(req.Email) {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid email format")
			}
			email = req.Email
		}

		hashedPassword, err := auth.HashPassword(req.Password)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to hash password")
		}

		result, err := db.Exec(
			"INSERT INTO users (username, password_hash, role, email) VALUES (?, ?, ?, ?)",
			req.Username, hashedPassword, role, email,
		)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, "Username already exists")
		}
		userID, _ := result.LastInsertId()

		user := models.User{
			ID:        int(userID),
			Username:  req.Username,
			Email:     req.Email,
			Role:      role,
			CreatedAt: time.Now(),
		}
		token, err := issueTokens(c, db, user, auth.RefreshDays(req.Remember))
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(models.AuthResponse{
			Token: token,
			User:  user,
		})
	}
}

func LoginHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.LoginRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var user models.User
		err := db.QueryRow(
			"SELECT id, username, password_hash, role, COALESCE(email, ''), created_at FROM users WHERE username = ?",
			req.Username,
		).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &user.Email, &user.CreatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}
		if err != nil {
			logrus.WithError(err).Error("login lookup failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}

		if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}

		token, err := issueTokens(c, db, user, auth.RefreshDays(req.Remember))
		if err != nil {
			return err
		}

		return c.JSON(models.AuthResponse{
			Token: token,
			User:  user,
		})
	}
}

// RefreshTokenHandler trades a valid refresh cookie for a new access token
// and rotates the refresh token.
func RefreshTokenHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		refreshToken := c.Cookies(refreshCookie)
		if refreshToken == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not found")
		}

		claims, err := auth.ValidateRefreshToken(refreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid or expired refresh token")
		}

		dbUserID, ttlDays, err := ValidateRefreshTokenInDB(db, refreshToken)
		if err != nil {
			logrus.WithError(err).Warn("refresh token rejected")
			return fiber.NewError(fiber.StatusUnauthorized, "Refresh token not valid")
		}
		if dbUserID != claims.UserID {
			return fiber.NewError(fiber.StatusUnauthorized, "Token user mismatch")
		}

		// The role may have changed since the refresh token was issued.
		user := models.User{ID: claims.UserID, Username: claims.Username}
		if err := db.QueryRow("SELECT role FROM users WHERE id = ?", claims.UserID).Scan(&user.Role); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "User no longer exists")
		}

		token, err := issueTokens(c, db, user, ttlDays)
		if err != nil {
			return err
		}
		if err := RevokeRefreshToken(db, refreshToken); err != nil {
			logrus.WithError(err).Warn("failed to revoke rotated refresh token")
		}

		return c.JSON(fiber.Map{"token": token})
	}
}

func LogoutHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if old := c.Cookies(refreshCookie); old != "" {
			if err := RevokeRefreshToken(db, old); err != nil {
				logrus.WithError(err).Warn("failed to revoke refresh token on logout")
			}
		}
		setRefreshCookie(c, "", time.Now().Add(-time.Hour))

		return c.JSON(fiber.Map{
			"message": "Logged out successfully",
		})
	}
}

// issueTokens signs an access token, stores a fresh refresh token and sets
// the refresh cookie. It returns the access token.
func issueTokens(c *fiber.Ctx, db *sql.DB, user models.User, days int) (string, error) {
	accessToken, err := auth.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate token")
	}
	refreshToken, err := auth.GenerateRefreshToken(user.ID, user.Username, user.Role, days)
	if err != nil {
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to generate refresh token")
	}

	expiresAt := time.Now().Add(time.Duration(days) * 24 * time.Hour)
	if err := StoreRefreshToken(db, user.ID, refreshToken, expiresAt, days); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Error("failed to store refresh token")
		return "", fiber.NewError(fiber.StatusInternalServerError, "Failed to store refresh token")
	}
	setRefreshCookie(c, refreshToken, expiresAt)
	return accessToken, nil
}

func setRefreshCookie(c *fiber.Ctx, value string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     refreshCookie,
		Value:    value,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   auth.CookieSecure(),
		SameSite: "Lax",
		Path:     "/api/auth",
	})
}
