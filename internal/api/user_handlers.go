package api

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

type UpdateEmailRequest struct {
	Email *string `json:"email"`
}

// UpdateUserEmailHandler sets or clears the caller's email address.
func UpdateUserEmailHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req UpdateEmailRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}

		var email any
		if req.Email != nil && *req.Email != "" {
			if !isValidEmail(*req.Email) {
				return fiber.NewError(fiber.StatusBadRequest, "Invalid email format")
			}
			email = *req.Email
		}

		if _, err := db.Exec("UPDATE users SET email = ? WHERE id = ?", email, currentUserID(c)); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update email")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Email updated successfully",
		})
	}
}

func GetUserProfileHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := currentUserID(c)

		var username, role, createdAt string
		var email sql.NullString
		err := db.QueryRow(
			"SELECT username, role, email, created_at FROM users WHERE id = ?",
			userID,
		).Scan(&username, &role, &email, &createdAt)
		if err == sql.ErrNoRows {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to get user profile")
		}

		profile := fiber.Map{
			"id":         userID,
			"username":   username,
			"role":       role,
			"created_at": createdAt,
			"email":      nil,
		}
		if email.Valid {
			profile["email"] = email.String
		}
		return c.JSON(profile)
	}
}

const testEmailCooldown = 10 * time.Minute

var (
	testEmailMu   sync.Mutex
	lastTestEmail time.Time
)

// TestEmailHandler sends a test reminder to the caller's address. It is
// rate limited server-wide.
func TestEmailHandler(db *sql.DB, mailer *Mailer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !mailer.Enabled() {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "SMTP not configured",
				"message": "Set SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS and SMTP_FROM",
			})
		}

		testEmailMu.Lock()
		since := time.Since(lastTestEmail)
		if since < testEmailCooldown {
			testEmailMu.Unlock()
			remaining := testEmailCooldown - since
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":               "Email test rate limited",
				"retry_after_seconds": int(remaining.Seconds()),
				"message":             fmt.Sprintf("Please wait %s before testing again", remaining.Round(time.Second)),
			})
		}
		lastTestEmail = time.Now()
		testEmailMu.Unlock()

		var email sql.NullString
		var username string
		if err := db.QueryRow("SELECT email, username FROM users WHERE id = ?", currentUserID(c)).Scan(&email, &username); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to get user data")
		}
		if !email.Valid || !isValidEmail(email.String) {
			return fiber.NewError(fiber.StatusBadRequest, "Your account has no valid email address")
		}

		if err := mailer.SendTestEmail(email.String, username); err != nil {
			return fiber.NewError(fiber.StatusBadGateway, "Failed to send test email: "+err.Error())
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Test email sent to " + email.String,
		})
	}
}
