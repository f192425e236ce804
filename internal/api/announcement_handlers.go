package api

import (
	"database/sql"
	"strings"

	"evently/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ListAnnouncementsHandler returns the ten most recent announcements.
func ListAnnouncementsHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := db.Query(`SELECT id, title, content, created_at, created_by
			FROM announcements ORDER BY created_at DESC, id DESC LIMIT 10`)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch announcements")
		}
		defer rows.Close()

		out := make([]models.Announcement, 0)
		for rows.Next() {
			var a models.Announcement
			if err := rows.Scan(&a.ID, &a.Title, &a.Content, &a.CreatedAt, &a.CreatedBy); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch announcements")
			}
			out = append(out, a)
		}
		return c.JSON(out)
	}
}

// CreateAnnouncementHandler stores an announcement and mails it to every
// user with an email address. Mail goes out in the background.
func CreateAnnouncementHandler(db *sql.DB, mailer *Mailer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.AnnouncementRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		req.Title = strings.TrimSpace(req.Title)
		req.Content = strings.TrimSpace(req.Content)
		if req.Title == "" || req.Content == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Title and content required")
		}

		res, err := db.Exec(
			"INSERT INTO announcements (title, content, created_by) VALUES (?, ?, ?)",
			req.Title, req.Content, currentUsername(c),
		)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to create announcement")
		}
		id, _ := res.LastInsertId()

		mailed := 0
		if mailer.Enabled() {
			recipients, err := userEmails(db)
			if err != nil {
				logrus.WithError(err).Warn("could not load announcement recipients")
			}
			mailed = len(recipients)
			if mailed > 0 {
				go func() {
					_ = mailer.SendAnnouncement(recipients, req.Title, req.Content)
				}()
			}
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success":    true,
			"message":    "Announcement created",
			"id":         id,
			"recipients": mailed,
		})
	}
}

func userEmails(db *sql.DB) ([]string, error) {
	rows, err := db.Query("SELECT email FROM users WHERE email IS NOT NULL AND email != ''")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
