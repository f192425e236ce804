package api

import (
	"database/sql"
	"strings"

	"evently/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

func ListUsersHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := db.Query("SELECT id, username, role, COALESCE(email, ''), created_at FROM users ORDER BY username")
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch users")
		}
		defer rows.Close()

		users := make([]models.User, 0)
		for rows.Next() {
			var u models.User
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Email, &u.CreatedAt); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch users")
			}
			users = append(users, u)
		}
		return c.JSON(users)
	}
}

func UpdateUserRoleHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.UpdateRoleRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if req.Role != models.RoleAdmin && req.Role != models.RoleUser {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid role")
		}

		username := c.Params("username")
		res, err := db.Exec("UPDATE users SET role = ? WHERE username = ?", req.Role, username)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update role")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}

		logrus.WithFields(logrus.Fields{"username": username, "role": req.Role, "by": currentUsername(c)}).Info("user role updated")
		return c.JSON(fiber.Map{"success": true, "message": "User role updated"})
	}
}

// DeleteUserHandler removes a user; their events and tokens cascade.
func DeleteUserHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := c.Params("username")
		if username == currentUsername(c) {
			return fiber.NewError(fiber.StatusBadRequest, "You cannot delete your own account")
		}
		res, err := db.Exec("DELETE FROM users WHERE username = ?", username)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete user")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fiber.NewError(fiber.StatusNotFound, "User not found")
		}

		logrus.WithFields(logrus.Fields{"username": username, "by": currentUsername(c)}).Info("user deleted")
		return c.JSON(fiber.Map{"success": true, "message": "User deleted"})
	}
}

// BulkEventsHandler deletes or relocates a set of events in one
// transaction.
func BulkEventsHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.BulkEventRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if len(req.EventIDs) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "event_ids is required")
		}
		req.NewLocation = strings.TrimSpace(req.NewLocation)

		var stmt string
		switch req.Action {
		case "delete":
			stmt = "DELETE FROM events WHERE id = ?"
		case "update":
			if req.NewLocation == "" {
				return fiber.NewError(fiber.StatusBadRequest, "new_location is required for update")
			}
			stmt = "UPDATE events SET location = ? WHERE id = ?"
		default:
			return fiber.NewError(fiber.StatusBadRequest, "action must be delete or update")
		}

		tx, err := db.Begin()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}
		defer tx.Rollback()

		var affected int64
		for _, id := range req.EventIDs {
			var res sql.Result
			if req.Action == "delete" {
				res, err = tx.Exec(stmt, id)
			} else {
				res, err = tx.Exec(stmt, req.NewLocation, id)
			}
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Bulk operation failed")
			}
			n, _ := res.RowsAffected()
			affected += n
		}
		if err := tx.Commit(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Bulk operation failed")
		}

		logrus.WithFields(logrus.Fields{"action": req.Action, "affected": affected, "by": currentUsername(c)}).Info("bulk event operation")
		return c.JSON(fiber.Map{"success": true, "affected": affected})
	}
}
