package api

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"evently/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

const eventColumns = `e.id, e.name, e.description, e.date, e.time, e.location, u.username, e.reminder_sent`

// queryEvents loads events matching where together with their category
// names. where is applied to the events table aliased e.
func queryEvents(db *sql.DB, where string, args ...any) ([]models.Event, error) {
	rows, err := db.Query(`SELECT `+eventColumns+`
		FROM events e JOIN users u ON u.id = e.user_id
		WHERE `+where+`
		ORDER BY e.date, e.time, e.id`, args...)
	if err != nil {
		return nil, err
	}
	events := make([]models.Event, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var ev models.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.Description, &ev.Date, &ev.Time, &ev.Location, &ev.Username, &ev.ReminderSent); err != nil {
			rows.Close()
			return nil, err
		}
		ev.Categories = []string{}
		index[ev.ID] = len(events)
		events = append(events, ev)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return events, nil
	}

	// Rows above are closed first: an in-memory database only has one
	// connection.
	catRows, err := db.Query(`SELECT ec.event_id, c.name
		FROM event_categories ec
		JOIN categories c ON c.id = ec.category_id
		JOIN events e ON e.id = ec.event_id
		WHERE `+where+`
		ORDER BY c.name`, args...)
	if err != nil {
		return nil, err
	}
	defer catRows.Close()
	for catRows.Next() {
		var id int64
		var name string
		if err := catRows.Scan(&id, &name); err != nil {
			return nil, err
		}
		if i, ok := index[id]; ok {
			events[i].Categories = append(events[i].Categories, name)
		}
	}
	return events, catRows.Err()
}

func validateEvent(req *models.EventRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)

	if req.Name == "" || req.Description == "" || req.Date == "" || req.Time == "" || req.Location == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Missing required fields")
	}
	d, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Date must be in YYYY-MM-DD format")
	}
	t, err := time.Parse(timeLayout, req.Time)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Time must be in HH:MM format")
	}
	req.Date, req.Time = d.Format(dateLayout), t.Format(timeLayout)
	return nil
}

func setEventCategories(tx *sql.Tx, eventID int64, categoryIDs []int64) error {
	if _, err := tx.Exec("DELETE FROM event_categories WHERE event_id = ?", eventID); err != nil {
		return err
	}
	for _, cid := range categoryIDs {
		// Unknown category ids are skipped.
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO event_categories (event_id, category_id) SELECT ?, id FROM categories WHERE id = ?",
			eventID, cid,
		); err != nil {
			return err
		}
	}
	return nil
}

func dateTaken(db *sql.DB, userID int, date string, exceptID int64) (bool, error) {
	var n int
	err := db.QueryRow(
		"SELECT COUNT(*) FROM events WHERE user_id = ? AND date = ? AND id != ?",
		userID, date, exceptID,
	).Scan(&n)
	return n > 0, err
}

// ListEventsHandler returns the caller's events. Admins may pass all=true
// to see every user's events.
func ListEventsHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			events []models.Event
			err    error
		)
		if c.QueryBool("all") && isAdmin(c) {
			events, err = queryEvents(db, "1 = 1")
		} else {
			events, err = queryEvents(db, "e.user_id = ?", currentUserID(c))
		}
		if err != nil {
			logrus.WithError(err).Error("list events failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch events")
		}
		return c.JSON(events)
	}
}

func CreateEventHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.EventRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validateEvent(&req); err != nil {
			return err
		}
		userID := currentUserID(c)

		taken, err := dateTaken(db, userID, req.Date, 0)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "Event already exists on this date")
		}

		tx, err := db.Begin()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}
		defer tx.Rollback()

		res, err := tx.Exec(
			"INSERT INTO events (user_id, name, description, date, time, location) VALUES (?, ?, ?, ?, ?, ?)",
			userID, req.Name, req.Description, req.Date, req.Time, req.Location,
		)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to create event")
		}
		id, _ := res.LastInsertId()
		if err := setEventCategories(tx, id, req.Categories); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to set categories")
		}
		if err := tx.Commit(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to create event")
		}

		logrus.WithFields(logrus.Fields{"event_id": id, "user_id": userID}).Info("event created")
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Event added successfully",
			"id":      id,
		})
	}
}

// loadOwnedEvent returns the owner of event id, enforcing that the caller
// owns it or is an admin.
func loadOwnedEvent(c *fiber.Ctx, db *sql.DB) (id int64, ownerID int, err error) {
	pid, err := c.ParamsInt("id")
	if err != nil || pid <= 0 {
		return 0, 0, fiber.NewError(fiber.StatusBadRequest, "Invalid event ID")
	}
	id = int64(pid)
	err = db.QueryRow("SELECT user_id FROM events WHERE id = ?", id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, fiber.NewError(fiber.StatusNotFound, "Event not found")
	}
	if err != nil {
		return 0, 0, fiber.NewError(fiber.StatusInternalServerError, "Database error")
	}
	if ownerID != currentUserID(c) && !isAdmin(c) {
		return 0, 0, fiber.NewError(fiber.StatusForbidden, "Not allowed to modify this event")
	}
	return id, ownerID, nil
}

func UpdateEventHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ownerID, err := loadOwnedEvent(c, db)
		if err != nil {
			return err
		}
		var req models.EventRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
		if err := validateEvent(&req); err != nil {
			return err
		}

		taken, err := dateTaken(db, ownerID, req.Date, id)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}
		if taken {
			return fiber.NewError(fiber.StatusConflict, "Event already exists on this date")
		}

		tx, err := db.Begin()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Database error")
		}
		defer tx.Rollback()

		// A moved event gets a fresh reminder mail.
		if _, err := tx.Exec(`UPDATE events
			SET name = ?, description = ?, time = ?, location = ?,
			    reminder_sent = CASE WHEN date = ? THEN reminder_sent ELSE 0 END,
			    date = ?
			WHERE id = ?`,
			req.Name, req.Description, req.Time, req.Location, req.Date, req.Date, id,
		); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update event")
		}
		if req.Categories != nil {
			if err := setEventCategories(tx, id, req.Categories); err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Failed to set categories")
			}
		}
		if err := tx.Commit(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to update event")
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Event updated successfully",
		})
	}
}

func DeleteEventHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, _, err := loadOwnedEvent(c, db)
		if err != nil {
			return err
		}
		if _, err := db.Exec("DELETE FROM events WHERE id = ?", id); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to delete event")
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Event deleted successfully",
		})
	}
}

// UpcomingEventsHandler returns the caller's events whose start lies in
// [start_date start_time, end_date end_time), ordered by start.
func UpcomingEventsHandler(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start, err := queryInstant(c, "start_date", "start_time")
		if err != nil {
			return err
		}
		end, err := queryInstant(c, "end_date", "end_time")
		if err != nil {
			return err
		}
		if end <= start {
			return fiber.NewError(fiber.StatusBadRequest, "End must be after start")
		}

		events, err := queryEvents(db,
			"e.user_id = ? AND (e.date || ' ' || e.time) >= ? AND (e.date || ' ' || e.time) < ?",
			currentUserID(c), start, end)
		if err != nil {
			logrus.WithError(err).Error("upcoming events query failed")
			return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch events")
		}
		return c.JSON(events)
	}
}

// queryInstant reads a date and a time query parameter and returns them in
// the sortable "YYYY-MM-DD HH:MM" form events are compared in.
func queryInstant(c *fiber.Ctx, dateKey, timeKey string) (string, error) {
	d, err := time.Parse(dateLayout, c.Query(dateKey))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, dateKey+" must be in YYYY-MM-DD format")
	}
	t, err := time.Parse(timeLayout, c.Query(timeKey))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, timeKey+" must be in HH:MM format")
	}
	return d.Format(dateLayout) + " " + t.Format(timeLayout), nil
}
