package api

import (
	"database/sql"
	"time"

	"evently/internal/models"

	"github.com/sirupsen/logrus"
)

type dueReminder struct {
	event models.Event
	email string
}

// ProcessEventReminders mails the owners of events dated the day after now
// that have not been reminded yet, and flags them as reminded. Nothing is
// flagged while mail is disabled, so enabling SMTP later still delivers.
func ProcessEventReminders(db *sql.DB, mailer *Mailer, now time.Time) (int, error) {
	log := logrus.WithField("component", "reminder-worker")
	if !mailer.Enabled() {
		log.Debug("SMTP not configured, skipping event reminders")
		return 0, nil
	}

	tomorrow := now.AddDate(0, 0, 1).Format(dateLayout)
	rows, err := db.Query(`SELECT e.id, e.name, e.description, e.date, e.time, e.location, u.username, u.email
		FROM events e JOIN users u ON u.id = e.user_id
		WHERE e.date = ? AND e.reminder_sent = 0 AND u.email IS NOT NULL AND u.email != ''
		ORDER BY e.time, e.id`, tomorrow)
	if err != nil {
		return 0, err
	}
	var due []dueReminder
	for rows.Next() {
		var r dueReminder
		if err := rows.Scan(&r.event.ID, &r.event.Name, &r.event.Description, &r.event.Date,
			&r.event.Time, &r.event.Location, &r.event.Username, &r.email); err != nil {
			log.WithError(err).Warn("error scanning event for reminder")
			continue
		}
		due = append(due, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sent := 0
	for _, r := range due {
		entry := log.WithFields(logrus.Fields{"event_id": r.event.ID, "username": r.event.Username})
		if err := mailer.SendEventReminder(r.email, r.event); err != nil {
			entry.WithError(err).Warn("failed to send event reminder")
			continue
		}
		if _, err := db.Exec("UPDATE events SET reminder_sent = 1 WHERE id = ?", r.event.ID); err != nil {
			entry.WithError(err).Error("failed to flag event as reminded")
			continue
		}
		sent++
	}
	if sent > 0 {
		log.WithField("sent", sent).Info("event reminders sent")
	}
	return sent, nil
}
