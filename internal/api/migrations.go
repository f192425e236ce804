package api

import (
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// columnExists checks a table's columns with PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	var (
		cid, notnull, pk int
		name, ctype      string
		dflt             sql.NullString
	)
	for rows.Next() {
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// addColumn adds column to table unless it is already there.
func addColumn(db *sql.DB, table, column, definition string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	logrus.WithFields(logrus.Fields{"table": table, "column": column}).Info("adding column")
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}

// MigrateAddEmailAndReminderFlag brings databases created before email
// reminders existed up to date.
func MigrateAddEmailAndReminderFlag(db *sql.DB) error {
	if err := addColumn(db, "users", "email", "TEXT"); err != nil {
		return err
	}
	return addColumn(db, "events", "reminder_sent", "BOOLEAN NOT NULL DEFAULT 0")
}

// MigrateNormalizeRoles gives every user without a recognised role the
// plain User role.
func MigrateNormalizeRoles(db *sql.DB) error {
	if err := addColumn(db, "users", "role", "TEXT NOT NULL DEFAULT 'User'"); err != nil {
		return err
	}
	res, err := db.Exec("UPDATE users SET role = 'User' WHERE role IS NULL OR role NOT IN ('Admin', 'User')")
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logrus.WithField("users", n).Info("normalized user roles")
	}
	return nil
}

// RunMigrations applies every migration in order. All of them are
// idempotent.
func RunMigrations(db *sql.DB) error {
	steps := []struct {
		name string
		fn   func(*sql.DB) error
	}{
		{"email and reminder flag", MigrateAddEmailAndReminderFlag},
		{"normalize roles", MigrateNormalizeRoles},
	}
	for _, s := range steps {
		if err := s.fn(db); err != nil {
			return fmt.Errorf("migration %q: %w", s.name, err)
		}
	}
	return nil
}
