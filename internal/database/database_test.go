package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeCreatesSchema(t *testing.T) {
	db, err := Initialize(filepath.Join(t.TempDir(), "nested", "evently.db"), "")
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"users", "events", "categories", "event_categories", "announcements", "refresh_tokens"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evently.db")
	db, err := Initialize(path, "")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO users (username, password_hash) VALUES ('alice', 'x')")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Initialize(path, "")
	require.NoError(t, err)
	defer db.Close()
	var role string
	require.NoError(t, db.QueryRow("SELECT role FROM users WHERE username = 'alice'").Scan(&role))
	assert.Equal(t, "User", role)
}

func TestDeletingUserCascadesEvents(t *testing.T) {
	db, err := Initialize(":memory:", "")
	require.NoError(t, err)
	defer db.Close()

	res, err := db.Exec("INSERT INTO users (username, password_hash) VALUES ('bob', 'x')")
	require.NoError(t, err)
	uid, _ := res.LastInsertId()
	_, err = db.Exec("INSERT INTO events (user_id, name, date, time) VALUES (?, 'Gig', '2024-01-01', '20:00')", uid)
	require.NoError(t, err)

	_, err = db.Exec("DELETE FROM users WHERE id = ?", uid)
	require.NoError(t, err)
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM events").Scan(&n))
	assert.Zero(t, n)
}
