package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_AppliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coach.db")

	db, err := NewDB(path)
	require.NoError(t, err)

	for _, table := range []string{"subjects", "check_ins", "plans", "execution_metrics", "coach_guidelines"} {
		var name string
		err := db.SQL.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}
	require.NoError(t, db.Close())

	// Reopening an up-to-date database is a no-op migration.
	db, err = NewDB(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestTimeRoundTrip(t *testing.T) {
	in := time.Date(2026, 5, 4, 3, 2, 1, 123456789, time.FixedZone("UTC+3", 3*3600))
	s := FormatTime(in)
	assert.Equal(t, "2026-05-04T00:02:01.123456Z", s)

	out, err := ParseTime(s)
	require.NoError(t, err)
	assert.True(t, out.Equal(in.Truncate(time.Microsecond)))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)

	got, err := NullTime(sql.NullString{})
	require.NoError(t, err)
	assert.Nil(t, got)
}
