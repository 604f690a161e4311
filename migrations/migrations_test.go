package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	tables := []string{"users", "sessions", "currencies", "events", "event_currencies", "event_participants",
		"expenses", "expense_affected_participants", "settlements", "audit_events"}
	var all strings.Builder
	for _, f := range files {
		body, err := fs.ReadFile(FS, f)
		require.NoError(t, err)
		assert.Contains(t, string(body), "-- +goose Up", f)
		assert.Contains(t, string(body), "-- +goose Down", f)
		all.Write(body)
	}

	for _, table := range tables {
		assert.Contains(t, all.String(), "CREATE TABLE "+table+" (", table)
	}
}
