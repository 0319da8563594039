package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
)

func TestFS_GooseMarkers(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, name := range files {
		b, err := fs.ReadFile(FS, name)
		require.NoError(t, err)
		body := string(b)
		require.True(t, strings.HasPrefix(body, "-- +goose Up"), name)
		require.Contains(t, body, "-- +goose Down", name)
	}
}

func TestFS_CollectsInOrder(t *testing.T) {
	goose.SetBaseFS(FS)
	t.Cleanup(func() { goose.SetBaseFS(nil) })

	ms, err := goose.CollectMigrations(".", 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, ms, 3)
	for i, m := range ms {
		require.Equal(t, int64(i+1), m.Version)
	}
}

func TestFS_InvariantIndexes(t *testing.T) {
	trust, err := fs.ReadFile(FS, "00002_items_trust.sql")
	require.NoError(t, err)
	require.Contains(t, string(trust), "CREATE UNIQUE INDEX trust_requests_one_pending")

	loans, err := fs.ReadFile(FS, "00003_loans.sql")
	require.NoError(t, err)
	require.Contains(t, string(loans), "loans_one_active_per_item ON loans (item_id) WHERE status = 'active'")
}
