package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayledger/backend/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add statement locks", "add_statement_locks"},
		{"Add-Statement-Locks", "add_statement_locks"},
		{"ADD__LOCKS", "add_locks"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading and trailing_", "leading_and_trailing"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create reservations", "Source tables")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, "000001_create_reservations.up.sql", filepath.Base(first.UpPath))

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- create reservations")
	assert.Contains(t, string(up), "-- Source tables")

	second, err := CreateMigration(dir, "add statement locks", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)
	assert.True(t, strings.HasSuffix(second.DownPath, "000002_add_statement_locks.down.sql"))

	names, err := ListMigrations(os.DirFS(dir))
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_create_reservations", "000002_add_statement_locks"}, names)

	_, err = CreateMigration(dir, "???", "")
	assert.Error(t, err)
}

func TestListMigrations(t *testing.T) {
	t.Run("orders by numeric version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"000010_c.up.sql":   {},
			"000002_b.up.sql":   {},
			"000002_b.down.sql": {},
			"README.md":         {},
		}
		names, err := ListMigrations(fsys)
		require.NoError(t, err)
		assert.Equal(t, []string{"000002_b", "000010_c"}, names)
	})

	t.Run("rejects unversioned files", func(t *testing.T) {
		_, err := ListMigrations(fstest.MapFS{"init.up.sql": {}})
		assert.Error(t, err)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		names, err := ListMigrations(os.DirFS(filepath.Join(t.TempDir(), "nope")))
		require.NoError(t, err)
		assert.Empty(t, names)
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := ListMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, names)

	for _, name := range names {
		_, err := fs.Stat(migrations.FS, name+".down.sql")
		assert.NoError(t, err, "%s has no down migration", name)
	}

	locks, err := fs.ReadFile(migrations.FS, "000002_create_statement_locks.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(locks), "UNIQUE INDEX IF NOT EXISTS idx_statement_locks_period ON statement_locks (listing_id, year, month)")

	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	defer src.Close()
	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)
}
