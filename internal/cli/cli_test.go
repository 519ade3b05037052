package cli

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lupa/roster"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sqliteURL points at a fresh database file, the path is kept relative so
// the url stays opaque
func sqliteURL(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)

	rel, err := filepath.Rel(wd, filepath.Join(t.TempDir(), "roster.db"))
	require.NoError(t, err)

	return "sqlite:" + filepath.ToSlash(rel)
}

func newTestApp(t *testing.T, folders ...string) *App {
	t.Helper()

	cfg := Config{
		DatabaseURL:       sqliteURL(t),
		MigrationsFolders: folders,
		MigrationsTable:   "migrations",
		VersionFormat:     migration.DatetimeFormat,
		Timeout:           10 * time.Second,
		NoColor:           true,
	}

	app, closer, err := New(cfg, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, closer()) })

	return app
}

func TestApp_MigrateAndSeed(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, "../../migrations/sqlite")

	var migrated []string
	progress := func(m *migration.Migration, _ roster.Direction) {
		migrated = append(migrated, m.Version.String())
	}

	result, err := app.Migrate(ctx, mustTarget(t, "up"), progress)
	require.NoError(t, err)
	assert.Equal(t, []string{"100_create_users_table"}, result.Executed.Keys())
	assert.Equal(t, []string{"100"}, migrated)

	_, err = app.Migrate(ctx, mustTarget(t, "up"), nil)
	assert.True(t, errors.Is(err, roster.ErrNoChangesRequired))

	require.NoError(t, app.Seed(ctx))

	var emails []string
	require.NoError(t, app.db.Select(&emails, "SELECT email FROM users ORDER BY id"))
	assert.Equal(t, []string{"john@doe.tld", "mary@doe.tld", "nathan@doe.tld"}, emails)

	err = app.Seed(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "User could not be created. Errors:")

	s, err := app.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "100", s.Current.String())
	require.Len(t, s.Entries, 1)
	assert.True(t, s.Entries[0].Applied)

	target, err := roster.ParseTarget("100")
	require.NoError(t, err)
	result, err = app.Migrate(ctx, target, nil)
	assert.True(t, errors.Is(err, roster.ErrAlreadyAtVersion))
	assert.True(t, result.AlreadyAt)

	target, err = roster.ParseTarget("0")
	require.NoError(t, err)
	result, err = app.Migrate(ctx, target, nil)
	require.NoError(t, err)
	assert.Equal(t, roster.DirectionDown, result.Direction)

	_, err = app.Migrate(ctx, mustTarget(t, "down"), nil)
	assert.True(t, errors.Is(err, roster.ErrNothingToRevert))
}

func mustTarget(t *testing.T, s string) roster.Target {
	t.Helper()

	target, err := roster.ParseTarget(s)
	require.NoError(t, err)

	return target
}

func TestApp_CreateMigration(t *testing.T) {
	dir := t.TempDir()
	app := newTestApp(t, dir)
	app.clock = func() time.Time { return time.Date(2021, 5, 6, 7, 8, 9, 0, time.UTC) }

	m, err := app.CreateMigration("add_roles", true)
	require.NoError(t, err)

	assert.Equal(t, "20210506070809", m.Version.String())
	assert.FileExists(t, filepath.Join(dir, "20210506070809_add_roles.migrate.sql"))
	assert.FileExists(t, filepath.Join(dir, "20210506070809_add_roles.rollback.sql"))

	_, err = app.CreateMigration("add_roles", true)
	assert.True(t, errors.Is(err, ErrMigrationAlreadyExists))

	_, err = app.CreateMigration("1 bad name", false)
	assert.Error(t, err)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, _, err := New(Config{DatabaseURL: "oracle://localhost/db"}, log.New(io.Discard, "", 0))
	assert.Error(t, err)
}
