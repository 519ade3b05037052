package roster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/lupa/roster/internal/database/memory"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factories(versions ...string) []migration.Factory {
	var result []migration.Factory
	for _, v := range versions {
		result = append(result, migration.New(
			v,
			"Step "+v,
			[]string{"UP " + v},
			[]string{"DOWN " + v},
		))
	}

	return result
}

type recorder struct {
	scripts []string
	failOn  string
}

func (r *recorder) exec(_ context.Context, script string) error {
	if script == r.failOn {
		return errors.Errorf("cannot run [%s]", script)
	}

	r.scripts = append(r.scripts, script)
	return nil
}

func newTestMigrator(t *testing.T, g *memory.Gateway, versions ...string) *Migrator {
	t.Helper()

	m, closer, err := NewMigrator(UseGateway(g), UseInMemorySource(factories(versions...)...))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, closer()) })

	return m
}

func currentVersion(t *testing.T, g *memory.Gateway) string {
	t.Helper()

	v, _, err := g.CurrentVersion(context.Background())
	require.NoError(t, err)

	return v.String()
}

func TestNewMigrator(t *testing.T) {
	t.Run("gateway is required", func(t *testing.T) {
		_, _, err := NewMigrator(UseInMemorySource(factories("1")...))
		assert.True(t, errors.Is(err, ErrGatewayNotInitialized))
	})

	t.Run("duplicate versions fail before anything runs", func(t *testing.T) {
		_, _, err := NewMigrator(UseGateway(memory.New()), UseInMemorySource(factories("1", "01")...))
		require.Error(t, err)

		var dupErr *DuplicateVersionError
		assert.True(t, errors.As(err, &dupErr))
	})
}

func TestMigrator_Migrate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("up from nothing applies everything in order", func(t *testing.T) {
		rec := &recorder{}
		g := memory.New(memory.WithExecFunc(rec.exec))
		m := newTestMigrator(t, g, "3", "1", "2")

		var reported []string
		result, err := m.Up(ctx, WithProgress(func(mg *migration.Migration, d Direction) {
			reported = append(reported, fmt.Sprintf("%s %s", d, mg.Version))
		}))
		require.NoError(t, err)

		assert.Equal(t, []string{"UP 1", "UP 2", "UP 3"}, rec.scripts)
		assert.Equal(t, []string{"up 1", "up 2", "up 3"}, reported)
		assert.Equal(t, []string{"1_step_1", "2_step_2", "3_step_3"}, result.Executed.Keys())
		assert.Equal(t, "3", currentVersion(t, g))
		assert.False(t, g.Locked())
	})

	t.Run("up with nothing pending", func(t *testing.T) {
		g := memory.New()
		m := newTestMigrator(t, g, "1")

		_, err := m.Up(ctx)
		require.NoError(t, err)

		result, err := m.Up(ctx)
		assert.True(t, errors.Is(err, ErrNoChangesRequired))
		assert.True(t, IsInformational(err))
		assert.True(t, result.NothingToDo)
		assert.Empty(t, result.Executed)
	})

	t.Run("down reverts only the current version", func(t *testing.T) {
		rec := &recorder{}
		g := memory.New(memory.WithExecFunc(rec.exec))
		m := newTestMigrator(t, g, "1", "2", "3")

		_, err := m.Up(ctx)
		require.NoError(t, err)

		result, err := m.Down(ctx)
		require.NoError(t, err)

		assert.Equal(t, []string{"3_step_3"}, result.Executed.Keys())
		assert.Equal(t, "DOWN 3", rec.scripts[len(rec.scripts)-1])
		assert.Equal(t, "2", currentVersion(t, g))
	})

	t.Run("down with nothing applied", func(t *testing.T) {
		m := newTestMigrator(t, memory.New(), "1")

		_, err := m.Down(ctx)
		assert.True(t, errors.Is(err, ErrNothingToRevert))
	})

	t.Run("target equal to current does nothing", func(t *testing.T) {
		rec := &recorder{}
		g := memory.New(memory.WithExecFunc(rec.exec))
		m := newTestMigrator(t, g, "1", "2")

		_, err := m.To(ctx, migration.MustParseVersion("2"))
		require.NoError(t, err)
		executed := len(rec.scripts)

		result, err := m.To(ctx, migration.MustParseVersion("2"))
		assert.True(t, errors.Is(err, ErrAlreadyAtVersion))
		assert.True(t, result.AlreadyAt)
		assert.Len(t, rec.scripts, executed)
	})

	t.Run("explicit target applies the range only", func(t *testing.T) {
		rec := &recorder{}
		g := memory.New(memory.WithExecFunc(rec.exec))
		m := newTestMigrator(t, g, "1", "2", "3", "4")

		_, err := m.To(ctx, migration.MustParseVersion("1"))
		require.NoError(t, err)

		result, err := m.To(ctx, migration.MustParseVersion("3"))
		require.NoError(t, err)

		assert.Equal(t, []string{"2_step_2", "3_step_3"}, result.Executed.Keys())
		assert.Equal(t, []string{"UP 1", "UP 2", "UP 3"}, rec.scripts)
		assert.Equal(t, "3", currentVersion(t, g))
	})

	t.Run("zero target reverts everything descending", func(t *testing.T) {
		rec := &recorder{}
		g := memory.New(memory.WithExecFunc(rec.exec))
		m := newTestMigrator(t, g, "1", "2", "3")

		_, err := m.Up(ctx)
		require.NoError(t, err)

		target, err := ParseTarget("0")
		require.NoError(t, err)

		result, err := m.Migrate(ctx, target)
		require.NoError(t, err)

		assert.Equal(t, DirectionDown, result.Direction)
		assert.Equal(t, []string{"UP 1", "UP 2", "UP 3", "DOWN 3", "DOWN 2", "DOWN 1"}, rec.scripts)

		_, ok, err := g.CurrentVersion(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unknown target fails before any step", func(t *testing.T) {
		rec := &recorder{}
		g := memory.New(memory.WithExecFunc(rec.exec))
		m := newTestMigrator(t, g, "1", "2")

		_, err := m.To(ctx, migration.MustParseVersion("7"))

		var unknownErr *UnknownVersionError
		require.True(t, errors.As(err, &unknownErr))
		assert.Empty(t, rec.scripts)
		assert.False(t, g.Locked())
	})

	t.Run("failure at step 2 keeps step 1 and skips step 3", func(t *testing.T) {
		rec := &recorder{failOn: "UP 2"}
		g := memory.New(memory.WithExecFunc(rec.exec))
		m := newTestMigrator(t, g, "1", "2", "3")

		result, err := m.Up(ctx)
		require.Error(t, err)

		var failedErr *MigrationFailedError
		require.True(t, errors.As(err, &failedErr))
		assert.Equal(t, "2", failedErr.Version.String())
		assert.Equal(t, DirectionUp, failedErr.Direction)

		assert.Equal(t, []string{"1_step_1"}, result.Executed.Keys())
		assert.Equal(t, []string{"UP 1"}, rec.scripts)
		assert.Equal(t, "1", currentVersion(t, g))
		assert.False(t, g.Locked())
	})

	t.Run("change log write failure is reported inside the step failure", func(t *testing.T) {
		g := memory.New(memory.WithWriteFunc(func(op string, v migration.Version) error {
			if v.String() == "2" {
				return errors.New("disk full")
			}
			return nil
		}))
		m := newTestMigrator(t, g, "1", "2")

		_, err := m.Up(ctx)

		var failedErr *MigrationFailedError
		require.True(t, errors.As(err, &failedErr))

		var logErr *LogWriteError
		require.True(t, errors.As(err, &logErr))
		assert.Equal(t, "2", logErr.Version.String())
		assert.Equal(t, "1", currentVersion(t, g))
	})

	t.Run("cancellation between steps stops without error", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g := memory.New()
		m := newTestMigrator(t, g, "1", "2", "3")

		result, err := m.Up(cctx, WithProgress(func(mg *migration.Migration, _ Direction) {
			if mg.Version.String() == "1" {
				cancel()
			}
		}))
		require.NoError(t, err)

		assert.True(t, result.Interrupted)
		assert.Equal(t, []string{"1_step_1"}, result.Executed.Keys())
		assert.Equal(t, "1", currentVersion(t, g))
		assert.False(t, g.Locked())
	})

	t.Run("deadline between steps fails the run", func(t *testing.T) {
		dctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		g := memory.New()
		m := newTestMigrator(t, g, "1", "2", "3")

		result, err := m.Up(dctx, WithProgress(func(mg *migration.Migration, _ Direction) {
			if mg.Version.String() == "1" {
				<-dctx.Done()
			}
		}))
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))

		assert.True(t, result.Interrupted)
		assert.Equal(t, []string{"1_step_1"}, result.Executed.Keys())
		assert.Equal(t, "1", currentVersion(t, g))
		assert.False(t, g.Locked())
	})

	t.Run("apply then revert restores the previous version", func(t *testing.T) {
		g := memory.New()
		m := newTestMigrator(t, g, "1", "2")

		_, err := m.To(ctx, migration.MustParseVersion("1"))
		require.NoError(t, err)

		_, err = m.To(ctx, migration.MustParseVersion("2"))
		require.NoError(t, err)
		_, err = m.Down(ctx)
		require.NoError(t, err)

		assert.Equal(t, "1", currentVersion(t, g))
	})
}

func TestMigrator_Status(t *testing.T) {
	ctx := context.Background()
	g := memory.New()
	m := newTestMigrator(t, g, "1", "2", "3")

	_, err := m.To(ctx, migration.MustParseVersion("2"))
	require.NoError(t, err)

	s, err := m.Status(ctx)
	require.NoError(t, err)

	assert.Equal(t, "2", s.Current.String())
	require.Len(t, s.Entries, 3)
	assert.True(t, s.Entries[0].Applied)
	assert.True(t, s.Entries[1].Applied)
	assert.False(t, s.Entries[2].Applied)
	assert.Empty(t, s.Orphans)
}

func TestMigrator_LocalFolders(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/a/1_create_foo.migrate.sql", []byte("CREATE TABLE foo (id INT);"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/b/2_create_bar.migrate.sql", []byte("CREATE TABLE bar (id INT);"), 0644))

	g := memory.New()
	m, closer, err := NewMigrator(UseGateway(g), UseFileSystem(fs), UseLocalFolderSource("/a", "/b"))
	require.NoError(t, err)
	defer closer()

	require.NotNil(t, m.Source())

	result, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1_create_foo", "2_create_bar"}, result.Executed.Keys())

	require.NoError(t, afero.WriteFile(fs, "/b/1_duplicate.migrate.sql", []byte("SELECT 1;"), 0644))

	_, err = m.Down(ctx)

	var dupErr *DuplicateVersionError
	require.True(t, errors.As(err, &dupErr))
	assert.Equal(t, "2", currentVersion(t, g))
}
