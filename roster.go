package roster

import (
	"context"
	"time"

	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/internal/source"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var ErrGatewayNotInitialized = errors.New("database gateway has not been initialized")

type CloserFunc func() error

type Migrator struct {
	lg        logger.Logger
	gateway   database.Gateway
	selector  source.Selector
	clock     migration.ClockFunc
	folders   []string
	fs        afero.Fs
	closerFns []CloserFunc
}

// Result describes what a run did. AlreadyAt and NothingToDo are set
// together with the matching informational error.
type Result struct {
	Direction   database.Direction
	From        migration.Version
	To          migration.Version
	Executed    migration.Migrations
	AlreadyAt   bool
	NothingToDo bool
	Interrupted bool
}

// NewMigrator creates a migrator from option callbacks. A database option
// is required, migrations are read from ./migrations unless another source
// is configured.
func NewMigrator(opts ...OptionFunc) (*Migrator, CloserFunc, error) {
	m := new(Migrator)
	m.lg = &logger.NullLogger{}
	m.clock = time.Now

	for _, oFunc := range opts {
		if err := oFunc(m); err != nil {
			if closeErr := m.close(); closeErr != nil {
				return nil, nil, errors.Wrap(err, closeErr.Error())
			}

			return nil, nil, err
		}
	}

	if m.gateway == nil {
		return nil, nil, ErrGatewayNotInitialized
	}

	if m.selector == nil {
		if len(m.folders) == 0 {
			m.folders = []string{source.DefaultMigrationsFolder}
		}

		if m.fs == nil {
			m.fs = afero.NewOsFs()
		}

		localFsSource, err := source.NewLocalFSSource(source.NewFileLocator(m.fs), m.lg, m.folders...)
		if err != nil {
			if closeErr := m.close(); closeErr != nil {
				return nil, nil, errors.Wrap(err, closeErr.Error())
			}

			return nil, nil, err
		}

		m.selector = localFsSource
	}

	m.gateway.SetLogger(m.lg)

	return m, m.close, nil
}

// Migrate brings the change log to target t. Discovery happens before the
// backend lock is taken, so a broken source never touches the database.
// Steps run one at a time, a cancelled context stops the run between steps
// without an error. An expired deadline stops it with one.
func (m *Migrator) Migrate(ctx context.Context, t Target, cfs ...ActionConfigurator) (*Result, error) {
	act := newAction(cfs...)

	migrations, err := m.selector.Select(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, errors.Wrap(err, "could not discover migrations")
	}

	if err := m.gateway.Lock(ctx); err != nil {
		m.lg.Error(err)
		return nil, err
	}

	defer func() {
		if unlockErr := m.gateway.Unlock(context.WithoutCancel(ctx)); unlockErr != nil {
			m.lg.Error(unlockErr)
		}
	}()

	if err := m.gateway.CreateMigrationsTable(ctx); err != nil {
		m.lg.Error(err)
		return nil, err
	}

	current, _, err := m.gateway.CurrentVersion(ctx)
	if err != nil {
		m.lg.Error(err)
		return nil, err
	}

	plan, err := database.Resolve(migrations, current, t)
	result := &Result{Direction: plan.Direction, From: plan.From, To: plan.To}
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyAtVersion):
			result.AlreadyAt = true
		case errors.Is(err, ErrNoChangesRequired):
			result.NothingToDo = true
		default:
			m.lg.Error(err)
		}

		return result, err
	}

	m.lg.Debugf("going %s from version %s to %s in %d steps", plan.Direction, plan.From, plan.To, len(plan.Steps))

	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			result.Interrupted = true

			if errors.Is(err, context.DeadlineExceeded) {
				err = errors.Wrapf(err, "run timed out before version %s", step.Version)
				m.lg.Error(err)
				return result, err
			}

			m.lg.Infof("run interrupted before version %s", step.Version)
			return result, nil
		}

		if err := m.execute(ctx, plan.Direction, step); err != nil {
			failed := &MigrationFailedError{Version: step.Version, Direction: plan.Direction, Err: err}
			m.lg.Error(failed)
			return result, failed
		}

		result.Executed = append(result.Executed, step)

		if plan.Direction == DirectionUp {
			m.lg.Successf("migrated version %s: %s", step.Version, step.Name)
		} else {
			m.lg.Successf("rolled back version %s: %s", step.Version, step.Name)
		}

		if act.progress != nil {
			act.progress(step, plan.Direction)
		}
	}

	return result, nil
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context, cfs ...ActionConfigurator) (*Result, error) {
	return m.Migrate(ctx, database.Up(), cfs...)
}

// Down reverts the current version only
func (m *Migrator) Down(ctx context.Context, cfs ...ActionConfigurator) (*Result, error) {
	return m.Migrate(ctx, database.Down(), cfs...)
}

// To migrates up or down to version v, the zero version reverts everything
func (m *Migrator) To(ctx context.Context, v migration.Version, cfs ...ActionConfigurator) (*Result, error) {
	return m.Migrate(ctx, database.To(v), cfs...)
}

func (m *Migrator) execute(ctx context.Context, d database.Direction, step *migration.Migration) error {
	if d == DirectionUp {
		return m.gateway.Apply(ctx, step, m.clock())
	}

	return m.gateway.Revert(ctx, step)
}

// Source - returns migrator selector if it implements the full source.Source interface
func (m *Migrator) Source() source.Source {
	if s, ok := m.selector.(source.Source); ok {
		return s
	}

	return nil
}

func (m *Migrator) close() error {
	var result error

	if m.gateway != nil {
		if err := m.gateway.Close(); err != nil {
			m.lg.Error(err)
			result = err
		}
	}

	for i := len(m.closerFns) - 1; i >= 0; i-- {
		if err := m.closerFns[i](); err != nil {
			m.lg.Error(err)
			if result == nil {
				result = err
			}
		}
	}

	return result
}
