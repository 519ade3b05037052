package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

var ErrVersionAlreadyRecorded = errors.New("version already recorded")
var ErrVersionNotRecorded = errors.New("version not recorded")

type (
	// ExecFunc runs a single migration script
	ExecFunc func(ctx context.Context, script string) error

	// WriteFunc may reject a change log write, op is "record" or "remove"
	WriteFunc func(op string, v migration.Version) error

	Gateway struct {
		mu      sync.Mutex
		lg      logger.Logger
		exec    ExecFunc
		write   WriteFunc
		applied map[string]migration.Version
		locked  bool
	}

	Option func(g *Gateway)
)

var _ database.Gateway = (*Gateway)(nil)

func WithExecFunc(f ExecFunc) Option {
	return func(g *Gateway) {
		g.exec = f
	}
}

func WithWriteFunc(f WriteFunc) Option {
	return func(g *Gateway) {
		g.write = f
	}
}

// New creates a gateway keeping the change log in memory. Scripts are passed
// to the exec func, without one they are only logged.
func New(opts ...Option) *Gateway {
	g := &Gateway{
		lg:      logger.NullLogger{},
		applied: make(map[string]migration.Version),
	}

	for _, o := range opts {
		o(g)
	}

	return g
}

func (g *Gateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *Gateway) Lock(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locked {
		return errors.New("in-memory change log is already locked")
	}

	g.locked = true

	return nil
}

func (g *Gateway) Unlock(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.locked = false
	return nil
}

func (g *Gateway) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.locked
}

func (g *Gateway) CreateMigrationsTable(context.Context) error {
	return nil
}

func (g *Gateway) CurrentVersion(ctx context.Context) (migration.Version, bool, error) {
	versions, err := g.ReadVersions(ctx)
	if err != nil {
		return migration.Zero, false, err
	}

	v, ok := database.LatestVersion(versions)

	return v, ok, nil
}

func (g *Gateway) ReadVersions(context.Context) ([]migration.Version, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := make([]migration.Version, 0, len(g.applied))
	for _, v := range g.applied {
		result = append(result, v)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Compare(result[j]) < 0
	})

	return result, nil
}

func (g *Gateway) RecordApplied(_ context.Context, m *migration.Migration, at time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.recordApplied(m, at)
}

func (g *Gateway) RecordReverted(_ context.Context, m *migration.Migration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.recordReverted(m)
}

func (g *Gateway) Apply(ctx context.Context, m *migration.Migration, at time.Time) error {
	if err := g.run(ctx, m.Migrate); err != nil {
		return errors.Wrapf(err, "could not migrate [%s]", m.Key)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.recordApplied(m, at)
}

func (g *Gateway) Revert(ctx context.Context, m *migration.Migration) error {
	if err := g.run(ctx, m.Rollback); err != nil {
		return errors.Wrapf(err, "could not rollback [%s]", m.Key)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	return g.recordReverted(m)
}

func (g *Gateway) Close() error {
	return nil
}

func (g *Gateway) run(ctx context.Context, scripts []string) error {
	for _, script := range scripts {
		g.lg.SQL(script)

		if g.exec == nil {
			continue
		}

		if err := g.exec(ctx, script); err != nil {
			return err
		}
	}

	return nil
}

func (g *Gateway) recordApplied(m *migration.Migration, at time.Time) error {
	key := m.Version.String()
	if _, ok := g.applied[key]; ok {
		return &database.LogWriteError{Version: m.Version, Op: "record", Err: ErrVersionAlreadyRecorded}
	}

	if g.write != nil {
		if err := g.write("record", m.Version); err != nil {
			return &database.LogWriteError{Version: m.Version, Op: "record", Err: err}
		}
	}

	v := m.Version
	v.MigratedAt = at
	g.applied[key] = v

	return nil
}

func (g *Gateway) recordReverted(m *migration.Migration) error {
	key := m.Version.String()
	if _, ok := g.applied[key]; !ok {
		return &database.LogWriteError{Version: m.Version, Op: "remove", Err: ErrVersionNotRecorded}
	}

	if g.write != nil {
		if err := g.write("remove", m.Version); err != nil {
			return &database.LogWriteError{Version: m.Version, Op: "remove", Err: err}
		}
	}

	delete(g.applied, key)

	return nil
}
