package cli

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lupa/roster"
	"github.com/lupa/roster/internal/api"
	"github.com/lupa/roster/internal/logger"
	"github.com/lupa/roster/internal/seed"
	"github.com/lupa/roster/internal/source"
	"github.com/lupa/roster/internal/users"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

var (
	ErrMigrationAlreadyExists = errors.New("migration already exists")
	ErrFolderInvalid          = errors.New("migrations folder is invalid")
	ErrSourceTypeIsNotValid   = errors.New("source type is not valid")
	ErrConfigAlreadyExists    = errors.New("config file already exists")
)

type (
	CloserFunc func() error

	App struct {
		cfg      Config
		lg       logger.Logger
		db       *sqlx.DB
		source   source.Source
		migrator *roster.Migrator
		clock    migration.ClockFunc
	}
)

func NewFromYaml(path string, p logger.Printer) (*App, CloserFunc, error) {
	cfg, err := createConfigFromYaml(path)
	if err != nil {
		return nil, nil, err
	}

	return New(cfg, p)
}

// New opens the configured database and builds the migrator on it. The
// returned closer releases the migrator connection and the pool.
func New(cfg Config, p logger.Printer) (*App, CloserFunc, error) {
	lg := newLogger(cfg, p)

	db, factory, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	gatewayOpt, err := factory.gateway(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	loggerOpt := roster.UseColorLogger(p, cfg.PrintSQL, cfg.Debug)
	if cfg.NoColor {
		loggerOpt = roster.UseLogger(p, cfg.PrintSQL, cfg.Debug)
	}

	m, closer, err := roster.NewMigrator(
		loggerOpt,
		gatewayOpt,
		roster.UseLocalFolderSource(cfg.MigrationsFolders...),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	s := m.Source()
	if s == nil {
		_ = closer()
		_ = db.Close()
		return nil, nil, ErrSourceTypeIsNotValid
	}

	app := &App{
		cfg:      cfg,
		lg:       lg,
		db:       db,
		source:   s,
		migrator: m,
		clock:    time.Now,
	}

	return app, func() error {
		closeErr := closer()
		if err := db.Close(); err != nil && closeErr == nil {
			closeErr = err
		}
		return closeErr
	}, nil
}

func newLogger(cfg Config, p logger.Printer) logger.Logger {
	if cfg.NoColor {
		return logger.NewBWLogger(p, cfg.PrintSQL, cfg.Debug)
	}

	return logger.NewColorLogger(p, cfg.PrintSQL, cfg.Debug)
}

// Migrate runs the migrator towards t within the configured timeout
func (app *App) Migrate(ctx context.Context, t roster.Target, progress roster.ProgressFunc) (*roster.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, app.cfg.Timeout)
	defer cancel()

	var cfs []roster.ActionConfigurator
	if progress != nil {
		cfs = append(cfs, roster.WithProgress(progress))
	}

	return app.migrator.Migrate(ctx, t, cfs...)
}

func (app *App) Status(ctx context.Context) (*roster.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, app.cfg.Timeout)
	defer cancel()

	return app.migrator.Status(ctx)
}

// CreateMigration scaffolds an empty migration in the first folder with a
// version generated from the clock
func (app *App) CreateMigration(name string, withRollback bool) (*migration.Migration, error) {
	if !app.source.IsValid() {
		return nil, ErrFolderInvalid
	}

	v := migration.GenerateVersion(app.clock, app.cfg.VersionFormat)

	if app.source.AlreadyExists(v, name) {
		return nil, errors.Wrapf(ErrMigrationAlreadyExists, "version [%s] name [%s]", v, name)
	}

	return app.source.Create(v, name, withRollback)
}

func (app *App) Seed(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, app.cfg.Timeout)
	defer cancel()

	return seed.New(app.lg, seed.NewUsers(users.NewStore(app.db))).Run(ctx)
}

// Serve blocks until ctx is done or one of the HTTP surfaces fails
func (app *App) Serve(ctx context.Context) error {
	store := users.NewStore(app.db)
	if err := store.Ping(ctx); err != nil {
		return err
	}

	return api.New(store, app.lg, app.cfg.HTTP).Run(ctx)
}

// InitCfg writes a config stub, an existing file is never overwritten
func InitCfg(path string) error {
	if FileExists(path) {
		return errors.Wrapf(ErrConfigAlreadyExists, "[%s]", path)
	}

	if err := os.WriteFile(path, []byte(strings.TrimLeft(configFileStub, "\n")), 0644); err != nil {
		return errors.Wrap(err, "could not create config file")
	}

	return nil
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

const configFileStub = `
version: "1"
migrations:
  # %%NAME%% values are read from the environment
  database_url: "%%DATABASE_URL%%"
  folders:
    - ./migrations
  table: migrations
  lock_key: ""
  no_lock: false
  version_format: datetime
  timeout: 120s
log:
  sql: false
  debug: false
  no_color: false
http:
  public_addr: ":8080"
  api_addr: ":8081"
  api_url: "http://localhost:8081"
  username: "%%ROSTER_API_USERNAME%%"
  token: "%%ROSTER_API_TOKEN%%"
`
