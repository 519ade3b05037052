package cli

import (
	"os"
	"strings"
	"time"

	"github.com/lupa/roster/internal/api"
	"github.com/lupa/roster/internal/database"
	"github.com/lupa/roster/internal/source"
	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const (
	DefaultConfigFile = "roster.yml"
	DefaultTimeout    = 120 * time.Second
)

var (
	ErrDatabaseURLMissing   = errors.New("database url was not defined")
	ErrInvalidVersionFormat = errors.New("invalid version format")
)

var allowedVersionFormats = []migration.VersionFormat{migration.DatetimeFormat, migration.TimestampFormat}

type (
	Config struct {
		DatabaseURL       string
		MigrationsFolders []string
		MigrationsTable   string
		LockKey           string
		NoLock            bool
		VersionFormat     migration.VersionFormat
		Timeout           time.Duration
		PrintSQL          bool
		Debug             bool
		NoColor           bool
		HTTP              api.Config
	}

	migrationsSection struct {
		DatabaseURL   string   `yaml:"database_url"`
		Folders       []string `yaml:"folders"`
		Table         string   `yaml:"table"`
		LockKey       string   `yaml:"lock_key"`
		NoLock        string   `yaml:"no_lock"`
		VersionFormat string   `yaml:"version_format"`
		Timeout       string   `yaml:"timeout"`
	}

	logSection struct {
		SQL     string `yaml:"sql"`
		Debug   string `yaml:"debug"`
		NoColor string `yaml:"no_color"`
	}

	httpSection struct {
		PublicAddr string `yaml:"public_addr"`
		APIAddr    string `yaml:"api_addr"`
		APIURL     string `yaml:"api_url"`
		Username   string `yaml:"username"`
		Token      string `yaml:"token"`
	}

	configFile struct {
		Version    string            `yaml:"version"`
		Migrations migrationsSection `yaml:"migrations"`
		Log        logSection        `yaml:"log"`
		HTTP       httpSection       `yaml:"http"`
	}
)

func createConfigFromYaml(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "could not read roster configuration file")
	}

	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return Config{}, errors.Wrap(err, "could not parse roster configuration file")
	}

	cfg := Config{
		DatabaseURL:     env(cfgFile.Migrations.DatabaseURL),
		MigrationsTable: env(cfgFile.Migrations.Table),
		LockKey:         env(cfgFile.Migrations.LockKey),
		NoLock:          boolean(cfgFile.Migrations.NoLock),
		PrintSQL:        boolean(cfgFile.Log.SQL),
		Debug:           boolean(cfgFile.Log.Debug),
		NoColor:         boolean(cfgFile.Log.NoColor),
		HTTP: api.Config{
			PublicAddr: env(cfgFile.HTTP.PublicAddr),
			APIAddr:    env(cfgFile.HTTP.APIAddr),
			APIURL:     env(cfgFile.HTTP.APIURL),
			Username:   env(cfgFile.HTTP.Username),
			Token:      env(cfgFile.HTTP.Token),
		},
	}

	for _, folder := range cfgFile.Migrations.Folders {
		if f := env(folder); f != "" {
			cfg.MigrationsFolders = append(cfg.MigrationsFolders, f)
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, ErrDatabaseURLMissing
	}

	if len(cfg.MigrationsFolders) == 0 {
		cfg.MigrationsFolders = []string{source.DefaultMigrationsFolder}
	}

	if cfg.MigrationsTable == "" {
		cfg.MigrationsTable = database.DefaultMigrationsTable
	}

	cfg.VersionFormat = migration.DatetimeFormat
	if vf := env(cfgFile.Migrations.VersionFormat); vf != "" {
		cfg.VersionFormat = ""
		for _, format := range allowedVersionFormats {
			if string(format) == vf {
				cfg.VersionFormat = format
			}
		}

		if cfg.VersionFormat == "" {
			return cfg, errors.Wrapf(ErrInvalidVersionFormat, "[%s]", vf)
		}
	}

	cfg.Timeout = DefaultTimeout
	if t := env(cfgFile.Migrations.Timeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return cfg, errors.Wrapf(err, "invalid timeout [%s]", t)
		}
		cfg.Timeout = d
	}

	return cfg, nil
}

// env resolves a %%NAME%% value from the environment, other values are
// returned as is
func env(value string) string {
	if len(value) > 4 && strings.HasPrefix(value, "%%") && strings.HasSuffix(value, "%%") {
		return os.Getenv(strings.Trim(value, "%"))
	}

	return value
}

func boolean(value string) bool {
	switch strings.ToLower(env(value)) {
	case "1", "true", "yes", "on":
		return true
	}

	return false
}
