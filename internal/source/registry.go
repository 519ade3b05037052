package source

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/lupa/roster/migration"
	"github.com/pkg/errors"
)

const (
	DefaultMigrationsFolder = "./migrations"

	defaultSqlExtension = "sql"

	migrateFileSuffix                = "migrate"
	rollbackFileSuffix               = "rollback"
	defaultMigrateFileFullExtension  = ".migrate.sql"
	defaultRollbackFileFullExtension = ".rollback.sql"
)

var keyRegexp = regexp.MustCompile(`^(?P<version>[0-9A-Za-z]+)(?:[_-](?P<name>[\w-]*))?$`)

type filePair struct {
	key      string
	migrate  string
	rollback string
}

// Discover reads every migration file pair found in folders through the
// locator and returns them sorted by version. A version may appear only once
// across all folders.
func Discover(ctx context.Context, locator Locator, folders ...string) (migration.Migrations, error) {
	var factories []migration.Factory

	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pairs, err := collectPairs(locator, folder)
		if err != nil {
			return nil, err
		}

		for _, p := range pairs {
			f, err := readPair(locator, folder, p)
			if err != nil {
				return nil, errors.Wrapf(err, "with key %s", p.key)
			}

			factories = append(factories, f)
		}
	}

	return migration.NewMigrations(factories...)
}

func collectPairs(locator Locator, folder string) ([]*filePair, error) {
	files, err := locator.ListFiles(folder)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*filePair)
	counts := make(map[string]int)

	for _, name := range files {
		key, suffix, err := convertLocalFilePathToKey(name)
		if err != nil {
			continue
		}

		counts[key]++
		if counts[key] > 2 {
			return nil, errors.Wrapf(ErrTooManyFilesForKey, "%s", key)
		}

		p, ok := byKey[key]
		if !ok {
			p = &filePair{key: key}
			byKey[key] = p
		}

		if suffix == migrateFileSuffix {
			p.migrate = name
		} else {
			p.rollback = name
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]*filePair, 0, len(keys))
	for _, k := range keys {
		p := byKey[k]
		if p.migrate == "" {
			return nil, errors.Wrapf(ErrMissingMigrateFile, "%s in %s", p.rollback, folder)
		}

		pairs = append(pairs, p)
	}

	return pairs, nil
}

func readPair(locator Locator, folder string, p *filePair) (migration.Factory, error) {
	version, name, err := parseKey(p.key)
	if err != nil {
		return nil, err
	}

	migrateContents, err := locator.ReadFile(filepath.Join(folder, p.migrate))
	if err != nil {
		return nil, err
	}

	var rollbackContents []byte
	if p.rollback != "" {
		rollbackContents, err = locator.ReadFile(filepath.Join(folder, p.rollback))
		if err != nil {
			return nil, err
		}
	}

	return migration.NewMigrationFromFile(p.key, name, version, string(migrateContents), string(rollbackContents)), nil
}

func parseKey(key string) (migration.Version, string, error) {
	matches := keyRegexp.FindStringSubmatch(key)
	if matches == nil {
		return migration.Zero, "", errors.Wrapf(migration.ErrInvalidVersion, "in key [%s]", key)
	}

	version, err := migration.ParseVersion(matches[1])
	if err != nil {
		return migration.Zero, "", err
	}

	name := strings.NewReplacer("_", " ", "-", " ").Replace(matches[2])

	return version, ucFirst(strings.TrimSpace(name)), nil
}

func convertLocalFilePathToKey(path string) (string, string, error) {
	base := filepath.Base(path)
	segments := strings.Split(base, ".")

	if len(segments) != 3 {
		return "", "", ErrNotAMigrationFile
	}

	if segments[2] != defaultSqlExtension || !(segments[1] == migrateFileSuffix || segments[1] == rollbackFileSuffix) {
		return "", "", ErrNotAMigrationFile
	}

	return segments[0], segments[1], nil
}
