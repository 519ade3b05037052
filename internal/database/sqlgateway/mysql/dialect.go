package mysql

import (
	"fmt"
	"time"

	"github.com/lupa/roster/migration"
)

type Dialect struct {
	migrationsTable, charset string
}

func NewDialect(migrationsTable, charset string) *Dialect {
	return &Dialect{migrationsTable: migrationsTable, charset: charset}
}

func (d Dialect) InitQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			version VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255),
			migrated_at TIMESTAMP default CURRENT_TIMESTAMP
		) ENGINE=InnoDB CHARACTER SET=%s
	`

	return fmt.Sprintf(createSQL, d.migrationsTable, d.charset)
}

func (d Dialect) InsertQuery(m *migration.Migration, at time.Time) (string, []interface{}) {
	const insertSQL = "INSERT INTO %s (`version`, `name`, `migrated_at`) VALUES (?, ?, ?);"

	return fmt.Sprintf(insertSQL, d.migrationsTable), []interface{}{m.Version.String(), m.Name, at}
}

func (d Dialect) ReadVersionsQuery() string {
	return fmt.Sprintf("SELECT `version`, `migrated_at` FROM %s", d.migrationsTable)
}

func (d Dialect) RemoveQuery(m *migration.Migration) (string, []interface{}) {
	const removeSQL = "DELETE FROM %s WHERE `version` = ?;"
	return fmt.Sprintf(removeSQL, d.migrationsTable), []interface{}{m.Version.String()}
}
