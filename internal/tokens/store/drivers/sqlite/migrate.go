package sqlite

import (
	"database/sql"

	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqldb"
	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqlite/migrations"

	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
)

// migrateUp runs on the serving handle: with a single connection there is
// no other way to reach a ":memory:" database.
func migrateUp(db *sql.DB) error {
	driver, err := sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	if err != nil {
		return err
	}
	return sqldb.Migrate(migrations.Migrations, "sqlite", driver)
}
