package postgres

import (
	"database/sql"

	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/postgres/migrations"
	"github.com/aussiebroadwan/tokens/internal/tokens/store/drivers/sqldb"

	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
)

// migrateUp opens a pool of its own. The migrate driver holds a connection
// for the advisory lock and closing it closes the pool underneath.
func migrateUp(dsn string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return err
	}

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		_ = db.Close()
		return err
	}
	defer driver.Close()

	return sqldb.Migrate(migrations.Migrations, "pgx5", driver)
}
