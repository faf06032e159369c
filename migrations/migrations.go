package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/danthegoodman1/icemor/gologger"
	// ensure "pgx" driver is loaded
	_ "github.com/jackc/pgx/v4/stdlib"
	migrate "github.com/rubenv/sql-migrate"
)

var (
	//go:embed *.sql
	migrations embed.FS

	ErrMigrationsNotRun = fmt.Errorf("not all migrations applied")

	logger = gologger.Component("migrations")
)

func source() migrate.MigrationSource {
	return migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       ".",
	}
}

func RunMigrations(crdbDsn string) (int, error) {
	db, err := sql.Open("pgx", crdbDsn)
	if err != nil {
		return 0, err
	}
	defer db.Close()
	ms := migrate.MigrationSet{
		TableName: "migrations",
	}
	n, err := ms.Exec(db, "postgres", source(), migrate.Up)
	if err != nil {
		return n, fmt.Errorf("error in MigrationSet.Exec: %w", err)
	}
	logger.Info().Int("applied", n).Msg("ran migrations")
	return n, nil
}

func CheckMigrations(crdbDsn string) error {
	db, err := sql.Open("pgx", crdbDsn)
	if err != nil {
		return err
	}
	defer db.Close()
	ms := migrate.MigrationSet{
		TableName: "migrations",
	}
	migration, _, err := ms.PlanMigration(db, "postgres", source(), migrate.Up, 0)
	if err != nil {
		return err
	}
	if len(migration) > 0 {
		for _, mig := range migration {
			logger.Warn().Str("migrationID", mig.Id).Msg("missing migration")
		}
		return ErrMigrationsNotRun
	}
	return nil
}
