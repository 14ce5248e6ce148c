package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	lawndomain "github.com/smallbiznis/turfkeeper/internal/lawn/domain"
	locationdomain "github.com/smallbiznis/turfkeeper/internal/location/domain"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres schema.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&locationdomain.Location{},
		&lawndomain.Lawn{},
		&weatherdomain.Record{},
		&gdddomain.Model{},
		&gdddomain.Reset{},
		&gdddomain.ParameterHistory{},
		&gdddomain.Value{},
		&applicationdomain.Application{},
		&taskdomain.Task{},
	}
}

// AutoMigrate builds the schema from the gorm models for mysql and sqlite,
// which the embedded SQL does not target.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
