// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/turfkeeper/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory sqlite database with the full schema.
// The pool holds a single connection, so code under test must not use the
// root handle while a transaction is open.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("busy timeout: %v", err)
	}
	if err := migration.AutoMigrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return conn
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}

// Fixture inserts parent rows with raw SQL so tests stay independent of the
// services that own them.
type Fixture struct {
	DB    *gorm.DB
	GenID *snowflake.Node
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	return &Fixture{DB: NewDB(t), GenID: NewNode(t)}
}

func (f *Fixture) Location(t *testing.T) snowflake.ID {
	t.Helper()
	id := f.GenID.Generate()
	now := time.Now().UTC()
	err := f.DB.Exec(
		`INSERT INTO locations (id, name, timezone, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, "station "+id.String(), "UTC", now, now,
	).Error
	if err != nil {
		t.Fatalf("insert location: %v", err)
	}
	return id
}

func (f *Fixture) Lawn(t *testing.T, locationID snowflake.ID) snowflake.ID {
	t.Helper()
	id := f.GenID.Generate()
	now := time.Now().UTC()
	err := f.DB.Exec(
		`INSERT INTO lawns (id, location_id, name, grass_type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, locationID, "lawn "+id.String(), "", now, now,
	).Error
	if err != nil {
		t.Fatalf("insert lawn: %v", err)
	}
	return id
}

// Model inserts a celsius model with base 10 and its initial reset at start.
func (f *Fixture) Model(t *testing.T, lawnID snowflake.ID, start time.Time) snowflake.ID {
	t.Helper()
	id := f.GenID.Generate()
	now := time.Now().UTC()
	err := f.DB.Exec(
		`INSERT INTO gdd_models (id, lawn_id, name, base_temp, unit, start_date, threshold, reset_on_threshold, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, lawnID, "model "+id.String(), 10.0, "C", start, 0.0, false, now, now,
	).Error
	if err != nil {
		t.Fatalf("insert model: %v", err)
	}
	err = f.DB.Exec(
		`INSERT INTO gdd_resets (id, gdd_model_id, reset_date, run_number, reset_type, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.GenID.Generate(), id, start, 1, "initial", now,
	).Error
	if err != nil {
		t.Fatalf("insert initial reset: %v", err)
	}
	return id
}

// Weather writes one historical day in both units. A nil max or min is
// stored as missing.
func (f *Fixture) Weather(t *testing.T, locationID snowflake.ID, date time.Time, maxC, minC *float64) {
	t.Helper()
	now := time.Now().UTC()
	err := f.DB.Exec(
		`INSERT INTO weather_daily (id, location_id, date, temperature_max_c, temperature_min_c,
		   temperature_max_f, temperature_min_f, type, ingest_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.GenID.Generate(), locationID, date, maxC, minC, toF(maxC), toF(minC), "historical", "", now, now,
	).Error
	if err != nil {
		t.Fatalf("insert weather: %v", err)
	}
}

// ConstantWeather writes days consecutive records starting at from.
func (f *Fixture) ConstantWeather(t *testing.T, locationID snowflake.ID, from time.Time, days int, maxC, minC float64) {
	t.Helper()
	for i := 0; i < days; i++ {
		f.Weather(t, locationID, from.AddDate(0, 0, i), Float(maxC), Float(minC))
	}
}

func Float(v float64) *float64 {
	return &v
}

func Date(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		t.Fatalf("parse date %q: %v", value, err)
	}
	return parsed.UTC()
}

// Ctx returns a context bounded by the test deadline.
func Ctx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func toF(c *float64) *float64 {
	if c == nil {
		return nil
	}
	v := *c*9/5 + 32
	return &v
}
