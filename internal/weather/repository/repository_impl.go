package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const selectColumns = `id, location_id, date, temperature_max_c, temperature_min_c,
	temperature_max_f, temperature_min_f, type, ingest_id, created_at, updated_at`

type repo struct{}

func Provide() weatherdomain.Repository {
	return &repo{}
}

func (r *repo) ListRange(ctx context.Context, db *gorm.DB, locationID snowflake.ID, from, to *time.Time) ([]weatherdomain.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM weather_daily WHERE location_id = ?`
	args := []any{locationID}
	if from != nil {
		query += ` AND date >= ?`
		args = append(args, *from)
	}
	if to != nil {
		query += ` AND date < ?`
		args = append(args, *to)
	}
	query += ` ORDER BY date ASC`

	var records []weatherdomain.Record
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, locationID snowflake.ID, from *time.Time) (int64, error) {
	query := `SELECT COUNT(1) FROM weather_daily WHERE location_id = ?`
	args := []any{locationID}
	if from != nil {
		query += ` AND date >= ?`
		args = append(args, *from)
	}

	var count int64
	err := db.WithContext(ctx).Raw(query, args...).Scan(&count).Error
	return count, err
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, records []weatherdomain.Record) error {
	if len(records) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "location_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"temperature_max_c",
				"temperature_min_c",
				"temperature_max_f",
				"temperature_min_f",
				"type",
				"ingest_id",
				"updated_at",
			}),
		}).
		Create(&records).Error
}

func (r *repo) LocationExists(ctx context.Context, db *gorm.DB, locationID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM locations WHERE id = ?`,
		locationID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) ModelIDsAtLocation(ctx context.Context, db *gorm.DB, locationID snowflake.ID) ([]snowflake.ID, error) {
	var raw []int64
	err := db.WithContext(ctx).Raw(
		`SELECT m.id
		 FROM gdd_models m
		 JOIN lawns l ON l.id = m.lawn_id
		 WHERE l.location_id = ?
		 ORDER BY m.id ASC`,
		locationID,
	).Scan(&raw).Error
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, snowflake.ID(id))
	}
	return ids, nil
}
