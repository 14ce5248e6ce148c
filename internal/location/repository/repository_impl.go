package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	locationdomain "github.com/smallbiznis/turfkeeper/internal/location/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() locationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, l *locationdomain.Location) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO locations (id, name, latitude, longitude, timezone, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID,
		l.Name,
		l.Latitude,
		l.Longitude,
		l.Timezone,
		l.CreatedAt,
		l.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, l *locationdomain.Location) error {
	return db.WithContext(ctx).Exec(
		`UPDATE locations
		 SET name = ?, latitude = ?, longitude = ?, timezone = ?, updated_at = ?
		 WHERE id = ?`,
		l.Name,
		l.Latitude,
		l.Longitude,
		l.Timezone,
		l.UpdatedAt,
		l.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM locations WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*locationdomain.Location, error) {
	var location locationdomain.Location
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, latitude, longitude, timezone, created_at, updated_at
		 FROM locations WHERE id = ?`,
		id,
	).Scan(&location).Error
	if err != nil {
		return nil, err
	}
	if location.ID == 0 {
		return nil, nil
	}
	return &location, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]locationdomain.Location, error) {
	var locations []locationdomain.Location
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, latitude, longitude, timezone, created_at, updated_at
		 FROM locations ORDER BY created_at ASC, id ASC`,
	).Scan(&locations).Error
	if err != nil {
		return nil, err
	}
	return locations, nil
}

func (r *repo) CountLawns(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM lawns WHERE location_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}
