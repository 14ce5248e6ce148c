package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	lawndomain "github.com/smallbiznis/turfkeeper/internal/lawn/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() lawndomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, l *lawndomain.Lawn) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO lawns (id, location_id, name, grass_type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID,
		l.LocationID,
		l.Name,
		l.GrassType,
		l.CreatedAt,
		l.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, l *lawndomain.Lawn) error {
	return db.WithContext(ctx).Exec(
		`UPDATE lawns SET name = ?, grass_type = ?, updated_at = ? WHERE id = ?`,
		l.Name,
		l.GrassType,
		l.UpdatedAt,
		l.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM lawns WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*lawndomain.Lawn, error) {
	var lawn lawndomain.Lawn
	err := db.WithContext(ctx).Raw(
		`SELECT id, location_id, name, grass_type, created_at, updated_at
		 FROM lawns WHERE id = ?`,
		id,
	).Scan(&lawn).Error
	if err != nil {
		return nil, err
	}
	if lawn.ID == 0 {
		return nil, nil
	}
	return &lawn, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, locationID *snowflake.ID) ([]lawndomain.Lawn, error) {
	query := `SELECT id, location_id, name, grass_type, created_at, updated_at FROM lawns`
	args := []any{}
	if locationID != nil {
		query += ` WHERE location_id = ?`
		args = append(args, *locationID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var lawns []lawndomain.Lawn
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&lawns).Error; err != nil {
		return nil, err
	}
	return lawns, nil
}

func (r *repo) LocationExists(ctx context.Context, db *gorm.DB, locationID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM locations WHERE id = ?`,
		locationID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) CountDependents(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT (SELECT COUNT(1) FROM gdd_models WHERE lawn_id = ?)
		      + (SELECT COUNT(1) FROM applications WHERE lawn_id = ?)`,
		id,
		id,
	).Scan(&count).Error
	return count, err
}
