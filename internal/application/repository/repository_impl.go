package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
	"gorm.io/gorm"
)

const selectColumns = `id, lawn_id, product_name, application_date, tied_gdd_model_id, notes, created_at, updated_at`

type repo struct{}

func Provide() applicationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, a *applicationdomain.Application) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO applications (id, lawn_id, product_name, application_date, tied_gdd_model_id, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.LawnID,
		a.ProductName,
		a.ApplicationDate,
		a.TiedGDDModelID,
		a.Notes,
		a.CreatedAt,
		a.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, a *applicationdomain.Application) error {
	return db.WithContext(ctx).Exec(
		`UPDATE applications
		 SET product_name = ?, application_date = ?, tied_gdd_model_id = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		a.ProductName,
		a.ApplicationDate,
		a.TiedGDDModelID,
		a.Notes,
		a.UpdatedAt,
		a.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM applications WHERE id = ?`, id).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*applicationdomain.Application, error) {
	var app applicationdomain.Application
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM applications WHERE id = ?`,
		id,
	).Scan(&app).Error
	if err != nil {
		return nil, err
	}
	if app.ID == 0 {
		return nil, nil
	}
	return &app, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter applicationdomain.ListFilter) ([]applicationdomain.Application, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.LawnID != nil {
		conditions = append(conditions, `lawn_id = ?`)
		args = append(args, *filter.LawnID)
	}
	if filter.TiedGDDModelID != nil {
		conditions = append(conditions, `tied_gdd_model_id = ?`)
		args = append(args, *filter.TiedGDDModelID)
	}

	query := `SELECT ` + selectColumns + ` FROM applications`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, ` AND `)
	}
	query += ` ORDER BY application_date DESC, id DESC`

	var apps []applicationdomain.Application
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

func (r *repo) LawnExists(ctx context.Context, db *gorm.DB, lawnID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM lawns WHERE id = ?`,
		lawnID,
	).Scan(&count).Error
	return count > 0, err
}

func (r *repo) ModelLawnID(ctx context.Context, db *gorm.DB, modelID snowflake.ID) (snowflake.ID, error) {
	var lawnID snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT lawn_id FROM gdd_models WHERE id = ?`,
		modelID,
	).Scan(&lawnID).Error
	return lawnID, err
}
