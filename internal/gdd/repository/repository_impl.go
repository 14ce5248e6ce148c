package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	modelColumns     = `id, lawn_id, name, base_temp, unit, start_date, threshold, reset_on_threshold, created_at, updated_at`
	resetColumns     = `id, gdd_model_id, reset_date, run_number, reset_type, created_at`
	parameterColumns = `id, gdd_model_id, base_temp, threshold, reset_on_threshold, effective_from, created_at`
	valueColumns     = `id, gdd_model_id, date, daily_gdd, cumulative_gdd, is_forecast, run, created_at`
)

type repo struct{}

func Provide() gdddomain.Repository {
	return &repo{}
}

func (r *repo) InsertModel(ctx context.Context, db *gorm.DB, m *gdddomain.Model) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO gdd_models (`+modelColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.LawnID,
		m.Name,
		m.BaseTemp,
		m.Unit,
		m.StartDate,
		m.Threshold,
		m.ResetOnThreshold,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repo) UpdateModel(ctx context.Context, db *gorm.DB, m *gdddomain.Model) error {
	return db.WithContext(ctx).Exec(
		`UPDATE gdd_models
		 SET name = ?, base_temp = ?, unit = ?, start_date = ?, threshold = ?, reset_on_threshold = ?, updated_at = ?
		 WHERE id = ?`,
		m.Name,
		m.BaseTemp,
		m.Unit,
		m.StartDate,
		m.Threshold,
		m.ResetOnThreshold,
		m.UpdatedAt,
		m.ID,
	).Error
}

func (r *repo) DeleteModel(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM gdd_models WHERE id = ?`, id).Error
}

func (r *repo) FindModel(ctx context.Context, db *gorm.DB, id snowflake.ID) (*gdddomain.Model, error) {
	var model gdddomain.Model
	err := db.WithContext(ctx).Raw(
		`SELECT `+modelColumns+` FROM gdd_models WHERE id = ?`,
		id,
	).Scan(&model).Error
	if err != nil {
		return nil, err
	}
	if model.ID == 0 {
		return nil, nil
	}
	return &model, nil
}

func (r *repo) ListModels(ctx context.Context, db *gorm.DB, lawnID *snowflake.ID) ([]gdddomain.Model, error) {
	query := `SELECT ` + modelColumns + ` FROM gdd_models`
	args := []any{}
	if lawnID != nil {
		query += ` WHERE lawn_id = ?`
		args = append(args, *lawnID)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var models []gdddomain.Model
	if err := db.WithContext(ctx).Raw(query, args...).Scan(&models).Error; err != nil {
		return nil, err
	}
	return models, nil
}

func (r *repo) ListModelIDs(ctx context.Context, db *gorm.DB) ([]snowflake.ID, error) {
	var raw []int64
	if err := db.WithContext(ctx).Raw(`SELECT id FROM gdd_models ORDER BY id ASC`).Scan(&raw).Error; err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(raw))
	for _, id := range raw {
		ids = append(ids, snowflake.ID(id))
	}
	return ids, nil
}

func (r *repo) LawnExists(ctx context.Context, db *gorm.DB, lawnID snowflake.ID) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM lawns WHERE id = ?`,
		lawnID,
	).Scan(&count).Error
	return count > 0, err
}

// LocationIDForModel returns zero when the model or its lawn is gone.
func (r *repo) LocationIDForModel(ctx context.Context, db *gorm.DB, id snowflake.ID) (snowflake.ID, error) {
	var locationID snowflake.ID
	err := db.WithContext(ctx).Raw(
		`SELECT l.location_id
		 FROM gdd_models m
		 JOIN lawns l ON l.id = m.lawn_id
		 WHERE m.id = ?`,
		id,
	).Scan(&locationID).Error
	return locationID, err
}

func (r *repo) DetachApplications(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE applications SET tied_gdd_model_id = NULL, updated_at = ? WHERE tied_gdd_model_id = ?`,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repo) InsertReset(ctx context.Context, db *gorm.DB, reset *gdddomain.Reset) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO gdd_resets (`+resetColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		reset.ID,
		reset.GDDModelID,
		reset.ResetDate,
		reset.RunNumber,
		reset.ResetType,
		reset.CreatedAt,
	).Error
}

func (r *repo) ListResets(ctx context.Context, db *gorm.DB, modelID snowflake.ID) ([]gdddomain.Reset, error) {
	var resets []gdddomain.Reset
	err := db.WithContext(ctx).Raw(
		`SELECT `+resetColumns+`
		 FROM gdd_resets
		 WHERE gdd_model_id = ?
		 ORDER BY reset_date ASC`,
		modelID,
	).Scan(&resets).Error
	if err != nil {
		return nil, err
	}
	for i := range resets {
		resets[i].ResetDate = gdddomain.Day(resets[i].ResetDate)
	}
	return resets, nil
}

func (r *repo) DeleteResetAt(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM gdd_resets WHERE gdd_model_id = ? AND reset_date = ?`,
		modelID,
		date,
	).Error
}

func (r *repo) DeleteResetsAfter(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM gdd_resets WHERE gdd_model_id = ? AND reset_date > ?`,
		modelID,
		date,
	).Error
}

func (r *repo) DeleteResets(ctx context.Context, db *gorm.DB, modelID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM gdd_resets WHERE gdd_model_id = ?`, modelID).Error
}

// MaxRunNumber returns zero for an empty ledger.
func (r *repo) MaxRunNumber(ctx context.Context, db *gorm.DB, modelID snowflake.ID) (int, error) {
	var run int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(run_number), 0) FROM gdd_resets WHERE gdd_model_id = ?`,
		modelID,
	).Scan(&run).Error
	return run, err
}

func (r *repo) MoveInitialReset(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE gdd_resets SET reset_date = ? WHERE gdd_model_id = ? AND reset_type = ?`,
		date,
		modelID,
		gdddomain.ResetTypeInitial,
	).Error
}

func (r *repo) UpsertParameters(ctx context.Context, db *gorm.DB, entry *gdddomain.ParameterHistory) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "gdd_model_id"}, {Name: "effective_from"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"base_temp",
			"threshold",
			"reset_on_threshold",
		}),
	}).Create(entry).Error
}

func (r *repo) FindEffectiveParameters(ctx context.Context, db *gorm.DB, modelID snowflake.ID, date time.Time) (*gdddomain.ParameterHistory, error) {
	var entry gdddomain.ParameterHistory
	err := db.WithContext(ctx).Raw(
		`SELECT `+parameterColumns+`
		 FROM gdd_parameter_history
		 WHERE gdd_model_id = ? AND effective_from <= ?
		 ORDER BY effective_from DESC
		 LIMIT 1`,
		modelID,
		date,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	entry.EffectiveFrom = gdddomain.Day(entry.EffectiveFrom)
	return &entry, nil
}

func (r *repo) ListParameterHistory(ctx context.Context, db *gorm.DB, modelID snowflake.ID) ([]gdddomain.ParameterHistory, error) {
	var entries []gdddomain.ParameterHistory
	err := db.WithContext(ctx).Raw(
		`SELECT `+parameterColumns+`
		 FROM gdd_parameter_history
		 WHERE gdd_model_id = ?
		 ORDER BY effective_from ASC`,
		modelID,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].EffectiveFrom = gdddomain.Day(entries[i].EffectiveFrom)
	}
	return entries, nil
}

func (r *repo) MoveParameterHistory(ctx context.Context, db *gorm.DB, modelID snowflake.ID, from, to time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE gdd_parameter_history SET effective_from = ? WHERE gdd_model_id = ? AND effective_from = ?`,
		to,
		modelID,
		from,
	).Error
}

func (r *repo) DeleteParameterHistory(ctx context.Context, db *gorm.DB, modelID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM gdd_parameter_history WHERE gdd_model_id = ?`, modelID).Error
}

func (r *repo) InsertValues(ctx context.Context, db *gorm.DB, values []gdddomain.Value, batchSize int) error {
	if len(values) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(values, batchSize).Error
}

func (r *repo) DeleteValues(ctx context.Context, db *gorm.DB, modelID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM gdd_values WHERE gdd_model_id = ?`, modelID).Error
}

func (r *repo) DeleteValuesFrom(ctx context.Context, db *gorm.DB, modelID snowflake.ID, from time.Time) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM gdd_values WHERE gdd_model_id = ? AND date >= ?`,
		modelID,
		from,
	).Error
}

func (r *repo) ListValues(ctx context.Context, db *gorm.DB, filter gdddomain.ValueFilter) ([]gdddomain.Value, error) {
	conditions := []string{`gdd_model_id = ?`}
	args := []any{filter.ModelID}
	if filter.Run != nil {
		conditions = append(conditions, `run = ?`)
		args = append(args, *filter.Run)
	}
	if filter.From != nil {
		conditions = append(conditions, `date >= ?`)
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, `date <= ?`)
		args = append(args, *filter.To)
	}

	var values []gdddomain.Value
	err := db.WithContext(ctx).Raw(
		`SELECT `+valueColumns+`
		 FROM gdd_values
		 WHERE `+strings.Join(conditions, ` AND `)+`
		 ORDER BY date ASC`,
		args...,
	).Scan(&values).Error
	if err != nil {
		return nil, err
	}
	for i := range values {
		values[i].Date = gdddomain.Day(values[i].Date)
	}
	return values, nil
}
