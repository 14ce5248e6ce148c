package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StoreParameters upserts the entry for (model, effectiveFrom).
func (s *Service) StoreParameters(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, params gdddomain.Parameters, effectiveFrom time.Time) (*gdddomain.ParameterHistory, error) {
	entry := &gdddomain.ParameterHistory{
		ID:               s.genID.Generate(),
		GDDModelID:       modelID,
		BaseTemp:         params.BaseTemp,
		Threshold:        params.Threshold,
		ResetOnThreshold: params.ResetOnThreshold,
		EffectiveFrom:    gdddomain.Day(effectiveFrom),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.repo.UpsertParameters(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ApplyParameters versions a parameter change. Values from EffectiveFrom on
// are dropped right away and rebuilt by the queued recalculation.
func (s *Service) ApplyParameters(ctx context.Context, req gdddomain.ApplyParametersRequest) (*gdddomain.ModelResponse, error) {
	effectiveFrom := clock.Today(s.clock)
	if strings.TrimSpace(req.EffectiveFrom) != "" {
		parsed, err := gdddomain.ParseDate(req.EffectiveFrom)
		if err != nil {
			return nil, gdddomain.ErrInvalidEffectiveFrom
		}
		effectiveFrom = parsed
	}

	var updated *gdddomain.Model
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := s.findModel(ctx, tx, req.ModelID)
		if err != nil {
			return err
		}
		params := mergeParameters(model.Parameters(), req.BaseTemp, req.Threshold, req.ResetOnThreshold)
		model.UpdatedAt = time.Now().UTC()
		if err := s.applyParameters(ctx, tx, model, params, effectiveFrom); err != nil {
			return err
		}
		updated = model
		return s.enqueue(ctx, tx, model.ID, taskdomain.ReasonParametersChanged, map[string]any{
			"effective_from": effectiveFrom.Format(gdddomain.DateLayout),
		})
	})
	if err != nil {
		return nil, err
	}
	return toModelResponse(updated), nil
}

func (s *Service) applyParameters(ctx context.Context, tx *gorm.DB, model *gdddomain.Model, params gdddomain.Parameters, effectiveFrom time.Time) error {
	if err := validateParameters(params); err != nil {
		return err
	}
	// an entry before the start date would be shadowed by the implicit row
	if effectiveFrom.Before(gdddomain.Day(model.StartDate)) {
		return gdddomain.ErrInvalidEffectiveFrom
	}

	if _, err := s.StoreParameters(ctx, tx, model.ID, params, effectiveFrom); err != nil {
		return err
	}
	model.BaseTemp = params.BaseTemp
	model.Threshold = params.Threshold
	model.ResetOnThreshold = params.ResetOnThreshold
	if err := s.repo.UpdateModel(ctx, tx, model); err != nil {
		return err
	}
	if err := s.repo.DeleteValuesFrom(ctx, tx, model.ID, effectiveFrom); err != nil {
		return err
	}

	s.log.Info("parameters applied",
		zap.String("gdd_model_id", model.ID.String()),
		zap.String("effective_from", effectiveFrom.Format(gdddomain.DateLayout)),
		zap.Float64("base_temp", params.BaseTemp),
		zap.Float64("threshold", params.Threshold),
		zap.Bool("reset_on_threshold", params.ResetOnThreshold),
	)
	return nil
}

func (s *Service) ListParameterHistory(ctx context.Context, modelID string) ([]gdddomain.ParameterResponse, error) {
	model, err := s.findModel(ctx, s.db, modelID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.ListParameterHistory(ctx, s.db, model.ID)
	if err != nil {
		return nil, err
	}
	resp := make([]gdddomain.ParameterResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, *toHistoryResponse(&entries[i]))
	}
	return resp, nil
}

// EffectiveParameters returns the latest entry on or before date, or the
// live model fields when none applies.
func (s *Service) EffectiveParameters(ctx context.Context, modelID string, date time.Time) (*gdddomain.ParameterResponse, error) {
	model, err := s.findModel(ctx, s.db, modelID)
	if err != nil {
		return nil, err
	}
	entry, err := s.repo.FindEffectiveParameters(ctx, s.db, model.ID, gdddomain.Day(date))
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return toHistoryResponse(entry), nil
	}
	return &gdddomain.ParameterResponse{
		ModelID:          model.ID.String(),
		BaseTemp:         model.BaseTemp,
		Threshold:        model.Threshold,
		ResetOnThreshold: model.ResetOnThreshold,
		Source:           gdddomain.ParameterSourceModel,
	}, nil
}

func toHistoryResponse(p *gdddomain.ParameterHistory) *gdddomain.ParameterResponse {
	return &gdddomain.ParameterResponse{
		ModelID:          p.GDDModelID.String(),
		BaseTemp:         p.BaseTemp,
		Threshold:        p.Threshold,
		ResetOnThreshold: p.ResetOnThreshold,
		EffectiveFrom:    gdddomain.Day(p.EffectiveFrom).Format(gdddomain.DateLayout),
		Source:           gdddomain.ParameterSourceHistory,
	}
}
