package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	obsmetrics "github.com/smallbiznis/turfkeeper/internal/observability/metrics"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     gdddomain.Repository
	Enqueuer taskdomain.Enqueuer
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     gdddomain.Repository
	ledger   *ledger
	enqueuer taskdomain.Enqueuer
	metrics  *obsmetrics.Metrics
}

func New(p Params) gdddomain.Service {
	return newService(p)
}

func newService(p Params) *Service {
	log := p.Log.Named("gdd.service")
	return &Service{
		db:       p.DB,
		log:      log,
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		ledger:   &ledger{repo: p.Repo, genID: p.GenID, log: log},
		enqueuer: p.Enqueuer,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateModel(ctx context.Context, req gdddomain.CreateModelRequest) (*gdddomain.ModelResponse, error) {
	lawnID, err := snowflake.ParseString(strings.TrimSpace(req.LawnID))
	if err != nil || lawnID == 0 {
		return nil, gdddomain.ErrInvalidLawn
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, gdddomain.ErrInvalidName
	}
	unit, err := parseUnit(req.Unit)
	if err != nil {
		return nil, err
	}
	if req.BaseTemp == nil {
		return nil, gdddomain.ErrInvalidBaseTemp
	}
	startDate, err := gdddomain.ParseDate(req.StartDate)
	if err != nil {
		return nil, gdddomain.ErrInvalidStartDate
	}
	params := gdddomain.Parameters{
		BaseTemp:         *req.BaseTemp,
		ResetOnThreshold: req.ResetOnThreshold,
	}
	if req.Threshold != nil {
		params.Threshold = *req.Threshold
	}
	if err := validateParameters(params); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	model := &gdddomain.Model{
		ID:               s.genID.Generate(),
		LawnID:           lawnID,
		Name:             name,
		BaseTemp:         params.BaseTemp,
		Unit:             unit,
		StartDate:        startDate,
		Threshold:        params.Threshold,
		ResetOnThreshold: params.ResetOnThreshold,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.LawnExists(ctx, tx, lawnID)
		if err != nil {
			return err
		}
		if !exists {
			return gdddomain.ErrLawnNotFound
		}
		if err := s.repo.InsertModel(ctx, tx, model); err != nil {
			return err
		}
		if err := s.ledger.InsertInitial(ctx, tx, model.ID, startDate); err != nil {
			return err
		}
		// implicit history row so lookups never fall through to live fields
		if _, err := s.StoreParameters(ctx, tx, model.ID, params, startDate); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, model.ID, taskdomain.ReasonModelCreated, nil)
	})
	if err != nil {
		return nil, err
	}

	s.recordReset(ctx, gdddomain.ResetTypeInitial)
	s.log.Info("gdd model created",
		zap.String("gdd_model_id", model.ID.String()),
		zap.String("lawn_id", model.LawnID.String()),
		zap.String("start_date", startDate.Format(gdddomain.DateLayout)),
	)
	return toModelResponse(model), nil
}

func (s *Service) GetModel(ctx context.Context, id string) (*gdddomain.ModelResponse, error) {
	model, err := s.findModel(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return toModelResponse(model), nil
}

func (s *Service) ListModels(ctx context.Context, req gdddomain.ListModelsRequest) ([]gdddomain.ModelResponse, error) {
	var lawnID *snowflake.ID
	if raw := strings.TrimSpace(req.LawnID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return nil, gdddomain.ErrInvalidLawn
		}
		lawnID = &id
	}

	models, err := s.repo.ListModels(ctx, s.db, lawnID)
	if err != nil {
		return nil, err
	}
	resp := make([]gdddomain.ModelResponse, 0, len(models))
	for i := range models {
		resp = append(resp, *toModelResponse(&models[i]))
	}
	return resp, nil
}

// UpdateModel edits descriptive fields in place. Parameter changes are
// versioned through the same path as ApplyParameters.
func (s *Service) UpdateModel(ctx context.Context, req gdddomain.UpdateModelRequest) (*gdddomain.ModelResponse, error) {
	var updated *gdddomain.Model
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := s.findModel(ctx, tx, req.ID)
		if err != nil {
			return err
		}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return gdddomain.ErrInvalidName
			}
			model.Name = name
		}
		if req.Unit != nil {
			unit, err := parseUnit(*req.Unit)
			if err != nil {
				return err
			}
			model.Unit = unit
		}
		if req.StartDate != nil {
			startDate, err := gdddomain.ParseDate(*req.StartDate)
			if err != nil {
				return gdddomain.ErrInvalidStartDate
			}
			if err := s.moveStartDate(ctx, tx, model, startDate); err != nil {
				return err
			}
		}

		model.UpdatedAt = time.Now().UTC()
		if req.BaseTemp != nil || req.Threshold != nil || req.ResetOnThreshold != nil {
			params := mergeParameters(model.Parameters(), req.BaseTemp, req.Threshold, req.ResetOnThreshold)
			effectiveFrom := clock.Today(s.clock)
			if req.EffectiveFrom != nil {
				effectiveFrom, err = gdddomain.ParseDate(*req.EffectiveFrom)
				if err != nil {
					return gdddomain.ErrInvalidEffectiveFrom
				}
			}
			if err := s.applyParameters(ctx, tx, model, params, effectiveFrom); err != nil {
				return err
			}
		} else if err := s.repo.UpdateModel(ctx, tx, model); err != nil {
			return err
		}

		updated = model
		return s.enqueue(ctx, tx, model.ID, taskdomain.ReasonModelUpdated, nil)
	})
	if err != nil {
		return nil, err
	}
	return toModelResponse(updated), nil
}

// moveStartDate only succeeds while the model's history is still the one
// CreateModel wrote.
func (s *Service) moveStartDate(ctx context.Context, tx *gorm.DB, model *gdddomain.Model, startDate time.Time) error {
	current := gdddomain.Day(model.StartDate)
	if startDate.Equal(current) {
		return nil
	}

	resets, err := s.repo.ListResets(ctx, tx, model.ID)
	if err != nil {
		return err
	}
	if len(resets) != 1 || resets[0].ResetType != gdddomain.ResetTypeInitial {
		return gdddomain.ErrStartDateLocked
	}
	history, err := s.repo.ListParameterHistory(ctx, tx, model.ID)
	if err != nil {
		return err
	}
	if len(history) > 1 || (len(history) == 1 && !history[0].EffectiveFrom.Equal(current)) {
		return gdddomain.ErrStartDateLocked
	}

	if err := s.repo.MoveInitialReset(ctx, tx, model.ID, startDate); err != nil {
		return err
	}
	if err := s.repo.MoveParameterHistory(ctx, tx, model.ID, current, startDate); err != nil {
		return err
	}
	model.StartDate = startDate
	return nil
}

func (s *Service) DeleteModel(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model, err := s.findModel(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := s.repo.DeleteValues(ctx, tx, model.ID); err != nil {
			return err
		}
		if err := s.repo.DeleteResets(ctx, tx, model.ID); err != nil {
			return err
		}
		if err := s.repo.DeleteParameterHistory(ctx, tx, model.ID); err != nil {
			return err
		}
		if err := s.repo.DetachApplications(ctx, tx, model.ID); err != nil {
			return err
		}
		return s.repo.DeleteModel(ctx, tx, model.ID)
	})
	if err != nil {
		return err
	}
	s.log.Info("gdd model deleted", zap.String("gdd_model_id", id))
	return nil
}

func (s *Service) ListModelIDs(ctx context.Context) ([]snowflake.ID, error) {
	return s.repo.ListModelIDs(ctx, s.db)
}

func (s *Service) findModel(ctx context.Context, db *gorm.DB, id string) (*gdddomain.Model, error) {
	modelID, err := gdddomain.ParseID(strings.TrimSpace(id))
	if err != nil || modelID == 0 {
		return nil, gdddomain.ErrInvalidID
	}
	model, err := s.repo.FindModel(ctx, db, modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, gdddomain.ErrModelNotFound
	}
	return model, nil
}

func (s *Service) enqueue(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, reason string, metadata map[string]any) error {
	_, err := s.enqueuer.EnqueueRecalculation(ctx, tx, taskdomain.EnqueueRequest{
		ModelID:  modelID,
		Reason:   reason,
		Metadata: metadata,
	})
	return err
}

func (s *Service) recordReset(ctx context.Context, resetType gdddomain.ResetType) {
	if s.metrics != nil {
		s.metrics.RecordReset(ctx, string(resetType))
	}
}

func parseUnit(value string) (gdddomain.Unit, error) {
	switch gdddomain.Unit(strings.ToUpper(strings.TrimSpace(value))) {
	case gdddomain.UnitCelsius:
		return gdddomain.UnitCelsius, nil
	case gdddomain.UnitFahrenheit:
		return gdddomain.UnitFahrenheit, nil
	default:
		return "", gdddomain.ErrInvalidUnit
	}
}

func validateParameters(p gdddomain.Parameters) error {
	if math.IsNaN(p.BaseTemp) || math.IsInf(p.BaseTemp, 0) {
		return gdddomain.ErrInvalidBaseTemp
	}
	if math.IsNaN(p.Threshold) || math.IsInf(p.Threshold, 0) || p.Threshold < 0 {
		return gdddomain.ErrInvalidThreshold
	}
	// a zero threshold would reset every day
	if p.ResetOnThreshold && p.Threshold == 0 {
		return gdddomain.ErrInvalidThreshold
	}
	return nil
}

func mergeParameters(base gdddomain.Parameters, baseTemp, threshold *float64, resetOnThreshold *bool) gdddomain.Parameters {
	if baseTemp != nil {
		base.BaseTemp = *baseTemp
	}
	if threshold != nil {
		base.Threshold = *threshold
	}
	if resetOnThreshold != nil {
		base.ResetOnThreshold = *resetOnThreshold
	}
	return base
}

func toModelResponse(m *gdddomain.Model) *gdddomain.ModelResponse {
	return &gdddomain.ModelResponse{
		ID:               m.ID.String(),
		LawnID:           m.LawnID.String(),
		Name:             m.Name,
		BaseTemp:         m.BaseTemp,
		Unit:             m.Unit,
		StartDate:        gdddomain.Day(m.StartDate).Format(gdddomain.DateLayout),
		Threshold:        m.Threshold,
		ResetOnThreshold: m.ResetOnThreshold,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
