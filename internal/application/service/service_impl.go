package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
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
	Repo     applicationdomain.Repository
	Ledger   gdddomain.ResetLedger
	Enqueuer taskdomain.Enqueuer
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	repo     applicationdomain.Repository
	ledger   gdddomain.ResetLedger
	enqueuer taskdomain.Enqueuer
	metrics  *obsmetrics.Metrics
}

func New(p Params) applicationdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("application.service"),
		genID:    p.GenID,
		repo:     p.Repo,
		ledger:   p.Ledger,
		enqueuer: p.Enqueuer,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req applicationdomain.CreateRequest) (*applicationdomain.Response, error) {
	lawnID, err := snowflake.ParseString(strings.TrimSpace(req.LawnID))
	if err != nil || lawnID == 0 {
		return nil, applicationdomain.ErrInvalidLawn
	}
	productName := strings.TrimSpace(req.ProductName)
	if productName == "" {
		return nil, applicationdomain.ErrInvalidProductName
	}
	date, err := gdddomain.ParseDate(req.ApplicationDate)
	if err != nil {
		return nil, applicationdomain.ErrInvalidApplicationDate
	}
	tiedID, err := parseOptionalModelID(req.TiedGDDModelID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app := &applicationdomain.Application{
		ID:              s.genID.Generate(),
		LawnID:          lawnID,
		ProductName:     productName,
		ApplicationDate: date,
		TiedGDDModelID:  tiedID,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := s.repo.LawnExists(ctx, tx, lawnID)
		if err != nil {
			return err
		}
		if !exists {
			return applicationdomain.ErrLawnNotFound
		}
		if err := s.repo.Insert(ctx, tx, app); err != nil {
			return err
		}
		return s.resetTiedModel(ctx, tx, app)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("application created",
		zap.String("application_id", app.ID.String()),
		zap.String("lawn_id", app.LawnID.String()),
		zap.Bool("tied", app.TiedGDDModelID != nil),
	)
	return toResponse(app), nil
}

func (s *Service) List(ctx context.Context, req applicationdomain.ListRequest) ([]applicationdomain.Response, error) {
	var filter applicationdomain.ListFilter
	if raw := strings.TrimSpace(req.LawnID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return nil, applicationdomain.ErrInvalidLawn
		}
		filter.LawnID = &id
	}
	modelID, err := parseOptionalModelID(req.TiedGDDModelID)
	if err != nil {
		return nil, err
	}
	filter.TiedGDDModelID = modelID

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]applicationdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*applicationdomain.Response, error) {
	app, err := s.find(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return toResponse(app), nil
}

// Update re-places the application reset on every change while the
// application is tied. An earlier reset from a previous date stays in the
// ledger.
func (s *Service) Update(ctx context.Context, req applicationdomain.UpdateRequest) (*applicationdomain.Response, error) {
	var updated *applicationdomain.Application
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := s.find(ctx, tx, req.ID)
		if err != nil {
			return err
		}

		if req.ProductName != nil {
			name := strings.TrimSpace(*req.ProductName)
			if name == "" {
				return applicationdomain.ErrInvalidProductName
			}
			app.ProductName = name
		}
		if req.ApplicationDate != nil {
			date, err := gdddomain.ParseDate(*req.ApplicationDate)
			if err != nil {
				return applicationdomain.ErrInvalidApplicationDate
			}
			app.ApplicationDate = date
		}
		if req.TiedGDDModelID != nil {
			tiedID, err := parseOptionalModelID(*req.TiedGDDModelID)
			if err != nil {
				return err
			}
			app.TiedGDDModelID = tiedID
		}
		if req.Notes != nil {
			app.Notes = strings.TrimSpace(*req.Notes)
		}

		app.UpdatedAt = time.Now().UTC()
		if err := s.repo.Update(ctx, tx, app); err != nil {
			return err
		}
		if err := s.resetTiedModel(ctx, tx, app); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		return nil, err
	}
	return toResponse(updated), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	app, err := s.find(ctx, s.db, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, s.db, app.ID)
}

func (s *Service) resetTiedModel(ctx context.Context, tx *gorm.DB, app *applicationdomain.Application) error {
	if app.TiedGDDModelID == nil {
		return nil
	}
	modelID := *app.TiedGDDModelID

	lawnID, err := s.repo.ModelLawnID(ctx, tx, modelID)
	if err != nil {
		return err
	}
	if lawnID == 0 {
		return applicationdomain.ErrModelNotFound
	}
	if lawnID != app.LawnID {
		return applicationdomain.ErrModelLawnMismatch
	}

	reset, err := s.ledger.ApplicationReset(ctx, tx, modelID, app.ApplicationDate)
	if err != nil {
		return err
	}
	_, err = s.enqueuer.EnqueueRecalculation(ctx, tx, taskdomain.EnqueueRequest{
		ModelID: modelID,
		Reason:  taskdomain.ReasonApplicationReset,
		Metadata: map[string]any{
			"application_id": app.ID.String(),
			"reset_date":     reset.ResetDate.Format(gdddomain.DateLayout),
		},
	})
	if err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordReset(ctx, string(gdddomain.ResetTypeApplication))
	}
	return nil
}

func (s *Service) find(ctx context.Context, db *gorm.DB, id string) (*applicationdomain.Application, error) {
	appID, err := applicationdomain.ParseID(strings.TrimSpace(id))
	if err != nil || appID == 0 {
		return nil, applicationdomain.ErrInvalidID
	}
	app, err := s.repo.FindByID(ctx, db, appID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, applicationdomain.ErrNotFound
	}
	return app, nil
}

func parseOptionalModelID(raw string) (*snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id == 0 {
		return nil, applicationdomain.ErrInvalidModel
	}
	return &id, nil
}

func toResponse(a *applicationdomain.Application) *applicationdomain.Response {
	var tied *string
	if a.TiedGDDModelID != nil {
		value := a.TiedGDDModelID.String()
		tied = &value
	}
	return &applicationdomain.Response{
		ID:              a.ID.String(),
		LawnID:          a.LawnID.String(),
		ProductName:     a.ProductName,
		ApplicationDate: a.ApplicationDate.Format(gdddomain.DateLayout),
		TiedGDDModelID:  tied,
		Notes:           a.Notes,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
