package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ledger owns every write to gdd_resets except the engine's threshold
// entries. All methods run on the caller's transaction.
type ledger struct {
	repo  gdddomain.Repository
	genID *snowflake.Node
	log   *zap.Logger
}

type LedgerParams struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  gdddomain.Repository
}

func NewResetLedger(p LedgerParams) gdddomain.ResetLedger {
	return &ledger{
		repo:  p.Repo,
		genID: p.GenID,
		log:   p.Log.Named("gdd.ledger"),
	}
}

func (l *ledger) InsertInitial(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, startDate time.Time) error {
	resets, err := l.repo.ListResets(ctx, tx, modelID)
	if err != nil {
		return err
	}
	if len(resets) > 0 {
		return gdddomain.ErrInitialResetExists
	}
	return l.repo.InsertReset(ctx, tx, &gdddomain.Reset{
		ID:         l.genID.Generate(),
		GDDModelID: modelID,
		ResetDate:  gdddomain.Day(startDate),
		RunNumber:  1,
		ResetType:  gdddomain.ResetTypeInitial,
		CreatedAt:  time.Now().UTC(),
	})
}

func (l *ledger) ApplicationReset(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, date time.Time) (*gdddomain.Reset, error) {
	return l.place(ctx, tx, modelID, gdddomain.Day(date), gdddomain.ResetTypeApplication)
}

// place writes a reset at date and discards every entry on or after it,
// since later segments no longer start where they did.
func (l *ledger) place(ctx context.Context, tx *gorm.DB, modelID snowflake.ID, date time.Time, resetType gdddomain.ResetType) (*gdddomain.Reset, error) {
	model, err := l.repo.FindModel(ctx, tx, modelID)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, gdddomain.ErrModelNotFound
	}
	resets, err := l.repo.ListResets(ctx, tx, modelID)
	if err != nil {
		return nil, err
	}
	if len(resets) == 0 {
		return nil, gdddomain.ErrNoResets
	}
	// the initial entry must stay the single earliest one
	if !date.After(initialDate(resets)) {
		return nil, gdddomain.ErrInvalidReset
	}

	if err := l.repo.DeleteResetAt(ctx, tx, modelID, date); err != nil {
		return nil, err
	}
	if err := l.repo.DeleteResetsAfter(ctx, tx, modelID, date); err != nil {
		return nil, err
	}
	maxRun, err := l.repo.MaxRunNumber(ctx, tx, modelID)
	if err != nil {
		return nil, err
	}

	reset := &gdddomain.Reset{
		ID:         l.genID.Generate(),
		GDDModelID: modelID,
		ResetDate:  date,
		RunNumber:  maxRun + 1,
		ResetType:  resetType,
		CreatedAt:  time.Now().UTC(),
	}
	if err := l.repo.InsertReset(ctx, tx, reset); err != nil {
		return nil, err
	}

	l.log.Info("reset placed",
		zap.String("gdd_model_id", modelID.String()),
		zap.String("reset_date", date.Format(gdddomain.DateLayout)),
		zap.Int("run_number", reset.RunNumber),
		zap.String("reset_type", string(resetType)),
	)
	return reset, nil
}

func initialDate(resets []gdddomain.Reset) time.Time {
	for _, r := range resets {
		if r.ResetType == gdddomain.ResetTypeInitial {
			return r.ResetDate
		}
	}
	return resets[0].ResetDate
}

// ManualReset ends the current run on req.Date; the new run starts the day
// after.
func (s *Service) ManualReset(ctx context.Context, req gdddomain.ManualResetRequest) (*gdddomain.ResetResponse, error) {
	modelID, err := gdddomain.ParseID(strings.TrimSpace(req.ModelID))
	if err != nil || modelID == 0 {
		return nil, gdddomain.ErrInvalidID
	}
	date, err := gdddomain.ParseDate(req.Date)
	if err != nil {
		return nil, gdddomain.ErrInvalidReset
	}
	resetDate := date.AddDate(0, 0, 1)

	var reset *gdddomain.Reset
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		placed, err := s.ledger.place(ctx, tx, modelID, resetDate, gdddomain.ResetTypeManual)
		if err != nil {
			return err
		}
		reset = placed
		return s.enqueue(ctx, tx, modelID, taskdomain.ReasonManualReset, map[string]any{
			"reset_date": resetDate.Format(gdddomain.DateLayout),
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordReset(ctx, gdddomain.ResetTypeManual)
	return toResetResponse(reset), nil
}

func (s *Service) ListResets(ctx context.Context, modelID string) ([]gdddomain.ResetResponse, error) {
	model, err := s.findModel(ctx, s.db, modelID)
	if err != nil {
		return nil, err
	}
	resets, err := s.repo.ListResets(ctx, s.db, model.ID)
	if err != nil {
		return nil, err
	}
	resp := make([]gdddomain.ResetResponse, 0, len(resets))
	for i := range resets {
		resp = append(resp, *toResetResponse(&resets[i]))
	}
	return resp, nil
}

func toResetResponse(r *gdddomain.Reset) *gdddomain.ResetResponse {
	return &gdddomain.ResetResponse{
		ID:        r.ID.String(),
		ModelID:   r.GDDModelID.String(),
		ResetDate: gdddomain.Day(r.ResetDate).Format(gdddomain.DateLayout),
		RunNumber: r.RunNumber,
		ResetType: r.ResetType,
		CreatedAt: r.CreatedAt,
	}
}
