package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	lawndomain "github.com/smallbiznis/turfkeeper/internal/lawn/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  lawndomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  lawndomain.Repository
	genID *snowflake.Node
}

func New(p Params) lawndomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("lawn.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req lawndomain.CreateRequest) (*lawndomain.Response, error) {
	locationID, err := snowflake.ParseString(strings.TrimSpace(req.LocationID))
	if err != nil || locationID == 0 {
		return nil, lawndomain.ErrInvalidLocation
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, lawndomain.ErrInvalidName
	}
	grassType, err := normalizeGrassType(req.GrassType)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.LocationExists(ctx, s.db, locationID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, lawndomain.ErrLocationNotFound
	}

	now := time.Now().UTC()
	l := &lawndomain.Lawn{
		ID:         s.genID.Generate(),
		LocationID: locationID,
		Name:       name,
		GrassType:  grassType,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, l); err != nil {
		return nil, err
	}

	s.log.Info("lawn created",
		zap.String("lawn_id", l.ID.String()),
		zap.String("location_id", l.LocationID.String()),
	)
	return toResponse(l), nil
}

func (s *Service) List(ctx context.Context, req lawndomain.ListRequest) ([]lawndomain.Response, error) {
	var locationID *snowflake.ID
	if raw := strings.TrimSpace(req.LocationID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return nil, lawndomain.ErrInvalidLocation
		}
		locationID = &id
	}

	items, err := s.repo.List(ctx, s.db, locationID)
	if err != nil {
		return nil, err
	}

	resp := make([]lawndomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*lawndomain.Response, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) Update(ctx context.Context, req lawndomain.UpdateRequest) (*lawndomain.Response, error) {
	item, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, lawndomain.ErrInvalidName
		}
		item.Name = name
	}
	if req.GrassType != nil {
		grassType, err := normalizeGrassType(*req.GrassType)
		if err != nil {
			return nil, err
		}
		item.GrassType = grassType
	}

	item.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	item, err := s.find(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dependents, err := s.repo.CountDependents(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if dependents > 0 {
			return lawndomain.ErrInUse
		}
		return s.repo.Delete(ctx, tx, item.ID)
	})
}

func (s *Service) find(ctx context.Context, id string) (*lawndomain.Lawn, error) {
	lawnID, err := lawndomain.ParseID(strings.TrimSpace(id))
	if err != nil || lawnID == 0 {
		return nil, lawndomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, lawnID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, lawndomain.ErrNotFound
	}
	return item, nil
}

func normalizeGrassType(value string) (string, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "", lawndomain.GrassTypeCoolSeason, lawndomain.GrassTypeWarmSeason:
		return value, nil
	default:
		return "", lawndomain.ErrInvalidGrassType
	}
}

func toResponse(l *lawndomain.Lawn) *lawndomain.Response {
	return &lawndomain.Response{
		ID:         l.ID.String(),
		LocationID: l.LocationID.String(),
		Name:       l.Name,
		GrassType:  l.GrassType,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}
