package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	locationdomain "github.com/smallbiznis/turfkeeper/internal/location/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  locationdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  locationdomain.Repository
	genID *snowflake.Node
}

func New(p Params) locationdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("location.service"),
		repo:  p.Repo,
		genID: p.GenID,
	}
}

func (s *Service) Create(ctx context.Context, req locationdomain.CreateRequest) (*locationdomain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, locationdomain.ErrInvalidName
	}
	if err := validateCoordinates(req.Latitude, req.Longitude); err != nil {
		return nil, err
	}
	timezone, err := normalizeTimezone(req.Timezone)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	l := &locationdomain.Location{
		ID:        s.genID.Generate(),
		Name:      name,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Timezone:  timezone,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, l); err != nil {
		return nil, err
	}

	s.log.Info("location created", zap.String("location_id", l.ID.String()))
	return toResponse(l), nil
}

func (s *Service) List(ctx context.Context) ([]locationdomain.Response, error) {
	items, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}

	resp := make([]locationdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, *toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*locationdomain.Response, error) {
	item, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(item), nil
}

func (s *Service) Update(ctx context.Context, req locationdomain.UpdateRequest) (*locationdomain.Response, error) {
	item, err := s.find(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, locationdomain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Latitude != nil {
		item.Latitude = req.Latitude
	}
	if req.Longitude != nil {
		item.Longitude = req.Longitude
	}
	if err := validateCoordinates(item.Latitude, item.Longitude); err != nil {
		return nil, err
	}
	if req.Timezone != nil {
		timezone, err := normalizeTimezone(*req.Timezone)
		if err != nil {
			return nil, err
		}
		item.Timezone = timezone
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
		lawns, err := s.repo.CountLawns(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if lawns > 0 {
			return locationdomain.ErrInUse
		}
		if err := tx.WithContext(ctx).Exec(`DELETE FROM weather_daily WHERE location_id = ?`, item.ID).Error; err != nil {
			return err
		}
		return s.repo.Delete(ctx, tx, item.ID)
	})
}

func (s *Service) find(ctx context.Context, id string) (*locationdomain.Location, error) {
	locationID, err := locationdomain.ParseID(strings.TrimSpace(id))
	if err != nil || locationID == 0 {
		return nil, locationdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, locationID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, locationdomain.ErrNotFound
	}
	return item, nil
}

func validateCoordinates(lat, lon *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return locationdomain.ErrInvalidLatitude
	}
	if lon != nil && (*lon < -180 || *lon > 180) {
		return locationdomain.ErrInvalidLongitude
	}
	return nil
}

func normalizeTimezone(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "UTC", nil
	}
	if _, err := time.LoadLocation(value); err != nil {
		return "", locationdomain.ErrInvalidTimezone
	}
	return value, nil
}

func toResponse(l *locationdomain.Location) *locationdomain.Response {
	return &locationdomain.Response{
		ID:        l.ID.String(),
		Name:      l.Name,
		Latitude:  l.Latitude,
		Longitude: l.Longitude,
		Timezone:  l.Timezone,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}
