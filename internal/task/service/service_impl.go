package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"github.com/smallbiznis/turfkeeper/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo taskdomain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo taskdomain.Repository
}

func New(p Params) taskdomain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("task.service"),
		repo: p.Repo,
	}
}

func (s *Service) Get(ctx context.Context, id string) (*taskdomain.Response, error) {
	taskID, err := taskdomain.ParseID(strings.TrimSpace(id))
	if err != nil || taskID == 0 {
		return nil, taskdomain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, taskID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, taskdomain.ErrNotFound
	}
	return toResponse(item), nil
}

func (s *Service) ListByModel(ctx context.Context, req taskdomain.ListRequest) (*taskdomain.ListResponse, error) {
	modelID, err := snowflake.ParseString(strings.TrimSpace(req.ModelID))
	if err != nil || modelID == 0 {
		return nil, taskdomain.ErrInvalidModel
	}

	var after *taskdomain.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		after, err = decodeCursor(token)
		if err != nil {
			return nil, taskdomain.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.repo.ListByModel(ctx, s.db, modelID, after, limit+1)
	if err != nil {
		return nil, err
	}

	page, info := pagination.BuildCursorPageInfo(items, limit, func(t *taskdomain.Task) string {
		token, _ := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		return token
	})

	resp := &taskdomain.ListResponse{
		Tasks:    make([]taskdomain.Response, 0, len(page)),
		PageInfo: info,
	}
	for _, item := range page {
		resp.Tasks = append(resp.Tasks, *toResponse(item))
	}
	return resp, nil
}

func decodeCursor(token string) (*taskdomain.Cursor, error) {
	raw, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(raw.ID, 10, 64)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, raw.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &taskdomain.Cursor{ID: snowflake.ID(id), CreatedAt: createdAt.UTC()}, nil
}

func toResponse(t *taskdomain.Task) *taskdomain.Response {
	resp := &taskdomain.Response{
		ID:          t.ID.String(),
		Kind:        t.Kind,
		Reason:      t.Reason,
		Status:      t.Status,
		Attempts:    t.Attempts,
		RowsWritten: t.RowsWritten,
		Metadata:    t.Metadata,
		StartedAt:   t.StartedAt,
		FinishedAt:  t.FinishedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.GDDModelID != nil {
		resp.ModelID = t.GDDModelID.String()
	}
	if t.LastError != nil {
		resp.LastError = *t.LastError
	}
	return resp
}
