package service

import (
	"context"
	"strconv"
	"strings"

	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
)

func (s *Service) ListValues(ctx context.Context, req gdddomain.ListValuesRequest) ([]gdddomain.ValueResponse, error) {
	model, err := s.findModel(ctx, s.db, req.ModelID)
	if err != nil {
		return nil, err
	}

	filter := gdddomain.ValueFilter{ModelID: model.ID}
	if raw := strings.TrimSpace(req.Run); raw != "" {
		run, err := strconv.Atoi(raw)
		if err != nil || run < 1 {
			return nil, gdddomain.ErrInvalidRun
		}
		filter.Run = &run
	}
	from, err := gdddomain.ParseOptionalDate(req.From)
	if err != nil {
		return nil, gdddomain.ErrInvalidDateRange
	}
	to, err := gdddomain.ParseOptionalDate(req.To)
	if err != nil {
		return nil, gdddomain.ErrInvalidDateRange
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, gdddomain.ErrInvalidDateRange
	}
	filter.From = from
	filter.To = to

	values, err := s.repo.ListValues(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	resp := make([]gdddomain.ValueResponse, 0, len(values))
	for _, v := range values {
		resp = append(resp, gdddomain.ValueResponse{
			Date:          v.Date.Format(gdddomain.DateLayout),
			DailyGDD:      v.DailyGDD,
			CumulativeGDD: v.CumulativeGDD,
			IsForecast:    v.IsForecast,
			Run:           v.Run,
		})
	}
	return resp, nil
}

// ListRuns summarises each ledger segment. A closed run ends the day
// before the next reset; the open run ends at its last computed day.
func (s *Service) ListRuns(ctx context.Context, modelID string) ([]gdddomain.RunSummary, error) {
	model, err := s.findModel(ctx, s.db, modelID)
	if err != nil {
		return nil, err
	}
	resets, err := s.repo.ListResets(ctx, s.db, model.ID)
	if err != nil {
		return nil, err
	}
	values, err := s.repo.ListValues(ctx, s.db, gdddomain.ValueFilter{ModelID: model.ID})
	if err != nil {
		return nil, err
	}

	byRun := make(map[int][]gdddomain.Value, len(resets))
	for _, v := range values {
		byRun[v.Run] = append(byRun[v.Run], v)
	}

	runs := make([]gdddomain.RunSummary, 0, len(resets))
	for i, r := range resets {
		summary := gdddomain.RunSummary{
			Run:       r.RunNumber,
			ResetType: r.ResetType,
			StartDate: r.ResetDate.Format(gdddomain.DateLayout),
		}
		days := byRun[r.RunNumber]
		summary.Days = len(days)
		for j := len(days) - 1; j >= 0; j-- {
			if days[j].CumulativeGDD != nil {
				total := *days[j].CumulativeGDD
				summary.FinalCumulative = &total
				break
			}
		}
		switch {
		case i < len(resets)-1:
			summary.EndDate = resets[i+1].ResetDate.AddDate(0, 0, -1).Format(gdddomain.DateLayout)
		case len(days) > 0:
			summary.EndDate = days[len(days)-1].Date.Format(gdddomain.DateLayout)
		}
		runs = append(runs, summary)
	}
	return runs, nil
}
