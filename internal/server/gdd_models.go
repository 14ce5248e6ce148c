package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
	taskdomain "github.com/smallbiznis/turfkeeper/internal/task/domain"
	"github.com/smallbiznis/turfkeeper/pkg/db/pagination"
)

type createGDDModelRequest struct {
	LawnID           string   `json:"lawn_id"`
	Name             string   `json:"name"`
	BaseTemp         *float64 `json:"base_temp"`
	Unit             string   `json:"unit"`
	StartDate        string   `json:"start_date"`
	Threshold        *float64 `json:"threshold"`
	ResetOnThreshold bool     `json:"reset_on_threshold"`
}

type updateGDDModelRequest struct {
	Name             *string  `json:"name,omitempty"`
	Unit             *string  `json:"unit,omitempty"`
	StartDate        *string  `json:"start_date,omitempty"`
	BaseTemp         *float64 `json:"base_temp,omitempty"`
	Threshold        *float64 `json:"threshold,omitempty"`
	ResetOnThreshold *bool    `json:"reset_on_threshold,omitempty"`
	EffectiveFrom    *string  `json:"effective_from,omitempty"`
}

type manualResetRequest struct {
	Date string `json:"date"`
}

type applyParametersRequest struct {
	BaseTemp         *float64 `json:"base_temp"`
	Threshold        *float64 `json:"threshold"`
	ResetOnThreshold *bool    `json:"reset_on_threshold"`
	EffectiveFrom    string   `json:"effective_from"`
}

func (s *Server) CreateGDDModel(c *gin.Context) {
	var req createGDDModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gddSvc.CreateModel(c.Request.Context(), gdddomain.CreateModelRequest{
		LawnID:           strings.TrimSpace(req.LawnID),
		Name:             strings.TrimSpace(req.Name),
		BaseTemp:         req.BaseTemp,
		Unit:             strings.TrimSpace(req.Unit),
		StartDate:        strings.TrimSpace(req.StartDate),
		Threshold:        req.Threshold,
		ResetOnThreshold: req.ResetOnThreshold,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListGDDModels(c *gin.Context) {
	var query struct {
		LawnID string `form:"lawn_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gddSvc.ListModels(c.Request.Context(), gdddomain.ListModelsRequest{
		LawnID: strings.TrimSpace(query.LawnID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetGDDModelByID(c *gin.Context) {
	resp, err := s.gddSvc.GetModel(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateGDDModel(c *gin.Context) {
	var req updateGDDModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gddSvc.UpdateModel(c.Request.Context(), gdddomain.UpdateModelRequest{
		ID:               pathID(c),
		Name:             req.Name,
		Unit:             req.Unit,
		StartDate:        req.StartDate,
		BaseTemp:         req.BaseTemp,
		Threshold:        req.Threshold,
		ResetOnThreshold: req.ResetOnThreshold,
		EffectiveFrom:    req.EffectiveFrom,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteGDDModel(c *gin.Context) {
	if err := s.gddSvc.DeleteModel(c.Request.Context(), pathID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// CreateManualReset closes the current run on the given date; the next run
// starts the following day.
func (s *Server) CreateManualReset(c *gin.Context) {
	var req manualResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gddSvc.ManualReset(c.Request.Context(), gdddomain.ManualResetRequest{
		ModelID: pathID(c),
		Date:    strings.TrimSpace(req.Date),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListResets(c *gin.Context) {
	resp, err := s.gddSvc.ListResets(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListParameterHistory(c *gin.Context) {
	resp, err := s.gddSvc.ListParameterHistory(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ApplyParameters(c *gin.Context) {
	var req applyParametersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gddSvc.ApplyParameters(c.Request.Context(), gdddomain.ApplyParametersRequest{
		ModelID:          pathID(c),
		BaseTemp:         req.BaseTemp,
		Threshold:        req.Threshold,
		ResetOnThreshold: req.ResetOnThreshold,
		EffectiveFrom:    strings.TrimSpace(req.EffectiveFrom),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetEffectiveParameters(c *gin.Context) {
	date, err := dateOrToday(c.Query("date"), s.clock)
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
		return
	}

	resp, err := s.gddSvc.EffectiveParameters(c.Request.Context(), pathID(c), date)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// RequestRecalculation queues a rebuild of the model's value series and
// returns the task that will run it.
func (s *Server) RequestRecalculation(c *gin.Context) {
	ctx := c.Request.Context()

	model, err := s.gddSvc.GetModel(ctx, pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	modelID, err := gdddomain.ParseID(model.ID)
	if err != nil {
		AbortWithError(c, gdddomain.ErrInvalidID)
		return
	}

	task, err := s.enqueuer.EnqueueRecalculation(ctx, s.db.WithContext(ctx), taskdomain.EnqueueRequest{
		ModelID: modelID,
		Reason:  taskdomain.ReasonRequested,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.taskSvc.Get(ctx, task.ID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": resp})
}

func (s *Server) ListValues(c *gin.Context) {
	var query struct {
		Run  string `form:"run"`
		From string `form:"from"`
		To   string `form:"to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.gddSvc.ListValues(c.Request.Context(), gdddomain.ListValuesRequest{
		ModelID: pathID(c),
		Run:     strings.TrimSpace(query.Run),
		From:    strings.TrimSpace(query.From),
		To:      strings.TrimSpace(query.To),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRuns(c *gin.Context) {
	resp, err := s.gddSvc.ListRuns(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListModelTasks(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if _, err := s.gddSvc.GetModel(c.Request.Context(), pathID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.taskSvc.ListByModel(c.Request.Context(), taskdomain.ListRequest{
		ModelID:    pathID(c),
		Pagination: query,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
