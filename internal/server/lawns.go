package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lawndomain "github.com/smallbiznis/turfkeeper/internal/lawn/domain"
)

type createLawnRequest struct {
	LocationID string `json:"location_id"`
	Name       string `json:"name"`
	GrassType  string `json:"grass_type"`
}

type updateLawnRequest struct {
	Name      *string `json:"name,omitempty"`
	GrassType *string `json:"grass_type,omitempty"`
}

func (s *Server) CreateLawn(c *gin.Context) {
	var req createLawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lawnSvc.Create(c.Request.Context(), lawndomain.CreateRequest{
		LocationID: strings.TrimSpace(req.LocationID),
		Name:       strings.TrimSpace(req.Name),
		GrassType:  strings.TrimSpace(req.GrassType),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListLawns(c *gin.Context) {
	var query struct {
		LocationID string `form:"location_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lawnSvc.List(c.Request.Context(), lawndomain.ListRequest{
		LocationID: strings.TrimSpace(query.LocationID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLawnByID(c *gin.Context) {
	resp, err := s.lawnSvc.GetByID(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateLawn(c *gin.Context) {
	var req updateLawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.lawnSvc.Update(c.Request.Context(), lawndomain.UpdateRequest{
		ID:        pathID(c),
		Name:      req.Name,
		GrassType: req.GrassType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteLawn(c *gin.Context) {
	if err := s.lawnSvc.Delete(c.Request.Context(), pathID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
