package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	applicationdomain "github.com/smallbiznis/turfkeeper/internal/application/domain"
)

type createApplicationRequest struct {
	LawnID          string `json:"lawn_id"`
	ProductName     string `json:"product_name"`
	ApplicationDate string `json:"application_date"`
	TiedGDDModelID  string `json:"tied_gdd_model_id"`
	Notes           string `json:"notes"`
}

type updateApplicationRequest struct {
	ProductName     *string `json:"product_name,omitempty"`
	ApplicationDate *string `json:"application_date,omitempty"`
	TiedGDDModelID  *string `json:"tied_gdd_model_id,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

// CreateApplication records a product application. When tied to a GDD model
// the application date becomes a reset in that model's ledger.
func (s *Server) CreateApplication(c *gin.Context) {
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.Create(c.Request.Context(), applicationdomain.CreateRequest{
		LawnID:          strings.TrimSpace(req.LawnID),
		ProductName:     strings.TrimSpace(req.ProductName),
		ApplicationDate: strings.TrimSpace(req.ApplicationDate),
		TiedGDDModelID:  strings.TrimSpace(req.TiedGDDModelID),
		Notes:           req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListApplications(c *gin.Context) {
	var query struct {
		LawnID         string `form:"lawn_id"`
		TiedGDDModelID string `form:"tied_gdd_model_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.List(c.Request.Context(), applicationdomain.ListRequest{
		LawnID:         strings.TrimSpace(query.LawnID),
		TiedGDDModelID: strings.TrimSpace(query.TiedGDDModelID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetApplicationByID(c *gin.Context) {
	resp, err := s.applicationSvc.GetByID(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateApplication(c *gin.Context) {
	var req updateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.applicationSvc.Update(c.Request.Context(), applicationdomain.UpdateRequest{
		ID:              pathID(c),
		ProductName:     req.ProductName,
		ApplicationDate: req.ApplicationDate,
		TiedGDDModelID:  req.TiedGDDModelID,
		Notes:           req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteApplication(c *gin.Context) {
	if err := s.applicationSvc.Delete(c.Request.Context(), pathID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
