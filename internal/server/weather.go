package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	weatherdomain "github.com/smallbiznis/turfkeeper/internal/weather/domain"
)

type upsertWeatherRequest struct {
	Records []weatherdomain.RecordInput `json:"records"`
}

// UpsertWeather writes daily readings for a location. Every GDD model on a
// lawn at the location gets a recalculation task in the same transaction.
func (s *Server) UpsertWeather(c *gin.Context) {
	var req upsertWeatherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.weatherSvc.Upsert(c.Request.Context(), weatherdomain.UpsertRequest{
		LocationID: pathID(c),
		Records:    req.Records,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": resp})
}

func (s *Server) ListWeather(c *gin.Context) {
	var query dateRangeQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.weatherSvc.List(c.Request.Context(), weatherdomain.ListRequest{
		LocationID: pathID(c),
		From:       query.From,
		To:         query.To,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
