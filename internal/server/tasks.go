package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetTaskByID(c *gin.Context) {
	resp, err := s.taskSvc.Get(c.Request.Context(), pathID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
