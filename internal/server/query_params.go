package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/turfkeeper/internal/clock"
	gdddomain "github.com/smallbiznis/turfkeeper/internal/gdd/domain"
)

type dateRangeQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

func pathID(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

// dateOrToday parses a YYYY-MM-DD query value, falling back to the current
// UTC day when it is empty.
func dateOrToday(value string, clk clock.Clock) (time.Time, error) {
	parsed, err := gdddomain.ParseOptionalDate(value)
	if err != nil {
		return time.Time{}, err
	}
	if parsed == nil {
		return clock.Today(clk), nil
	}
	return *parsed, nil
}
