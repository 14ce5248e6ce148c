package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestToday(t *testing.T) {
	c := NewFakeClock(time.Date(2024, 6, 15, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), Today(c))

	c.Advance(2 * time.Minute)
	assert.Equal(t, time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC), Today(c))
}
