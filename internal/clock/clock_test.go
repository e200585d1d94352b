package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistorical(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewHistorical(start)
	assert.True(t, c.Time().Equal(start))

	later := start.Add(24 * time.Hour)
	c.Observe(later)
	assert.True(t, c.Time().Equal(later))

	c.Observe(start.Add(time.Hour))
	assert.Truef(t, c.Time().Equal(later), "clock moved backwards to %s", c.Time())

	c.Observe(time.Time{})
	assert.True(t, c.Time().Equal(later))
}

func TestLive(t *testing.T) {
	before := time.Now().UTC()
	var c Live
	c.Observe(before.Add(-time.Hour))
	now := c.Time()
	assert.False(t, now.Before(before))
	assert.Equal(t, time.UTC, now.Location())
}
