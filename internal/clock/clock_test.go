package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDate_UsesLocation(t *testing.T) {
	jakarta, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)

	// 18:30 UTC is already the next day in Jakarta (UTC+7).
	ts := time.Date(2026, 10, 16, 18, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-10-16", Date(ts))
	assert.Equal(t, "2026-10-17", Date(ts.In(jakarta)))
}

func TestManual(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	c := NewManual(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestSystem_Location(t *testing.T) {
	c := System{Location: time.UTC}
	assert.Equal(t, time.UTC, c.Now().Location())
}
