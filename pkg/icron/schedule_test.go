package icron

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	ref := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		expr string
		next time.Time
	}{
		{"@every 10s", ref.Add(10 * time.Second)},
		{"", ref.Add(15 * time.Second)},
		{"*/5 * * * *", ref.Add(5 * time.Minute)},
		{"30 * * * * *", ref.Add(30 * time.Second)},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := ParseSchedule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.next, s.Next(ref))
		})
	}

	_, err := ParseSchedule("every now and then")
	assert.Error(t, err)
}

func TestGetTriggerInfo(t *testing.T) {
	ref := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	info, err := GetTriggerInfo("@every 30s", ref)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, info.TimeUntilNext)
	assert.Equal(t, 30*time.Second, info.Interval)
}
