package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	cases := []struct {
		in    string
		cron  string
		every time.Duration
	}{
		{"5m", "@every 5m0s", 5 * time.Minute},
		{"00:30", "@every 30m0s", 30 * time.Minute},
		{"every:1h", "@every 1h0m0s", time.Hour},
		{"@every 2m", "@every 2m", 2 * time.Minute},
		{"*/5 * * * *", "*/5 * * * *", 0},
		{"cron:@hourly", "@hourly", 0},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSchedule(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.cron, got.Cron)
			assert.Equal(t, tc.every, got.Every)
		})
	}
}

func TestParseScheduleErrors(t *testing.T) {
	for _, in := range []string{"", "soon", "00:75", "500ms", "* * *", "cron:"} {
		_, err := ParseSchedule(in)
		assert.Error(t, err, in)
	}
}
