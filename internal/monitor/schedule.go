package monitor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is a normalized refresh schedule.
type Schedule struct {
	// Cron is always set; intervals become "@every <d>".
	Cron string
	// Every is the fixed interval, 0 for cron expressions.
	Every time.Duration
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// ParseSchedule accepts:
//   - cron: "*/5 * * * *", "@hourly", "@every 5m" (or forced with "cron:")
//   - interval HH:MM: "00:30"
//   - Go duration: "5m", "1h30m" (or forced with "every:")
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return cronSchedule(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(strings.TrimSpace(s[len("every:"):]))
		if err != nil {
			return Schedule{}, err
		}
		return intervalSchedule(d), nil
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return cronSchedule(s)
	}

	d, err := parseInterval(s)
	if err != nil {
		return Schedule{}, fmt.Errorf(
			"invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '00:30', or duration like '5m')", raw)
	}
	return intervalSchedule(d), nil
}

func cronSchedule(expr string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron schedule required")
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	out := Schedule{Cron: expr}
	if every, ok := sched.(cron.ConstantDelaySchedule); ok {
		out.Every = every.Delay
	}
	return out, nil
}

func intervalSchedule(d time.Duration) Schedule {
	return Schedule{Cron: "@every " + d.String(), Every: d}
}

func parseInterval(v string) (time.Duration, error) {
	if v == "" {
		return 0, fmt.Errorf("interval required")
	}
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, fmt.Errorf("invalid interval %q: %w", v, err)
		}
	}
	if d < time.Second {
		return 0, fmt.Errorf("interval must be >= 1s")
	}
	return d, nil
}
