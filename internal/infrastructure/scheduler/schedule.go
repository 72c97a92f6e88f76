package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULES
// ══════════════════════════════════════════════════════════════════════════════

// ParseSchedule accepts either "@every <duration>" or a five-field cron
// expression (minute hour day-of-month month day-of-week).
func ParseSchedule(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid interval %q: %w", rest, err)
		}
		return NewIntervalSchedule(d)
	}
	return ParseCronExpression(spec)
}

// IntervalSchedule runs a job at a fixed interval after each start.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an IntervalSchedule. Intervals under a second
// are rejected; the scheduler ticks once per second.
func NewIntervalSchedule(interval time.Duration) (*IntervalSchedule, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval must be at least 1s, got %s", interval)
	}
	return &IntervalSchedule{Interval: interval}, nil
}

// Next returns t plus the interval.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

func (s *IntervalSchedule) String() string {
	return "@every " + s.Interval.String()
}

// CronExpression is a parsed five-field cron expression. Each field is a
// bitmask of the allowed values.
//
//	"*/5 * * * *"  every 5 minutes
//	"0 3 * * *"    every day at 03:00
//	"30 2 * * 1"   Mondays at 02:30
type CronExpression struct {
	raw      string
	minutes  uint64
	hours    uint64
	days     uint64
	months   uint64
	weekdays uint64
}

type cronField struct {
	name     string
	min, max int
}

var cronFields = [5]cronField{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// ParseCronExpression parses expr. Each field supports *, n, n-m, */s,
// n-m/s and comma-separated lists of those.
func ParseCronExpression(expr string) (*CronExpression, error) {
	parts := strings.Fields(expr)
	if len(parts) != len(cronFields) {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(parts))
	}

	var masks [5]uint64
	for i, f := range cronFields {
		m, err := parseCronField(parts[i], f.min, f.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field %q: %w", f.name, parts[i], err)
		}
		masks[i] = m
	}

	return &CronExpression{
		raw:      expr,
		minutes:  masks[0],
		hours:    masks[1],
		days:     masks[2],
		months:   masks[3],
		weekdays: masks[4],
	}, nil
}

// MustParseCronExpression is ParseCronExpression that panics on error.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseCronField(field string, min, max int) (uint64, error) {
	var mask uint64
	for _, term := range strings.Split(field, ",") {
		rangePart, stepPart, hasStep := strings.Cut(term, "/")

		step := 1
		if hasStep {
			s, err := strconv.Atoi(stepPart)
			if err != nil || s <= 0 {
				return 0, fmt.Errorf("invalid step %q", stepPart)
			}
			step = s
		}

		var lo, hi int
		switch {
		case rangePart == "*":
			lo, hi = min, max
		case strings.Contains(rangePart, "-"):
			a, b, _ := strings.Cut(rangePart, "-")
			var err error
			if lo, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("invalid range start %q", a)
			}
			if hi, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("invalid range end %q", b)
			}
		default:
			v, err := strconv.Atoi(rangePart)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", rangePart)
			}
			lo, hi = v, v
			if hasStep {
				hi = max
			}
		}

		if lo < min || hi > max || lo > hi {
			return 0, fmt.Errorf("%q out of range [%d-%d]", term, min, max)
		}
		for v := lo; v <= hi; v += step {
			mask |= 1 << uint(v)
		}
	}
	return mask, nil
}

func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after t, or the zero
// time if nothing matches within four years (e.g. "0 0 31 2 *").
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)
	limit := next.AddDate(4, 0, 0)

	for next.Before(limit) {
		if ce.months&(1<<uint(next.Month())) == 0 {
			next = time.Date(next.Year(), next.Month()+1, 1, 0, 0, 0, 0, next.Location())
			continue
		}
		if ce.days&(1<<uint(next.Day())) == 0 || ce.weekdays&(1<<uint(next.Weekday())) == 0 {
			next = time.Date(next.Year(), next.Month(), next.Day()+1, 0, 0, 0, 0, next.Location())
			continue
		}
		if ce.hours&(1<<uint(next.Hour())) == 0 {
			next = next.Truncate(time.Hour).Add(time.Hour)
			continue
		}
		if ce.minutes&(1<<uint(next.Minute())) == 0 {
			next = next.Add(time.Minute)
			continue
		}
		return next
	}
	return time.Time{}
}
