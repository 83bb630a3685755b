// Package schedule implements the pure, side-effect-free mapping from a
// Job's schedule specification to dispatch instants, grounded on GoFire's
// internal/app/cron_job_manager.go calculateNextRun helper — but delegating
// cron parsing to github.com/robfig/cron/v3 instead of a hand-rolled
// parser, since GoFire already depends on it for exactly this purpose.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"gofire/internal/models"
)

var standardParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
var secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseCron validates a 5- or 6-field cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	fields := len(splitFields(expr))
	switch fields {
	case 5:
		return standardParser.Parse(expr)
	case 6:
		return secondsParser.Parse(expr)
	default:
		return nil, fmt.Errorf("cron: invalid number of fields in spec %q", expr)
	}
}

func splitFields(expr string) []string {
	var fields []string
	start := -1
	for i, r := range expr {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				fields = append(fields, expr[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, expr[start:])
	}
	return fields
}

// intervalDuration returns the fixed-duration representation of a
// MINUTE/HOUR/DAY/WEEK interval, or false for MONTH/YEAR which have no
// fixed-duration representation (spec.md §4.1, §9).
func intervalDuration(interval models.Interval, value int) (time.Duration, bool) {
	switch interval {
	case models.IntervalMinute:
		return time.Duration(value) * time.Minute, true
	case models.IntervalHour:
		return time.Duration(value) * time.Hour, true
	case models.IntervalDay:
		return time.Duration(value) * 24 * time.Hour, true
	case models.IntervalWeek:
		return time.Duration(value) * 7 * 24 * time.Hour, true
	default:
		return 0, false
	}
}

// addInterval performs calendar arithmetic for RECURRING schedules, so
// MONTH/YEAR respect month lengths and year boundaries and WEEK is 7
// calendar days (spec.md §4.1).
func addInterval(from time.Time, interval models.Interval, value int) time.Time {
	switch interval {
	case models.IntervalMinute:
		return from.Add(time.Duration(value) * time.Minute)
	case models.IntervalHour:
		return from.Add(time.Duration(value) * time.Hour)
	case models.IntervalDay:
		return from.AddDate(0, 0, value)
	case models.IntervalWeek:
		return from.AddDate(0, 0, value*7)
	case models.IntervalMonth:
		return from.AddDate(0, value, 0)
	case models.IntervalYear:
		return from.AddDate(value, 0, 0)
	default:
		return from
	}
}

// InitialDelay returns the delay until a SPECIFIC_TIME job's instant, or
// nil if the schedule type uses a repeat plan instead, or if the instant
// has already passed (spec.md §4.1, §8 boundary: "exactly now" is past).
func InitialDelay(job *models.Job) *time.Duration {
	if job.ScheduleType != models.ScheduleSpecificTime || job.SpecificTime == nil {
		return nil
	}
	d := time.Until(*job.SpecificTime)
	if d <= 0 {
		return nil
	}
	return &d
}

// RepeatPlan computes the Dispatch Queue's repeating registration for CRON
// and fixed-duration RECURRING schedules. Returns nil for SPECIFIC_TIME and
// for RECURRING MONTH/YEAR (those are re-scheduled per dispatch instead,
// see SPEC_FULL.md §4.1).
func RepeatPlan(job *models.Job) *models.RepeatPlan {
	switch job.ScheduleType {
	case models.ScheduleCron:
		if _, err := ParseCron(job.CronExpression); err != nil {
			return nil
		}
		return &models.RepeatPlan{Cron: job.CronExpression, IsCron: true}
	case models.ScheduleRecurring:
		if job.IntervalValue <= 0 {
			return nil
		}
		d, ok := intervalDuration(job.Interval, job.IntervalValue)
		if !ok {
			return nil
		}
		return &models.RepeatPlan{Every: d, IsEvery: true}
	default:
		return nil
	}
}

// NextRun returns the first dispatch instant strictly after from, consistent
// with the Job's schedule, or nil if there is none (a completed one-shot).
func NextRun(job *models.Job, from time.Time) *time.Time {
	switch job.ScheduleType {
	case models.ScheduleCron:
		sched, err := ParseCron(job.CronExpression)
		if err != nil {
			return nil
		}
		next := sched.Next(from)
		return &next
	case models.ScheduleSpecificTime:
		if job.SpecificTime == nil || !job.SpecificTime.After(from) {
			return nil
		}
		t := *job.SpecificTime
		return &t
	case models.ScheduleRecurring:
		if job.IntervalValue <= 0 {
			return nil
		}
		next := addInterval(from, job.Interval, job.IntervalValue)
		return &next
	default:
		return nil
	}
}
