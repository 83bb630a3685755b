package coordinator

import (
	"net/url"
	"time"

	"gofire/internal/constants"
	"gofire/internal/errs"
	"gofire/internal/models"
	"gofire/internal/schedule"
	"gofire/internal/state"
)

// JobInput is the request shape for Create and Update, grounded on
// GoFire's internal/gofire/job_manager.go Schedule* family of methods
// (name, expression/args, handler) collapsed into the single schedule_type
// entity spec.md §3 describes.
//
// Status is only consulted by Update (spec.md §9's third Open Question:
// Update writes whatever status is in the request, defaulting to ACTIVE
// when absent). Create always starts a Job ACTIVE regardless of Status.
type JobInput struct {
	Name           string
	Description    string
	Target         string
	Payload        []byte
	ScheduleType   models.ScheduleType
	CronExpression string
	SpecificTime   *time.Time
	Interval       models.Interval
	IntervalValue  int
	Status         state.Status
}

// validate enforces spec.md §4.5 step 1: fields must be internally
// consistent with schedule_type, and common Job invariants (name, target,
// payload size) always apply regardless of schedule_type.
func validate(input JobInput) *errs.ValidationErrors {
	var verrs errs.ValidationErrors

	if input.Name == "" {
		verrs.Add(errs.New(errs.KindValidation, "name is required"))
	}
	if len(input.Payload) > constants.MaxPayloadBytes {
		verrs.Add(errs.New(errs.KindValidation, "payload exceeds 1 MiB"))
	}
	if u, err := url.Parse(input.Target); err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		verrs.Add(errs.New(errs.KindValidation, "target must be an absolute http or https URL"))
	}
	if input.Status != "" && !input.Status.Valid() {
		verrs.Add(errs.New(errs.KindValidation, "status must be one of ACTIVE, INACTIVE, FAILED"))
	}

	switch input.ScheduleType {
	case models.ScheduleCron:
		if input.CronExpression == "" {
			verrs.Add(errs.New(errs.KindValidation, "cron_expression is required for a CRON schedule"))
		} else if _, err := schedule.ParseCron(input.CronExpression); err != nil {
			verrs.Add(errs.New(errs.KindValidation, "cron_expression is not a valid cron expression"))
		}
	case models.ScheduleSpecificTime:
		if input.SpecificTime == nil {
			verrs.Add(errs.New(errs.KindValidation, "specific_time is required for a SPECIFIC_TIME schedule"))
		}
	case models.ScheduleRecurring:
		if !validInterval(input.Interval) {
			verrs.Add(errs.New(errs.KindValidation, "interval must be one of MINUTE, HOUR, DAY, WEEK, MONTH, YEAR"))
		}
		if input.IntervalValue <= 0 {
			verrs.Add(errs.New(errs.KindValidation, "interval_value must be a positive integer"))
		}
	default:
		verrs.Add(errs.New(errs.KindValidation, "schedule_type must be one of CRON, SPECIFIC_TIME, RECURRING"))
	}

	return &verrs
}

func validInterval(i models.Interval) bool {
	switch i {
	case models.IntervalMinute, models.IntervalHour, models.IntervalDay,
		models.IntervalWeek, models.IntervalMonth, models.IntervalYear:
		return true
	default:
		return false
	}
}
