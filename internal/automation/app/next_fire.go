package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
)

// NextFire computes the next instant a time-based schedule fires, strictly
// after now. The schedule's wall-clock time is interpreted in its own
// timezone; an unloadable timezone falls back to UTC (the caller logs it).
func NextFire(schedule domain.Schedule, trigger domain.TriggerType, now time.Time) (time.Time, error) {
	hour, minute, err := parseClock(schedule.Time)
	if err != nil {
		return time.Time{}, err
	}

	loc := time.UTC
	var locErr error
	if schedule.Timezone != "" {
		loc, locErr = time.LoadLocation(schedule.Timezone)
		if locErr != nil {
			loc = time.UTC
		}
	}

	localNow := now.In(loc)

	var next time.Time
	switch trigger {
	case domain.TriggerDaily:
		next = time.Date(localNow.Year(), localNow.Month(), localNow.Day(), hour, minute, 0, 0, loc)
		if !next.After(localNow) {
			next = next.AddDate(0, 0, 1)
		}

	case domain.TriggerWeekly:
		targetDay := int(localNow.Weekday())
		if schedule.DayOfWeek != nil {
			targetDay = *schedule.DayOfWeek
		}
		next = time.Date(localNow.Year(), localNow.Month(), localNow.Day(), hour, minute, 0, 0, loc)
		daysAhead := (targetDay - int(localNow.Weekday()) + 7) % 7
		next = next.AddDate(0, 0, daysAhead)
		if !next.After(localNow) {
			next = next.AddDate(0, 0, 7)
		}

	case domain.TriggerMonthly:
		targetDay := 1
		if schedule.DayOfMonth != nil {
			targetDay = *schedule.DayOfMonth
		}
		next = monthlyOccurrence(localNow.Year(), localNow.Month(), targetDay, hour, minute, loc)
		if !next.After(localNow) {
			year, month := localNow.Year(), localNow.Month()+1
			next = monthlyOccurrence(year, month, targetDay, hour, minute, loc)
		}

	default:
		return time.Time{}, fmt.Errorf("trigger type %q is not time-based", trigger)
	}

	if locErr != nil {
		return next, fmt.Errorf("unknown timezone %q, scheduled in UTC: %w", schedule.Timezone, locErr)
	}
	return next, nil
}

// monthlyOccurrence returns the scheduled time in the given month,
// clamping day to the month's length (so day 31 fires on Feb 28/29).
func monthlyOccurrence(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > lastDay {
		day = lastDay
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

func parseClock(value string) (hour, minute int, err error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid schedule time %q, want HH:MM", value)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid schedule hour in %q", value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid schedule minute in %q", value)
	}
	return hour, minute, nil
}
