// Package validation checks rows before they reach the store and describes
// integrity problems found in stored data.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/recurrence"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ValidateRow checks the fields of a row in isolation. Foreign keys and
// cross-row invariants are the store's job.
func ValidateRow(row models.Row) error {
	switch r := models.Value(row).(type) {
	case models.AppSettings:
		return validateAppSettings(r)
	case models.CalendarSettings:
		return validateCalendarSettings(r)
	case models.Folder:
		return requireName(models.EntityFolder, r.Name)
	case models.EventCategory:
		return validateCategory(r)
	case models.CalendarEvent:
		return validateEvent(r)
	case models.EventReminder:
		return validateReminder(r)
	case models.Recording:
		return validateRecording(r)
	case models.Transcript:
		return requireRecording(models.EntityTranscript, r.RecordingID)
	case models.Summary:
		return requireRecording(models.EntitySummary, r.RecordingID)
	default:
		return fmt.Errorf("unsupported row type %T", row)
	}
}

func invalid(entity models.Entity, format string, args ...any) error {
	return errors.Validation(entity.String(), format, args...)
}

func requireName(entity models.Entity, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid(entity, "name is required")
	}
	return nil
}

func requireRecording(entity models.Entity, id int64) error {
	if id <= 0 {
		return invalid(entity, "recording_id is required")
	}
	return nil
}

func validateAppSettings(s models.AppSettings) error {
	if s.Preferences == nil {
		return nil
	}
	if _, err := json.Marshal(s.Preferences); err != nil {
		return invalid(models.EntityAppSettings, "preferences are not a JSON document: %v", err)
	}
	return nil
}

func validateCalendarSettings(s models.CalendarSettings) error {
	e := models.EntityCalendarSettings
	switch s.DefaultView {
	case constants.ViewDay, constants.ViewWeek, constants.ViewMonth, constants.ViewAgenda:
	default:
		return invalid(e, "default view must be day, week, month or agenda, got %q", s.DefaultView)
	}
	if s.WeekStart < time.Sunday || s.WeekStart > time.Saturday {
		return invalid(e, "week start %d is not a weekday", s.WeekStart)
	}
	start, err := parseTimeToMinutes(s.WorkdayStart)
	if err != nil {
		return invalid(e, "invalid workday start %q (expected HH:MM)", s.WorkdayStart)
	}
	end, err := parseTimeToMinutes(s.WorkdayEnd)
	if err != nil {
		return invalid(e, "invalid workday end %q (expected HH:MM)", s.WorkdayEnd)
	}
	if end <= start {
		return invalid(e, "workday end %s must be after start %s", s.WorkdayEnd, s.WorkdayStart)
	}
	if s.DefaultEventDurationMin <= 0 {
		return invalid(e, "default event duration must be positive")
	}
	for _, off := range s.DefaultReminderOffsets {
		if off < 0 {
			return invalid(e, "reminder offset %d is negative", off)
		}
	}
	switch s.TimeFormat {
	case constants.TimeFormat12h, constants.TimeFormat24h:
	default:
		return invalid(e, "time format must be 12h or 24h, got %q", s.TimeFormat)
	}
	return nil
}

func validateCategory(c models.EventCategory) error {
	if err := requireName(models.EntityEventCategory, c.Name); err != nil {
		return err
	}
	if !colorPattern.MatchString(c.Color) {
		return invalid(models.EntityEventCategory, "color %q is not #RRGGBB", c.Color)
	}
	return nil
}

func validateEvent(ev models.CalendarEvent) error {
	e := models.EntityCalendarEvent
	if ev.StartTime.IsZero() || ev.EndTime.IsZero() {
		return invalid(e, "start and end time are required")
	}
	if ev.EndTime.Before(ev.StartTime) {
		return invalid(e, "end time is before start time")
	}
	if ev.Timezone != "" {
		if _, err := time.LoadLocation(ev.Timezone); err != nil {
			return invalid(e, "unknown timezone %q", ev.Timezone)
		}
	}

	switch r := ev.Recurrence.(type) {
	case models.Template:
		if strings.TrimSpace(ev.Title) == "" {
			return invalid(e, "title is required")
		}
		if _, err := recurrence.Parse(r.Rule); err != nil {
			return err
		}
	case models.Instance:
		// exception titles may be empty and fall back to the template's
		if r.ParentID <= 0 {
			return invalid(e, "instance requires a parent template")
		}
		if r.AnchorDate.IsZero() {
			return invalid(e, "instance requires an anchor date")
		}
	default:
		if strings.TrimSpace(ev.Title) == "" {
			return invalid(e, "title is required")
		}
	}
	return nil
}

func validateReminder(r models.EventReminder) error {
	e := models.EntityEventReminder
	if r.EventID <= 0 {
		return invalid(e, "event_id is required")
	}
	if r.OffsetMinutes < 0 {
		return invalid(e, "offset must not be negative")
	}
	switch r.Type {
	case constants.ReminderNotification, constants.ReminderEmail, constants.ReminderAlarm:
	default:
		return invalid(e, "reminder type must be notification, email or alarm, got %q", r.Type)
	}
	return nil
}

func validateRecording(r models.Recording) error {
	e := models.EntityRecording
	if err := requireName(e, r.Name); err != nil {
		return err
	}
	if strings.TrimSpace(r.FilePath) == "" {
		return invalid(e, "file path is required")
	}
	if r.DurationSec < 0 || r.FileSizeBytes < 0 {
		return invalid(e, "duration and size must not be negative")
	}
	return nil
}

func parseTimeToMinutes(timeStr string) (int, error) {
	t, err := time.Parse(constants.TimeFormat, timeStr)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
