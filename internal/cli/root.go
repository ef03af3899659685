package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/lectern/internal/backup"
	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/logger"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/storage"
)

type Context struct {
	Store storage.Provider
	// Parent is cancelled on interrupt. Nil means context.Background.
	Parent context.Context
	// Yes answers every confirmation prompt with yes.
	Yes bool
}

func (c *Context) Ctx() context.Context {
	if c.Parent == nil {
		return context.Background()
	}
	return c.Parent
}

// IsFileStore reports whether the store is backed by a local SQLite file.
func (c *Context) IsFileStore() bool {
	path := c.Store.GetConfigPath()
	if path == "" || path == "postgresql" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup() {
	if !c.IsFileStore() {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ParseDateTime accepts "2006-01-02 15:04", "2006-01-02" or RFC 3339 and
// interprets the first two in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{constants.DateTimeFormat, constants.DateFormat} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time %q (use YYYY-MM-DD or \"YYYY-MM-DD HH:MM\")", s)
}

// ParseWeekday parses a weekday name, its three letter abbreviation or a
// number where 0 is Sunday.
func ParseWeekday(s string) (time.Weekday, error) {
	dayMap := map[string]time.Weekday{
		"sun":       time.Sunday,
		"sunday":    time.Sunday,
		"mon":       time.Monday,
		"monday":    time.Monday,
		"tue":       time.Tuesday,
		"tuesday":   time.Tuesday,
		"wed":       time.Wednesday,
		"wednesday": time.Wednesday,
		"thu":       time.Thursday,
		"thursday":  time.Thursday,
		"fri":       time.Friday,
		"friday":    time.Friday,
		"sat":       time.Saturday,
		"saturday":  time.Saturday,
	}

	s = strings.TrimSpace(strings.ToLower(s))
	if wd, ok := dayMap[s]; ok {
		return wd, nil
	}
	if num, err := strconv.Atoi(s); err == nil && num >= 0 && num <= 6 {
		return time.Weekday(num), nil
	}
	return 0, fmt.Errorf("invalid weekday: %s", s)
}

// ParseOffsets parses a comma-separated list of reminder offsets in minutes.
func ParseOffsets(s string) ([]int, error) {
	offsets := []int{}
	if strings.TrimSpace(s) == "" {
		return offsets, nil
	}
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid reminder offset: %s", part)
		}
		offsets = append(offsets, n)
	}
	return offsets, nil
}

// FormatRecurrence describes an event's place in its recurrence series.
func FormatRecurrence(ev models.CalendarEvent) string {
	switch r := ev.Recurrence.(type) {
	case models.Template:
		return r.Rule
	case models.Instance:
		kind := "instance"
		if r.IsException {
			kind = "exception"
		}
		return fmt.Sprintf("%s of #%d on %s", kind, r.ParentID, r.AnchorDate.Format(constants.DateFormat))
	default:
		return "-"
	}
}

// FormatTime renders t according to the calendar time format setting.
func FormatTime(t time.Time, timeFormat string) string {
	if timeFormat == constants.TimeFormat12h {
		return t.Format("3:04 PM")
	}
	return t.Format(constants.TimeFormat)
}

// OptionalID turns a zero id flag into nil.
func OptionalID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func FormatOptionalID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}
