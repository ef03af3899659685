package models

import "time"

// AppSettings is the singleton profile row (id 1).
type AppSettings struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	// Preferences is an opaque document; the store never inspects its keys.
	Preferences map[string]any `json:"preferences,omitempty"`
	Timestamps
}

func (AppSettings) Entity() Entity { return EntityAppSettings }
func (s AppSettings) RowID() int64 { return s.ID }

// CalendarSettings is the singleton calendar preferences row (id 1).
type CalendarSettings struct {
	ID                      int64        `json:"id"`
	DefaultView             string       `json:"default_view"`               // day, week, month or agenda
	WeekStart               time.Weekday `json:"week_start"`                 // first column of week views
	WorkdayStart            string       `json:"workday_start"`              // HH:MM
	WorkdayEnd              string       `json:"workday_end"`                // HH:MM
	DefaultEventDurationMin int          `json:"default_event_duration_min"` // applied when an event has no end
	DefaultReminderOffsets  []int        `json:"default_reminder_offsets"`   // minutes before start
	TimeFormat              string       `json:"time_format"`                // 12h or 24h
	Timestamps
}

func (CalendarSettings) Entity() Entity { return EntityCalendarSettings }
func (s CalendarSettings) RowID() int64 { return s.ID }
