package models

import "time"

// Recurrence is the recurrence role of a calendar event. A nil Recurrence is a
// standalone event; otherwise it is exactly one of Template or Instance, so an
// event can never carry both a rule and a parent.
type Recurrence interface {
	recurrenceKind() RecurrenceKind
}

type RecurrenceKind string

const (
	KindStandalone RecurrenceKind = "standalone"
	KindTemplate   RecurrenceKind = "template"
	KindInstance   RecurrenceKind = "instance"
)

// Template generates occurrences from Rule (see package recurrence for the text format).
type Template struct {
	Rule string `json:"rule"`
}

func (Template) recurrenceKind() RecurrenceKind { return KindTemplate }

// Instance is a materialized occurrence of the template ParentID, anchored at
// the occurrence's original start. When IsException is set its fields replace
// the generated occurrence.
type Instance struct {
	ParentID    int64     `json:"parent_id"`
	AnchorDate  time.Time `json:"anchor_date"`
	IsException bool      `json:"is_exception"`
}

func (Instance) recurrenceKind() RecurrenceKind { return KindInstance }

// KindOf reports the recurrence role of r.
func KindOf(r Recurrence) RecurrenceKind {
	if r == nil {
		return KindStandalone
	}
	return r.recurrenceKind()
}

type CalendarEvent struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	AllDay      bool      `json:"all_day"`
	IsLecture   bool      `json:"is_lecture"`
	Location    string    `json:"location,omitempty"`
	// Timezone is an IANA name used for display only; occurrences are computed in UTC.
	Timezone   string     `json:"timezone,omitempty"`
	CategoryID *int64     `json:"category_id,omitempty"`
	Recurrence Recurrence `json:"-"`
	// Cancelled marks an exception that removes its occurrence.
	Cancelled bool `json:"cancelled"`
	Timestamps
}

func (CalendarEvent) Entity() Entity { return EntityCalendarEvent }
func (e CalendarEvent) RowID() int64 { return e.ID }

func (e CalendarEvent) Kind() RecurrenceKind { return KindOf(e.Recurrence) }

// Template returns the event's template variant, if it is one.
func (e CalendarEvent) Template() (Template, bool) {
	t, ok := e.Recurrence.(Template)
	return t, ok
}

// Instance returns the event's instance variant, if it is one.
func (e CalendarEvent) Instance() (Instance, bool) {
	i, ok := e.Recurrence.(Instance)
	return i, ok
}

func (e CalendarEvent) Duration() time.Duration {
	return e.EndTime.Sub(e.StartTime)
}

type EventCategory struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"` // #RRGGBB
	Icon      string `json:"icon,omitempty"`
	IsDefault bool   `json:"is_default"`
	Timestamps
}

func (EventCategory) Entity() Entity { return EntityEventCategory }
func (c EventCategory) RowID() int64 { return c.ID }

type EventReminder struct {
	ID            int64  `json:"id"`
	EventID       int64  `json:"event_id"`
	OffsetMinutes int    `json:"offset_minutes"` // minutes before the event starts
	Type          string `json:"type"`
	// IsTriggered only ever moves from false to true.
	IsTriggered bool `json:"is_triggered"`
	Timestamps
}

func (EventReminder) Entity() Entity { return EntityEventReminder }
func (r EventReminder) RowID() int64 { return r.ID }
