package models

import "time"

// Entity names a table of the store.
type Entity string

const (
	EntityAppSettings      Entity = "app_settings"
	EntityFolder           Entity = "folders"
	EntityEventCategory    Entity = "event_categories"
	EntityCalendarEvent    Entity = "calendar_events"
	EntityEventReminder    Entity = "event_reminders"
	EntityCalendarSettings Entity = "calendar_settings"
	EntityRecording        Entity = "recordings"
	EntityTranscript       Entity = "transcripts"
	EntitySummary          Entity = "summaries"
)

// Entities lists every table in creation order (parents before children).
var Entities = []Entity{
	EntityAppSettings,
	EntityCalendarSettings,
	EntityFolder,
	EntityEventCategory,
	EntityCalendarEvent,
	EntityEventReminder,
	EntityRecording,
	EntityTranscript,
	EntitySummary,
}

// Valid reports whether e names a known table.
func (e Entity) Valid() bool {
	for _, known := range Entities {
		if e == known {
			return true
		}
	}
	return false
}

func (e Entity) String() string { return string(e) }

// Row is implemented by every persisted entity. Values and pointers are both accepted by the store.
type Row interface {
	Entity() Entity
	RowID() int64
}

// Timestamps are assigned by the store on insert and update; caller values are ignored.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Value returns row as a value, dereferencing pointer rows.
func Value(row Row) Row {
	switch r := row.(type) {
	case *AppSettings:
		return *r
	case *CalendarSettings:
		return *r
	case *Folder:
		return *r
	case *EventCategory:
		return *r
	case *CalendarEvent:
		return *r
	case *EventReminder:
		return *r
	case *Recording:
		return *r
	case *Transcript:
		return *r
	case *Summary:
		return *r
	}
	return row
}
