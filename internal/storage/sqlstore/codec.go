package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/models"
)

type scanner interface {
	Scan(dest ...any) error
}

// table maps one entity onto its SQL table. Every table has id, created_at
// and updated_at in addition to columns; scan reads them in the order
// id, columns..., created_at, updated_at.
type table struct {
	entity  models.Entity
	columns []string
	orderBy string
	values  func(models.Row) ([]any, error)
	scan    func(scanner) (models.Row, error)
	// refs returns the value of every foreign-key column, 0 meaning NULL.
	refs func(models.Row) map[string]int64
}

func (t *table) selectList() string {
	return "id, " + strings.Join(t.columns, ", ") + ", created_at, updated_at"
}

func (t *table) hasColumn(name string) bool {
	switch name {
	case "id", "created_at", "updated_at":
		return true
	}
	for _, c := range t.columns {
		if c == name {
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(constants.StorageTimeFormat)
}

// timeDecoder parses stored timestamps and keeps the first failure.
type timeDecoder struct {
	err error
}

func (d *timeDecoder) parse(s string) time.Time {
	t, err := time.Parse(constants.StorageTimeFormat, s)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t
}

func (d *timeDecoder) stamps(created, updated string) models.Timestamps {
	return models.Timestamps{CreatedAt: d.parse(created), UpdatedAt: d.parse(updated)}
}

func nullID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func refValue(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

// arg converts a condition value to its stored representation.
func arg(v any) any {
	switch x := v.(type) {
	case time.Time:
		return formatTime(x)
	case *int64:
		return nullID(x)
	case models.Entity:
		return string(x)
	case time.Weekday:
		return int(x)
	}
	return v
}

var tables = map[models.Entity]*table{
	models.EntityAppSettings: {
		entity:  models.EntityAppSettings,
		columns: []string{"first_name", "last_name", "preferences"},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			s := r.(models.AppSettings)
			prefs := s.Preferences
			if prefs == nil {
				prefs = map[string]any{}
			}
			doc, err := json.Marshal(prefs)
			if err != nil {
				return nil, err
			}
			return []any{s.FirstName, s.LastName, string(doc)}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var s models.AppSettings
			var prefs, created, updated string
			if err := sc.Scan(&s.ID, &s.FirstName, &s.LastName, &prefs, &created, &updated); err != nil {
				return nil, err
			}
			if err := json.Unmarshal([]byte(prefs), &s.Preferences); err != nil {
				return nil, fmt.Errorf("invalid preferences document: %w", err)
			}
			var d timeDecoder
			s.Timestamps = d.stamps(created, updated)
			return s, d.err
		},
		refs: func(models.Row) map[string]int64 { return nil },
	},

	models.EntityCalendarSettings: {
		entity: models.EntityCalendarSettings,
		columns: []string{
			"default_view", "week_start", "workday_start", "workday_end",
			"default_event_duration_min", "default_reminder_offsets", "time_format",
		},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			s := r.(models.CalendarSettings)
			offsets := s.DefaultReminderOffsets
			if offsets == nil {
				offsets = []int{}
			}
			doc, err := json.Marshal(offsets)
			if err != nil {
				return nil, err
			}
			return []any{s.DefaultView, int(s.WeekStart), s.WorkdayStart, s.WorkdayEnd, s.DefaultEventDurationMin, string(doc), s.TimeFormat}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var s models.CalendarSettings
			var weekStart int
			var offsets, created, updated string
			if err := sc.Scan(&s.ID, &s.DefaultView, &weekStart, &s.WorkdayStart, &s.WorkdayEnd,
				&s.DefaultEventDurationMin, &offsets, &s.TimeFormat, &created, &updated); err != nil {
				return nil, err
			}
			s.WeekStart = time.Weekday(weekStart)
			if err := json.Unmarshal([]byte(offsets), &s.DefaultReminderOffsets); err != nil {
				return nil, fmt.Errorf("invalid reminder offsets: %w", err)
			}
			var d timeDecoder
			s.Timestamps = d.stamps(created, updated)
			return s, d.err
		},
		refs: func(models.Row) map[string]int64 { return nil },
	},

	models.EntityFolder: {
		entity:  models.EntityFolder,
		columns: []string{"name"},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			return []any{r.(models.Folder).Name}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var f models.Folder
			var created, updated string
			if err := sc.Scan(&f.ID, &f.Name, &created, &updated); err != nil {
				return nil, err
			}
			var d timeDecoder
			f.Timestamps = d.stamps(created, updated)
			return f, d.err
		},
		refs: func(models.Row) map[string]int64 { return nil },
	},

	models.EntityEventCategory: {
		entity:  models.EntityEventCategory,
		columns: []string{"name", "color", "icon", "is_default"},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			c := r.(models.EventCategory)
			return []any{c.Name, c.Color, c.Icon, c.IsDefault}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var c models.EventCategory
			var created, updated string
			if err := sc.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &c.IsDefault, &created, &updated); err != nil {
				return nil, err
			}
			var d timeDecoder
			c.Timestamps = d.stamps(created, updated)
			return c, d.err
		},
		refs: func(models.Row) map[string]int64 { return nil },
	},

	models.EntityCalendarEvent: {
		entity: models.EntityCalendarEvent,
		columns: []string{
			"title", "description", "start_time", "end_time", "all_day", "is_lecture",
			"location", "timezone", "category_id", "recurrence_rule", "recurrence_parent_id",
			"recurrence_date", "is_recurrence_exception", "cancelled",
		},
		orderBy: "start_time, id",
		values: func(r models.Row) ([]any, error) {
			ev := r.(models.CalendarEvent)
			var rule, parent, anchor any
			isException := false
			switch rec := ev.Recurrence.(type) {
			case models.Template:
				rule = rec.Rule
			case models.Instance:
				parent = rec.ParentID
				anchor = formatTime(rec.AnchorDate)
				isException = rec.IsException
			}
			return []any{
				ev.Title, ev.Description, formatTime(ev.StartTime), formatTime(ev.EndTime), ev.AllDay, ev.IsLecture,
				ev.Location, ev.Timezone, nullID(ev.CategoryID), rule, parent,
				anchor, isException, ev.Cancelled,
			}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var ev models.CalendarEvent
			var start, end, created, updated string
			var category, parent sql.NullInt64
			var rule, anchor sql.NullString
			var isException bool
			if err := sc.Scan(&ev.ID, &ev.Title, &ev.Description, &start, &end, &ev.AllDay, &ev.IsLecture,
				&ev.Location, &ev.Timezone, &category, &rule, &parent,
				&anchor, &isException, &ev.Cancelled, &created, &updated); err != nil {
				return nil, err
			}
			var d timeDecoder
			ev.StartTime = d.parse(start)
			ev.EndTime = d.parse(end)
			ev.CategoryID = idPtr(category)
			switch {
			case rule.Valid:
				ev.Recurrence = models.Template{Rule: rule.String}
			case parent.Valid:
				ev.Recurrence = models.Instance{
					ParentID:    parent.Int64,
					AnchorDate:  d.parse(anchor.String),
					IsException: isException,
				}
			}
			ev.Timestamps = d.stamps(created, updated)
			return ev, d.err
		},
		refs: func(r models.Row) map[string]int64 {
			ev := r.(models.CalendarEvent)
			refs := map[string]int64{"category_id": refValue(ev.CategoryID), "recurrence_parent_id": 0}
			if inst, ok := ev.Instance(); ok {
				refs["recurrence_parent_id"] = inst.ParentID
			}
			return refs
		},
	},

	models.EntityEventReminder: {
		entity:  models.EntityEventReminder,
		columns: []string{"event_id", "offset_minutes", "type", "is_triggered"},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			rem := r.(models.EventReminder)
			return []any{rem.EventID, rem.OffsetMinutes, rem.Type, rem.IsTriggered}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var rem models.EventReminder
			var created, updated string
			if err := sc.Scan(&rem.ID, &rem.EventID, &rem.OffsetMinutes, &rem.Type, &rem.IsTriggered, &created, &updated); err != nil {
				return nil, err
			}
			var d timeDecoder
			rem.Timestamps = d.stamps(created, updated)
			return rem, d.err
		},
		refs: func(r models.Row) map[string]int64 {
			return map[string]int64{"event_id": r.(models.EventReminder).EventID}
		},
	},

	models.EntityRecording: {
		entity:  models.EntityRecording,
		columns: []string{"name", "file_path", "duration_sec", "file_size_bytes", "folder_id", "calendar_event_id"},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			rec := r.(models.Recording)
			return []any{rec.Name, rec.FilePath, rec.DurationSec, rec.FileSizeBytes, nullID(rec.FolderID), nullID(rec.CalendarEventID)}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var rec models.Recording
			var folder, event sql.NullInt64
			var created, updated string
			if err := sc.Scan(&rec.ID, &rec.Name, &rec.FilePath, &rec.DurationSec, &rec.FileSizeBytes, &folder, &event, &created, &updated); err != nil {
				return nil, err
			}
			rec.FolderID = idPtr(folder)
			rec.CalendarEventID = idPtr(event)
			var d timeDecoder
			rec.Timestamps = d.stamps(created, updated)
			return rec, d.err
		},
		refs: func(r models.Row) map[string]int64 {
			rec := r.(models.Recording)
			return map[string]int64{"folder_id": refValue(rec.FolderID), "calendar_event_id": refValue(rec.CalendarEventID)}
		},
	},

	models.EntityTranscript: {
		entity:  models.EntityTranscript,
		columns: []string{"recording_id", "text"},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			t := r.(models.Transcript)
			return []any{t.RecordingID, t.Text}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var t models.Transcript
			var created, updated string
			if err := sc.Scan(&t.ID, &t.RecordingID, &t.Text, &created, &updated); err != nil {
				return nil, err
			}
			var d timeDecoder
			t.Timestamps = d.stamps(created, updated)
			return t, d.err
		},
		refs: func(r models.Row) map[string]int64 {
			return map[string]int64{"recording_id": r.(models.Transcript).RecordingID}
		},
	},

	models.EntitySummary: {
		entity:  models.EntitySummary,
		columns: []string{"recording_id", "text"},
		orderBy: "id",
		values: func(r models.Row) ([]any, error) {
			s := r.(models.Summary)
			return []any{s.RecordingID, s.Text}, nil
		},
		scan: func(sc scanner) (models.Row, error) {
			var s models.Summary
			var created, updated string
			if err := sc.Scan(&s.ID, &s.RecordingID, &s.Text, &created, &updated); err != nil {
				return nil, err
			}
			var d timeDecoder
			s.Timestamps = d.stamps(created, updated)
			return s, d.err
		},
		refs: func(r models.Row) map[string]int64 {
			return map[string]int64{"recording_id": r.(models.Summary).RecordingID}
		},
	},
}

func tableFor(entity models.Entity) (*table, error) {
	t, ok := tables[entity]
	if !ok {
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	return t, nil
}
