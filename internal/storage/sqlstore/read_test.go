package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
	"github.com/julianstephens/lectern/internal/recurrence"
)

func day(d int, hh int) time.Time {
	return time.Date(2024, 1, d, hh, 0, 0, 0, time.UTC)
}

func TestFindManyConditions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	folder := insert(t, s, models.Folder{Name: "Physics"})
	ev := insert(t, s, event("Lecture", day(2, 10), time.Hour))
	a := insert(t, s, models.Recording{Name: "a", FilePath: "/a", FolderID: ptr(folder)})
	b := insert(t, s, models.Recording{Name: "b", FilePath: "/b", FolderID: ptr(folder), CalendarEventID: ptr(ev)})
	c := insert(t, s, models.Recording{Name: "c", FilePath: "/c"})

	ids := func(rows []models.Row) []int64 {
		out := make([]int64, len(rows))
		for i, r := range rows {
			out[i] = r.RowID()
		}
		return out
	}

	rows, err := s.FindMany(ctx, query.For(models.EntityRecording, query.Eq("folder_id", folder)))
	require.NoError(t, err)
	assert.Equal(t, []int64{a, b}, ids(rows))

	rows, err = s.FindMany(ctx, query.For(models.EntityRecording, query.IsNull("calendar_event_id")))
	require.NoError(t, err)
	assert.Equal(t, []int64{a, c}, ids(rows))

	rows, err = s.FindMany(ctx, query.For(models.EntityRecording, query.Eq("folder_id", (*int64)(nil))))
	require.NoError(t, err)
	assert.Equal(t, []int64{c}, ids(rows))

	rows, err = s.FindMany(ctx, query.For(models.EntityRecording, query.NotNull("folder_id")).Take(1))
	require.NoError(t, err)
	assert.Equal(t, []int64{a}, ids(rows))

	rows, err = s.FindMany(ctx, query.For(models.EntityRecording).Filter(func(r models.Row) bool {
		return r.(models.Recording).Name != "a"
	}))
	require.NoError(t, err)
	assert.Equal(t, []int64{b, c}, ids(rows))

	_, err = s.FindMany(ctx, query.For(models.EntityRecording, query.Eq("bogus", 1)))
	assert.Error(t, err)
	_, err = s.FindMany(ctx, query.For("nope"))
	assert.Error(t, err)
}

func TestFindManyOrdersEventsByStart(t *testing.T) {
	s := newTestStore(t)
	late := insert(t, s, event("Late", day(5, 9), time.Hour))
	early := insert(t, s, event("Early", day(3, 9), time.Hour))

	rows, err := s.FindMany(context.Background(), query.For(models.EntityCalendarEvent))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, early, rows[0].RowID())
	assert.Equal(t, late, rows[1].RowID())
}

func TestExpandOccurrencesWithException(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tmpl := insert(t, s, weekly("Algorithms", day(1, 10)))
	ex := exceptionOf(tmpl, day(8, 0), day(8, 14))
	ex.Title = "Rescheduled"
	exID := insert(t, s, ex)

	res, err := s.ExpandOccurrences(ctx, tmpl, recurrence.Window{From: day(1, 0), To: day(22, 0)})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 3)
	assert.False(t, res.Truncated)

	assert.True(t, res.Occurrences[0].Start.Equal(day(1, 10)))
	assert.Equal(t, "Algorithms", res.Occurrences[0].Title)
	assert.True(t, res.Occurrences[1].Start.Equal(day(8, 14)))
	assert.Equal(t, "Rescheduled", res.Occurrences[1].Title)
	assert.Equal(t, exID, res.Occurrences[1].ExceptionID)
	assert.True(t, res.Occurrences[2].Start.Equal(day(15, 10)))

	_, err = s.ExpandOccurrences(ctx, 404, recurrence.Window{From: day(1, 0), To: day(22, 0)})
	assert.ErrorIs(t, err, errors.ErrNotFound)

	plain := insert(t, s, event("Once", day(3, 9), time.Hour))
	_, err = s.ExpandOccurrences(ctx, plain, recurrence.Window{From: day(1, 0), To: day(22, 0)})
	assert.ErrorIs(t, err, errors.ErrInvariantViolation)
}

func TestExpandOccurrencesTruncates(t *testing.T) {
	db := openTestDB(t)
	s := New(db, SQLite, WithMaxOccurrences(3))
	t.Cleanup(s.Close)

	ev := event("Daily", day(1, 10), time.Hour)
	ev.Recurrence = models.Template{Rule: "FREQ=DAILY"}
	tmpl := insert(t, s, ev)

	res, err := s.ExpandOccurrences(context.Background(), tmpl, recurrence.Window{From: day(1, 0), To: day(31, 0)})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 3)
	assert.True(t, res.Truncated)
}

func TestAgendaMergesStandaloneAndRecurring(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tmpl := insert(t, s, weekly("Algorithms", day(1, 10)))
	cancelled := exceptionOf(tmpl, day(8, 10), day(8, 10))
	cancelled.Cancelled = true
	insert(t, s, cancelled)
	insert(t, s, event("Office hours", day(3, 15), time.Hour))
	insert(t, s, event("Outside", day(28, 9), time.Hour))

	res, err := s.Agenda(ctx, recurrence.Window{From: day(1, 0), To: day(15, 0)})
	require.NoError(t, err)

	var titles []string
	for _, o := range res.Occurrences {
		titles = append(titles, o.Title)
	}
	assert.Equal(t, []string{"Algorithms", "Office hours"}, titles)

	res, err = s.Agenda(ctx, recurrence.Window{From: day(1, 0), To: day(15, 0), IncludeCancelled: true})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 3)
	assert.True(t, res.Occurrences[2].Cancelled)
}

func TestDueReminders(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	once := insert(t, s, event("Exam", day(2, 10), time.Hour))
	onceRem := insert(t, s, models.EventReminder{EventID: once, OffsetMinutes: 15, Type: "alarm"})

	tmpl := insert(t, s, weekly("Algorithms", day(1, 10)))
	weeklyRem := insert(t, s, models.EventReminder{EventID: tmpl, OffsetMinutes: 30, Type: "notification"})

	due, err := s.DueReminders(ctx, day(2, 9).Add(50*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, onceRem, due[0].Reminder.ID)
	assert.True(t, due[0].Occurrence.Start.Equal(day(2, 10)))

	due, err = s.DueReminders(ctx, day(2, 9))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = s.DueReminders(ctx, day(8, 9).Add(45*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, weeklyRem, due[0].Reminder.ID)
	assert.True(t, due[0].Occurrence.Start.Equal(day(8, 10)))

	require.NoError(t, s.MarkReminderTriggered(ctx, weeklyRem))
	due, err = s.DueReminders(ctx, day(8, 9).Add(45*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)
}
