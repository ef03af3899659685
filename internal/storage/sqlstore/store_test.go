package sqlstore

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/migration"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/migrations"
)

var epoch = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

// clock starts at epoch and advances one second per reading.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lectern.db")
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	sub, err := fs.Sub(migrations.FS, "sqlite")
	require.NoError(t, err)
	runner, err := migration.NewRunner(db, sub, migration.DriverSQLite)
	require.NoError(t, err)
	_, err = runner.ApplyMigrations(nil)
	require.NoError(t, err)
	return db
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := openTestDB(t)
	s := New(db, SQLite, WithClock((&clock{now: epoch}).Now))
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSingletons(context.Background()))
	return s
}

func ptr(id int64) *int64 { return &id }

func insert(t *testing.T, s *Store, row models.Row) int64 {
	t.Helper()
	id, err := s.Insert(context.Background(), row)
	require.NoError(t, err)
	require.NotZero(t, id)
	return id
}

func event(title string, start time.Time, dur time.Duration) models.CalendarEvent {
	return models.CalendarEvent{Title: title, StartTime: start, EndTime: start.Add(dur), Timezone: "UTC"}
}

func weekly(title string, start time.Time) models.CalendarEvent {
	ev := event(title, start, time.Hour)
	ev.IsLecture = true
	ev.Recurrence = models.Template{Rule: "FREQ=WEEKLY"}
	return ev
}

func exceptionOf(parent int64, anchor, start time.Time) models.CalendarEvent {
	ev := event("", start, time.Hour)
	ev.Recurrence = models.Instance{ParentID: parent, AnchorDate: anchor, IsException: true}
	return ev
}

func mustFind(t *testing.T, s *Store, entity models.Entity, id int64) models.Row {
	t.Helper()
	row, err := s.FindByID(context.Background(), entity, id)
	require.NoError(t, err)
	return row
}

func TestInsertAssignsTimestamps(t *testing.T) {
	s := newTestStore(t)

	id := insert(t, s, &models.Folder{ID: 99, Name: "Physics", Timestamps: models.Timestamps{CreatedAt: time.Unix(0, 0)}})
	f := mustFind(t, s, models.EntityFolder, id).(models.Folder)

	assert.Equal(t, "Physics", f.Name)
	assert.NotEqual(t, int64(99), f.ID)
	assert.True(t, f.CreatedAt.After(epoch))
	assert.True(t, f.CreatedAt.Equal(f.UpdatedAt))
}

func TestEventRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cat := insert(t, s, models.EventCategory{Name: "Lectures", Color: "#4F86F7"})
	tmpl := weekly("Algorithms", time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC))
	tmpl.CategoryID = ptr(cat)
	tmpl.Location = "Hall B"
	tmplID := insert(t, s, tmpl)

	anchor := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	exID := insert(t, s, exceptionOf(tmplID, anchor, anchor.Add(4*time.Hour)))

	got := mustFind(t, s, models.EntityCalendarEvent, tmplID).(models.CalendarEvent)
	assert.Equal(t, models.Template{Rule: "FREQ=WEEKLY"}, got.Recurrence)
	assert.Equal(t, cat, *got.CategoryID)
	assert.True(t, got.StartTime.Equal(tmpl.StartTime))
	assert.True(t, got.IsLecture)

	ex := mustFind(t, s, models.EntityCalendarEvent, exID).(models.CalendarEvent)
	inst, ok := ex.Instance()
	require.True(t, ok)
	assert.Equal(t, tmplID, inst.ParentID)
	assert.True(t, inst.AnchorDate.Equal(anchor))
	assert.True(t, inst.IsException)
	assert.Nil(t, ex.CategoryID)

	_, err := s.FindByID(ctx, models.EntityCalendarEvent, 404)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
