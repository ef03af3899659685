package system

import (
	"context"
	"testing"
	"time"

	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
)

func TestParseWatchQuery(t *testing.T) {
	q, err := parseWatchQuery("recordings", []string{"folder_id=3", "calendar_event_id=null", "name=Week 1"})
	if err != nil {
		t.Fatalf("parseWatchQuery failed: %v", err)
	}
	if q.Entity != models.EntityRecording {
		t.Errorf("entity = %s", q.Entity)
	}
	want := []query.Cond{query.Eq("folder_id", int64(3)), query.IsNull("calendar_event_id"), query.Eq("name", "Week 1")}
	if len(q.Where) != len(want) {
		t.Fatalf("got %d conditions, want %d", len(q.Where), len(want))
	}
	for i := range want {
		if q.Where[i] != want[i] {
			t.Errorf("condition %d = %v, want %v", i, q.Where[i], want[i])
		}
	}

	if _, err := parseWatchQuery("recordings", []string{"folder_id"}); err == nil {
		t.Error("filter without '=' should fail")
	}
	if _, err := parseWatchQuery("lectures", nil); err == nil {
		t.Error("unknown table should fail")
	}
}

func TestDebugDumpAndWatch(t *testing.T) {
	ctx, _ := setupTestDoctorDB(t)

	id, err := ctx.Store.Insert(context.Background(), models.CalendarEvent{
		Title:      "Algorithms",
		StartTime:  time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC),
		Recurrence: models.Template{Rule: "FREQ=WEEKLY"},
	})
	if err != nil {
		t.Fatalf("failed to add event: %v", err)
	}

	if err := (&DebugDumpCmd{Entity: "calendar_events", ID: id}).Run(ctx); err != nil {
		t.Errorf("dump failed: %v", err)
	}
	if err := (&DebugDumpCmd{Entity: "calendar_events", ID: id + 100}).Run(ctx); err == nil {
		t.Error("dump of a missing row should fail")
	}
	if err := (&DebugWatchCmd{Entity: "folders", For: 10 * time.Millisecond, Plain: true}).Run(ctx); err != nil {
		t.Errorf("watch failed: %v", err)
	}
}
