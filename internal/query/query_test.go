package query

import (
	"testing"

	"github.com/julianstephens/lectern/internal/models"
)

func TestQueryString(t *testing.T) {
	q := For(models.EntityRecording, Eq("folder_id", 3), IsNull("calendar_event_id")).Take(10)
	want := "recordings WHERE folder_id = 3 AND calendar_event_id IS NULL LIMIT 10"
	if got := q.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestQueryValidate(t *testing.T) {
	if err := For(models.EntityFolder).Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if err := For(models.Entity("widgets")).Validate(); err == nil {
		t.Error("Validate() should reject unknown entity")
	}
	if err := For(models.EntityFolder).Take(-1).Validate(); err == nil {
		t.Error("Validate() should reject negative limit")
	}
}

func TestQueryApply(t *testing.T) {
	rows := []models.Row{
		models.Folder{ID: 1, Name: "Physics"},
		models.Folder{ID: 2, Name: "Chemistry"},
		models.Folder{ID: 3, Name: "Philosophy"},
	}

	q := For(models.EntityFolder).Filter(func(r models.Row) bool {
		return r.(models.Folder).Name[0] == 'P'
	})
	got := q.Apply(rows)
	if len(got) != 2 || got[0].RowID() != 1 || got[1].RowID() != 3 {
		t.Errorf("Apply() = %v, want folders 1 and 3", got)
	}

	got = q.Take(1).Apply(rows)
	if len(got) != 1 || got[0].RowID() != 1 {
		t.Errorf("Apply() with limit = %v, want folder 1", got)
	}

	if got := For(models.EntityFolder).Apply(rows); len(got) != 3 {
		t.Errorf("Apply() without filter returned %d rows, want 3", len(got))
	}
}
