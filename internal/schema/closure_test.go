package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianstephens/lectern/internal/models"
)

// memGraph maps "child table/column/parent id" to child ids.
type memGraph map[models.Entity]map[string]map[int64][]int64

func (g memGraph) link(edgeChild models.Entity, column string, parentID int64, childIDs ...int64) {
	if g[edgeChild] == nil {
		g[edgeChild] = make(map[string]map[int64][]int64)
	}
	if g[edgeChild][column] == nil {
		g[edgeChild][column] = make(map[int64][]int64)
	}
	g[edgeChild][column][parentID] = append(g[edgeChild][column][parentID], childIDs...)
}

func (g memGraph) Referencing(_ context.Context, edge Edge, parentID int64) ([]int64, error) {
	return g[edge.Child][edge.Column][parentID], nil
}

func indexOf(refs []Ref, r Ref) int {
	for i, x := range refs {
		if x == r {
			return i
		}
	}
	return -1
}

func TestResolve_FolderCascadesThroughRecordings(t *testing.T) {
	g := memGraph{}
	g.link(models.EntityRecording, "folder_id", 1, 10, 11)
	g.link(models.EntityTranscript, "recording_id", 10, 100)
	g.link(models.EntitySummary, "recording_id", 10, 200)
	g.link(models.EntitySummary, "recording_id", 11, 201)

	cs, err := Resolve(context.Background(), g, Ref{models.EntityFolder, 1})
	require.NoError(t, err)

	assert.Len(t, cs.Deletes, 6)
	assert.Equal(t, 2, cs.DeleteCount(models.EntityRecording))
	assert.Equal(t, 1, cs.DeleteCount(models.EntityTranscript))
	assert.Equal(t, 2, cs.DeleteCount(models.EntitySummary))
	assert.Empty(t, cs.Nullifies)
	assert.Equal(t, Ref{models.EntityFolder, 1}, cs.Deletes[len(cs.Deletes)-1])

	// children always precede their parents
	rec := indexOf(cs.Deletes, Ref{models.EntityRecording, 10})
	assert.Less(t, indexOf(cs.Deletes, Ref{models.EntityTranscript, 100}), rec)
	assert.Less(t, indexOf(cs.Deletes, Ref{models.EntitySummary, 200}), rec)
}

func TestResolve_EventNullifiesRecordingsAndCascadesInstances(t *testing.T) {
	g := memGraph{}
	g.link(models.EntityRecording, "calendar_event_id", 5, 30)
	g.link(models.EntityEventReminder, "event_id", 5, 40)
	g.link(models.EntityCalendarEvent, "recurrence_parent_id", 5, 6, 7)
	g.link(models.EntityEventReminder, "event_id", 6, 41)
	g.link(models.EntityRecording, "calendar_event_id", 7, 31)

	cs, err := Resolve(context.Background(), g, Ref{models.EntityCalendarEvent, 5})
	require.NoError(t, err)

	assert.Equal(t, 3, cs.DeleteCount(models.EntityCalendarEvent))
	assert.Equal(t, 2, cs.DeleteCount(models.EntityEventReminder))
	assert.Equal(t, 0, cs.DeleteCount(models.EntityRecording))
	assert.ElementsMatch(t, []Nullification{
		{Row: Ref{models.EntityRecording, 30}, Column: "calendar_event_id"},
		{Row: Ref{models.EntityRecording, 31}, Column: "calendar_event_id"},
	}, cs.Nullifies)
	assert.Equal(t, []models.Entity{models.EntityCalendarEvent, models.EntityEventReminder, models.EntityRecording}, cs.Tables())
}

func TestResolve_InstanceLeavesTemplateAlone(t *testing.T) {
	g := memGraph{}
	g.link(models.EntityCalendarEvent, "recurrence_parent_id", 5, 6, 7)

	cs, err := Resolve(context.Background(), g, Ref{models.EntityCalendarEvent, 6})
	require.NoError(t, err)

	assert.Equal(t, []Ref{{models.EntityCalendarEvent, 6}}, cs.Deletes)
}

func TestResolve_CategoryNullifiesEventsOnly(t *testing.T) {
	g := memGraph{}
	g.link(models.EntityCalendarEvent, "category_id", 3, 5)
	g.link(models.EntityCalendarEvent, "recurrence_parent_id", 5, 6)

	cs, err := Resolve(context.Background(), g, Ref{models.EntityEventCategory, 3})
	require.NoError(t, err)

	// the nullified template is not traversed, so its instance is untouched
	assert.Equal(t, []Ref{{models.EntityEventCategory, 3}}, cs.Deletes)
	assert.Equal(t, []Nullification{{Row: Ref{models.EntityCalendarEvent, 5}, Column: "category_id"}}, cs.Nullifies)
}

func TestResolve_DeduplicatesNullifies(t *testing.T) {
	g := memGraph{}
	g.link(models.EntityCalendarEvent, "recurrence_parent_id", 5, 6)
	g.link(models.EntityRecording, "calendar_event_id", 6, 9)
	g.link(models.EntityRecording, "calendar_event_id", 5, 9)

	cs, err := Resolve(context.Background(), g, Ref{models.EntityCalendarEvent, 5})
	require.NoError(t, err)

	assert.Equal(t, []Nullification{{Row: Ref{models.EntityRecording, 9}, Column: "calendar_event_id"}}, cs.Nullifies)
}

func TestResolve_PropagatesFinderError(t *testing.T) {
	boom := errors.New("disk on fire")
	f := FinderFunc(func(context.Context, Edge, int64) ([]int64, error) { return nil, boom })

	_, err := Resolve(context.Background(), f, Ref{models.EntityFolder, 1})
	require.ErrorIs(t, err, boom)
}

func TestResolve_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, memGraph{}, Ref{models.EntityFolder, 1})
	require.ErrorIs(t, err, context.Canceled)
}

func TestGraphShape(t *testing.T) {
	assert.True(t, IsSingleton(models.EntityAppSettings))
	assert.True(t, IsSingleton(models.EntityCalendarSettings))
	assert.False(t, IsSingleton(models.EntityFolder))

	assert.Len(t, ChildEdges(models.EntityCalendarEvent), 3)
	assert.Len(t, ParentEdges(models.EntityRecording), 2)
	for _, e := range Edges {
		if e.Policy == Nullify {
			assert.True(t, e.Nullable, "nullify edge %s must be nullable", e)
		}
	}
}
