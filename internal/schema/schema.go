// Package schema declares the foreign-key graph of the store and resolves the
// full effect of a delete before any row is touched.
package schema

import (
	"fmt"

	"github.com/julianstephens/lectern/internal/models"
)

// Policy is what happens to a child row when its parent is deleted.
type Policy int

const (
	// Cascade deletes the child.
	Cascade Policy = iota
	// Nullify clears the child's foreign key; the child survives.
	Nullify
)

func (p Policy) String() string {
	switch p {
	case Cascade:
		return "cascade"
	case Nullify:
		return "nullify"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Edge is one foreign key: Child.Column references Parent.id.
type Edge struct {
	Child    models.Entity
	Column   string
	Parent   models.Entity
	Policy   Policy
	Nullable bool
}

func (e Edge) String() string {
	return fmt.Sprintf("%s.%s -> %s (%s)", e.Child, e.Column, e.Parent, e.Policy)
}

// Edges is the complete foreign-key graph.
var Edges = []Edge{
	{Child: models.EntityRecording, Column: "folder_id", Parent: models.EntityFolder, Policy: Cascade, Nullable: true},
	{Child: models.EntityRecording, Column: "calendar_event_id", Parent: models.EntityCalendarEvent, Policy: Nullify, Nullable: true},
	{Child: models.EntityTranscript, Column: "recording_id", Parent: models.EntityRecording, Policy: Cascade},
	{Child: models.EntitySummary, Column: "recording_id", Parent: models.EntityRecording, Policy: Cascade},
	{Child: models.EntityEventReminder, Column: "event_id", Parent: models.EntityCalendarEvent, Policy: Cascade},
	{Child: models.EntityCalendarEvent, Column: "category_id", Parent: models.EntityEventCategory, Policy: Nullify, Nullable: true},
	{Child: models.EntityCalendarEvent, Column: "recurrence_parent_id", Parent: models.EntityCalendarEvent, Policy: Cascade, Nullable: true},
}

// ChildEdges returns the edges whose parent is entity.
func ChildEdges(entity models.Entity) []Edge {
	var out []Edge
	for _, e := range Edges {
		if e.Parent == entity {
			out = append(out, e)
		}
	}
	return out
}

// ParentEdges returns the foreign keys declared on entity.
func ParentEdges(entity models.Entity) []Edge {
	var out []Edge
	for _, e := range Edges {
		if e.Child == entity {
			out = append(out, e)
		}
	}
	return out
}

// IsSingleton reports whether entity holds exactly one row with id 1.
func IsSingleton(entity models.Entity) bool {
	return entity == models.EntityAppSettings || entity == models.EntityCalendarSettings
}
