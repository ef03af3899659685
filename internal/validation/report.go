package validation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/recurrence"
)

// ConflictType represents the type of integrity problem
type ConflictType string

const (
	ConflictDanglingReference   ConflictType = "dangling_reference"
	ConflictMissingSingleton    ConflictType = "missing_singleton"
	ConflictRecurrenceExclusive ConflictType = "recurrence_exclusivity"
	ConflictInstanceParent      ConflictType = "instance_parent_not_template"
	ConflictOrphanException     ConflictType = "orphan_exception"
	ConflictMalformedRule       ConflictType = "malformed_rule"
	ConflictInvalidRow          ConflictType = "invalid_row"
	ConflictOverlappingLectures ConflictType = "overlapping_lectures"
)

// Conflict is one problem found in stored data
type Conflict struct {
	Type        ConflictType
	Description string
	Entity      models.Entity
	IDs         []int64
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

func (vr *ValidationResult) Add(c Conflict) {
	vr.Conflicts = append(vr.Conflicts, c)
}

// Addf records a conflict with a formatted description.
func (vr *ValidationResult) Addf(typ ConflictType, entity models.Entity, ids []int64, format string, args ...any) {
	vr.Add(Conflict{Type: typ, Entity: entity, IDs: ids, Description: fmt.Sprintf(format, args...)})
}

func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// Count returns the number of conflicts of the given type.
func (vr *ValidationResult) Count(typ ConflictType) int {
	n := 0
	for _, c := range vr.Conflicts {
		if c.Type == typ {
			n++
		}
	}
	return n
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- [%s] %s\n", c.Type, c.Description)
	}
	return b.String()
}

// CheckOccurrences reports lectures whose occurrences overlap in time.
// Cancelled occurrences are skipped.
func CheckOccurrences(occ []recurrence.Occurrence) ValidationResult {
	result := ValidationResult{Conflicts: []Conflict{}}

	var lectures []recurrence.Occurrence
	for _, o := range occ {
		if o.IsLecture && !o.Cancelled {
			lectures = append(lectures, o)
		}
	}
	sort.SliceStable(lectures, func(i, j int) bool {
		return lectures[i].Start.Before(lectures[j].Start)
	})

	for i := 0; i < len(lectures); i++ {
		for j := i + 1; j < len(lectures); j++ {
			a, b := lectures[i], lectures[j]
			if !b.Start.Before(a.End) {
				break
			}
			result.Add(Conflict{
				Type:        ConflictOverlappingLectures,
				Description: fmt.Sprintf("Lectures %q and %q overlap on %s", a.Title, b.Title, b.Start.Format("Mon 2006-01-02 15:04")),
				Entity:      models.EntityCalendarEvent,
				IDs:         []int64{a.TemplateID, b.TemplateID},
			})
		}
	}
	return result
}
