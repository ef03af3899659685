package sqlstore

import (
	"context"
	"fmt"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
	"github.com/julianstephens/lectern/internal/recurrence"
	"github.com/julianstephens/lectern/internal/schema"
	"github.com/julianstephens/lectern/internal/validation"
)

// CheckIntegrity scans the stored data for anything the gateway would have
// refused to write. Databases written by older versions or edited by hand are
// the usual source.
func (s *Store) CheckIntegrity(ctx context.Context) (*validation.ValidationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &validation.ValidationResult{Conflicts: []validation.Conflict{}}

	for _, entity := range models.Entities {
		if !schema.IsSingleton(entity) {
			continue
		}
		present, err := s.exists(ctx, s.db, entity, constants.SingletonRowID)
		if err != nil {
			return nil, err
		}
		if !present {
			result.Addf(validation.ConflictMissingSingleton, entity, nil, "%s has no row #%d", entity, constants.SingletonRowID)
		}
	}

	for _, edge := range schema.Edges {
		stmt := fmt.Sprintf(
			"SELECT c.id FROM %s c LEFT JOIN %s p ON c.%s = p.id WHERE c.%s IS NOT NULL AND p.id IS NULL ORDER BY c.id",
			edge.Child, edge.Parent, edge.Column, edge.Column)
		ids, err := s.ids(ctx, s.db, stmt)
		if err != nil {
			return nil, fmt.Errorf("failed to check %s: %w", edge, err)
		}
		if len(ids) > 0 {
			result.Addf(validation.ConflictDanglingReference, edge.Child, ids, "%d %s row(s) reference missing %s via %s", len(ids), edge.Child, edge.Parent, edge.Column)
		}
	}

	both, err := s.ids(ctx, s.db, "SELECT id FROM calendar_events WHERE recurrence_rule IS NOT NULL AND recurrence_parent_id IS NOT NULL ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to check recurrence columns: %w", err)
	}
	if len(both) > 0 {
		result.Addf(validation.ConflictRecurrenceExclusive, models.EntityCalendarEvent, both, "%d event(s) carry both a rule and a parent", len(both))
	}

	for _, entity := range models.Entities {
		rows, err := s.findMany(ctx, s.db, query.For(entity))
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			if err := validation.ValidateRow(row); err != nil {
				typ := validation.ConflictInvalidRow
				if errors.Is(err, errors.ErrMalformedRule) {
					typ = validation.ConflictMalformedRule
				}
				result.Addf(typ, entity, []int64{row.RowID()}, "%s #%d: %v", entity, row.RowID(), err)
			}
		}
		if entity == models.EntityCalendarEvent {
			checkInstances(result, rows)
		}
	}

	return result, nil
}

// checkInstances reports instances whose parent is not a template and
// exceptions whose anchor the template never generates.
func checkInstances(result *validation.ValidationResult, rows []models.Row) {
	byID := make(map[int64]models.CalendarEvent, len(rows))
	for _, r := range rows {
		ev := r.(models.CalendarEvent)
		byID[ev.ID] = ev
	}

	for _, r := range rows {
		ev := r.(models.CalendarEvent)
		inst, ok := ev.Instance()
		if !ok {
			continue
		}
		parent, ok := byID[inst.ParentID]
		if !ok {
			// reported as a dangling reference
			continue
		}
		if _, isTemplate := parent.Template(); !isTemplate {
			result.Addf(validation.ConflictInstanceParent, models.EntityCalendarEvent, []int64{ev.ID},
				"instance #%d belongs to event #%d which is not a template", ev.ID, parent.ID)
			continue
		}
		if !inst.IsException {
			continue
		}
		matches, err := recurrence.AnchorMatches(parent, inst.AnchorDate)
		if err != nil {
			// the template's own rule is reported separately
			continue
		}
		if !matches {
			result.Addf(validation.ConflictOrphanException, models.EntityCalendarEvent, []int64{ev.ID},
				"exception #%d is anchored at %s, which template #%d never generates", ev.ID, formatTime(inst.AnchorDate), parent.ID)
		}
	}
}
