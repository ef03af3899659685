package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/recurrence"
	"github.com/julianstephens/lectern/internal/schema"
	"github.com/julianstephens/lectern/internal/validation"
)

// Insert stores a new row and returns its id. Singleton rows always get id 1.
// The caller's ID and timestamps are ignored.
func (s *Store) Insert(ctx context.Context, row models.Row) (int64, error) {
	if row == nil {
		return 0, fmt.Errorf("insert: nil row")
	}
	row = models.Value(row)
	entity := row.Entity()
	t, err := tableFor(entity)
	if err != nil {
		return 0, err
	}
	if err := validation.ValidateRow(row); err != nil {
		return 0, err
	}
	values, err := t.values(row)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s: %w", entity, err)
	}

	var id int64
	s.mu.Lock()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkRefs(ctx, tx, t, row); err != nil {
			return err
		}
		if ev, ok := row.(models.CalendarEvent); ok {
			if err := s.checkNewInstance(ctx, tx, ev); err != nil {
				return err
			}
		}

		now := formatTime(s.now())
		cols := append([]string{}, t.columns...)
		args := append(values, now, now)
		cols = append(cols, "created_at", "updated_at")

		if schema.IsSingleton(entity) {
			present, err := s.exists(ctx, tx, entity, constants.SingletonRowID)
			if err != nil {
				return err
			}
			if present {
				return errors.SingletonViolation(entity.String(), "row already exists")
			}
			cols = append([]string{"id"}, cols...)
			args = append([]any{int64(constants.SingletonRowID)}, args...)
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
			entity, strings.Join(cols, ", "), placeholders(len(cols)))
		if err := tx.QueryRowContext(ctx, s.dialect.Rebind(query), args...).Scan(&id); err != nil {
			return fmt.Errorf("failed to insert %s: %w", entity, err)
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	s.publish(entity)
	return id, nil
}

// Update replaces every column of an existing row. created_at is kept.
func (s *Store) Update(ctx context.Context, row models.Row) error {
	if row == nil {
		return fmt.Errorf("update: nil row")
	}
	row = models.Value(row)
	entity := row.Entity()
	t, err := tableFor(entity)
	if err != nil {
		return err
	}
	id := row.RowID()
	if schema.IsSingleton(entity) && id == 0 {
		id = constants.SingletonRowID
	}
	if err := validation.ValidateRow(row); err != nil {
		return err
	}
	values, err := t.values(row)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", entity, err)
	}

	s.mu.Lock()
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := s.findRow(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if current == nil {
			return errors.NotFound(entity.String(), id)
		}
		if err := s.checkTransition(ctx, tx, current, row); err != nil {
			return err
		}
		if err := s.checkRefs(ctx, tx, t, row); err != nil {
			return err
		}

		sets := make([]string, 0, len(t.columns)+1)
		for _, c := range t.columns {
			sets = append(sets, c+" = ?")
		}
		sets = append(sets, "updated_at = ?")
		args := append(values, formatTime(s.now()), id)

		query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", entity, strings.Join(sets, ", "))
		if _, err := s.exec(ctx, tx, query, args...); err != nil {
			return fmt.Errorf("failed to update %s #%d: %w", entity, id, err)
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(entity)
	return nil
}

// Delete removes a row together with everything its delete policies reach and
// returns what was changed. Nothing is changed when any step fails.
func (s *Store) Delete(ctx context.Context, entity models.Entity, id int64) (*schema.ChangeSet, error) {
	if _, err := tableFor(entity); err != nil {
		return nil, err
	}
	if schema.IsSingleton(entity) {
		return nil, errors.SingletonViolation(entity.String(), "singleton rows cannot be deleted")
	}

	var cs *schema.ChangeSet
	s.mu.Lock()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		cs, err = s.resolve(ctx, tx, entity, id)
		if err != nil {
			return err
		}

		now := formatTime(s.now())
		for _, n := range cs.Nullifies {
			query := fmt.Sprintf("UPDATE %s SET %s = NULL, updated_at = ? WHERE id = ?", n.Row.Entity, n.Column)
			if _, err := s.exec(ctx, tx, query, now, n.Row.ID); err != nil {
				return fmt.Errorf("failed to clear %s on %s: %w", n.Column, n.Row, err)
			}
		}
		for _, ref := range cs.Deletes {
			query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", ref.Entity)
			if _, err := s.exec(ctx, tx, query, ref.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", ref, err)
			}
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.Debug("delete applied", "root", cs.Root, "deleted", len(cs.Deletes), "nullified", len(cs.Nullifies))
	s.publish(cs.Tables()...)
	return cs, nil
}

// PlanDelete returns the change-set Delete would apply, without applying it.
func (s *Store) PlanDelete(ctx context.Context, entity models.Entity, id int64) (*schema.ChangeSet, error) {
	if _, err := tableFor(entity); err != nil {
		return nil, err
	}
	if schema.IsSingleton(entity) {
		return nil, errors.SingletonViolation(entity.String(), "singleton rows cannot be deleted")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolve(ctx, s.db, entity, id)
}

func (s *Store) resolve(ctx context.Context, q querier, entity models.Entity, id int64) (*schema.ChangeSet, error) {
	present, err := s.exists(ctx, q, entity, id)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, errors.NotFound(entity.String(), id)
	}
	return schema.Resolve(ctx, s.finder(q), schema.Ref{Entity: entity, ID: id})
}

func (s *Store) finder(q querier) schema.Finder {
	return schema.FinderFunc(func(ctx context.Context, edge schema.Edge, parentID int64) ([]int64, error) {
		query := fmt.Sprintf("SELECT id FROM %s WHERE %s = ? ORDER BY id", edge.Child, edge.Column)
		return s.ids(ctx, q, query, parentID)
	})
}

// MarkReminderTriggered flips a reminder's one-way flag.
func (s *Store) MarkReminderTriggered(ctx context.Context, id int64) error {
	entity := models.EntityEventReminder
	s.mu.Lock()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row, err := s.findRow(ctx, tx, entity, id)
		if err != nil {
			return err
		}
		if row == nil {
			return errors.NotFound(entity.String(), id)
		}
		if row.(models.EventReminder).IsTriggered {
			return errors.InvariantViolation(entity.String(), id, "reminder already triggered")
		}
		_, err = s.exec(ctx, tx, "UPDATE event_reminders SET is_triggered = ?, updated_at = ? WHERE id = ?",
			true, formatTime(s.now()), id)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(entity)
	return nil
}

// checkRefs fails when a foreign key of row names a missing parent.
func (s *Store) checkRefs(ctx context.Context, q querier, t *table, row models.Row) error {
	refs := t.refs(row)
	for _, edge := range schema.ParentEdges(t.entity) {
		target := refs[edge.Column]
		if target == 0 {
			if !edge.Nullable {
				return errors.ConstraintViolation(t.entity.String(), row.RowID(), "%s is required", edge.Column)
			}
			continue
		}
		present, err := s.exists(ctx, q, edge.Parent, target)
		if err != nil {
			return err
		}
		if !present {
			return errors.ConstraintViolation(t.entity.String(), row.RowID(), "%s references missing %s #%d", edge.Column, edge.Parent, target)
		}
	}
	return nil
}

// checkNewInstance requires an instance's parent to be a template that
// generates its anchor, and the anchor to be unused.
func (s *Store) checkNewInstance(ctx context.Context, q querier, ev models.CalendarEvent) error {
	inst, ok := ev.Instance()
	if !ok {
		return nil
	}
	parent, err := s.requireTemplate(ctx, q, ev.ID, inst.ParentID)
	if err != nil {
		return err
	}
	generated, err := recurrence.AnchorMatches(parent, inst.AnchorDate)
	if err != nil {
		return err
	}
	if !generated {
		return errors.ConstraintViolation(models.EntityCalendarEvent.String(), ev.ID,
			"template #%d has no occurrence at %s", inst.ParentID, formatTime(inst.AnchorDate))
	}

	taken, err := s.ids(ctx, q, "SELECT id FROM calendar_events WHERE recurrence_parent_id = ? AND recurrence_date = ?",
		inst.ParentID, formatTime(inst.AnchorDate))
	if err != nil {
		return fmt.Errorf("failed to check anchor: %w", err)
	}
	if len(taken) > 0 {
		return errors.ConstraintViolation(models.EntityCalendarEvent.String(), ev.ID,
			"template #%d already has instance #%d anchored at %s", inst.ParentID, taken[0], formatTime(inst.AnchorDate))
	}
	return nil
}

func (s *Store) requireTemplate(ctx context.Context, q querier, id, parentID int64) (models.CalendarEvent, error) {
	row, err := s.findRow(ctx, q, models.EntityCalendarEvent, parentID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	if row == nil {
		return models.CalendarEvent{}, errors.ConstraintViolation(models.EntityCalendarEvent.String(), id, "recurrence_parent_id references missing calendar_events #%d", parentID)
	}
	parent := row.(models.CalendarEvent)
	if _, ok := parent.Template(); !ok {
		return models.CalendarEvent{}, errors.InvariantViolation(models.EntityCalendarEvent.String(), id, "parent #%d is not a recurrence template", parentID)
	}
	return parent, nil
}

// checkTransition enforces the invariants that relate a row to its stored
// version.
func (s *Store) checkTransition(ctx context.Context, q querier, current, next models.Row) error {
	switch cur := current.(type) {
	case models.CalendarEvent:
		return s.checkEventTransition(ctx, q, cur, next.(models.CalendarEvent))
	case models.EventReminder:
		if cur.IsTriggered && !next.(models.EventReminder).IsTriggered {
			return errors.InvariantViolation(models.EntityEventReminder.String(), cur.ID, "a triggered reminder cannot be reset")
		}
	}
	return nil
}

func (s *Store) checkEventTransition(ctx context.Context, q querier, cur, next models.CalendarEvent) error {
	entity := models.EntityCalendarEvent.String()
	from, to := cur.Kind(), next.Kind()

	switch {
	case from == models.KindInstance && to != models.KindInstance:
		return errors.InvariantViolation(entity, cur.ID, "an instance cannot become a %s", to)
	case from != models.KindInstance && to == models.KindInstance:
		return errors.InvariantViolation(entity, cur.ID, "a %s cannot become an instance", from)
	case from == models.KindInstance:
		was, _ := cur.Instance()
		now, _ := next.Instance()
		if was.ParentID != now.ParentID {
			return errors.InvariantViolation(entity, cur.ID, "an instance cannot move to another template")
		}
		if !was.AnchorDate.Equal(now.AnchorDate) {
			return errors.InvariantViolation(entity, cur.ID, "an instance anchor cannot change")
		}
	case from == models.KindTemplate && to == models.KindStandalone:
		children, err := s.ids(ctx, q, "SELECT id FROM calendar_events WHERE recurrence_parent_id = ?", cur.ID)
		if err != nil {
			return fmt.Errorf("failed to list instances: %w", err)
		}
		if len(children) > 0 {
			return errors.InvariantViolation(entity, cur.ID, "template still has %d instance(s)", len(children))
		}
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
