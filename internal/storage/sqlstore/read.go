package sqlstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
	"github.com/julianstephens/lectern/internal/recurrence"
)

func (s *Store) FindByID(ctx context.Context, entity models.Entity, id int64) (models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, err := s.findRow(ctx, s.db, entity, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound(entity.String(), id)
	}
	return row, nil
}

// FindMany returns the rows matching q, ordered by id (events by start time).
func (s *Store) FindMany(ctx context.Context, q query.Query) ([]models.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findMany(ctx, s.db, q)
}

func (s *Store) findMany(ctx context.Context, db querier, q query.Query) ([]models.Row, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	t, err := tableFor(q.Entity)
	if err != nil {
		return nil, err
	}

	clauses := make([]string, 0, len(q.Where))
	args := make([]any, 0, len(q.Where))
	for _, c := range q.Where {
		if !t.hasColumn(c.Column) {
			return nil, fmt.Errorf("unknown column %q on %s", c.Column, q.Entity)
		}
		switch {
		case c.Op == query.OpIsNull, c.Op == query.OpEq && arg(c.Value) == nil:
			clauses = append(clauses, c.Column+" IS NULL")
		case c.Op == query.OpNotNull:
			clauses = append(clauses, c.Column+" IS NOT NULL")
		default:
			clauses = append(clauses, c.Column+" = ?")
			args = append(args, arg(c.Value))
		}
	}

	where := strings.Join(clauses, " AND ")
	rows, err := s.selectRows(ctx, db, t, where, args...)
	if err != nil {
		return nil, err
	}
	return q.Apply(rows), nil
}

func (s *Store) events(ctx context.Context, where string, args ...any) ([]models.CalendarEvent, error) {
	t, _ := tableFor(models.EntityCalendarEvent)
	rows, err := s.selectRows(ctx, s.db, t, where, args...)
	if err != nil {
		return nil, err
	}
	out := make([]models.CalendarEvent, len(rows))
	for i, r := range rows {
		out[i] = r.(models.CalendarEvent)
	}
	return out, nil
}

// ExpandOccurrences expands one template, with its exceptions, over w.
func (s *Store) ExpandOccurrences(ctx context.Context, templateID int64, w recurrence.Window) (recurrence.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, err := s.findRow(ctx, s.db, models.EntityCalendarEvent, templateID)
	if err != nil {
		return recurrence.Result{}, err
	}
	if row == nil {
		return recurrence.Result{}, errors.NotFound(models.EntityCalendarEvent.String(), templateID)
	}
	instances, err := s.events(ctx, "recurrence_parent_id = ?", templateID)
	if err != nil {
		return recurrence.Result{}, err
	}
	return s.expand(row.(models.CalendarEvent), instances, w)
}

func (s *Store) expand(tmpl models.CalendarEvent, instances []models.CalendarEvent, w recurrence.Window) (recurrence.Result, error) {
	res, err := s.expander.Expand(tmpl, instances, w)
	if err != nil {
		return res, err
	}
	if res.Truncated {
		s.log.Warn("expansion truncated", "template", tmpl.ID, "occurrences", len(res.Occurrences), "from", w.From, "to", w.To)
	}
	return res, nil
}

// Agenda returns every occurrence overlapping w: standalone events as they
// are and templates expanded with their exceptions.
func (s *Store) Agenda(ctx context.Context, w recurrence.Window) (recurrence.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, err := s.events(ctx, "")
	if err != nil {
		return recurrence.Result{}, err
	}

	var templates []models.CalendarEvent
	instances := make(map[int64][]models.CalendarEvent)
	var lists [][]recurrence.Occurrence
	for _, ev := range all {
		switch rec := ev.Recurrence.(type) {
		case models.Template:
			templates = append(templates, ev)
		case models.Instance:
			instances[rec.ParentID] = append(instances[rec.ParentID], ev)
		default:
			lists = append(lists, recurrence.Single(ev, w))
		}
	}

	truncated := false
	for _, tmpl := range templates {
		res, err := s.expand(tmpl, instances[tmpl.ID], w)
		if err != nil {
			return recurrence.Result{}, fmt.Errorf("expanding event #%d: %w", tmpl.ID, err)
		}
		truncated = truncated || res.Truncated
		lists = append(lists, res.Occurrences)
	}
	return recurrence.Result{Occurrences: recurrence.Merge(lists...), Truncated: truncated}, nil
}

// DueReminder is an untriggered reminder whose occurrence starts within its offset.
type DueReminder struct {
	Reminder   models.EventReminder
	Occurrence recurrence.Occurrence
}

// DueReminders returns the untriggered reminders with an occurrence starting
// in [at, at+offset], each paired with the earliest such occurrence.
func (s *Store) DueReminders(ctx context.Context, at time.Time) ([]DueReminder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rt, _ := tableFor(models.EntityEventReminder)
	rows, err := s.selectRows(ctx, s.db, rt, "is_triggered = ?", false)
	if err != nil {
		return nil, err
	}

	at = at.UTC()
	var due []DueReminder
	for _, r := range rows {
		rem := r.(models.EventReminder)
		until := at.Add(time.Duration(rem.OffsetMinutes) * time.Minute)
		occ, err := s.occurrencesStarting(ctx, rem.EventID, at, until)
		if err != nil {
			return nil, fmt.Errorf("reminder #%d: %w", rem.ID, err)
		}
		if len(occ) > 0 {
			due = append(due, DueReminder{Reminder: rem, Occurrence: occ[0]})
		}
	}

	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].Occurrence.Start.Equal(due[j].Occurrence.Start) {
			return due[i].Occurrence.Start.Before(due[j].Occurrence.Start)
		}
		return due[i].Reminder.ID < due[j].Reminder.ID
	})
	return due, nil
}

// occurrencesStarting lists the occurrences of an event that start in [from, until].
func (s *Store) occurrencesStarting(ctx context.Context, eventID int64, from, until time.Time) ([]recurrence.Occurrence, error) {
	row, err := s.findRow(ctx, s.db, models.EntityCalendarEvent, eventID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errors.NotFound(models.EntityCalendarEvent.String(), eventID)
	}
	ev := row.(models.CalendarEvent)
	w := recurrence.Window{From: from, To: until.Add(time.Nanosecond)}

	var occ []recurrence.Occurrence
	if _, ok := ev.Template(); ok {
		instances, err := s.events(ctx, "recurrence_parent_id = ?", ev.ID)
		if err != nil {
			return nil, err
		}
		res, err := s.expand(ev, instances, w)
		if err != nil {
			return nil, err
		}
		occ = res.Occurrences
	} else {
		occ = recurrence.Single(ev, w)
	}

	out := occ[:0]
	for _, o := range occ {
		if !o.Start.Before(from) && !o.Start.After(until) {
			out = append(out, o)
		}
	}
	return out, nil
}
