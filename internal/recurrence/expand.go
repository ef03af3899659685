package recurrence

import (
	"fmt"
	"sort"
	"time"

	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/errors"
	"github.com/julianstephens/lectern/internal/models"
)

// Window is the half-open interval [From, To) an expansion is restricted to.
type Window struct {
	From time.Time
	To   time.Time
	// IncludeCancelled keeps cancelled exceptions in the output.
	IncludeCancelled bool
}

// Occurrence is one concrete, dated occurrence of an event.
type Occurrence struct {
	TemplateID int64 `json:"template_id"`
	// OccurrenceDate is the start the rule generated, before any exception moved it.
	OccurrenceDate time.Time `json:"occurrence_date"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	Timezone       string    `json:"timezone,omitempty"`
	AllDay         bool      `json:"all_day"`
	IsLecture      bool      `json:"is_lecture"`
	CategoryID     *int64    `json:"category_id,omitempty"`
	// ExceptionID is the id of the exception row that produced this occurrence, or 0.
	ExceptionID int64 `json:"exception_id,omitempty"`
	Cancelled   bool  `json:"cancelled"`
}

// Key identifies the occurrence stably across repeated expansions.
func (o Occurrence) Key() string {
	return fmt.Sprintf("%d@%s", o.TemplateID, o.OccurrenceDate.UTC().Format(time.RFC3339))
}

// Result is the output of one expansion.
type Result struct {
	Occurrences []Occurrence
	// Truncated is set when the occurrence limit cut the result short.
	Truncated bool
}

// Expander expands templates. The zero value uses the default occurrence limit.
type Expander struct {
	MaxOccurrences int
}

// Expand expands tmpl with the default Expander.
func Expand(tmpl models.CalendarEvent, exceptions []models.CalendarEvent, w Window) (Result, error) {
	return Expander{}.Expand(tmpl, exceptions, w)
}

func (x Expander) limit() int {
	if x.MaxOccurrences > 0 {
		return x.MaxOccurrences
	}
	return constants.DefaultMaxOccurrences
}

// Expand returns the occurrences of tmpl overlapping w in ascending start
// order. Exceptions are instances of tmpl flagged IsException; each replaces
// the generated occurrence whose start equals its anchor, or, for an anchor
// at midnight, the occurrence generated on that UTC date. Anchors that match
// no generated occurrence are ignored.
//
// All arithmetic is in UTC. The result depends only on the arguments.
func (x Expander) Expand(tmpl models.CalendarEvent, exceptions []models.CalendarEvent, w Window) (Result, error) {
	t, ok := tmpl.Template()
	if !ok {
		return Result{}, errors.InvariantViolation(models.EntityCalendarEvent.String(), tmpl.ID, "event is not a recurrence template")
	}
	rule, err := Parse(t.Rule)
	if err != nil {
		return Result{}, err
	}

	from, to := w.From.UTC(), w.To.UTC()
	if !to.After(from) {
		return Result{}, nil
	}

	dtstart := tmpl.StartTime.UTC().Truncate(time.Second)
	gen, err := rule.compile(dtstart)
	if err != nil {
		return Result{}, errors.MalformedRule(t.Rule, "%v", err)
	}

	overrides := matchExceptions(gen.Between, tmpl.ID, exceptions)
	duration := tmpl.Duration()
	limit := x.limit()

	var out []Occurrence
	truncated := false

	next := gen.Iterator()
	for {
		start, ok := next()
		if !ok || !start.Before(to) {
			break
		}
		if _, replaced := overrides[start.Unix()]; replaced {
			continue
		}
		end := start.Add(duration)
		if !overlaps(start, end, from, to) {
			continue
		}
		if len(out) == limit {
			truncated = true
			break
		}
		out = append(out, fromTemplate(tmpl, start, end))
	}

	for anchor, ex := range overrides {
		occ := fromException(tmpl, ex, time.Unix(anchor, 0).UTC())
		if occ.Cancelled && !w.IncludeCancelled {
			continue
		}
		if overlaps(occ.Start, occ.End, from, to) {
			out = append(out, occ)
		}
	}

	sortOccurrences(out)
	if len(out) > limit {
		out = out[:limit]
		truncated = true
	}
	return Result{Occurrences: out, Truncated: truncated}, nil
}

type betweenFunc func(after, before time.Time, inc bool) []time.Time

// matchExceptions maps generated starts (unix seconds) to the exception that
// replaces them. An exact anchor wins over a midnight anchor on the same date.
func matchExceptions(between betweenFunc, templateID int64, exceptions []models.CalendarEvent) map[int64]models.CalendarEvent {
	out := make(map[int64]models.CalendarEvent)
	exact := make(map[int64]bool)

	for _, ex := range exceptions {
		inst, ok := ex.Instance()
		if !ok || !inst.IsException || inst.ParentID != templateID {
			continue
		}
		anchor := inst.AnchorDate.UTC().Truncate(time.Second)

		if hits := between(anchor, anchor, true); len(hits) > 0 {
			out[anchor.Unix()] = ex
			exact[anchor.Unix()] = true
			continue
		}
		if !isMidnight(anchor) {
			continue
		}
		hits := between(anchor, anchor.Add(24*time.Hour-time.Second), true)
		if len(hits) == 0 {
			continue
		}
		key := hits[0].Unix()
		if !exact[key] {
			out[key] = ex
		}
	}
	return out
}

// AnchorMatches reports whether anchor names an occurrence tmpl generates,
// using the same exact-or-midnight rule as Expand.
func AnchorMatches(tmpl models.CalendarEvent, anchor time.Time) (bool, error) {
	t, ok := tmpl.Template()
	if !ok {
		return false, errors.InvariantViolation(models.EntityCalendarEvent.String(), tmpl.ID, "event is not a recurrence template")
	}
	rule, err := Parse(t.Rule)
	if err != nil {
		return false, err
	}
	gen, err := rule.compile(tmpl.StartTime.UTC().Truncate(time.Second))
	if err != nil {
		return false, errors.MalformedRule(t.Rule, "%v", err)
	}
	anchor = anchor.UTC().Truncate(time.Second)
	if len(gen.Between(anchor, anchor, true)) > 0 {
		return true, nil
	}
	if !isMidnight(anchor) {
		return false, nil
	}
	return len(gen.Between(anchor, anchor.Add(24*time.Hour-time.Second), true)) > 0, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0
}

// Single returns the occurrence of a standalone event if it overlaps w.
func Single(ev models.CalendarEvent, w Window) []Occurrence {
	start, end := ev.StartTime.UTC(), ev.EndTime.UTC()
	if !overlaps(start, end, w.From.UTC(), w.To.UTC()) {
		return nil
	}
	if ev.Cancelled && !w.IncludeCancelled {
		return nil
	}
	return []Occurrence{fromTemplate(ev, start, end)}
}

// Merge combines occurrence lists into one list in expansion order.
func Merge(lists ...[]Occurrence) []Occurrence {
	var out []Occurrence
	for _, l := range lists {
		out = append(out, l...)
	}
	sortOccurrences(out)
	return out
}

func fromTemplate(ev models.CalendarEvent, start, end time.Time) Occurrence {
	return Occurrence{
		TemplateID:     ev.ID,
		OccurrenceDate: start,
		Start:          start,
		End:            end,
		Title:          ev.Title,
		Description:    ev.Description,
		Location:       ev.Location,
		Timezone:       ev.Timezone,
		AllDay:         ev.AllDay,
		IsLecture:      ev.IsLecture,
		CategoryID:     copyID(ev.CategoryID),
		Cancelled:      ev.Cancelled,
	}
}

func fromException(tmpl, ex models.CalendarEvent, anchor time.Time) Occurrence {
	occ := fromTemplate(ex, ex.StartTime.UTC(), ex.EndTime.UTC())
	occ.TemplateID = tmpl.ID
	occ.OccurrenceDate = anchor
	occ.ExceptionID = ex.ID
	if occ.Title == "" {
		occ.Title = tmpl.Title
	}
	return occ
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// overlaps reports whether [start, end) intersects [from, to). A zero-length
// occurrence overlaps when it starts inside the window.
func overlaps(start, end, from, to time.Time) bool {
	if !start.Before(to) {
		return false
	}
	return end.After(from) || !start.Before(from)
}

func sortOccurrences(occ []Occurrence) {
	sort.SliceStable(occ, func(i, j int) bool {
		a, b := occ[i], occ[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.OccurrenceDate.Equal(b.OccurrenceDate) {
			return a.OccurrenceDate.Before(b.OccurrenceDate)
		}
		return a.TemplateID < b.TemplateID
	})
}
