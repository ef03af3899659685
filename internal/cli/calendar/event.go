package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
	"github.com/julianstephens/lectern/internal/recurrence"
	"github.com/julianstephens/lectern/internal/validation"
)

type EventCmd struct {
	Add    EventAddCmd    `cmd:"" help:"Add an event or a recurring series."`
	Except EventExceptCmd `cmd:"" help:"Move, retitle or cancel one occurrence of a series."`
	List   EventListCmd   `cmd:"" help:"Show the agenda for a date range."`
	Show   EventShowCmd   `cmd:"" help:"Show one event with its reminders and recordings."`
	Edit   EventEditCmd   `cmd:"" help:"Edit an event."`
	Delete EventDeleteCmd `cmd:"" help:"Delete an event; a series takes its exceptions with it."`
}

// location resolves a timezone flag, defaulting to the local zone.
func location(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
	return loc, nil
}

type EventAddCmd struct {
	Title       string        `arg:"" help:"Event title."`
	Start       string        `help:"Start as \"YYYY-MM-DD HH:MM\" (or YYYY-MM-DD with --all-day)." required:""`
	End         string        `help:"End time; defaults to start plus the configured event length."`
	Duration    time.Duration `help:"Length instead of --end, e.g. 1h30m."`
	AllDay      bool          `help:"All-day event." name:"all-day"`
	Lecture     bool          `help:"Mark as a lecture."`
	Location    string        `help:"Where it takes place."`
	Description string        `help:"Longer description."`
	Timezone    string        `help:"IANA timezone the times are given in."`
	Category    int64         `help:"Category ID (defaults to the default category)."`
	Rule        string        `help:"Recurrence rule, e.g. FREQ=WEEKLY;BYDAY=MO,WE;COUNT=24."`
	NoReminders bool          `help:"Skip the default reminders." name:"no-reminders"`
}

func (c *EventAddCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.CalendarSettings(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to get calendar settings: %w", err)
	}
	loc, err := location(c.Timezone)
	if err != nil {
		return err
	}

	start, err := cli.ParseDateTime(c.Start, loc)
	if err != nil {
		return err
	}
	var end time.Time
	switch {
	case c.End != "":
		if end, err = cli.ParseDateTime(c.End, loc); err != nil {
			return err
		}
	case c.Duration > 0:
		end = start.Add(c.Duration)
	case c.AllDay:
		end = start.AddDate(0, 0, 1)
	default:
		end = start.Add(time.Duration(settings.DefaultEventDurationMin) * time.Minute)
	}

	ev := models.CalendarEvent{
		Title:       c.Title,
		Description: c.Description,
		StartTime:   start,
		EndTime:     end,
		AllDay:      c.AllDay,
		IsLecture:   c.Lecture,
		Location:    c.Location,
		Timezone:    c.Timezone,
		CategoryID:  cli.OptionalID(c.Category),
	}
	if ev.CategoryID == nil {
		if ev.CategoryID, err = defaultCategory(ctx); err != nil {
			return err
		}
	}
	if c.Rule != "" {
		ev.Recurrence = models.Template{Rule: c.Rule}
	}

	var reminders []models.EventReminder
	if !c.NoReminders {
		if reminders, err = defaultReminders(settings.DefaultReminderOffsets); err != nil {
			return err
		}
	}

	id, err := ctx.Store.Insert(ctx.Ctx(), ev)
	if err != nil {
		return fmt.Errorf("failed to add event: %w", err)
	}
	for _, r := range reminders {
		r.EventID = id
		if _, err := ctx.Store.Insert(ctx.Ctx(), r); err != nil {
			if _, derr := ctx.Store.Delete(ctx.Ctx(), models.EntityCalendarEvent, id); derr != nil {
				cli.Warn("event %d was added without all of its reminders: %v", id, derr)
			}
			return fmt.Errorf("failed to add reminder: %w", err)
		}
	}
	fmt.Printf("Added event: %s (ID: %d)\n", c.Title, id)
	return nil
}

// defaultReminders builds and checks the configured reminders before the
// event they belong to is written.
func defaultReminders(offsets []int) ([]models.EventReminder, error) {
	out := make([]models.EventReminder, 0, len(offsets))
	for _, offset := range offsets {
		// EventID is filled in once the event exists.
		r := models.EventReminder{EventID: 1, OffsetMinutes: offset, Type: constants.DefaultReminderType}
		if err := validation.ValidateRow(r); err != nil {
			return nil, fmt.Errorf("invalid default reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, nil
}

type EventExceptCmd struct {
	Series int64  `arg:"" help:"Series (template event) ID."`
	Date   string `arg:"" help:"Date of the occurrence to change (YYYY-MM-DD)."`
	Start  string `help:"New start as \"YYYY-MM-DD HH:MM\"."`
	End    string `help:"New end; defaults to the new start plus the series length."`
	Title  string `help:"Title for this occurrence only."`
	Cancel bool   `help:"Cancel this occurrence."`
}

func (c *EventExceptCmd) Run(ctx *cli.Context) error {
	row, err := ctx.Store.FindByID(ctx.Ctx(), models.EntityCalendarEvent, c.Series)
	if err != nil {
		return err
	}
	tmpl := row.(models.CalendarEvent)
	if tmpl.Kind() != models.KindTemplate {
		return fmt.Errorf("event %d is not a recurring series", c.Series)
	}
	loc, err := location(tmpl.Timezone)
	if err != nil {
		return err
	}

	occ, err := c.findOccurrence(ctx, loc)
	if err != nil {
		return err
	}

	start, end := occ.Start, occ.End
	if c.Start != "" {
		if start, err = cli.ParseDateTime(c.Start, loc); err != nil {
			return err
		}
		end = start.Add(tmpl.Duration())
	}
	if c.End != "" {
		if end, err = cli.ParseDateTime(c.End, loc); err != nil {
			return err
		}
	}

	id, err := ctx.Store.Insert(ctx.Ctx(), models.CalendarEvent{
		Title:       c.Title,
		Description: tmpl.Description,
		StartTime:   start,
		EndTime:     end,
		AllDay:      tmpl.AllDay,
		IsLecture:   tmpl.IsLecture,
		Location:    tmpl.Location,
		Timezone:    tmpl.Timezone,
		CategoryID:  tmpl.CategoryID,
		Cancelled:   c.Cancel,
		Recurrence: models.Instance{
			ParentID:    tmpl.ID,
			AnchorDate:  occ.OccurrenceDate,
			IsException: true,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to add exception: %w", err)
	}
	verb := "Moved"
	if c.Cancel {
		verb = "Cancelled"
	}
	fmt.Printf("%s occurrence on %s (exception ID: %d)\n", verb, c.Date, id)
	return nil
}

// findOccurrence returns the occurrence the series generates on Date.
func (c *EventExceptCmd) findOccurrence(ctx *cli.Context, loc *time.Location) (recurrence.Occurrence, error) {
	day, err := time.ParseInLocation(constants.DateFormat, c.Date, loc)
	if err != nil {
		return recurrence.Occurrence{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD)", c.Date)
	}
	res, err := ctx.Store.ExpandOccurrences(ctx.Ctx(), c.Series, recurrence.Window{
		From:             day,
		To:               day.AddDate(0, 0, 1),
		IncludeCancelled: true,
	})
	if err != nil {
		return recurrence.Occurrence{}, err
	}
	for _, occ := range res.Occurrences {
		if !sameDay(occ.OccurrenceDate.In(loc), day) {
			continue
		}
		if occ.ExceptionID != 0 {
			return recurrence.Occurrence{}, fmt.Errorf("the occurrence on %s already has exception %d", c.Date, occ.ExceptionID)
		}
		return occ, nil
	}
	return recurrence.Occurrence{}, fmt.Errorf("series %d has no occurrence on %s", c.Series, c.Date)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

type EventListCmd struct {
	From      string `help:"First day (YYYY-MM-DD); defaults to today."`
	Days      int    `help:"Number of days to show." default:"7"`
	Cancelled bool   `help:"Include cancelled occurrences."`
	Lectures  bool   `help:"Only lectures."`
}

func (c *EventListCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.CalendarSettings(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to get calendar settings: %w", err)
	}

	now := time.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	if c.From != "" {
		if from, err = time.ParseInLocation(constants.DateFormat, c.From, time.Local); err != nil {
			return fmt.Errorf("invalid date %q (use YYYY-MM-DD)", c.From)
		}
	}
	w := recurrence.Window{From: from, To: from.AddDate(0, 0, c.Days), IncludeCancelled: c.Cancelled}

	agenda, err := ctx.Store.Agenda(ctx.Ctx(), w)
	if err != nil {
		return fmt.Errorf("failed to load agenda: %w", err)
	}

	rows := [][]string{}
	muted := map[int]bool{}
	for _, occ := range agenda.Occurrences {
		if c.Lectures && !occ.IsLecture {
			continue
		}
		if occ.Cancelled {
			muted[len(rows)] = true
		}
		rows = append(rows, agendaRow(occ, settings.TimeFormat))
	}
	if len(rows) == 0 {
		fmt.Printf("No events between %s and %s\n", w.From.Format(constants.DateFormat), w.To.AddDate(0, 0, -1).Format(constants.DateFormat))
	} else {
		fmt.Println(cli.RenderTable([]string{"Date", "Time", "Event", "Where", "ID"}, rows, muted))
	}

	if agenda.Truncated {
		cli.Warn("agenda truncated; narrow the date range to see every occurrence")
	}
	if conflicts := validation.CheckOccurrences(agenda.Occurrences); conflicts.HasConflicts() {
		for _, conflict := range conflicts.Conflicts {
			cli.Warn("%s", conflict.Description)
		}
	}
	return nil
}

func agendaRow(occ recurrence.Occurrence, timeFormat string) []string {
	start := occ.Start.Local()
	when := "all day"
	if !occ.AllDay {
		when = cli.FormatTime(start, timeFormat) + "–" + cli.FormatTime(occ.End.Local(), timeFormat)
	}
	title := occ.Title
	if occ.IsLecture {
		title += " (lecture)"
	}
	if occ.Cancelled {
		title += " [cancelled]"
	}
	id := strconv.FormatInt(occ.TemplateID, 10)
	if occ.ExceptionID != 0 {
		id += "/" + strconv.FormatInt(occ.ExceptionID, 10)
	}
	return []string{start.Format("Mon 2006-01-02"), when, title, occ.Location, id}
}

type EventShowCmd struct {
	ID   int64 `arg:"" help:"Event ID."`
	Next int   `help:"Upcoming occurrences to list for a series." default:"5"`
}

func (c *EventShowCmd) Run(ctx *cli.Context) error {
	row, err := ctx.Store.FindByID(ctx.Ctx(), models.EntityCalendarEvent, c.ID)
	if err != nil {
		return err
	}
	ev := row.(models.CalendarEvent)

	fmt.Printf("%s (ID: %d)\n", displayTitle(ev), ev.ID)
	fmt.Printf("  When:       %s – %s\n", ev.StartTime.Local().Format(constants.DateTimeFormat), ev.EndTime.Local().Format(constants.DateTimeFormat))
	fmt.Printf("  Recurrence: %s\n", cli.FormatRecurrence(ev))
	if ev.Location != "" {
		fmt.Printf("  Where:      %s\n", ev.Location)
	}
	if ev.Timezone != "" {
		fmt.Printf("  Timezone:   %s\n", ev.Timezone)
	}
	if ev.CategoryID != nil {
		fmt.Printf("  Category:   %d\n", *ev.CategoryID)
	}
	if ev.Cancelled {
		fmt.Println("  Cancelled")
	}
	if ev.Description != "" {
		fmt.Printf("\n%s\n", ev.Description)
	}

	reminders, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityEventReminder, query.Eq("event_id", ev.ID)))
	if err != nil {
		return err
	}
	if len(reminders) > 0 {
		fmt.Println("\nReminders:")
		for _, r := range reminders {
			rem := r.(models.EventReminder)
			state := ""
			if rem.IsTriggered {
				state = " (sent)"
			}
			fmt.Printf("  #%d %s %d min before%s\n", rem.ID, rem.Type, rem.OffsetMinutes, state)
		}
	}

	recordings, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityRecording, query.Eq("calendar_event_id", ev.ID)))
	if err != nil {
		return err
	}
	if len(recordings) > 0 {
		fmt.Println("\nRecordings:")
		for _, r := range recordings {
			rec := r.(models.Recording)
			fmt.Printf("  #%d %s\n", rec.ID, rec.Name)
		}
	}

	if ev.Kind() == models.KindTemplate && c.Next > 0 {
		from := time.Now()
		if ev.StartTime.After(from) {
			from = ev.StartTime
		}
		// a year ahead is enough for any lecture series
		res, err := ctx.Store.ExpandOccurrences(ctx.Ctx(), ev.ID, recurrence.Window{From: from, To: from.AddDate(1, 0, 0)})
		if err != nil {
			return err
		}
		fmt.Println("\nUpcoming:")
		for i, occ := range res.Occurrences {
			if i == c.Next {
				break
			}
			fmt.Printf("  %s  %s\n", occ.Start.Local().Format(constants.DateTimeFormat), occ.Title)
		}
	}
	return nil
}

func displayTitle(ev models.CalendarEvent) string {
	if strings.TrimSpace(ev.Title) == "" {
		return "(untitled exception)"
	}
	return ev.Title
}

type EventEditCmd struct {
	ID       int64   `arg:"" help:"Event ID."`
	Title    *string `help:"New title."`
	Location *string `help:"New location."`
	Start    string  `help:"New start; the length is kept."`
	Rule     *string `help:"New recurrence rule (series only)."`
	Category *int64  `help:"Category ID (0 clears it)."`
	Lecture  *bool   `help:"Mark or unmark as a lecture."`
	Cancel   *bool   `help:"Cancel or restore the event."`
}

func (c *EventEditCmd) Run(ctx *cli.Context) error {
	row, err := ctx.Store.FindByID(ctx.Ctx(), models.EntityCalendarEvent, c.ID)
	if err != nil {
		return err
	}
	ev := row.(models.CalendarEvent)

	if c.Title != nil {
		ev.Title = *c.Title
	}
	if c.Location != nil {
		ev.Location = *c.Location
	}
	if c.Start != "" {
		loc, err := location(ev.Timezone)
		if err != nil {
			return err
		}
		start, err := cli.ParseDateTime(c.Start, loc)
		if err != nil {
			return err
		}
		d := ev.Duration()
		ev.StartTime, ev.EndTime = start, start.Add(d)
	}
	if c.Rule != nil {
		// the store rejects rules on instances
		ev.Recurrence = models.Template{Rule: *c.Rule}
	}
	if c.Category != nil {
		ev.CategoryID = cli.OptionalID(*c.Category)
	}
	if c.Lecture != nil {
		ev.IsLecture = *c.Lecture
	}
	if c.Cancel != nil {
		ev.Cancelled = *c.Cancel
	}

	if err := ctx.Store.Update(ctx.Ctx(), ev); err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	fmt.Printf("Updated event: %s (ID: %d)\n", displayTitle(ev), ev.ID)
	return nil
}

type EventDeleteCmd struct {
	ID int64 `arg:"" help:"Event ID to delete."`
}

func (c *EventDeleteCmd) Run(ctx *cli.Context) error {
	_, err := ctx.DeleteWithConfirmation(models.EntityCalendarEvent, c.ID)
	return err
}
