package calendar

import (
	"fmt"
	"strconv"
	"time"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/notifier"
	"github.com/julianstephens/lectern/internal/query"
	"github.com/julianstephens/lectern/internal/storage/sqlstore"
)

type ReminderCmd struct {
	Add    ReminderAddCmd    `cmd:"" help:"Add a reminder to an event."`
	List   ReminderListCmd   `cmd:"" help:"List reminders."`
	Due    ReminderDueCmd    `cmd:"" help:"Show reminders that are due."`
	Fire   ReminderFireCmd   `cmd:"" help:"Mark due reminders as triggered."`
	Delete ReminderDeleteCmd `cmd:"" help:"Delete a reminder."`
}

type ReminderAddCmd struct {
	Event  int64  `arg:"" help:"Event ID."`
	Offset int    `help:"Minutes before the event starts." default:"10"`
	Type   string `help:"notification, email or alarm." default:"${default_reminder_type}"`
}

func (c *ReminderAddCmd) Run(ctx *cli.Context) error {
	id, err := ctx.Store.Insert(ctx.Ctx(), models.EventReminder{
		EventID:       c.Event,
		OffsetMinutes: c.Offset,
		Type:          c.Type,
	})
	if err != nil {
		return fmt.Errorf("failed to add reminder: %w", err)
	}
	fmt.Printf("Added reminder %d: %s %d min before event %d\n", id, c.Type, c.Offset, c.Event)
	return nil
}

type ReminderListCmd struct {
	Event   int64 `help:"Only reminders for this event."`
	Pending bool  `help:"Only reminders not yet triggered."`
}

func (c *ReminderListCmd) Run(ctx *cli.Context) error {
	var conds []query.Cond
	if c.Event != 0 {
		conds = append(conds, query.Eq("event_id", c.Event))
	}
	if c.Pending {
		conds = append(conds, query.Eq("is_triggered", false))
	}
	reminders, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityEventReminder, conds...))
	if err != nil {
		return fmt.Errorf("failed to get reminders: %w", err)
	}

	rows := make([][]string, 0, len(reminders))
	for _, row := range reminders {
		r := row.(models.EventReminder)
		state := "pending"
		if r.IsTriggered {
			state = "sent"
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			strconv.FormatInt(r.EventID, 10),
			r.Type,
			fmt.Sprintf("%d min", r.OffsetMinutes),
			state,
		})
	}
	cli.PrintTable([]string{"ID", "Event", "Type", "Before", "State"}, rows, "No reminders found")
	return nil
}

type ReminderDueCmd struct {
	At string `help:"Check as of this time (\"YYYY-MM-DD HH:MM\"); defaults to now."`
}

func (c *ReminderDueCmd) Run(ctx *cli.Context) error {
	at, err := reminderTime(c.At)
	if err != nil {
		return err
	}
	return printDue(ctx, at, nil)
}

type ReminderFireCmd struct {
	At     string `help:"Fire as of this time (\"YYYY-MM-DD HH:MM\"); defaults to now."`
	Notify bool   `help:"Deliver each reminder through lectern-tray; failed deliveries stay pending."`
}

func (c *ReminderFireCmd) Run(ctx *cli.Context) error {
	at, err := reminderTime(c.At)
	if err != nil {
		return err
	}

	deliver := func(sqlstore.DueReminder) error { return nil }
	if c.Notify {
		n := notifier.New()
		deliver = func(d sqlstore.DueReminder) error {
			return n.Notify(ctx.Ctx(), reminderMessage(d, at))
		}
	}

	fired := 0
	err = printDue(ctx, at, func(d sqlstore.DueReminder) error {
		if err := deliver(d); err != nil {
			cli.Warn("reminder %d not delivered: %v", d.Reminder.ID, err)
			return nil
		}
		if err := ctx.Store.MarkReminderTriggered(ctx.Ctx(), d.Reminder.ID); err != nil {
			return fmt.Errorf("failed to mark reminder %d: %w", d.Reminder.ID, err)
		}
		fired++
		return nil
	})
	if err != nil {
		return err
	}
	if fired > 0 {
		fmt.Printf("Fired %d reminder(s)\n", fired)
	}
	return nil
}

func reminderTime(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	return cli.ParseDateTime(s, time.Local)
}

func reminderMessage(d sqlstore.DueReminder, at time.Time) notifier.Message {
	msg := notifier.Message{
		Title: d.Occurrence.Title,
		Text:  fmt.Sprintf("Starts at %s (in %s)", d.Occurrence.Start.Local().Format(constants.TimeFormat), d.Occurrence.Start.Sub(at).Round(time.Minute)),
		Kind:  d.Reminder.Type,
	}
	if d.Occurrence.Location != "" {
		msg.Text += " in " + d.Occurrence.Location
	}
	if d.Reminder.Type == constants.ReminderAlarm {
		msg.DurationMs = constants.AlarmDurationMs
	}
	return msg
}

// printDue lists the reminders due at at, passing each to fire when it is set.
func printDue(ctx *cli.Context, at time.Time, fire func(sqlstore.DueReminder) error) error {
	due, err := ctx.Store.DueReminders(ctx.Ctx(), at)
	if err != nil {
		return fmt.Errorf("failed to get due reminders: %w", err)
	}
	if len(due) == 0 {
		fmt.Println("No reminders due")
		return nil
	}

	for _, d := range due {
		in := d.Occurrence.Start.Sub(at).Round(time.Minute)
		fmt.Printf("🔔 [%s] %s at %s (in %s)\n",
			d.Reminder.Type, d.Occurrence.Title, d.Occurrence.Start.Local().Format(constants.DateTimeFormat), in)
		if fire != nil {
			if err := fire(d); err != nil {
				return err
			}
		}
	}
	return nil
}

type ReminderDeleteCmd struct {
	ID int64 `arg:"" help:"Reminder ID to delete."`
}

func (c *ReminderDeleteCmd) Run(ctx *cli.Context) error {
	_, err := ctx.DeleteWithConfirmation(models.EntityEventReminder, c.ID)
	return err
}
