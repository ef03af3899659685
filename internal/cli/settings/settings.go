package settings

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/julianstephens/lectern/internal/cli"
)

type SettingsCmd struct {
	List bool `help:"List current settings."`

	View            *string `help:"Default calendar view (day, week, month, agenda)."`
	WeekStart       *string `help:"First day of the week (e.g. monday or 1)." name:"week-start"`
	WorkdayStart    *string `help:"Workday start (HH:MM)." name:"workday-start"`
	WorkdayEnd      *string `help:"Workday end (HH:MM)." name:"workday-end"`
	EventDuration   *int    `help:"Default event length in minutes." name:"event-duration"`
	ReminderOffsets *string `help:"Default reminders as minutes before start, comma separated (empty for none)." name:"reminder-offsets"`
	TimeFormat      *string `help:"Clock format (12h or 24h)." name:"time-format"`
}

func (c *SettingsCmd) Run(ctx *cli.Context) error {
	settings, err := ctx.Store.CalendarSettings(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	if c.List {
		offsets := make([]string, len(settings.DefaultReminderOffsets))
		for i, off := range settings.DefaultReminderOffsets {
			offsets[i] = fmt.Sprintf("%d", off)
		}
		fmt.Println("Calendar Settings:")
		fmt.Printf("  Default View:      %s\n", settings.DefaultView)
		fmt.Printf("  Week Start:        %s\n", settings.WeekStart)
		fmt.Printf("  Workday:           %s - %s\n", settings.WorkdayStart, settings.WorkdayEnd)
		fmt.Printf("  Event Duration:    %d min\n", settings.DefaultEventDurationMin)
		fmt.Printf("  Reminder Offsets:  %s\n", orNone(strings.Join(offsets, ", ")))
		fmt.Printf("  Time Format:       %s\n", settings.TimeFormat)
		return nil
	}

	updated := false
	if c.View != nil {
		settings.DefaultView = strings.ToLower(*c.View)
		updated = true
	}
	if c.WeekStart != nil {
		wd, err := cli.ParseWeekday(*c.WeekStart)
		if err != nil {
			return err
		}
		settings.WeekStart = wd
		updated = true
	}
	if c.WorkdayStart != nil {
		settings.WorkdayStart = *c.WorkdayStart
		updated = true
	}
	if c.WorkdayEnd != nil {
		settings.WorkdayEnd = *c.WorkdayEnd
		updated = true
	}
	if c.EventDuration != nil {
		settings.DefaultEventDurationMin = *c.EventDuration
		updated = true
	}
	if c.ReminderOffsets != nil {
		offsets, err := cli.ParseOffsets(*c.ReminderOffsets)
		if err != nil {
			return err
		}
		settings.DefaultReminderOffsets = offsets
		updated = true
	}
	if c.TimeFormat != nil {
		settings.TimeFormat = strings.ToLower(*c.TimeFormat)
		updated = true
	}

	if updated {
		if err := ctx.Store.SaveCalendarSettings(ctx.Ctx(), settings); err != nil {
			return fmt.Errorf("failed to save settings: %w", err)
		}
		fmt.Println("Settings updated successfully.")
	} else {
		fmt.Println("No changes specified. Use --list to view settings or flags to update them.")
	}

	return nil
}

type ProfileCmd struct {
	List bool `help:"Show the profile."`

	FirstName *string  `help:"First name." name:"first-name"`
	LastName  *string  `help:"Last name." name:"last-name"`
	Set       []string `help:"Set a preference as key=value; JSON values keep their type." placeholder:"KEY=VALUE"`
	Unset     []string `help:"Remove a preference." placeholder:"KEY"`
}

func (c *ProfileCmd) Run(ctx *cli.Context) error {
	profile, err := ctx.Store.AppSettings(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("failed to get profile: %w", err)
	}

	if c.List {
		name := strings.TrimSpace(profile.FirstName + " " + profile.LastName)
		fmt.Printf("Name: %s\n", orNone(name))
		if len(profile.Preferences) == 0 {
			fmt.Println("Preferences: (none)")
			return nil
		}
		keys := make([]string, 0, len(profile.Preferences))
		for k := range profile.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Println("Preferences:")
		for _, k := range keys {
			v, _ := json.Marshal(profile.Preferences[k])
			fmt.Printf("  %s = %s\n", k, v)
		}
		return nil
	}

	updated := false
	if c.FirstName != nil {
		profile.FirstName = strings.TrimSpace(*c.FirstName)
		updated = true
	}
	if c.LastName != nil {
		profile.LastName = strings.TrimSpace(*c.LastName)
		updated = true
	}
	for _, kv := range c.Set {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return fmt.Errorf("invalid preference %q (use key=value)", kv)
		}
		if profile.Preferences == nil {
			profile.Preferences = map[string]any{}
		}
		profile.Preferences[key] = preferenceValue(value)
		updated = true
	}
	for _, key := range c.Unset {
		if _, ok := profile.Preferences[key]; !ok {
			return fmt.Errorf("preference %q is not set", key)
		}
		delete(profile.Preferences, key)
		updated = true
	}

	if updated {
		if err := ctx.Store.SaveAppSettings(ctx.Ctx(), profile); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		fmt.Println("Profile updated successfully.")
	} else {
		fmt.Println("No changes specified. Use --list to view the profile or flags to update it.")
	}
	return nil
}

// preferenceValue decodes JSON literals such as 42, true or ["a"], and keeps
// anything else as a plain string.
func preferenceValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
