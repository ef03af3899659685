package system

import (
	"fmt"
	"time"

	"github.com/julianstephens/lectern/internal/backup"
	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/recurrence"
	"github.com/julianstephens/lectern/internal/validation"
)

type DoctorCmd struct {
	Days int `help:"Days ahead to scan for overlapping lectures." default:"14"`
}

type check struct {
	name string
	// warn checks report problems without failing the run.
	warn  bool
	needs bool
	run   func(ctx *cli.Context) error
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	checks := []check{
		{name: "Database reachable", run: checkDBReachable},
		{name: "Schema version", needs: true, run: checkSchemaVersion},
		{name: "Migrations complete", needs: true, run: checkMigrationsComplete},
		{name: "Backups present", warn: true, run: checkBackupsPresent},
		{name: "Data integrity", needs: true, run: checkIntegrity},
		{name: "Lecture overlaps", warn: true, needs: true, run: func(ctx *cli.Context) error {
			return checkLectureOverlaps(ctx, cmd.Days)
		}},
		{name: "Clock/timezone", run: func(*cli.Context) error { return checkClockTimezone() }},
	}

	hasError := false
	dbReachable := true
	for i, c := range checks {
		if c.needs && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warn:
			fmt.Printf("⚠ %s: WARNING\n", c.name)
			fmt.Printf("   %v\n", err)
		default:
			fmt.Printf("❌ %s: FAIL\n", c.name)
			fmt.Printf("   Error: %v\n", err)
			hasError = true
			if i == 0 {
				dbReachable = false
			}
		}
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return fmt.Errorf("one or more health checks failed")
	}

	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if _, err := ctx.Store.AppSettings(ctx.Ctx()); err != nil {
		return fmt.Errorf("failed to query database: %w", err)
	}
	return nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	current, latest, err := ctx.Store.SchemaVersion()
	if err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	current, latest, err := ctx.Store.SchemaVersion()
	if err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d (run 'lectern migrate')", current, latest)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	if !ctx.IsFileStore() {
		return nil
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return fmt.Errorf("no backups found - consider creating one with 'lectern backup create'")
	}
	return nil
}

func checkIntegrity(ctx *cli.Context) error {
	result, err := ctx.Store.CheckIntegrity(ctx.Ctx())
	if err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result.HasConflicts() {
		return fmt.Errorf("%d problem(s) found:\n%s", len(result.Conflicts), result.FormatReport())
	}
	return nil
}

func checkLectureOverlaps(ctx *cli.Context, days int) error {
	from := time.Now().Truncate(time.Minute)
	agenda, err := ctx.Store.Agenda(ctx.Ctx(), recurrence.Window{From: from, To: from.AddDate(0, 0, days)})
	if err != nil {
		return fmt.Errorf("failed to expand agenda: %w", err)
	}
	result := validation.CheckOccurrences(agenda.Occurrences)
	if result.HasConflicts() {
		return fmt.Errorf("%s", result.FormatReport())
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}
