package system

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
)

type DebugCmd struct {
	DBPath DebugDBPathCmd `cmd:"" help:"Show database path."`
	Dump   DebugDumpCmd   `cmd:"" help:"Dump a row as JSON."`
	Watch  DebugWatchCmd  `cmd:"" help:"Show a table's rows live as they change."`
}

type DebugDBPathCmd struct{}

func (cmd *DebugDBPathCmd) Run(ctx *cli.Context) error {
	return printJSON(map[string]string{"path": ctx.Store.GetConfigPath()})
}

type DebugDumpCmd struct {
	Entity string `arg:"" help:"Table name, e.g. calendar_events."`
	ID     int64  `arg:"" help:"Row id."`
}

func (cmd *DebugDumpCmd) Run(ctx *cli.Context) error {
	entity := models.Entity(cmd.Entity)
	if !entity.Valid() {
		return fmt.Errorf("unknown table: %s", cmd.Entity)
	}
	row, err := ctx.Store.FindByID(ctx.Ctx(), entity, cmd.ID)
	if err != nil {
		return err
	}
	return printJSON(dumpable(row))
}

// eventDump carries the recurrence role, which CalendarEvent keeps out of JSON.
type eventDump struct {
	models.CalendarEvent
	Kind       models.RecurrenceKind `json:"kind"`
	Recurrence models.Recurrence     `json:"recurrence,omitempty"`
}

func dumpable(row models.Row) any {
	if ev, ok := row.(models.CalendarEvent); ok {
		return eventDump{CalendarEvent: ev, Kind: ev.Kind(), Recurrence: ev.Recurrence}
	}
	return row
}

func printJSON(v any) error {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(jsonBytes))
	return nil
}

type DebugWatchCmd struct {
	Entity string        `arg:"" help:"Table name, e.g. folders."`
	Where  []string      `help:"column=value filters; value 'null' matches NULL." placeholder:"COL=VAL"`
	For    time.Duration `help:"Stop after this long (0 waits for interrupt)." default:"0s"`
	Plain  bool          `help:"Print one line per update instead of the live table."`
}

func (cmd *DebugWatchCmd) Run(ctx *cli.Context) error {
	q, err := parseWatchQuery(cmd.Entity, cmd.Where)
	if err != nil {
		return err
	}

	sub, err := ctx.Store.Subscribe(ctx.Ctx(), q)
	if err != nil {
		return err
	}
	defer ctx.Store.Unsubscribe(sub.ID)

	if !cmd.Plain {
		runCtx := ctx.Ctx()
		if cmd.For > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(runCtx, cmd.For)
			defer cancel()
		}

		title := fmt.Sprintf("Watching %s", q)
		p := tea.NewProgram(newWatchModel(title, sub.Initial, sub.Updates()), tea.WithContext(runCtx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return fmt.Errorf("watch failed: %w", err)
		}
		return nil
	}

	fmt.Printf("Watching %s (subscription %s)\n", q, sub.ID)
	fmt.Printf("[initial] %d row(s)\n", len(sub.Initial))

	var timeout <-chan time.Time
	if cmd.For > 0 {
		timeout = time.After(cmd.For)
	}
	for {
		select {
		case update, ok := <-sub.Updates():
			if !ok {
				return nil
			}
			if update.Err != nil {
				fmt.Printf("[%d] error: %v\n", update.Seq, update.Err)
				continue
			}
			fmt.Printf("[%d] %d row(s)\n", update.Seq, len(update.Rows))
		case <-timeout:
			return nil
		case <-ctx.Ctx().Done():
			return nil
		}
	}
}

func parseWatchQuery(entity string, where []string) (query.Query, error) {
	conds := make([]query.Cond, 0, len(where))
	for _, w := range where {
		col, val, ok := strings.Cut(w, "=")
		if !ok || col == "" {
			return query.Query{}, fmt.Errorf("invalid filter %q (use column=value)", w)
		}
		switch n, err := strconv.ParseInt(val, 10, 64); {
		case val == "null":
			conds = append(conds, query.IsNull(col))
		case err == nil:
			conds = append(conds, query.Eq(col, n))
		default:
			conds = append(conds, query.Eq(col, val))
		}
	}
	q := query.For(models.Entity(entity), conds...)
	return q, q.Validate()
}
