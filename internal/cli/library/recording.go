package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
)

type RecordingCmd struct {
	Add        RecordingAddCmd        `cmd:"" help:"Register an audio recording."`
	List       RecordingListCmd       `cmd:"" help:"List recordings."`
	Edit       RecordingEditCmd       `cmd:"" help:"Rename, move or relink a recording."`
	Delete     RecordingDeleteCmd     `cmd:"" help:"Delete a recording with its transcripts and summaries."`
	Transcript RecordingTranscriptCmd `cmd:"" help:"Set or show a recording's transcript."`
	Summary    RecordingSummaryCmd    `cmd:"" help:"Set or show a recording's summary."`
}

type RecordingAddCmd struct {
	Path     string        `arg:"" help:"Audio file path." type:"path"`
	Name     string        `help:"Display name (defaults to the file name)."`
	Folder   int64         `help:"Folder ID."`
	Event    int64         `help:"Calendar event ID the recording belongs to."`
	Duration time.Duration `help:"Recording length, e.g. 1h15m."`
}

func (c *RecordingAddCmd) Run(ctx *cli.Context) error {
	name := c.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(c.Path), filepath.Ext(c.Path))
	}
	rec := models.Recording{
		Name:            name,
		FilePath:        c.Path,
		DurationSec:     int64(c.Duration / time.Second),
		FolderID:        cli.OptionalID(c.Folder),
		CalendarEventID: cli.OptionalID(c.Event),
	}
	if info, err := os.Stat(c.Path); err == nil {
		rec.FileSizeBytes = info.Size()
	} else {
		cli.Warn("file %s is not readable, size left at 0", c.Path)
	}

	id, err := ctx.Store.Insert(ctx.Ctx(), rec)
	if err != nil {
		return fmt.Errorf("failed to add recording: %w", err)
	}
	fmt.Printf("Added recording: %s (ID: %d)\n", name, id)
	return nil
}

type RecordingListCmd struct {
	Folder   int64 `help:"Only recordings in this folder."`
	Unfiled  bool  `help:"Only recordings without a folder."`
	Event    int64 `help:"Only recordings linked to this event."`
	Limit    int   `help:"Show at most this many." default:"0"`
	ShowPath bool  `help:"Show file paths." name:"show-path"`
}

func (c *RecordingListCmd) Run(ctx *cli.Context) error {
	var conds []query.Cond
	switch {
	case c.Unfiled:
		conds = append(conds, query.IsNull("folder_id"))
	case c.Folder != 0:
		conds = append(conds, query.Eq("folder_id", c.Folder))
	}
	if c.Event != 0 {
		conds = append(conds, query.Eq("calendar_event_id", c.Event))
	}

	rows, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityRecording, conds...).Take(c.Limit))
	if err != nil {
		return fmt.Errorf("failed to get recordings: %w", err)
	}

	headers := []string{"ID", "Name", "Length", "Folder", "Event"}
	if c.ShowPath {
		headers = append(headers, "Path")
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		r := row.(models.Recording)
		line := []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			(time.Duration(r.DurationSec) * time.Second).String(),
			cli.FormatOptionalID(r.FolderID),
			cli.FormatOptionalID(r.CalendarEventID),
		}
		if c.ShowPath {
			line = append(line, r.FilePath)
		}
		table = append(table, line)
	}
	cli.PrintTable(headers, table, "No recordings found")
	return nil
}

type RecordingEditCmd struct {
	ID     int64  `arg:"" help:"Recording ID."`
	Name   string `help:"New name."`
	Folder *int64 `help:"Move to folder (0 removes it from its folder)."`
	Event  *int64 `help:"Link to event (0 unlinks)."`
}

func (c *RecordingEditCmd) Run(ctx *cli.Context) error {
	row, err := ctx.Store.FindByID(ctx.Ctx(), models.EntityRecording, c.ID)
	if err != nil {
		return err
	}
	r := row.(models.Recording)
	if c.Name != "" {
		r.Name = c.Name
	}
	if c.Folder != nil {
		r.FolderID = cli.OptionalID(*c.Folder)
	}
	if c.Event != nil {
		r.CalendarEventID = cli.OptionalID(*c.Event)
	}
	if err := ctx.Store.Update(ctx.Ctx(), r); err != nil {
		return fmt.Errorf("failed to update recording: %w", err)
	}
	fmt.Printf("Updated recording: %s (ID: %d)\n", r.Name, r.ID)
	return nil
}

type RecordingDeleteCmd struct {
	ID int64 `arg:"" help:"Recording ID to delete."`
}

func (c *RecordingDeleteCmd) Run(ctx *cli.Context) error {
	_, err := ctx.DeleteWithConfirmation(models.EntityRecording, c.ID)
	return err
}

type RecordingTranscriptCmd struct {
	ID   int64  `arg:"" help:"Recording ID."`
	Text string `help:"Transcript text."`
	File string `help:"Read the transcript from a file." type:"existingfile"`
}

func (c *RecordingTranscriptCmd) Run(ctx *cli.Context) error {
	return attachText(ctx, models.EntityTranscript, c.ID, c.Text, c.File)
}

type RecordingSummaryCmd struct {
	ID   int64  `arg:"" help:"Recording ID."`
	Text string `help:"Summary text."`
	File string `help:"Read the summary from a file." type:"existingfile"`
}

func (c *RecordingSummaryCmd) Run(ctx *cli.Context) error {
	return attachText(ctx, models.EntitySummary, c.ID, c.Text, c.File)
}

// attachText shows the text attached to a recording, or replaces it when
// text or file is given. A recording keeps one transcript and one summary.
func attachText(ctx *cli.Context, entity models.Entity, recordingID int64, text, file string) error {
	if _, err := ctx.Store.FindByID(ctx.Ctx(), models.EntityRecording, recordingID); err != nil {
		return err
	}
	existing, err := ctx.Store.FindMany(ctx.Ctx(), query.For(entity, query.Eq("recording_id", recordingID)).Take(1))
	if err != nil {
		return err
	}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		text = string(data)
	}

	if text == "" {
		if len(existing) == 0 {
			fmt.Printf("No %s for recording %d\n", singular(entity), recordingID)
			return nil
		}
		fmt.Println(textOf(existing[0]))
		return nil
	}

	if len(existing) == 0 {
		id, err := ctx.Store.Insert(ctx.Ctx(), withText(entity, 0, recordingID, text))
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", singular(entity), err)
		}
		fmt.Printf("Added %s (ID: %d) to recording %d\n", singular(entity), id, recordingID)
		return nil
	}
	if err := ctx.Store.Update(ctx.Ctx(), withText(entity, existing[0].RowID(), recordingID, text)); err != nil {
		return fmt.Errorf("failed to update %s: %w", singular(entity), err)
	}
	fmt.Printf("Updated %s of recording %d\n", singular(entity), recordingID)
	return nil
}

func withText(entity models.Entity, id, recordingID int64, text string) models.Row {
	if entity == models.EntitySummary {
		return models.Summary{ID: id, RecordingID: recordingID, Text: text}
	}
	return models.Transcript{ID: id, RecordingID: recordingID, Text: text}
}

func textOf(row models.Row) string {
	switch r := row.(type) {
	case models.Transcript:
		return r.Text
	case models.Summary:
		return r.Text
	}
	return ""
}

func singular(entity models.Entity) string {
	if entity == models.EntitySummary {
		return "summary"
	}
	return "transcript"
}
