package library

import (
	"fmt"
	"strconv"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
)

type FolderCmd struct {
	Add    FolderAddCmd    `cmd:"" help:"Add a folder."`
	List   FolderListCmd   `cmd:"" help:"List folders."`
	Rename FolderRenameCmd `cmd:"" help:"Rename a folder."`
	Delete FolderDeleteCmd `cmd:"" help:"Delete a folder with its recordings."`
}

type FolderAddCmd struct {
	Name string `arg:"" help:"Folder name."`
}

func (c *FolderAddCmd) Run(ctx *cli.Context) error {
	id, err := ctx.Store.Insert(ctx.Ctx(), models.Folder{Name: c.Name})
	if err != nil {
		return fmt.Errorf("failed to add folder: %w", err)
	}
	fmt.Printf("Added folder: %s (ID: %d)\n", c.Name, id)
	return nil
}

type FolderListCmd struct{}

func (c *FolderListCmd) Run(ctx *cli.Context) error {
	folders, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityFolder))
	if err != nil {
		return fmt.Errorf("failed to get folders: %w", err)
	}
	recordings, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityRecording, query.NotNull("folder_id")))
	if err != nil {
		return fmt.Errorf("failed to get recordings: %w", err)
	}
	counts := map[int64]int{}
	for _, row := range recordings {
		counts[*row.(models.Recording).FolderID]++
	}

	rows := make([][]string, 0, len(folders))
	for _, row := range folders {
		f := row.(models.Folder)
		rows = append(rows, []string{strconv.FormatInt(f.ID, 10), f.Name, strconv.Itoa(counts[f.ID])})
	}
	cli.PrintTable([]string{"ID", "Name", "Recordings"}, rows, "No folders found")
	return nil
}

type FolderRenameCmd struct {
	ID   int64  `arg:"" help:"Folder ID."`
	Name string `arg:"" help:"New name."`
}

func (c *FolderRenameCmd) Run(ctx *cli.Context) error {
	row, err := ctx.Store.FindByID(ctx.Ctx(), models.EntityFolder, c.ID)
	if err != nil {
		return err
	}
	f := row.(models.Folder)
	f.Name = c.Name
	if err := ctx.Store.Update(ctx.Ctx(), f); err != nil {
		return fmt.Errorf("failed to rename folder: %w", err)
	}
	fmt.Printf("Renamed folder %d to %s\n", f.ID, f.Name)
	return nil
}

type FolderDeleteCmd struct {
	ID int64 `arg:"" help:"Folder ID to delete."`
}

func (c *FolderDeleteCmd) Run(ctx *cli.Context) error {
	_, err := ctx.DeleteWithConfirmation(models.EntityFolder, c.ID)
	return err
}
