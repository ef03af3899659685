package calendar

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/constants"
	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/query"
)

type CategoryCmd struct {
	Add    CategoryAddCmd    `cmd:"" help:"Add an event category."`
	List   CategoryListCmd   `cmd:"" help:"List event categories."`
	Delete CategoryDeleteCmd `cmd:"" help:"Delete a category; its events become uncategorized."`
}

type CategoryAddCmd struct {
	Name    string `arg:"" help:"Category name."`
	Color   string `help:"Color as #RRGGBB." default:"${default_category_color}"`
	Icon    string `help:"Optional icon name."`
	Default bool   `help:"Use for new events without a category."`
}

func (c *CategoryAddCmd) Run(ctx *cli.Context) error {
	id, err := ctx.Store.Insert(ctx.Ctx(), models.EventCategory{
		Name:      c.Name,
		Color:     c.Color,
		Icon:      c.Icon,
		IsDefault: c.Default,
	})
	if err != nil {
		return fmt.Errorf("failed to add category: %w", err)
	}
	fmt.Printf("Added category: %s (ID: %d)\n", c.Name, id)
	return nil
}

type CategoryListCmd struct{}

func (c *CategoryListCmd) Run(ctx *cli.Context) error {
	categories, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityEventCategory))
	if err != nil {
		return fmt.Errorf("failed to get categories: %w", err)
	}

	rows := make([][]string, 0, len(categories))
	for _, row := range categories {
		cat := row.(models.EventCategory)
		swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(cat.Color)).Render("●")
		def := ""
		if cat.IsDefault {
			def = "yes"
		}
		rows = append(rows, []string{strconv.FormatInt(cat.ID, 10), swatch + " " + cat.Name, cat.Color, cat.Icon, def})
	}
	cli.PrintTable([]string{"ID", "Name", "Color", "Icon", "Default"}, rows, "No categories found")
	return nil
}

type CategoryDeleteCmd struct {
	ID int64 `arg:"" help:"Category ID to delete."`
}

func (c *CategoryDeleteCmd) Run(ctx *cli.Context) error {
	_, err := ctx.DeleteWithConfirmation(models.EntityEventCategory, c.ID)
	return err
}

// defaultCategory returns the id of the category flagged as default, or nil.
func defaultCategory(ctx *cli.Context) (*int64, error) {
	rows, err := ctx.Store.FindMany(ctx.Ctx(), query.For(models.EntityEventCategory, query.Eq("is_default", true)).Take(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	id := rows[0].RowID()
	return &id, nil
}

// Vars are the kong interpolation variables used by calendar flags.
func Vars() map[string]string {
	return map[string]string{
		"default_category_color": constants.DefaultCategoryColor,
		"default_reminder_type":  constants.DefaultReminderType,
	}
}
