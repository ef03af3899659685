package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/lectern/internal/models"
	"github.com/julianstephens/lectern/internal/schema"
)

var dangerStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true)

// DescribeChangeSet lists, per table, the rows a delete removes and the rows
// whose references it clears.
func DescribeChangeSet(cs *schema.ChangeSet) string {
	var b strings.Builder

	deletes := map[models.Entity][]int64{}
	for _, ref := range cs.Deletes {
		deletes[ref.Entity] = append(deletes[ref.Entity], ref.ID)
	}
	nullifies := map[string][]int64{}
	for _, n := range cs.Nullifies {
		key := fmt.Sprintf("%s.%s", n.Row.Entity, n.Column)
		nullifies[key] = append(nullifies[key], n.Row.ID)
	}

	fmt.Fprintf(&b, "Deletes %d row(s):\n", len(cs.Deletes))
	for _, entity := range models.Entities {
		if ids := deletes[entity]; len(ids) > 0 {
			fmt.Fprintf(&b, "  %s: %s\n", entity, joinIDs(ids))
		}
	}
	if len(cs.Nullifies) > 0 {
		fmt.Fprintf(&b, "Clears %d reference(s):\n", len(cs.Nullifies))
		keys := make([]string, 0, len(nullifies))
		for key := range nullifies {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", key, joinIDs(nullifies[key]))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinIDs(ids []int64) string {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = "#" + strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// DeleteWithConfirmation plans the delete, shows its full effect and applies
// it once confirmed. It reports whether the delete happened.
func (c *Context) DeleteWithConfirmation(entity models.Entity, id int64) (bool, error) {
	plan, err := c.Store.PlanDelete(c.Ctx(), entity, id)
	if err != nil {
		return false, err
	}

	fmt.Println(DescribeChangeSet(plan))
	if !c.Yes {
		confirmed := false
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title(dangerStyle.Render(fmt.Sprintf("Delete %s?", plan.Root))).
					Affirmative("Delete").
					Negative("Cancel").
					Value(&confirmed),
			),
		)
		if err := form.Run(); err != nil {
			return false, fmt.Errorf("interactive form error: %w", err)
		}
		if !confirmed {
			fmt.Println("Delete cancelled.")
			return false, nil
		}
	}

	c.PerformAutomaticBackup()
	cs, err := c.Store.Delete(c.Ctx(), entity, id)
	if err != nil {
		return false, err
	}
	fmt.Printf("✓ Deleted %d row(s), cleared %d reference(s)\n", len(cs.Deletes), len(cs.Nullifies))
	return true, nil
}
