package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(0, 1)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Italic(true)
)

// RenderTable lays rows out under headers. Rows listed in muted are dimmed.
func RenderTable(headers []string, rows [][]string, muted map[int]bool) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case muted[row]:
				return mutedStyle
			default:
				return cellStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// PrintTable prints rows, or empty when there are none.
func PrintTable(headers []string, rows [][]string, empty string) {
	if len(rows) == 0 {
		fmt.Println(empty)
		return
	}
	fmt.Println(RenderTable(headers, rows, nil))
}

func Warn(format string, args ...any) {
	fmt.Println(warningStyle.Render("⚠ " + fmt.Sprintf(format, args...)))
}
