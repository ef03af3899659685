package system

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/lectern/internal/cli"
	"github.com/julianstephens/lectern/internal/live"
	"github.com/julianstephens/lectern/internal/models"
)

const watchCellWidth = 72

type (
	watchUpdateMsg live.Update
	watchClosedMsg struct{}
)

type watchKeyMap struct {
	Quit key.Binding
}

func (k watchKeyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k watchKeyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

var watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

// watchModel shows the latest result of a live query.
type watchModel struct {
	title   string
	updates <-chan live.Update
	rows    []models.Row
	seq     uint64
	err     error
	closed  bool
	keys    watchKeyMap
	help    help.Model
}

func newWatchModel(title string, initial []models.Row, updates <-chan live.Update) watchModel {
	return watchModel{
		title:   title,
		updates: updates,
		rows:    initial,
		keys: watchKeyMap{
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
		help: help.New(),
	}
}

// next blocks for the subscription's following update.
func (m watchModel) next() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return watchClosedMsg{}
		}
		return watchUpdateMsg(update)
	}
}

func (m watchModel) Init() tea.Cmd {
	return m.next()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case watchUpdateMsg:
		m.seq = msg.Seq
		m.err = msg.Err
		if msg.Err == nil {
			m.rows = msg.Rows
		}
		return m, m.next()

	case watchClosedMsg:
		m.closed = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render(m.title))
	fmt.Fprintf(&b, "  update %d, %d row(s)\n", m.seq, len(m.rows))

	if len(m.rows) == 0 {
		b.WriteString("(no rows)\n")
	} else {
		rows := make([][]string, len(m.rows))
		for i, row := range m.rows {
			rows[i] = []string{fmt.Sprintf("%d", row.RowID()), rowSummary(row)}
		}
		b.WriteString(cli.RenderTable([]string{"ID", "Row"}, rows, nil))
		b.WriteString("\n")
	}
	if m.err != nil {
		fmt.Fprintf(&b, "error: %v\n", m.err)
	}
	if m.closed {
		b.WriteString("subscription closed\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func rowSummary(row models.Row) string {
	data, err := json.Marshal(dumpable(row))
	if err != nil {
		return err.Error()
	}
	s := []rune(string(data))
	if len(s) > watchCellWidth {
		return string(s[:watchCellWidth-3]) + "..."
	}
	return string(s)
}
