package models

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/fabrica-dev/fabrica/cmd/debug/components"
)

// MenuModel handles the main menu view
type MenuModel struct {
	choices []MenuChoice
	cursor  int
	width   int
	height  int
}

// MenuChoice represents a menu option
type MenuChoice struct {
	Title       string
	Description string
	View        ViewType
}

// NewMenuModel creates a new menu model
func NewMenuModel() MenuModel {
	choices := []MenuChoice{
		{
			Title:       "Chunk Explorer",
			Description: "Render saved chunks with their machines",
			View:        ChunkExplorerView,
		},
		{
			Title:       "Players",
			Description: "Inspect saved players and inventories",
			View:        PlayersView,
		},
		{
			Title:       "Overview",
			Description: "World metadata and save statistics",
			View:        OverviewView,
		},
	}

	return MenuModel{choices: choices}
}

// Init initializes the menu
func (m MenuModel) Init() tea.Cmd {
	return nil
}

// Update handles menu messages
func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			} else {
				m.cursor = len(m.choices) - 1
			}

		case "down", "j":
			if m.cursor < len(m.choices)-1 {
				m.cursor++
			} else {
				m.cursor = 0
			}

		case "enter", " ":
			selected := m.choices[m.cursor]
			return m, func() tea.Msg {
				return SwitchViewMsg{View: selected.View}
			}

		case "1", "2", "3":
			choice := int(msg.String()[0] - '1')
			if choice >= 0 && choice < len(m.choices) {
				m.cursor = choice
				selected := m.choices[m.cursor]
				return m, func() tea.Msg {
					return SwitchViewMsg{View: selected.View}
				}
			}
		}
	}

	return m, nil
}

// View renders the menu
func (m MenuModel) View() string {
	var s strings.Builder

	title := components.TitleStyle.Render("Fabrica Save Inspector")
	s.WriteString(title + "\n\n")

	menuStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(components.PrimaryColor).
		Padding(1, 2).
		Width(60)

	var menuItems []string
	for i, choice := range m.choices {
		itemStyle := components.MenuItemStyle
		if i == m.cursor {
			itemStyle = components.SelectedMenuItemStyle
		}
		item := fmt.Sprintf("%d. %-16s %s", i+1, choice.Title, choice.Description)
		menuItems = append(menuItems, itemStyle.Render(item))
	}

	s.WriteString(menuStyle.Render(strings.Join(menuItems, "\n")) + "\n\n")

	s.WriteString(components.HelpStyle.Render(
		"Use ↑/↓ or j/k to navigate • Enter or number to select • q to quit",
	))

	content := s.String()
	if m.width > 0 {
		contentWidth := lipgloss.Width(content)
		if contentWidth < m.width {
			leftPadding := (m.width - contentWidth) / 2
			content = lipgloss.NewStyle().PaddingLeft(leftPadding).Render(content)
		}
	}

	return content
}

// SetSize updates the menu size
func (m *MenuModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}
