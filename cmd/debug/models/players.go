package models

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/fabrica-dev/fabrica/cmd/debug/components"
	"github.com/fabrica-dev/fabrica/internal/persist"
	"github.com/fabrica-dev/fabrica/internal/world"
)

// PlayersModel lists saved players and their inventories
type PlayersModel struct {
	db *persist.Store

	names    []string
	cursor   int
	selected *world.Player
	errMsg   string

	width  int
	height int
}

type playersLoadedMsg struct {
	names []string
	err   error
}

type playerLoadedMsg struct {
	player *world.Player
	err    error
}

// NewPlayersModel creates a new players view
func NewPlayersModel(db *persist.Store) PlayersModel {
	return PlayersModel{db: db}
}

// Init loads the player list
func (m PlayersModel) Init() tea.Cmd {
	return m.loadPlayersCmd()
}

// Update handles player view messages
func (m PlayersModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				return m, m.loadPlayerCmd()
			}
		case "down", "j":
			if m.cursor < len(m.names)-1 {
				m.cursor++
				return m, m.loadPlayerCmd()
			}
		case "r":
			return m, m.loadPlayersCmd()
		}

	case playersLoadedMsg:
		m.errMsg = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.names = msg.names
		if m.cursor >= len(m.names) {
			m.cursor = 0
		}
		if len(m.names) > 0 {
			return m, m.loadPlayerCmd()
		}

	case playerLoadedMsg:
		m.errMsg = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.selected = msg.player
	}

	return m, nil
}

// View renders the players view
func (m PlayersModel) View() string {
	var s strings.Builder

	s.WriteString(components.TitleStyle.Render("Players") + "\n")

	if m.errMsg != "" {
		s.WriteString(components.ErrorStyle.Render("Error: "+m.errMsg) + "\n")
	}

	var list strings.Builder
	if len(m.names) == 0 {
		list.WriteString("No players saved yet")
	}
	for i, name := range m.names {
		style := components.MenuItemStyle
		if i == m.cursor {
			style = components.SelectedMenuItemStyle
		}
		list.WriteString(style.Render(name) + "\n")
	}

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		components.BorderStyle.Render(list.String()),
		m.renderDetail(),
	)
	s.WriteString(mainContent + "\n")

	statusBar := components.StatusBarStyle.Width(m.width).Render(
		"↑/↓ to select • r to reload • q to go back",
	)
	s.WriteString(statusBar)

	return s.String()
}

func (m PlayersModel) renderDetail() string {
	if m.selected == nil {
		return ""
	}

	var info strings.Builder
	info.WriteString(components.SubtitleStyle.Render(m.selected.Name) + "\n")
	info.WriteString(fmt.Sprintf("Position: (%.1f, %.1f)\n", m.selected.X, m.selected.Y))
	info.WriteString(fmt.Sprintf("Chunk: (%d, %d)\n\n", world.PosOf(int(m.selected.X), int(m.selected.Y)).X, world.PosOf(int(m.selected.X), int(m.selected.Y)).Y))

	info.WriteString(components.SubtitleStyle.Render("Inventory") + "\n")
	totals := m.selected.Inventory.Totals()
	if len(totals) == 0 {
		info.WriteString("empty\n")
	}
	items := make([]string, 0, len(totals))
	for item := range totals {
		items = append(items, item)
	}
	sort.Strings(items)
	for _, item := range items {
		info.WriteString(fmt.Sprintf("%-20s %d\n", item, totals[item]))
	}

	return components.InfoPanelStyle.Render(info.String())
}

// SetSize updates the players view size
func (m *PlayersModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m PlayersModel) loadPlayersCmd() tea.Cmd {
	return func() tea.Msg {
		names, err := m.db.PlayerNames(context.Background())
		return playersLoadedMsg{names: names, err: err}
	}
}

func (m PlayersModel) loadPlayerCmd() tea.Cmd {
	if m.cursor >= len(m.names) {
		return nil
	}
	name := m.names[m.cursor]
	return func() tea.Msg {
		p, err := m.db.LoadPlayer(context.Background(), name)
		return playerLoadedMsg{player: p, err: err}
	}
}
