package models

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/fabrica-dev/fabrica/cmd/debug/components"
	"github.com/fabrica-dev/fabrica/internal/persist"
)

// OverviewModel shows world metadata and save statistics
type OverviewModel struct {
	db *persist.Store

	seed         int64
	tick         int64
	nextEntityID int64
	stats        persist.Stats
	errMsg       string
	loaded       bool

	width  int
	height int
}

type overviewLoadedMsg struct {
	seed         int64
	tick         int64
	nextEntityID int64
	stats        persist.Stats
	err          error
}

// NewOverviewModel creates a new overview model
func NewOverviewModel(db *persist.Store) OverviewModel {
	return OverviewModel{db: db}
}

// Init loads the metadata
func (m OverviewModel) Init() tea.Cmd {
	return m.loadCmd()
}

// Update handles overview messages
func (m OverviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "r" {
			return m, m.loadCmd()
		}

	case overviewLoadedMsg:
		m.loaded = true
		m.errMsg = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
			return m, nil
		}
		m.seed = msg.seed
		m.tick = msg.tick
		m.nextEntityID = msg.nextEntityID
		m.stats = msg.stats
	}

	return m, nil
}

// View renders the overview
func (m OverviewModel) View() string {
	var s strings.Builder

	s.WriteString(components.TitleStyle.Render("World Overview") + "\n\n")

	var body strings.Builder
	switch {
	case !m.loaded:
		body.WriteString("Loading...")
	case m.errMsg != "":
		body.WriteString(components.ErrorStyle.Render("Error: " + m.errMsg))
	default:
		body.WriteString(fmt.Sprintf("Seed:            %d\n", m.seed))
		body.WriteString(fmt.Sprintf("Tick:            %d\n", m.tick))
		body.WriteString(fmt.Sprintf("Next entity id:  %d\n", m.nextEntityID))
		body.WriteString(fmt.Sprintf("Saved chunks:    %d\n", m.stats.Chunks))
		body.WriteString(fmt.Sprintf("Saved players:   %d\n", m.stats.Players))
	}
	s.WriteString(components.BorderStyle.Render(body.String()) + "\n\n")

	statusBar := components.StatusBarStyle.Width(m.width).Render("r to refresh • q to go back")
	s.WriteString(statusBar)

	return s.String()
}

// SetSize updates the overview size
func (m *OverviewModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m OverviewModel) loadCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		var out overviewLoadedMsg
		out.seed, _, out.err = m.db.Seed(ctx)
		if out.err == nil {
			out.tick, _, out.err = m.db.Tick(ctx)
		}
		if out.err == nil {
			out.nextEntityID, _, out.err = m.db.NextEntityID(ctx)
		}
		if out.err == nil {
			out.stats, out.err = m.db.Stats(ctx)
		}
		return out
	}
}
