package models

import (
	tea "github.com/charmbracelet/bubbletea/v2"

	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/persist"
)

// ViewType represents the different views in the save inspector
type ViewType int

const (
	MenuView ViewType = iota
	ChunkExplorerView
	PlayersView
	OverviewView
)

// App is the main application model
type App struct {
	db  *persist.Store
	cat *catalog.Catalog

	currentView ViewType
	width       int
	height      int

	menu          MenuModel
	chunkExplorer ChunkExplorerModel
	players       PlayersModel
	overview      OverviewModel
}

// NewApp creates a new application instance
func NewApp(db *persist.Store, cat *catalog.Catalog, startView string) *App {
	app := &App{
		db:          db,
		cat:         cat,
		currentView: MenuView,
	}

	app.menu = NewMenuModel()
	app.chunkExplorer = NewChunkExplorerModel(db, cat)
	app.players = NewPlayersModel(db)
	app.overview = NewOverviewModel(db)

	switch startView {
	case "chunks":
		app.currentView = ChunkExplorerView
	case "players":
		app.currentView = PlayersView
	case "overview":
		app.currentView = OverviewView
	default:
		app.currentView = MenuView
	}

	return app
}

// Init initializes the application
func (m *App) Init() tea.Cmd {
	return m.getCurrentViewModel().Init()
}

// Update handles messages and updates the application state
func (m *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		m.menu.SetSize(msg.Width, msg.Height)
		m.chunkExplorer.SetSize(msg.Width, msg.Height)
		m.players.SetSize(msg.Width, msg.Height)
		m.overview.SetSize(msg.Width, msg.Height)

		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.currentView == MenuView {
				return m, tea.Quit
			}
			m.currentView = MenuView
			return m, m.menu.Init()

		case "tab":
			m.currentView = ViewType((int(m.currentView) + 1) % 4)
			return m, m.getCurrentViewModel().Init()
		}

	case SwitchViewMsg:
		m.currentView = msg.View
		return m, m.getCurrentViewModel().Init()
	}

	switch m.currentView {
	case MenuView:
		newModel, cmd := m.menu.Update(msg)
		m.menu = newModel.(MenuModel)
		return m, cmd
	case ChunkExplorerView:
		newModel, cmd := m.chunkExplorer.Update(msg)
		m.chunkExplorer = newModel.(ChunkExplorerModel)
		return m, cmd
	case PlayersView:
		newModel, cmd := m.players.Update(msg)
		m.players = newModel.(PlayersModel)
		return m, cmd
	case OverviewView:
		newModel, cmd := m.overview.Update(msg)
		m.overview = newModel.(OverviewModel)
		return m, cmd
	}

	return m, nil
}

// View renders the application
func (m *App) View() string {
	switch m.currentView {
	case MenuView:
		return m.menu.View()
	case ChunkExplorerView:
		return m.chunkExplorer.View()
	case PlayersView:
		return m.players.View()
	case OverviewView:
		return m.overview.View()
	}
	return "Unknown view"
}

func (m *App) getCurrentViewModel() tea.Model {
	switch m.currentView {
	case ChunkExplorerView:
		return &m.chunkExplorer
	case PlayersView:
		return &m.players
	case OverviewView:
		return &m.overview
	}
	return &m.menu
}

// SwitchViewMsg is a message to switch views
type SwitchViewMsg struct {
	View ViewType
}
