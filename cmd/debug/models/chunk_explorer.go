package models

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"github.com/fabrica-dev/fabrica/cmd/debug/components"
	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/persist"
	"github.com/fabrica-dev/fabrica/internal/world"
)

// ChunkExplorerModel renders saved chunks tile by tile
type ChunkExplorerModel struct {
	db  *persist.Store
	cat *catalog.Catalog

	cx, cy int
	chunk  *world.Chunk
	errMsg string
	loaded bool

	width  int
	height int
}

// chunkLoadedMsg carries the result of a chunk read
type chunkLoadedMsg struct {
	chunk *world.Chunk
	err   error
}

// NewChunkExplorerModel creates a new chunk explorer
func NewChunkExplorerModel(db *persist.Store, cat *catalog.Catalog) ChunkExplorerModel {
	return ChunkExplorerModel{db: db, cat: cat}
}

// Init loads the current chunk
func (m ChunkExplorerModel) Init() tea.Cmd {
	return m.loadChunkCmd()
}

// Update handles chunk explorer messages
func (m ChunkExplorerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			m.cy--
			return m, m.loadChunkCmd()
		case "down":
			m.cy++
			return m, m.loadChunkCmd()
		case "left":
			m.cx--
			return m, m.loadChunkCmd()
		case "right":
			m.cx++
			return m, m.loadChunkCmd()
		case "0":
			m.cx, m.cy = 0, 0
			return m, m.loadChunkCmd()
		case "r":
			return m, m.loadChunkCmd()
		}

	case chunkLoadedMsg:
		m.loaded = true
		m.chunk = msg.chunk
		m.errMsg = ""
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		}
	}

	return m, nil
}

// View renders the chunk explorer
func (m ChunkExplorerModel) View() string {
	var s strings.Builder

	title := components.TitleStyle.Render(fmt.Sprintf("Chunk Explorer - (%d, %d)", m.cx, m.cy))
	s.WriteString(title + "\n")

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderGrid(),
		m.renderInfoPanel(),
	)
	s.WriteString(mainContent + "\n")

	statusBar := components.StatusBarStyle.Width(m.width).Render(
		"Arrows to move • 0 to jump to origin • r to reload • q to go back",
	)
	s.WriteString(statusBar)

	return s.String()
}

func (m ChunkExplorerModel) renderGrid() string {
	if !m.loaded {
		return components.BorderStyle.Render("Loading chunk...")
	}
	if m.errMsg != "" {
		return components.BorderStyle.Render(components.ErrorStyle.Render("Error: " + m.errMsg))
	}
	if m.chunk == nil {
		return components.BorderStyle.Render("Chunk not saved yet.\n\nOnly chunks the server has\nflushed to disk appear here.")
	}

	// Entities by local tile
	byTile := make(map[[2]int]*world.Entity, len(m.chunk.Entities))
	for _, e := range m.chunk.Entities {
		lx, ly := world.Local(e.X, e.Y)
		byTile[[2]int{lx, ly}] = e
	}

	var rows []string
	for y := 0; y < world.ChunkSize; y++ {
		var row strings.Builder
		for x := 0; x < world.ChunkSize; x++ {
			style := lipgloss.NewStyle()
			if tile, ok := m.cat.Tiles[int(m.chunk.Tiles[y][x])]; ok {
				style = style.Background(rgbColor(tile.Color))
			}

			content := "  "
			if e, ok := byTile[[2]int{x, y}]; ok {
				if def, ok := m.cat.Entities[int(e.Kind)]; ok {
					style = style.Foreground(rgbColor(def.Color)).Bold(true)
				}
				content = entityGlyph(e)
			}
			row.WriteString(style.Render(content))
		}
		rows = append(rows, row.String())
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(components.Gray).
		Render(strings.Join(rows, "\n"))
}

func (m ChunkExplorerModel) renderInfoPanel() string {
	var info strings.Builder

	info.WriteString(components.SubtitleStyle.Render("Chunk Info") + "\n")
	info.WriteString(fmt.Sprintf("Position: (%d, %d)\n", m.cx, m.cy))

	if m.chunk != nil {
		info.WriteString(fmt.Sprintf("Entities: %d\n\n", len(m.chunk.Entities)))

		ids := make([]int64, 0, len(m.chunk.Entities))
		for id := range m.chunk.Entities {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		shown := 0
		for _, id := range ids {
			if shown >= 16 {
				info.WriteString(fmt.Sprintf("… and %d more\n", len(ids)-shown))
				break
			}
			e := m.chunk.Entities[id]
			info.WriteString(fmt.Sprintf("#%d %s at (%d, %d)\n", e.ID, e.Kind, e.X, e.Y))
			shown++
		}
	}

	info.WriteString("\n" + components.SubtitleStyle.Render("Legend") + "\n")
	info.WriteString("M miner    F furnace\n")
	info.WriteString("A assembler X chest\n")
	info.WriteString("I inserter ^>v< conveyor\n")

	return components.InfoPanelStyle.Render(info.String())
}

// SetSize updates the explorer size
func (m *ChunkExplorerModel) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m ChunkExplorerModel) loadChunkCmd() tea.Cmd {
	pos := world.ChunkPos{X: m.cx, Y: m.cy}
	return func() tea.Msg {
		c, err := m.db.LoadChunk(pos)
		return chunkLoadedMsg{chunk: c, err: err}
	}
}

func rgbColor(c [3]uint8) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}

func entityGlyph(e *world.Entity) string {
	switch e.Kind {
	case world.KindConveyor:
		switch e.Dir {
		case world.North:
			return "^ "
		case world.East:
			return "> "
		case world.South:
			return "v "
		default:
			return "< "
		}
	case world.KindMiner:
		return "M "
	case world.KindFurnace:
		return "F "
	case world.KindAssembler:
		return "A "
	case world.KindChest:
		return "X "
	case world.KindInserter:
		return "I "
	}
	return "? "
}
