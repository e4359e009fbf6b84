// Package catalog holds the immutable content tables the server reads once at
// startup: tile kinds, entity kinds, items, recipes, placement rules and
// tunable constants. The tables come from the admin tool's content database
// when it is reachable, otherwise from the embedded defaults.
package catalog

import (
	"github.com/charmbracelet/log"
)

// TileDef describes one tile kind.
type TileDef struct {
	ID       int
	Name     string
	Color    [3]uint8
	Walkable bool
	Resource string // item extracted by miners, "" for none
}

// EntityDef describes one placeable entity kind.
type EntityDef struct {
	ID               int
	Name             string
	DisplayName      string
	Color            [3]uint8
	HasDirection     bool
	BufferSize       int
	InputBufferSize  int
	OutputBufferSize int
	Cooldown         int
	Speed            float64
	AnimationSpeed   float64
}

// ItemDef describes one item.
type ItemDef struct {
	Name        string
	DisplayName string
	Color       [3]uint8
	Category    string
}

// FurnaceRecipe maps one input item to a smelted output.
type FurnaceRecipe struct {
	Input  string
	Output string
	Count  int
	Time   int // ticks
}

// AssemblerRecipe builds a result from an ingredient multiset.
type AssemblerRecipe struct {
	Name        string
	DisplayName string
	Ingredients map[string]int
	Result      string
	Count       int
	Time        int // ticks
}

// PlacementRule restricts which tiles an entity kind may be built on. An
// empty Allowed list means "anywhere except Forbidden".
type PlacementRule struct {
	Entity    string
	Allowed   []string
	Forbidden []string
}

// Catalog is the process-wide content table set. It is initialized exactly
// once before any worker starts and never mutated afterwards.
type Catalog struct {
	Tiles            map[int]TileDef
	TilesByName      map[string]TileDef
	Entities         map[int]EntityDef
	EntitiesByName   map[string]EntityDef
	Items            map[string]ItemDef
	FurnaceRecipes   map[string]FurnaceRecipe   // keyed by input item
	AssemblerRecipes map[string]AssemblerRecipe // keyed by recipe name
	PlacementRules   map[string]PlacementRule   // keyed by entity name
	Constants        map[string]float64
}

// Load reads the catalog from the content database at path, falling back to
// the embedded defaults when the path is empty or the store is unreachable.
func Load(contentDB string) *Catalog {
	if contentDB == "" {
		log.Info("No content store configured, using default catalog")
		return Defaults()
	}

	c, err := loadFromStore(contentDB)
	if err != nil {
		log.Warn("Content store unreachable, using default catalog", "path", contentDB, "error", err)
		return Defaults()
	}

	log.Info("Catalog loaded from content store",
		"path", contentDB,
		"tiles", len(c.Tiles),
		"entities", len(c.Entities),
		"items", len(c.Items),
		"furnace_recipes", len(c.FurnaceRecipes),
		"assembler_recipes", len(c.AssemblerRecipes))
	return c
}

// CanPlace reports whether an entity kind may be built on the named tile.
func (c *Catalog) CanPlace(entityName, tileName string) bool {
	rule, ok := c.PlacementRules[entityName]
	if !ok {
		return true
	}
	for _, t := range rule.Forbidden {
		if t == tileName {
			return false
		}
	}
	if len(rule.Allowed) == 0 {
		return true
	}
	for _, t := range rule.Allowed {
		if t == tileName {
			return true
		}
	}
	return false
}

// ResourceForTile returns the item a miner extracts from the given tile kind,
// or "" when the tile yields nothing.
func (c *Catalog) ResourceForTile(tileID int) string {
	if t, ok := c.Tiles[tileID]; ok {
		return t.Resource
	}
	return ""
}

// CategoryRank orders item categories for inventory sorting. Unknown
// categories sort last.
func (c *Catalog) CategoryRank(category string) int {
	switch category {
	case "raw":
		return 0
	case "plate":
		return 1
	case "intermediate":
		return 2
	case "science":
		return 3
	}
	return 4
}

// IntConstant returns a named constant as an int, or def when absent.
func (c *Catalog) IntConstant(key string, def int) int {
	if v, ok := c.Constants[key]; ok {
		return int(v)
	}
	return def
}

// FloatConstant returns a named constant, or def when absent.
func (c *Catalog) FloatConstant(key string, def float64) float64 {
	if v, ok := c.Constants[key]; ok {
		return v
	}
	return def
}
