package catalog

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsComplete(t *testing.T) {
	c := Defaults()

	assert.Len(t, c.Tiles, 13)
	assert.Len(t, c.Entities, 7)
	assert.Len(t, c.Items, 11)
	assert.Len(t, c.FurnaceRecipes, 3)
	assert.Len(t, c.AssemblerRecipes, 4)
	assert.Len(t, c.PlacementRules, 6)

	// Every recipe must reference known items.
	for _, r := range c.FurnaceRecipes {
		assert.Contains(t, c.Items, r.Input)
		assert.Contains(t, c.Items, r.Output)
	}
	for _, r := range c.AssemblerRecipes {
		assert.Contains(t, c.Items, r.Result)
		for ing := range r.Ingredients {
			assert.Contains(t, c.Items, ing)
		}
	}

	// Every placement rule must reference known tiles and entities.
	for name, rule := range c.PlacementRules {
		assert.Contains(t, c.EntitiesByName, name)
		for _, tile := range append(rule.Allowed, rule.Forbidden...) {
			assert.Contains(t, c.TilesByName, tile)
		}
	}
}

func TestResourceForTile(t *testing.T) {
	c := Defaults()

	assert.Equal(t, "iron_ore", c.ResourceForTile(c.TilesByName["IRON_ORE"].ID))
	assert.Equal(t, "coal", c.ResourceForTile(c.TilesByName["COAL"].ID))
	assert.Equal(t, "", c.ResourceForTile(c.TilesByName["GRASS"].ID))
	assert.Equal(t, "", c.ResourceForTile(999))
}

func TestCanPlace(t *testing.T) {
	c := Defaults()

	tests := []struct {
		entity string
		tile   string
		want   bool
	}{
		{"MINER", "IRON_ORE", true},
		{"MINER", "GRASS", false},
		{"FURNACE", "GRASS", true},
		{"FURNACE", "WATER", false},
		{"CONVEYOR", "GRASS", true},
		{"CONVEYOR", "IRON_ORE", true}, // empty allowed list means anywhere
		{"CONVEYOR", "WATER", false},
		{"CHEST", "VOID", false},
		{"PLAYER", "GRASS", true}, // no rule at all
	}
	for _, tt := range tests {
		t.Run(tt.entity+"_on_"+tt.tile, func(t *testing.T) {
			assert.Equal(t, tt.want, c.CanPlace(tt.entity, tt.tile))
		})
	}
}

func TestConstants(t *testing.T) {
	c := Defaults()

	assert.Equal(t, 32, c.IntConstant("CHUNK_SIZE", 0))
	assert.Equal(t, 60, c.IntConstant("WORLD_TICK_RATE", 0))
	assert.Equal(t, 5.0, c.FloatConstant("PLAYER_SPEED", 0))
	assert.Equal(t, 7, c.IntConstant("MISSING", 7))
}

func TestCategoryRank(t *testing.T) {
	c := Defaults()

	assert.Less(t, c.CategoryRank("raw"), c.CategoryRank("plate"))
	assert.Less(t, c.CategoryRank("plate"), c.CategoryRank("intermediate"))
	assert.Less(t, c.CategoryRank("intermediate"), c.CategoryRank("science"))
	assert.Greater(t, c.CategoryRank("unknown"), c.CategoryRank("science"))
}

func TestLoadFallsBackWhenStoreMissing(t *testing.T) {
	c := Load(filepath.Join(t.TempDir(), "missing.db"))
	require.NotNil(t, c)
	assert.Len(t, c.Tiles, 13)
}

func TestLoadFromStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)

	_, err = db.Exec(`
		CREATE TABLE tiles (id INTEGER, name TEXT, color TEXT, walkable INTEGER, resource TEXT);
		CREATE TABLE entities (id INTEGER, name TEXT, display_name TEXT, color TEXT, has_direction INTEGER,
			buffer_size INTEGER, input_buffer_size INTEGER, output_buffer_size INTEGER,
			cooldown INTEGER, speed REAL, animation_speed REAL);
		CREATE TABLE items (name TEXT, display_name TEXT, color TEXT, category TEXT);
		CREATE TABLE furnace_recipes (input TEXT, output TEXT, count INTEGER, time INTEGER);
		CREATE TABLE assembler_recipes (name TEXT, display_name TEXT, ingredients TEXT, result TEXT, count INTEGER, time INTEGER);
		CREATE TABLE placement_rules (entity TEXT, allowed_tiles TEXT, forbidden_tiles TEXT);
		CREATE TABLE constants (key TEXT, value REAL);

		INSERT INTO tiles VALUES (1, 'GRASS', '[34,139,34]', 1, NULL);
		INSERT INTO tiles VALUES (5, 'IRON_ORE', '[160,160,180]', 1, 'iron_ore');
		INSERT INTO entities VALUES (2, 'MINER', 'Miner', '[200,100,50]', 1, 10, 0, 0, 60, 0, 0);
		INSERT INTO items VALUES ('iron_ore', 'Iron ore', '[160,160,180]', 'raw');
		INSERT INTO furnace_recipes VALUES ('iron_ore', 'iron_plate', 1, 120);
		INSERT INTO assembler_recipes VALUES ('iron_gear', 'Iron gear', '{"iron_plate":2}', 'iron_gear', 1, 60);
		INSERT INTO placement_rules VALUES ('MINER', '["IRON_ORE"]', '[]');
		INSERT INTO constants VALUES ('CHUNK_SIZE', 32);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	c := Load(path)
	require.NotNil(t, c)

	assert.Equal(t, "iron_ore", c.Tiles[5].Resource)
	assert.Equal(t, 60, c.Entities[2].Cooldown)
	assert.Equal(t, 120, c.FurnaceRecipes["iron_ore"].Time)
	assert.Equal(t, map[string]int{"iron_plate": 2}, c.AssemblerRecipes["iron_gear"].Ingredients)
	assert.True(t, c.CanPlace("MINER", "IRON_ORE"))
	assert.False(t, c.CanPlace("MINER", "GRASS"))
	assert.Equal(t, 32, c.IntConstant("CHUNK_SIZE", 0))
}
