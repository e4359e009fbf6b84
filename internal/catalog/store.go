package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"
)

// loadFromStore reads the catalog tables out of the admin tool's content
// database. The admin tool owns the schema; the server only reads it. List
// and map valued columns (colors, ingredients, tile lists) are stored as
// JSON text.
func loadFromStore(path string) (*Catalog, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("content store not found: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}
	defer db.Close()

	c := &Catalog{
		Tiles:            make(map[int]TileDef),
		TilesByName:      make(map[string]TileDef),
		Entities:         make(map[int]EntityDef),
		EntitiesByName:   make(map[string]EntityDef),
		Items:            make(map[string]ItemDef),
		FurnaceRecipes:   make(map[string]FurnaceRecipe),
		AssemblerRecipes: make(map[string]AssemblerRecipe),
		PlacementRules:   make(map[string]PlacementRule),
		Constants:        make(map[string]float64),
	}

	if err := loadTiles(db, c); err != nil {
		return nil, err
	}
	if err := loadEntities(db, c); err != nil {
		return nil, err
	}
	if err := loadItems(db, c); err != nil {
		return nil, err
	}
	if err := loadFurnaceRecipes(db, c); err != nil {
		return nil, err
	}
	if err := loadAssemblerRecipes(db, c); err != nil {
		return nil, err
	}
	if err := loadPlacementRules(db, c); err != nil {
		return nil, err
	}
	if err := loadConstants(db, c); err != nil {
		return nil, err
	}

	return c, nil
}

func parseColor(s string) [3]uint8 {
	var rgb [3]int
	if err := json.Unmarshal([]byte(s), &rgb); err != nil {
		return [3]uint8{100, 100, 100}
	}
	return [3]uint8{uint8(rgb[0]), uint8(rgb[1]), uint8(rgb[2])}
}

func loadTiles(db *sql.DB, c *Catalog) error {
	rows, err := db.Query(`SELECT id, name, color, walkable, COALESCE(resource, '') FROM tiles`)
	if err != nil {
		return fmt.Errorf("failed to query tiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t TileDef
		var color string
		if err := rows.Scan(&t.ID, &t.Name, &color, &t.Walkable, &t.Resource); err != nil {
			return fmt.Errorf("failed to scan tile: %w", err)
		}
		t.Color = parseColor(color)
		c.Tiles[t.ID] = t
		c.TilesByName[t.Name] = t
	}
	return rows.Err()
}

func loadEntities(db *sql.DB, c *Catalog) error {
	rows, err := db.Query(`SELECT id, name, display_name, color, has_direction,
		buffer_size, input_buffer_size, output_buffer_size, cooldown, speed, animation_speed
		FROM entities`)
	if err != nil {
		return fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var e EntityDef
		var color string
		if err := rows.Scan(&e.ID, &e.Name, &e.DisplayName, &color, &e.HasDirection,
			&e.BufferSize, &e.InputBufferSize, &e.OutputBufferSize, &e.Cooldown, &e.Speed, &e.AnimationSpeed); err != nil {
			return fmt.Errorf("failed to scan entity: %w", err)
		}
		e.Color = parseColor(color)
		c.Entities[e.ID] = e
		c.EntitiesByName[e.Name] = e
	}
	return rows.Err()
}

func loadItems(db *sql.DB, c *Catalog) error {
	rows, err := db.Query(`SELECT name, display_name, color, category FROM items`)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it ItemDef
		var color string
		if err := rows.Scan(&it.Name, &it.DisplayName, &color, &it.Category); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		it.Color = parseColor(color)
		c.Items[it.Name] = it
	}
	return rows.Err()
}

func loadFurnaceRecipes(db *sql.DB, c *Catalog) error {
	rows, err := db.Query(`SELECT input, output, count, time FROM furnace_recipes`)
	if err != nil {
		return fmt.Errorf("failed to query furnace recipes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r FurnaceRecipe
		if err := rows.Scan(&r.Input, &r.Output, &r.Count, &r.Time); err != nil {
			return fmt.Errorf("failed to scan furnace recipe: %w", err)
		}
		c.FurnaceRecipes[r.Input] = r
	}
	return rows.Err()
}

func loadAssemblerRecipes(db *sql.DB, c *Catalog) error {
	rows, err := db.Query(`SELECT name, display_name, ingredients, result, count, time FROM assembler_recipes`)
	if err != nil {
		return fmt.Errorf("failed to query assembler recipes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r AssemblerRecipe
		var ingredients string
		if err := rows.Scan(&r.Name, &r.DisplayName, &ingredients, &r.Result, &r.Count, &r.Time); err != nil {
			return fmt.Errorf("failed to scan assembler recipe: %w", err)
		}
		if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
			return fmt.Errorf("failed to decode ingredients for %q: %w", r.Name, err)
		}
		c.AssemblerRecipes[r.Name] = r
	}
	return rows.Err()
}

func loadPlacementRules(db *sql.DB, c *Catalog) error {
	rows, err := db.Query(`SELECT entity, allowed_tiles, forbidden_tiles FROM placement_rules`)
	if err != nil {
		return fmt.Errorf("failed to query placement rules: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r PlacementRule
		var allowed, forbidden string
		if err := rows.Scan(&r.Entity, &allowed, &forbidden); err != nil {
			return fmt.Errorf("failed to scan placement rule: %w", err)
		}
		if err := json.Unmarshal([]byte(allowed), &r.Allowed); err != nil {
			return fmt.Errorf("failed to decode allowed tiles for %q: %w", r.Entity, err)
		}
		if err := json.Unmarshal([]byte(forbidden), &r.Forbidden); err != nil {
			return fmt.Errorf("failed to decode forbidden tiles for %q: %w", r.Entity, err)
		}
		c.PlacementRules[r.Entity] = r
	}
	return rows.Err()
}

func loadConstants(db *sql.DB, c *Catalog) error {
	rows, err := db.Query(`SELECT key, value FROM constants`)
	if err != nil {
		return fmt.Errorf("failed to query constants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return fmt.Errorf("failed to scan constant: %w", err)
		}
		c.Constants[key] = value
	}
	return rows.Err()
}
