package catalog

// Defaults returns the embedded fallback catalog used when no content store
// is reachable. The tables mirror what the admin tool seeds on first run.
func Defaults() *Catalog {
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

	tiles := []TileDef{
		{0, "VOID", [3]uint8{20, 20, 30}, false, ""},
		{1, "GRASS", [3]uint8{34, 139, 34}, true, ""},
		{2, "DIRT", [3]uint8{139, 90, 43}, true, ""},
		{3, "STONE", [3]uint8{128, 128, 128}, true, ""},
		{4, "WATER", [3]uint8{30, 144, 255}, false, ""},
		{5, "IRON_ORE", [3]uint8{160, 160, 180}, true, "iron_ore"},
		{6, "COPPER_ORE", [3]uint8{184, 115, 51}, true, "copper_ore"},
		{7, "GOLD_ORE", [3]uint8{255, 215, 0}, true, "gold_ore"},
		{8, "DIAMOND_ORE", [3]uint8{185, 242, 255}, true, "diamond"},
		{9, "BAUXITE_ORE", [3]uint8{205, 133, 63}, true, "bauxite"},
		{10, "TIN_ORE", [3]uint8{192, 192, 192}, true, "tin_ore"},
		{11, "URANIUM_ORE", [3]uint8{100, 255, 100}, true, "uranium_ore"},
		{12, "COAL", [3]uint8{40, 40, 40}, true, "coal"},
	}
	for _, t := range tiles {
		c.Tiles[t.ID] = t
		c.TilesByName[t.Name] = t
	}

	entities := []EntityDef{
		{0, "PLAYER", "Player", [3]uint8{255, 255, 255}, false, 0, 0, 0, 0, 5.0, 0},
		{1, "CONVEYOR", "Conveyor", [3]uint8{255, 200, 0}, true, 3, 0, 0, 0, 0.02, 0},
		{2, "MINER", "Miner", [3]uint8{200, 100, 50}, true, 10, 0, 0, 60, 0, 0},
		{3, "FURNACE", "Furnace", [3]uint8{255, 100, 0}, true, 0, 10, 10, 120, 0, 0},
		{4, "ASSEMBLER", "Assembler", [3]uint8{100, 100, 200}, true, 0, 10, 10, 0, 0, 0},
		{5, "CHEST", "Chest", [3]uint8{139, 90, 43}, false, 50, 0, 0, 0, 0, 0},
		{6, "INSERTER", "Inserter", [3]uint8{150, 150, 150}, true, 0, 0, 0, 20, 0, 0.05},
	}
	for _, e := range entities {
		c.Entities[e.ID] = e
		c.EntitiesByName[e.Name] = e
	}

	items := []ItemDef{
		{"iron_ore", "Iron ore", [3]uint8{160, 160, 180}, "raw"},
		{"copper_ore", "Copper ore", [3]uint8{184, 115, 51}, "raw"},
		{"coal", "Coal", [3]uint8{40, 40, 40}, "raw"},
		{"iron_plate", "Iron plate", [3]uint8{200, 200, 210}, "plate"},
		{"copper_plate", "Copper plate", [3]uint8{210, 140, 80}, "plate"},
		{"carbon", "Carbon", [3]uint8{60, 60, 60}, "plate"},
		{"copper_wire", "Copper wire", [3]uint8{230, 160, 100}, "intermediate"},
		{"iron_gear", "Iron gear", [3]uint8{180, 180, 190}, "intermediate"},
		{"circuit", "Circuit", [3]uint8{50, 150, 50}, "intermediate"},
		{"advanced_circuit", "Advanced circuit", [3]uint8{150, 50, 50}, "intermediate"},
		{"automation_science", "Automation science pack", [3]uint8{255, 100, 100}, "science"},
	}
	for _, it := range items {
		c.Items[it.Name] = it
	}

	furnace := []FurnaceRecipe{
		{"iron_ore", "iron_plate", 1, 120},
		{"copper_ore", "copper_plate", 1, 120},
		{"coal", "carbon", 1, 60},
	}
	for _, r := range furnace {
		c.FurnaceRecipes[r.Input] = r
	}

	assembler := []AssemblerRecipe{
		{"iron_gear", "Iron gear", map[string]int{"iron_plate": 2}, "iron_gear", 1, 60},
		{"copper_wire", "Copper wire", map[string]int{"copper_plate": 1}, "copper_wire", 2, 30},
		{"circuit", "Circuit", map[string]int{"iron_plate": 1, "copper_wire": 3}, "circuit", 1, 90},
		{"automation_science", "Automation science pack", map[string]int{"iron_gear": 1, "circuit": 1}, "automation_science", 1, 120},
	}
	for _, r := range assembler {
		c.AssemblerRecipes[r.Name] = r
	}

	rules := []PlacementRule{
		{"MINER", []string{"IRON_ORE", "COPPER_ORE", "COAL"}, nil},
		{"FURNACE", []string{"GRASS", "DIRT", "STONE"}, []string{"WATER"}},
		{"ASSEMBLER", []string{"GRASS", "DIRT", "STONE"}, []string{"WATER"}},
		{"CONVEYOR", nil, []string{"WATER", "VOID"}},
		{"CHEST", nil, []string{"WATER", "VOID"}},
		{"INSERTER", nil, []string{"WATER", "VOID"}},
	}
	for _, r := range rules {
		c.PlacementRules[r.Entity] = r
	}

	c.Constants = map[string]float64{
		"CHUNK_SIZE":           32,
		"TILE_SIZE":            64,
		"WORLD_TICK_RATE":      60,
		"NETWORK_TICK_RATE":    20,
		"PLAYER_SPEED":         5.0,
		"PLAYER_VIEW_DISTANCE": 3,
		"PICKUP_RADIUS":        1.5,
	}

	return c
}
