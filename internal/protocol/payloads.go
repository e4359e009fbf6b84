package protocol

import (
	"sort"

	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/world"
)

// Auth is the client's opening message.
type Auth struct {
	Name string `msgpack:"name"`
}

// AuthResponse confirms a login and carries the spawn state.
type AuthResponse struct {
	Success  bool    `msgpack:"success"`
	PlayerID int64   `msgpack:"player_id"`
	X        float64 `msgpack:"x"`
	Y        float64 `msgpack:"y"`
	Tick     int64   `msgpack:"tick"`
}

// PlayerJoin announces a peer entering the client's view.
type PlayerJoin struct {
	ID   int64   `msgpack:"id"`
	Name string  `msgpack:"name"`
	X    float64 `msgpack:"x"`
	Y    float64 `msgpack:"y"`
}

// PlayerLeave announces a peer disconnecting.
type PlayerLeave struct {
	ID int64 `msgpack:"id"`
}

// PlayerMove carries a position update. The id is filled by the server on
// rebroadcast and ignored on ingress.
type PlayerMove struct {
	ID int64   `msgpack:"id"`
	X  float64 `msgpack:"x"`
	Y  float64 `msgpack:"y"`
}

// ChunkRequest asks for one chunk by chunk coordinates.
type ChunkRequest struct {
	CX int `msgpack:"cx"`
	CY int `msgpack:"cy"`
}

// ChunkData is a full chunk snapshot.
type ChunkData struct {
	CX       int                                     `msgpack:"cx"`
	CY       int                                     `msgpack:"cy"`
	Tiles    [world.ChunkSize][world.ChunkSize]uint8 `msgpack:"tiles"`
	Entities []world.Record                          `msgpack:"entities"`
}

// NewChunkData snapshots a chunk for the wire, entities in id order.
func NewChunkData(c *world.Chunk, records []world.Record) ChunkData {
	return ChunkData{CX: c.Pos.X, CY: c.Pos.Y, Tiles: c.Tiles, Entities: records}
}

// EntityRemove announces a destroyed entity.
type EntityRemove struct {
	ID int64 `msgpack:"id"`
}

// PlayerAction is a build, destroy or configure request.
type PlayerAction struct {
	Action     int    `msgpack:"action"`
	X          int    `msgpack:"x"`
	Y          int    `msgpack:"y"`
	EntityType int    `msgpack:"entity_type"`
	Direction  int    `msgpack:"direction"`
	EntityID   int64  `msgpack:"entity_id"`
	Recipe     string `msgpack:"recipe"`
}

// InventoryAction is one of the inventory subcommands. Unused fields stay at
// their zero values.
type InventoryAction struct {
	Action   int    `msgpack:"action"`
	X        int    `msgpack:"x"`
	Y        int    `msgpack:"y"`
	Mine     bool   `msgpack:"mine"`
	Item     string `msgpack:"item"`
	Count    int    `msgpack:"count"`
	EntityID int64  `msgpack:"entity_id"`
	Slot1    int    `msgpack:"slot1"`
	Slot2    int    `msgpack:"slot2"`
	Src      int    `msgpack:"src"`
	Dst      int    `msgpack:"dst"`
	Recipe   string `msgpack:"recipe"`
}

// Sync is the clock echo. The server copies client_time back and stamps its
// own wall clock and tick.
type Sync struct {
	ServerTime int64 `msgpack:"server_time"`
	ClientTime int64 `msgpack:"client_time"`
	Tick       int64 `msgpack:"tick"`
}

// CatalogTile mirrors one catalog tile row for the client.
type CatalogTile struct {
	ID       int      `msgpack:"id"`
	Name     string   `msgpack:"name"`
	Color    [3]uint8 `msgpack:"color"`
	Walkable bool     `msgpack:"walkable"`
	Resource string   `msgpack:"resource"`
}

// CatalogEntity mirrors one catalog entity row.
type CatalogEntity struct {
	ID             int      `msgpack:"id"`
	Name           string   `msgpack:"name"`
	DisplayName    string   `msgpack:"display_name"`
	Color          [3]uint8 `msgpack:"color"`
	HasDirection   bool     `msgpack:"has_direction"`
	BufferSize     int      `msgpack:"buffer_size"`
	InputSize      int      `msgpack:"input_size"`
	OutputSize     int      `msgpack:"output_size"`
	Cooldown       int      `msgpack:"cooldown"`
	Speed          float64  `msgpack:"speed"`
	AnimationSpeed float64  `msgpack:"animation_speed"`
}

// CatalogItem mirrors one catalog item row.
type CatalogItem struct {
	Name        string   `msgpack:"name"`
	DisplayName string   `msgpack:"display_name"`
	Color       [3]uint8 `msgpack:"color"`
	Category    string   `msgpack:"category"`
}

// CatalogFurnaceRecipe mirrors one smelting recipe.
type CatalogFurnaceRecipe struct {
	Input  string `msgpack:"input"`
	Output string `msgpack:"output"`
	Count  int    `msgpack:"count"`
	Time   int    `msgpack:"time"`
}

// CatalogAssemblerRecipe mirrors one crafting recipe.
type CatalogAssemblerRecipe struct {
	Name        string         `msgpack:"name"`
	DisplayName string         `msgpack:"display_name"`
	Ingredients map[string]int `msgpack:"ingredients"`
	Result      string         `msgpack:"result"`
	Count       int            `msgpack:"count"`
	Time        int            `msgpack:"time"`
}

// Catalog is the full content snapshot sent once after AUTH_RESPONSE, so
// clients never read the content store directly.
type Catalog struct {
	Tiles            []CatalogTile            `msgpack:"tiles"`
	Entities         []CatalogEntity          `msgpack:"entities"`
	Items            []CatalogItem            `msgpack:"items"`
	FurnaceRecipes   []CatalogFurnaceRecipe   `msgpack:"furnace_recipes"`
	AssemblerRecipes []CatalogAssemblerRecipe `msgpack:"assembler_recipes"`
	Constants        map[string]float64       `msgpack:"constants"`
}

// NewCatalog flattens the catalog tables into their wire form, each table in
// a stable order.
func NewCatalog(c *catalog.Catalog) Catalog {
	out := Catalog{Constants: c.Constants}

	tileIDs := make([]int, 0, len(c.Tiles))
	for id := range c.Tiles {
		tileIDs = append(tileIDs, id)
	}
	sort.Ints(tileIDs)
	for _, id := range tileIDs {
		t := c.Tiles[id]
		out.Tiles = append(out.Tiles, CatalogTile{
			ID: t.ID, Name: t.Name, Color: t.Color, Walkable: t.Walkable, Resource: t.Resource,
		})
	}

	entityIDs := make([]int, 0, len(c.Entities))
	for id := range c.Entities {
		entityIDs = append(entityIDs, id)
	}
	sort.Ints(entityIDs)
	for _, id := range entityIDs {
		e := c.Entities[id]
		out.Entities = append(out.Entities, CatalogEntity{
			ID: e.ID, Name: e.Name, DisplayName: e.DisplayName, Color: e.Color,
			HasDirection: e.HasDirection, BufferSize: e.BufferSize,
			InputSize: e.InputBufferSize, OutputSize: e.OutputBufferSize,
			Cooldown: e.Cooldown, Speed: e.Speed, AnimationSpeed: e.AnimationSpeed,
		})
	}

	names := make([]string, 0, len(c.Items))
	for name := range c.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		it := c.Items[name]
		out.Items = append(out.Items, CatalogItem{
			Name: it.Name, DisplayName: it.DisplayName, Color: it.Color, Category: it.Category,
		})
	}

	inputs := make([]string, 0, len(c.FurnaceRecipes))
	for input := range c.FurnaceRecipes {
		inputs = append(inputs, input)
	}
	sort.Strings(inputs)
	for _, input := range inputs {
		r := c.FurnaceRecipes[input]
		out.FurnaceRecipes = append(out.FurnaceRecipes, CatalogFurnaceRecipe{
			Input: r.Input, Output: r.Output, Count: r.Count, Time: r.Time,
		})
	}

	recipes := make([]string, 0, len(c.AssemblerRecipes))
	for name := range c.AssemblerRecipes {
		recipes = append(recipes, name)
	}
	sort.Strings(recipes)
	for _, name := range recipes {
		r := c.AssemblerRecipes[name]
		out.AssemblerRecipes = append(out.AssemblerRecipes, CatalogAssemblerRecipe{
			Name: r.Name, DisplayName: r.DisplayName, Ingredients: r.Ingredients,
			Result: r.Result, Count: r.Count, Time: r.Time,
		})
	}

	return out
}
