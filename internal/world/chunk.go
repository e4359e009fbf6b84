package world

// ChunkSize is the edge length of a chunk in tiles.
const ChunkSize = 32

// ChunkPos identifies a chunk by its chunk-grid coordinates.
type ChunkPos struct {
	X, Y int
}

// floorDiv divides rounding toward negative infinity, so chunk coordinates
// are correct for negative world coordinates.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// floorMod returns the non-negative remainder matching floorDiv.
func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// PosOf returns the chunk containing the world tile (x, y).
func PosOf(x, y int) ChunkPos {
	return ChunkPos{floorDiv(x, ChunkSize), floorDiv(y, ChunkSize)}
}

// Local returns the in-chunk coordinates of the world tile (x, y).
func Local(x, y int) (int, int) {
	return floorMod(x, ChunkSize), floorMod(y, ChunkSize)
}

// Chunk is a square block of tiles plus the entities standing on them. A
// chunk is dirty when its entity set or tiles changed since it was last
// persisted.
type Chunk struct {
	Pos      ChunkPos
	Tiles    [ChunkSize][ChunkSize]uint8 // [row y][col x]
	Entities map[int64]*Entity
	Dirty    bool

	lastTouch uint64 // store access clock, for LRU eviction
}

// NewChunk allocates an empty chunk at pos.
func NewChunk(pos ChunkPos) *Chunk {
	return &Chunk{
		Pos:      pos,
		Entities: make(map[int64]*Entity),
	}
}

// Tile returns the tile kind at in-chunk coordinates, or TileVoid outside
// the chunk bounds.
func (c *Chunk) Tile(lx, ly int) uint8 {
	if lx < 0 || lx >= ChunkSize || ly < 0 || ly >= ChunkSize {
		return TileVoid
	}
	return c.Tiles[ly][lx]
}

// AddEntity inserts an entity and marks the chunk dirty.
func (c *Chunk) AddEntity(e *Entity) {
	c.Entities[e.ID] = e
	c.Dirty = true
}

// RemoveEntity deletes an entity by id, returning it, or nil when absent.
func (c *Chunk) RemoveEntity(id int64) *Entity {
	e, ok := c.Entities[id]
	if !ok {
		return nil
	}
	delete(c.Entities, id)
	c.Dirty = true
	return e
}

// EntityAt returns the entity occupying the world tile (x, y), or nil.
func (c *Chunk) EntityAt(x, y int) *Entity {
	for _, e := range c.Entities {
		if e.X == x && e.Y == y {
			return e
		}
	}
	return nil
}
