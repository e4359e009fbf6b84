package world

import (
	"math"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/fabrica-dev/fabrica/internal/inventory"
)

// Player is a connected avatar. Position is floating point; the client owns
// its own kinematics.
type Player struct {
	ID        int64
	Name      string
	X, Y      float64
	Inventory *inventory.Inventory
}

// ChunkSource resolves persisted chunks. Returns (nil, nil) when the chunk
// was never saved.
type ChunkSource interface {
	LoadChunk(pos ChunkPos) (*Chunk, error)
}

// Store owns all loaded chunks, the process-wide entity index and the
// connected players. It is confined to the simulation worker; nothing here
// is safe for concurrent use.
type Store struct {
	gen    *Generator
	source ChunkSource

	chunks   map[ChunkPos]*Chunk
	entities map[int64]*Entity
	players  map[int64]*Player

	nextEntityID int64
	clock        uint64

	// Tick is the world tick counter, advanced by the simulation.
	Tick int64
}

// NewStore creates a store backed by a generator and an optional persisted
// chunk source.
func NewStore(gen *Generator, source ChunkSource) *Store {
	return &Store{
		gen:          gen,
		source:       source,
		chunks:       make(map[ChunkPos]*Chunk),
		entities:     make(map[int64]*Entity),
		players:      make(map[int64]*Player),
		nextEntityID: 1,
	}
}

// Generator returns the store's terrain generator.
func (s *Store) Generator() *Generator { return s.gen }

// Chunk returns the chunk at pos, loading it from persistence or generating
// it on first reference. Idempotent.
func (s *Store) Chunk(pos ChunkPos) *Chunk {
	s.clock++
	if c, ok := s.chunks[pos]; ok {
		c.lastTouch = s.clock
		return c
	}

	if s.source != nil {
		c, err := s.source.LoadChunk(pos)
		if err != nil {
			log.Error("Failed to load chunk, regenerating", "cx", pos.X, "cy", pos.Y, "error", err)
		} else if c != nil {
			s.indexLoaded(c)
			c.lastTouch = s.clock
			s.chunks[pos] = c
			return c
		}
	}

	c := s.gen.GenerateChunk(pos)
	c.lastTouch = s.clock
	s.chunks[pos] = c
	log.Debug("Generated chunk", "cx", pos.X, "cy", pos.Y)
	return c
}

// indexLoaded registers a freshly loaded chunk's entities into the global
// index and keeps the id sequence strictly increasing.
func (s *Store) indexLoaded(c *Chunk) {
	for id, e := range c.Entities {
		s.entities[id] = e
		if id >= s.nextEntityID {
			s.nextEntityID = id + 1
		}
	}
}

// Loaded returns the loaded chunks in deterministic (cy, cx) order.
func (s *Store) Loaded() []*Chunk {
	out := make([]*Chunk, 0, len(s.chunks))
	for _, c := range s.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pos.Y != out[j].Pos.Y {
			return out[i].Pos.Y < out[j].Pos.Y
		}
		return out[i].Pos.X < out[j].Pos.X
	})
	return out
}

// LoadedCount returns the number of chunks in memory.
func (s *Store) LoadedCount() int { return len(s.chunks) }

// Tile returns the tile kind at world coordinates, loading the owning chunk
// if needed.
func (s *Store) Tile(x, y int) uint8 {
	c := s.Chunk(PosOf(x, y))
	lx, ly := Local(x, y)
	return c.Tile(lx, ly)
}

// Entity returns an entity by id, or nil.
func (s *Store) Entity(id int64) *Entity {
	return s.entities[id]
}

// EntityAt returns the entity occupying tile (x, y) among loaded chunks.
func (s *Store) EntityAt(x, y int) *Entity {
	c, ok := s.chunks[PosOf(x, y)]
	if !ok {
		return nil
	}
	return c.EntityAt(x, y)
}

// EntitiesInRadius returns loaded entities within r of (x, y), in id order.
func (s *Store) EntitiesInRadius(x, y, r float64) []*Entity {
	var out []*Entity
	for _, e := range s.entities {
		dx := float64(e.X) - x
		dy := float64(e.Y) - y
		if math.Sqrt(dx*dx+dy*dy) <= r {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PlaceEntity creates an entity of the given kind at (x, y). Returns nil
// when the tile is already occupied. The caller checks placement rules.
func (s *Store) PlaceEntity(kind Kind, x, y int, dir Direction) *Entity {
	c := s.Chunk(PosOf(x, y))
	if c.EntityAt(x, y) != nil {
		return nil
	}

	e := &Entity{
		ID:    s.nextEntityID,
		Kind:  kind,
		X:     x,
		Y:     y,
		Dir:   dir,
		State: NewState(kind),
	}
	s.nextEntityID++

	c.AddEntity(e)
	s.entities[e.ID] = e
	return e
}

// RemoveEntity deletes an entity by id from its chunk and the index.
// Buffered items dissolve with it.
func (s *Store) RemoveEntity(id int64) *Entity {
	e, ok := s.entities[id]
	if !ok {
		return nil
	}
	delete(s.entities, id)
	if c, ok := s.chunks[PosOf(e.X, e.Y)]; ok {
		c.RemoveEntity(id)
	}
	return e
}

// NextEntityID returns the next id the store will assign.
func (s *Store) NextEntityID() int64 { return s.nextEntityID }

// SetNextEntityID restores the id sequence from persistence. The sequence
// must stay strictly increasing across the process lifetime, so lower
// values are ignored.
func (s *Store) SetNextEntityID(id int64) {
	if id > s.nextEntityID {
		s.nextEntityID = id
	}
}

// AddPlayer registers a connected player.
func (s *Store) AddPlayer(p *Player) {
	s.players[p.ID] = p
}

// RemovePlayer unregisters a player, returning it, or nil.
func (s *Store) RemovePlayer(id int64) *Player {
	p, ok := s.players[id]
	if !ok {
		return nil
	}
	delete(s.players, id)
	return p
}

// Player returns a player by id, or nil.
func (s *Store) Player(id int64) *Player {
	return s.players[id]
}

// Players returns connected players in id order.
func (s *Store) Players() []*Player {
	out := make([]*Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EvictBeyond unloads least-recently-used chunks outside the given chunk
// radius from every player until at most maxLoaded remain. Dirty chunks are
// saved first; a failed save keeps the chunk (and its dirty flag) for the
// next flush.
func (s *Store) EvictBeyond(radius, maxLoaded int, save func(*Chunk) error) int {
	if len(s.chunks) <= maxLoaded {
		return 0
	}

	anchors := make([]ChunkPos, 0, len(s.players))
	for _, p := range s.players {
		anchors = append(anchors, PosOf(int(math.Floor(p.X)), int(math.Floor(p.Y))))
	}

	var candidates []*Chunk
	for _, c := range s.chunks {
		near := false
		for _, a := range anchors {
			if abs(c.Pos.X-a.X) <= radius && abs(c.Pos.Y-a.Y) <= radius {
				near = true
				break
			}
		}
		if !near {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].lastTouch < candidates[j].lastTouch
	})

	evicted := 0
	for _, c := range candidates {
		if len(s.chunks) <= maxLoaded {
			break
		}
		if c.Dirty && save != nil {
			if err := save(c); err != nil {
				log.Error("Failed to save chunk during eviction, keeping it loaded",
					"cx", c.Pos.X, "cy", c.Pos.Y, "error", err)
				continue
			}
		}
		for id := range c.Entities {
			delete(s.entities, id)
		}
		delete(s.chunks, c.Pos)
		evicted++
	}

	if evicted > 0 {
		log.Debug("Evicted chunks", "count", evicted, "loaded", len(s.chunks))
	}
	return evicted
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
