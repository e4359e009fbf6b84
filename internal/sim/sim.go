// Package sim drives the fixed-rate world simulation: per-tick machine
// updates and item flow between neighboring entities. All methods run on the
// simulation worker; the package is not safe for concurrent use.
package sim

import (
	"fmt"
	"sort"

	"github.com/fabrica-dev/fabrica/internal/catalog"
	"github.com/fabrica-dev/fabrica/internal/world"
)

// Fallback tuning used when the catalog lacks an entity definition.
const (
	defaultConveyorCapacity = 3
	defaultConveyorSpeed    = 0.02
	defaultChestCapacity    = 50
	defaultInputCapacity    = 10
	defaultOutputCapacity   = 10
	defaultMinerCapacity    = 10
	defaultMinerCooldown    = 60
	defaultInserterCooldown = 20
	defaultInserterSpeed    = 0.05
)

// Simulation owns the per-tick update of all loaded entities.
type Simulation struct {
	store   *world.Store
	catalog *catalog.Catalog

	dirty map[int64]*world.Entity
}

// New creates a simulation over the given store and catalog.
func New(store *world.Store, cat *catalog.Catalog) *Simulation {
	return &Simulation{
		store:   store,
		catalog: cat,
		dirty:   make(map[int64]*world.Entity),
	}
}

// Store returns the underlying world store.
func (s *Simulation) Store() *world.Store { return s.store }

// Tick runs one simulation step. The apply callback runs after the dirty set
// is cleared and before entities update; the server uses it to drain queued
// client actions so the tick sees a consistent snapshot. Returns the
// entities whose state changed, in id order.
func (s *Simulation) Tick(apply func()) []*world.Entity {
	s.store.Tick++

	s.dirty = make(map[int64]*world.Entity)
	if apply != nil {
		apply()
	}

	// Deterministic iteration: chunks in coordinate order, entities in id
	// order. Identical worlds and actions then tick identically.
	for _, c := range s.store.Loaded() {
		ids := make([]int64, 0, len(c.Entities))
		for id := range c.Entities {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			e, ok := c.Entities[id]
			if !ok {
				continue
			}
			s.update(e)
		}
	}

	out := make([]*world.Entity, 0, len(s.dirty))
	for _, e := range s.dirty {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Simulation) update(e *world.Entity) {
	switch e.Kind {
	case world.KindMiner:
		s.updateMiner(e)
	case world.KindFurnace:
		s.updateFurnace(e)
	case world.KindAssembler:
		s.updateAssembler(e)
	case world.KindConveyor:
		s.updateConveyor(e)
	case world.KindInserter:
		s.updateInserter(e)
	}
	// Chests and players are passive.
}

func (s *Simulation) markDirty(e *world.Entity) {
	s.dirty[e.ID] = e
	if c, ok := s.chunkOf(e); ok {
		c.Dirty = true
	}
}

func (s *Simulation) chunkOf(e *world.Entity) (*world.Chunk, bool) {
	c := s.store.Chunk(world.PosOf(e.X, e.Y))
	return c, c != nil
}

// MarkDirty exposes dirty tracking for action handlers that mutate entity
// buffers outside the per-kind updaters.
func (s *Simulation) MarkDirty(e *world.Entity) { s.markDirty(e) }

// Unmark drops an entity from the dirty set, used when it is destroyed in
// the same tick.
func (s *Simulation) Unmark(id int64) { delete(s.dirty, id) }

// downstream returns the entity on the target tile one step ahead of e.
func (s *Simulation) downstream(e *world.Entity) *world.Entity {
	dx, dy := e.Dir.Delta()
	return s.store.EntityAt(e.X+dx, e.Y+dy)
}

// behind returns the entity on the tile opposite e's direction.
func (s *Simulation) behind(e *world.Entity) *world.Entity {
	dx, dy := e.Dir.Opposite().Delta()
	return s.store.EntityAt(e.X+dx, e.Y+dy)
}

func (s *Simulation) entityDef(k world.Kind) (catalog.EntityDef, bool) {
	def, ok := s.catalog.Entities[int(k)]
	return def, ok
}

func (s *Simulation) updateMiner(e *world.Entity) {
	state := e.State.(*world.MinerState)

	if state.Cooldown > 0 {
		state.Cooldown--
	}

	if len(state.Output) > 0 {
		if dst := s.downstream(e); dst != nil && s.insert(dst, state.Output[0].Name) {
			state.Output = state.Output[1:]
			s.markDirty(e)
		}
	}

	if state.Cooldown > 0 {
		return
	}
	resource := s.catalog.ResourceForTile(int(s.store.Tile(e.X, e.Y)))
	if resource == "" {
		return
	}

	capacity := defaultMinerCapacity
	cooldown := defaultMinerCooldown
	if def, ok := s.entityDef(world.KindMiner); ok {
		if def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		if def.Cooldown > 0 {
			cooldown = def.Cooldown
		}
	}
	if len(state.Output) >= capacity {
		return
	}

	state.Output = append(state.Output, world.Item{Name: resource})
	state.Cooldown = cooldown
	s.markDirty(e)
	s.checkCapacity(e, len(state.Output), capacity)
}

func (s *Simulation) updateFurnace(e *world.Entity) {
	state := e.State.(*world.FurnaceState)

	if state.Cooldown > 0 {
		state.Cooldown--
	}

	if len(state.Output) > 0 {
		if dst := s.downstream(e); dst != nil && s.insert(dst, state.Output[0].Name) {
			state.Output = state.Output[1:]
			s.markDirty(e)
		}
	}

	if state.Cooldown > 0 || len(state.Input) == 0 {
		return
	}
	recipe, ok := s.catalog.FurnaceRecipes[state.Input[0].Name]
	if !ok {
		return
	}

	capacity := defaultOutputCapacity
	if def, defOK := s.entityDef(world.KindFurnace); defOK && def.OutputBufferSize > 0 {
		capacity = def.OutputBufferSize
	}
	if len(state.Output)+recipe.Count > capacity {
		return
	}

	state.Input = state.Input[1:]
	for i := 0; i < recipe.Count; i++ {
		state.Output = append(state.Output, world.Item{Name: recipe.Output})
	}
	state.Cooldown = recipe.Time
	s.markDirty(e)
	s.checkCapacity(e, len(state.Output), capacity)
}

func (s *Simulation) updateAssembler(e *world.Entity) {
	state := e.State.(*world.AssemblerState)

	if state.Cooldown > 0 {
		state.Cooldown--
	}

	if len(state.Output) > 0 {
		if dst := s.downstream(e); dst != nil && s.insert(dst, state.Output[0].Name) {
			state.Output = state.Output[1:]
			s.markDirty(e)
		}
	}

	if state.Cooldown > 0 || state.Recipe == "" {
		return
	}
	recipe, ok := s.catalog.AssemblerRecipes[state.Recipe]
	if !ok {
		return
	}

	capacity := defaultOutputCapacity
	if def, defOK := s.entityDef(world.KindAssembler); defOK && def.OutputBufferSize > 0 {
		capacity = def.OutputBufferSize
	}
	if len(state.Output)+recipe.Count > capacity {
		return
	}

	have := make(map[string]int)
	for _, it := range state.Input {
		have[it.Name]++
	}
	for ing, n := range recipe.Ingredients {
		if have[ing] < n {
			return
		}
	}

	// Remove exactly the required counts, preserving the relative order of
	// everything else.
	need := make(map[string]int, len(recipe.Ingredients))
	for ing, n := range recipe.Ingredients {
		need[ing] = n
	}
	kept := state.Input[:0]
	for _, it := range state.Input {
		if need[it.Name] > 0 {
			need[it.Name]--
			continue
		}
		kept = append(kept, it)
	}
	state.Input = kept

	for i := 0; i < recipe.Count; i++ {
		state.Output = append(state.Output, world.Item{Name: recipe.Result})
	}
	state.Cooldown = recipe.Time
	s.markDirty(e)
	s.checkCapacity(e, len(state.Output), capacity)
}

func (s *Simulation) updateConveyor(e *world.Entity) {
	state := e.State.(*world.ConveyorState)
	if len(state.Items) == 0 {
		return
	}

	speed := defaultConveyorSpeed
	if def, ok := s.entityDef(world.KindConveyor); ok && def.Speed > 0 {
		speed = def.Speed
	}

	dst := s.downstream(e)
	kept := state.Items[:0]
	for _, it := range state.Items {
		it.Progress += speed
		if it.Progress >= 1.0 {
			if dst != nil && s.insert(dst, it.Name) {
				continue // item moved on
			}
			// Backpressure: the item stays at the end of the belt.
			it.Progress = 0.99
		}
		kept = append(kept, it)
	}
	state.Items = kept
	s.markDirty(e)
}

func (s *Simulation) updateInserter(e *world.Entity) {
	state := e.State.(*world.InserterState)

	if state.Held == nil {
		if state.Cooldown > 0 {
			state.Cooldown--
			return
		}

		src := s.behind(e)
		dst := s.downstream(e)
		// The destination must have room before extraction, or the item
		// would have nowhere to go.
		if src == nil || dst == nil || !s.canAccept(dst) {
			return
		}
		item, ok := s.extract(src)
		if !ok {
			return
		}
		state.Held = &world.Item{Name: item}
		state.Progress = 0
		s.markDirty(e)
		s.markDirty(src)
		return
	}

	speed := defaultInserterSpeed
	cooldown := defaultInserterCooldown
	if def, ok := s.entityDef(world.KindInserter); ok {
		if def.AnimationSpeed > 0 {
			speed = def.AnimationSpeed
		}
		if def.Cooldown > 0 {
			cooldown = def.Cooldown
		}
	}

	state.Progress += speed
	s.markDirty(e)
	if state.Progress < 1.0 {
		return
	}

	if dst := s.downstream(e); dst != nil && s.insert(dst, state.Held.Name) {
		state.Held = nil
		state.Progress = 0
		state.Cooldown = cooldown
		s.markDirty(dst)
		return
	}

	// Destination stopped accepting: hand the item back rather than drop it.
	if src := s.behind(e); src != nil && s.giveBack(src, state.Held.Name) {
		state.Held = nil
		state.Progress = 0
		state.Cooldown = cooldown
		s.markDirty(src)
		return
	}

	// Neither side accepts; keep holding and retry next tick.
	state.Progress = 1.0
}

// checkCapacity enforces the buffer invariant. Exceeding a catalog capacity
// is a bug, not backpressure, and must not be silently absorbed.
func (s *Simulation) checkCapacity(e *world.Entity, length, capacity int) {
	if length > capacity {
		panic(fmt.Sprintf("buffer overflow on %s entity %d: %d > %d", e.Kind, e.ID, length, capacity))
	}
}
