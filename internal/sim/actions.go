package sim

import (
	"github.com/fabrica-dev/fabrica/internal/world"
)

// PickupRadius bounds how far from the player PICKUP reaches when the
// catalog does not override it.
const PickupRadius = 1.5

// Build places a new entity if the tile is free and the catalog's placement
// rules allow the kind on the underlying tile. Unknown kinds and directions
// are rejected. Returns nil when the build is rejected; rejected builds are
// silent no-ops at the protocol level.
func (s *Simulation) Build(kind world.Kind, x, y int, dir world.Direction) *world.Entity {
	def, ok := s.catalog.Entities[int(kind)]
	if !ok || kind == world.KindPlayer {
		return nil
	}
	if dir < world.North || dir > world.West {
		return nil
	}
	tile, ok := s.catalog.Tiles[int(s.store.Tile(x, y))]
	if !ok {
		return nil
	}
	if !s.catalog.CanPlace(def.Name, tile.Name) {
		return nil
	}
	if !def.HasDirection {
		dir = world.North
	}
	e := s.store.PlaceEntity(kind, x, y, dir)
	if e == nil {
		return nil
	}
	// Fresh machines start on cooldown: the first operation takes its full
	// configured time.
	switch state := e.State.(type) {
	case *world.MinerState:
		state.Cooldown = def.Cooldown
	case *world.FurnaceState:
		state.Cooldown = def.Cooldown
	case *world.InserterState:
		state.Cooldown = def.Cooldown
	}
	return e
}

// Destroy removes an entity. Buffered items dissolve with it.
func (s *Simulation) Destroy(id int64) *world.Entity {
	e := s.store.RemoveEntity(id)
	if e != nil {
		s.Unmark(id)
	}
	return e
}

// Configure sets an assembler's active recipe by name. An unknown recipe
// name clears the current recipe.
func (s *Simulation) Configure(id int64, recipe string) *world.Entity {
	e := s.store.Entity(id)
	if e == nil {
		return nil
	}
	state, ok := e.State.(*world.AssemblerState)
	if !ok {
		return nil
	}
	if _, known := s.catalog.AssemblerRecipes[recipe]; !known {
		recipe = ""
	}
	if state.Recipe == recipe {
		return nil
	}
	state.Recipe = recipe
	s.markDirty(e)
	return e
}

// TransferTo moves up to count items from the player's inventory into the
// target entity, one at a time through the insertion rules. Returns the
// number actually moved.
func (s *Simulation) TransferTo(p *world.Player, entityID int64, item string, count int) int {
	dst := s.store.Entity(entityID)
	if dst == nil || count <= 0 {
		return 0
	}
	moved := 0
	for moved < count {
		if !p.Inventory.Has(item, 1) {
			break
		}
		if !s.insert(dst, item) {
			break
		}
		p.Inventory.Remove(item, 1)
		moved++
	}
	return moved
}

// TransferFrom moves up to count items of the named kind from the entity's
// player-reachable buffer into the player's inventory. The inventory is
// checked for room before each item is taken so nothing is lost.
func (s *Simulation) TransferFrom(p *world.Player, entityID int64, item string, count int) int {
	src := s.store.Entity(entityID)
	if src == nil || count <= 0 {
		return 0
	}
	moved := 0
	for moved < count {
		if !s.hasNamed(src, item) || !p.Inventory.CanHold(item, 1) {
			break
		}
		if !s.removeNamed(src, item) {
			break
		}
		p.Inventory.Add(item, 1)
		moved++
	}
	if moved > 0 {
		s.markDirty(src)
	}
	return moved
}

// Pickup sweeps conveyors and chests near the player and ingests their items
// until the inventory fills up. Returns the entities it drained.
func (s *Simulation) Pickup(p *world.Player) []*world.Entity {
	radius := s.catalog.FloatConstant("PICKUP_RADIUS", PickupRadius)

	var touched []*world.Entity
	for _, e := range s.store.EntitiesInRadius(p.X, p.Y, radius) {
		changed := false
		switch state := e.State.(type) {
		case *world.ConveyorState:
			kept := state.Items[:0]
			for _, it := range state.Items {
				if p.Inventory.CanHold(it.Name, 1) {
					p.Inventory.Add(it.Name, 1)
					changed = true
					continue
				}
				kept = append(kept, it)
			}
			state.Items = kept
		case *world.ChestState:
			kept := state.Items[:0]
			for _, it := range state.Items {
				if p.Inventory.CanHold(it.Name, 1) {
					p.Inventory.Add(it.Name, 1)
					changed = true
					continue
				}
				kept = append(kept, it)
			}
			state.Items = kept
		}
		if changed {
			s.markDirty(e)
			touched = append(touched, e)
		}
	}
	return touched
}

// Mine extracts one unit of the resource under (x, y) by hand. Returns the
// item name, or "" when the tile has no resource or the inventory is full.
func (s *Simulation) Mine(p *world.Player, x, y int) string {
	resource := s.catalog.ResourceForTile(int(s.store.Tile(x, y)))
	if resource == "" || !p.Inventory.CanHold(resource, 1) {
		return ""
	}
	p.Inventory.Add(resource, 1)
	return resource
}

// Craft consumes one recipe's ingredients from the player inventory and adds
// the results. The output is checked for room before anything is consumed so
// a full inventory aborts cleanly instead of eating ingredients.
func (s *Simulation) Craft(p *world.Player, recipe string) bool {
	r, ok := s.catalog.AssemblerRecipes[recipe]
	if !ok {
		return false
	}
	for ing, n := range r.Ingredients {
		if !p.Inventory.Has(ing, n) {
			return false
		}
	}
	if !p.Inventory.CanHold(r.Result, r.Count) {
		return false
	}
	for ing, n := range r.Ingredients {
		p.Inventory.Remove(ing, n)
	}
	p.Inventory.Add(r.Result, r.Count)
	return true
}

// Drop discards items from the player inventory. No ground entity exists,
// so dropped items are simply destroyed. Returns the count removed.
func (s *Simulation) Drop(p *world.Player, item string, count int) int {
	return p.Inventory.Remove(item, count)
}
