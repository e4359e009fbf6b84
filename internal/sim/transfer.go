package sim

import "github.com/fabrica-dev/fabrica/internal/world"

// insert appends one item to dst's receiving buffer if its kind accepts
// items and there is room. On success the destination is marked dirty.
func (s *Simulation) insert(dst *world.Entity, item string) bool {
	switch state := dst.State.(type) {
	case *world.ConveyorState:
		capacity := defaultConveyorCapacity
		if def, ok := s.entityDef(world.KindConveyor); ok && def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		if len(state.Items) >= capacity {
			return false
		}
		state.Items = append(state.Items, world.ConveyorItem{Name: item, Progress: 0})
	case *world.ChestState:
		capacity := defaultChestCapacity
		if def, ok := s.entityDef(world.KindChest); ok && def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		if len(state.Items) >= capacity {
			return false
		}
		state.Items = append(state.Items, world.Item{Name: item})
	case *world.FurnaceState:
		capacity := defaultInputCapacity
		if def, ok := s.entityDef(world.KindFurnace); ok && def.InputBufferSize > 0 {
			capacity = def.InputBufferSize
		}
		if len(state.Input) >= capacity {
			return false
		}
		state.Input = append(state.Input, world.Item{Name: item})
	case *world.AssemblerState:
		capacity := defaultInputCapacity
		if def, ok := s.entityDef(world.KindAssembler); ok && def.InputBufferSize > 0 {
			capacity = def.InputBufferSize
		}
		if len(state.Input) >= capacity {
			return false
		}
		state.Input = append(state.Input, world.Item{Name: item})
	default:
		// Miners, inserters and players never accept pushed items.
		return false
	}
	s.markDirty(dst)
	return true
}

// canAccept reports whether dst could take at least one more item right now.
// Inserters use it to avoid extracting an item with nowhere to go.
func (s *Simulation) canAccept(dst *world.Entity) bool {
	switch state := dst.State.(type) {
	case *world.ConveyorState:
		capacity := defaultConveyorCapacity
		if def, ok := s.entityDef(world.KindConveyor); ok && def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		return len(state.Items) < capacity
	case *world.ChestState:
		capacity := defaultChestCapacity
		if def, ok := s.entityDef(world.KindChest); ok && def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		return len(state.Items) < capacity
	case *world.FurnaceState:
		capacity := defaultInputCapacity
		if def, ok := s.entityDef(world.KindFurnace); ok && def.InputBufferSize > 0 {
			capacity = def.InputBufferSize
		}
		return len(state.Input) < capacity
	case *world.AssemblerState:
		capacity := defaultInputCapacity
		if def, ok := s.entityDef(world.KindAssembler); ok && def.InputBufferSize > 0 {
			capacity = def.InputBufferSize
		}
		return len(state.Input) < capacity
	default:
		return false
	}
}

// extract removes and returns the head item of src's output-facing buffer.
// For conveyors only an item that has finished its run (progress >= 0.9) can
// be taken, the first such item in belt order.
func (s *Simulation) extract(src *world.Entity) (string, bool) {
	switch state := src.State.(type) {
	case *world.MinerState:
		if len(state.Output) == 0 {
			return "", false
		}
		item := state.Output[0].Name
		state.Output = state.Output[1:]
		return item, true
	case *world.FurnaceState:
		if len(state.Output) == 0 {
			return "", false
		}
		item := state.Output[0].Name
		state.Output = state.Output[1:]
		return item, true
	case *world.AssemblerState:
		if len(state.Output) == 0 {
			return "", false
		}
		item := state.Output[0].Name
		state.Output = state.Output[1:]
		return item, true
	case *world.ChestState:
		if len(state.Items) == 0 {
			return "", false
		}
		item := state.Items[0].Name
		state.Items = state.Items[1:]
		return item, true
	case *world.ConveyorState:
		for i, it := range state.Items {
			if it.Progress >= 0.9 {
				state.Items = append(state.Items[:i], state.Items[i+1:]...)
				return it.Name, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// giveBack returns an item to the buffer it was extracted from: the
// output-facing side of src. Items handed back to a conveyor rejoin at the
// end of the belt.
func (s *Simulation) giveBack(src *world.Entity, item string) bool {
	switch state := src.State.(type) {
	case *world.MinerState:
		capacity := defaultMinerCapacity
		if def, ok := s.entityDef(world.KindMiner); ok && def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		if len(state.Output) >= capacity {
			return false
		}
		state.Output = append(state.Output, world.Item{Name: item})
	case *world.FurnaceState:
		capacity := defaultOutputCapacity
		if def, ok := s.entityDef(world.KindFurnace); ok && def.OutputBufferSize > 0 {
			capacity = def.OutputBufferSize
		}
		if len(state.Output) >= capacity {
			return false
		}
		state.Output = append(state.Output, world.Item{Name: item})
	case *world.AssemblerState:
		capacity := defaultOutputCapacity
		if def, ok := s.entityDef(world.KindAssembler); ok && def.OutputBufferSize > 0 {
			capacity = def.OutputBufferSize
		}
		if len(state.Output) >= capacity {
			return false
		}
		state.Output = append(state.Output, world.Item{Name: item})
	case *world.ChestState:
		capacity := defaultChestCapacity
		if def, ok := s.entityDef(world.KindChest); ok && def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		if len(state.Items) >= capacity {
			return false
		}
		state.Items = append(state.Items, world.Item{Name: item})
	case *world.ConveyorState:
		capacity := defaultConveyorCapacity
		if def, ok := s.entityDef(world.KindConveyor); ok && def.BufferSize > 0 {
			capacity = def.BufferSize
		}
		if len(state.Items) >= capacity {
			return false
		}
		state.Items = append(state.Items, world.ConveyorItem{Name: item, Progress: 0.99})
	default:
		return false
	}
	return true
}

// hasNamed reports whether src's player-reachable buffer holds an item with
// the given name.
func (s *Simulation) hasNamed(src *world.Entity, item string) bool {
	switch state := src.State.(type) {
	case *world.ChestState:
		for _, it := range state.Items {
			if it.Name == item {
				return true
			}
		}
	case *world.MinerState:
		for _, it := range state.Output {
			if it.Name == item {
				return true
			}
		}
	case *world.FurnaceState:
		for _, it := range state.Output {
			if it.Name == item {
				return true
			}
		}
	case *world.AssemblerState:
		for _, it := range state.Output {
			if it.Name == item {
				return true
			}
		}
	case *world.ConveyorState:
		for _, it := range state.Items {
			if it.Name == item {
				return true
			}
		}
	}
	return false
}

// removeNamed removes the first item with the given name from src's
// player-reachable buffer.
func (s *Simulation) removeNamed(src *world.Entity, item string) bool {
	switch state := src.State.(type) {
	case *world.ChestState:
		for i, it := range state.Items {
			if it.Name == item {
				state.Items = append(state.Items[:i], state.Items[i+1:]...)
				return true
			}
		}
	case *world.MinerState:
		for i, it := range state.Output {
			if it.Name == item {
				state.Output = append(state.Output[:i], state.Output[i+1:]...)
				return true
			}
		}
	case *world.FurnaceState:
		for i, it := range state.Output {
			if it.Name == item {
				state.Output = append(state.Output[:i], state.Output[i+1:]...)
				return true
			}
		}
	case *world.AssemblerState:
		for i, it := range state.Output {
			if it.Name == item {
				state.Output = append(state.Output[:i], state.Output[i+1:]...)
				return true
			}
		}
	case *world.ConveyorState:
		for i, it := range state.Items {
			if it.Name == item {
				state.Items = append(state.Items[:i], state.Items[i+1:]...)
				return true
			}
		}
	}
	return false
}
